package config

import (
	"strings"
	"time"
)

// AgentsConfig exposes the decision loop knobs and capability gates.
type AgentsConfig struct {
	MaxSteps    int
	HTTPTimeout time.Duration
	AIConfig    AIConfig

	// OracleTemperature is used for capability selection; text capabilities use AIConfig.Temperature.
	OracleTemperature float64

	WebSearch WebSearchConfig
	Analyze   bool
	Summarize bool
}

// WebSearchConfig configures the Tavily-backed web_search capability.
type WebSearchConfig struct {
	Enabled    bool
	APIKey     string
	Depth      string
	MaxResults int
}

// LoadAgentsConfig reads configuration values for the agent subsystem.
func LoadAgentsConfig() AgentsConfig {
	depth := strings.ToLower(GetSetting("tavily_search_depth", "TAVILY_SEARCH_DEPTH", "basic"))
	if depth != "basic" && depth != "advanced" {
		depth = "basic"
	}

	return AgentsConfig{
		MaxSteps:          getIntSetting("agents_max_steps", "AGENTS_MAX_STEPS", 5),
		HTTPTimeout:       getSecondsSetting("agents_http_timeout_seconds", "AGENTS_HTTP_TIMEOUT_SECONDS", 90*time.Second),
		AIConfig:          LoadAIConfig(),
		OracleTemperature: getFloatSetting("agents_oracle_temperature", "AGENTS_ORACLE_TEMPERATURE", 0.7),
		WebSearch: WebSearchConfig{
			Enabled:    getBoolSetting("enable_capability_web_search", "ENABLE_CAPABILITY_WEB_SEARCH", true),
			APIKey:     GetSetting("tavily_api_key", "TAVILY_API_KEY", ""),
			Depth:      depth,
			MaxResults: getIntSetting("tavily_max_results", "TAVILY_MAX_RESULTS", 5),
		},
		Analyze:   getBoolSetting("enable_capability_analyze_text", "ENABLE_CAPABILITY_ANALYZE_TEXT", true),
		Summarize: getBoolSetting("enable_capability_summarize", "ENABLE_CAPABILITY_SUMMARIZE", true),
	}
}
