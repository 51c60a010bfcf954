package config

import "strings"

// AIConfig holds AI-related configuration
type AIConfig struct {
	OpenAIKey    string
	ClaudeKey    string
	AIProvider   string
	AIModel      string
	AIBaseURL    string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// LoadAIConfig loads AI configuration
func LoadAIConfig() AIConfig {
	provider := strings.ToLower(GetSetting("ai_provider", "AI_PROVIDER", "openai"))

	model := GetSetting("ai_model", "AI_MODEL", "")
	if model == "" {
		switch provider {
		case "claude", "anthropic":
			model = "claude-3-haiku-20240307"
		default:
			model = "gpt-3.5-turbo"
		}
	}

	return AIConfig{
		OpenAIKey:    GetSetting("openai_api_key", "OPENAI_API_KEY", ""),
		ClaudeKey:    GetSetting("claude_api_key", "CLAUDE_API_KEY", ""),
		AIProvider:   provider,
		AIModel:      model,
		AIBaseURL:    GetSetting("ai_base_url", "AI_BASE_URL", ""),
		Temperature:  getFloatSetting("ai_temperature", "AI_TEMPERATURE", 0.7),
		MaxTokens:    getIntSetting("ai_max_tokens", "AI_MAX_TOKENS", 2048),
		SystemPrompt: GetSetting("ai_system_prompt", "AI_SYSTEM_PROMPT", ""),
	}
}
