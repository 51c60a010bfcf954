package agents

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	agentcore "github.com/stake-plus/taskagent/src/agents/core"
	"github.com/stake-plus/taskagent/src/agents/oracle"
	"github.com/stake-plus/taskagent/src/agents/textops"
	"github.com/stake-plus/taskagent/src/agents/websearch"
	aicore "github.com/stake-plus/taskagent/src/ai/core"
	_ "github.com/stake-plus/taskagent/src/ai/providers"
	sharedconfig "github.com/stake-plus/taskagent/src/config"
	"github.com/stake-plus/taskagent/src/logging"
	"github.com/stake-plus/taskagent/src/webclient"
)

// Build registers the enabled capabilities, seals the registry and wires the
// oracle and decision loop. deps.HTTP and deps.AI are filled in when nil.
func Build(cfg sharedconfig.AgentsConfig, deps agentcore.RuntimeDeps) (*Runtime, error) {
	logger := logging.OrNull(deps.Logger)
	deps.Logger = logger
	if deps.HTTP == nil {
		deps.HTTP = webclient.NewDefault(cfg.HTTPTimeout)
	}
	if deps.AI == nil {
		deps.AI = BuildAIClient(cfg.AIConfig, logger)
	}

	registry := agentcore.NewRegistry()

	if cfg.WebSearch.Enabled {
		searcher := websearch.New(websearch.Config{
			APIKey:     cfg.WebSearch.APIKey,
			Depth:      cfg.WebSearch.Depth,
			MaxResults: cfg.WebSearch.MaxResults,
		}, deps)
		if err := registry.Register(websearch.Name, websearch.Description, searcher.Invoke); err != nil {
			return nil, fmt.Errorf("agents: web search: %w", err)
		}
	} else {
		logger.Info("capability disabled", "capability", websearch.Name)
	}

	text := textops.NewAgent(textops.Config{
		Model:       cfg.AIConfig.AIModel,
		Temperature: cfg.AIConfig.Temperature,
	}, deps)
	for _, entry := range []struct {
		enabled bool
		op      textops.Operation
	}{
		{cfg.Analyze, textops.Analyze},
		{cfg.Summarize, textops.Summarize},
	} {
		if !entry.enabled {
			logger.Info("capability disabled", "capability", entry.op.Name)
			continue
		}
		if err := registry.Register(entry.op.Name, entry.op.Description, text.Capability(entry.op)); err != nil {
			return nil, fmt.Errorf("agents: %s: %w", entry.op.Name, err)
		}
	}

	registry.Seal()

	decider := oracle.New(oracle.Config{
		Model:        cfg.AIConfig.AIModel,
		Temperature:  cfg.OracleTemperature,
		Descriptions: registry.Describe(),
	}, deps.AI, logger.Named("oracle"))

	engine := agentcore.NewEngine(agentcore.Config{MaxSteps: cfg.MaxSteps}, registry, decider, logger.Named("loop"))

	logger.Info("agents ready", "capabilities", registry.List(), "max_steps", engine.MaxSteps())
	return &Runtime{Registry: registry, Oracle: decider, Engine: engine}, nil
}

// BuildAIClient returns nil when the provider cannot be constructed; callers
// then surface the failure per call instead of at startup.
func BuildAIClient(cfg sharedconfig.AIConfig, logger hclog.Logger) aicore.Client {
	extra := map[string]string{}
	if cfg.AIBaseURL != "" {
		extra["base_url"] = cfg.AIBaseURL
	}
	client, err := aicore.NewClient(aicore.FactoryConfig{
		Provider:            cfg.AIProvider,
		SystemPrompt:        cfg.SystemPrompt,
		Model:               cfg.AIModel,
		Temperature:         cfg.Temperature,
		OpenAIKey:           cfg.OpenAIKey,
		ClaudeKey:           cfg.ClaudeKey,
		Extra:               extra,
		MaxCompletionTokens: cfg.MaxTokens,
	})
	if err != nil {
		logging.OrNull(logger).Warn("ai client unavailable", "provider", cfg.AIProvider, "error", err)
		return nil
	}
	return client
}
