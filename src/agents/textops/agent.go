// Package textops provides the LLM-backed analyze_text and summarize capabilities.
package textops

import (
	"context"
	"errors"
	"strings"

	"github.com/hashicorp/go-hclog"

	agentcore "github.com/stake-plus/taskagent/src/agents/core"
	aicore "github.com/stake-plus/taskagent/src/ai/core"
	"github.com/stake-plus/taskagent/src/logging"
)

// Operation describes one prompt-driven text capability.
type Operation struct {
	Name         string
	Description  string
	SystemPrompt string
	// PayloadKey names the field holding the model output in the success payload.
	PayloadKey string
}

var (
	Analyze = Operation{
		Name:         "analyze_text",
		Description:  "Analyze text using OpenAI",
		SystemPrompt: "Analyze the following text and provide insights:",
		PayloadKey:   "analysis",
	}
	Summarize = Operation{
		Name:         "summarize",
		Description:  "Summarize given text",
		SystemPrompt: "Provide a concise summary of the following text:",
		PayloadKey:   "summary",
	}
)

// Config tunes the model call shared by all operations.
type Config struct {
	Model       string
	Temperature float64
}

// Agent runs text operations against an ai client.
type Agent struct {
	cfg    Config
	client aicore.Client
	logger hclog.Logger
}

// NewAgent builds an Agent from the shared runtime deps.
func NewAgent(cfg Config, deps agentcore.RuntimeDeps) *Agent {
	return &Agent{
		cfg:    cfg,
		client: deps.AI,
		logger: logging.OrNull(deps.Logger),
	}
}

// Capability binds op to this agent as an InvokeFunc.
func (a *Agent) Capability(op Operation) agentcore.InvokeFunc {
	return agentcore.Adapt(func(ctx context.Context, text string) (map[string]any, error) {
		out, err := a.run(ctx, op, text)
		if err != nil {
			a.logger.Warn("text operation failed", "capability", op.Name, "error", err)
			return nil, err
		}
		return map[string]any{op.PayloadKey: out}, nil
	})
}

func (a *Agent) run(ctx context.Context, op Operation, text string) (string, error) {
	if a.client == nil {
		return "", errors.New("ai client unavailable")
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("no text provided")
	}
	return a.client.Respond(ctx, text, aicore.Options{
		Model:        a.cfg.Model,
		Temperature:  a.cfg.Temperature,
		SystemPrompt: op.SystemPrompt,
	})
}
