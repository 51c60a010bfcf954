// Package oracle asks a language model which capability to run next.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/kaptinlin/jsonrepair"

	agentcore "github.com/stake-plus/taskagent/src/agents/core"
	aicore "github.com/stake-plus/taskagent/src/ai/core"
	"github.com/stake-plus/taskagent/src/logging"
)

const systemPrompt = "You are a decision-making AI. Respond in JSON format."

// ErrMalformedProposal is returned when the model output cannot be read as a proposal.
var ErrMalformedProposal = errors.New("oracle: malformed proposal")

// Config tunes the oracle's model call.
type Config struct {
	Model       string
	Temperature float64
	// Descriptions adds capability descriptions to the prompt when set.
	Descriptions []agentcore.Descriptor
}

// Oracle implements agentcore.Oracle on top of an ai client.
type Oracle struct {
	client aicore.Client
	cfg    Config
	logger hclog.Logger
}

// New returns an Oracle using client for decisions.
func New(cfg Config, client aicore.Client, logger hclog.Logger) *Oracle {
	return &Oracle{
		client: client,
		cfg:    cfg,
		logger: logging.OrNull(logger),
	}
}

// Propose asks the model for the next action on task.
func (o *Oracle) Propose(ctx context.Context, task string, capabilities []string) (agentcore.Proposal, error) {
	if o.client == nil {
		return agentcore.Proposal{}, fmt.Errorf("oracle: ai client unavailable")
	}

	out, err := o.client.Respond(ctx, o.prompt(task, capabilities), aicore.Options{
		Model:        o.cfg.Model,
		Temperature:  o.cfg.Temperature,
		SystemPrompt: systemPrompt,
		JSONResponse: true,
	})
	if err != nil {
		if logging.IsRateLimit(err) {
			o.logger.Warn("decision call rate limited", "error", err)
		}
		return agentcore.Proposal{}, err
	}

	proposal, err := Parse(out)
	if err != nil {
		o.logger.Debug("unparseable decision", "raw", truncate(out, 512))
		return agentcore.Proposal{}, err
	}
	return proposal, nil
}

func (o *Oracle) prompt(task string, capabilities []string) string {
	quoted := make([]string, len(capabilities))
	for i, name := range capabilities {
		quoted[i] = "'" + name + "'"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current task: %s\n", task)
	fmt.Fprintf(&b, "Available tools: [%s]\n", strings.Join(quoted, ", "))
	if len(o.cfg.Descriptions) > 0 {
		b.WriteString("Tool descriptions:\n")
		for _, d := range o.cfg.Descriptions {
			fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
		}
	}
	b.WriteString(`
Decide the next best action to take. Return your response as JSON with these fields:
- tool_name: which tool to use
- input: what input to provide to the tool
- reasoning: why this action was chosen`)
	return b.String()
}

// Parse reads a proposal from raw model output. Code fences are stripped and
// malformed JSON gets one repair attempt before the output is rejected.
func Parse(raw string) (agentcore.Proposal, error) {
	text := stripFences(raw)
	if text == "" {
		return agentcore.Proposal{}, fmt.Errorf("%w: empty response", ErrMalformedProposal)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(text)
		if repairErr != nil {
			return agentcore.Proposal{}, fmt.Errorf("%w: %v", ErrMalformedProposal, err)
		}
		if err := json.Unmarshal([]byte(repaired), &fields); err != nil {
			return agentcore.Proposal{}, fmt.Errorf("%w: %v", ErrMalformedProposal, err)
		}
	}

	proposal := agentcore.Proposal{
		CapabilityName: strings.TrimSpace(firstString(fields, "tool_name", "capability_name", "capability", "tool")),
		Input:          firstString(fields, "input", "tool_input"),
		Rationale:      strings.TrimSpace(firstString(fields, "reasoning", "rationale")),
	}
	if proposal.CapabilityName == "" {
		return agentcore.Proposal{}, fmt.Errorf("%w: missing tool_name", ErrMalformedProposal)
	}
	return proposal, nil
}

// firstString returns the first non-blank value among keys, untrimmed.
func firstString(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := fields[key].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case nil:
		default:
			// Non-string inputs (objects, numbers) are passed on as their JSON text.
			if b, err := json.Marshal(v); err == nil {
				return string(b)
			}
		}
	}
	return ""
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "... (truncated)"
}
