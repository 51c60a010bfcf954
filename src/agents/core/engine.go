package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// DefaultMaxSteps bounds an execution when Config.MaxSteps is unset.
const DefaultMaxSteps = 5

// Config tunes the decision loop.
type Config struct {
	MaxSteps int
	// Clock stamps memory entries; time.Now when nil.
	Clock func() time.Time
}

// Engine runs the choose, dispatch, observe loop for one task at a time per call.
// It holds no per-task state, so one Engine serves concurrent executions.
type Engine struct {
	registry *Registry
	oracle   Oracle
	maxSteps int
	clock    func() time.Time
	logger   hclog.Logger
}

// NewEngine wires a registry and oracle into a decision loop.
func NewEngine(cfg Config, registry *Registry, oracle Oracle, logger hclog.Logger) *Engine {
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Engine{
		registry: registry,
		oracle:   oracle,
		maxSteps: maxSteps,
		clock:    clock,
		logger:   logger,
	}
}

// MaxSteps reports the configured step budget.
func (e *Engine) MaxSteps() int {
	return e.maxSteps
}

// Execute runs task and returns its trajectory.
func (e *Engine) Execute(ctx context.Context, task string) ([]StepOutcome, error) {
	_, outcomes, err := e.Run(ctx, task)
	return outcomes, err
}

// Run executes task and also returns the working memory built along the way.
//
// The loop stops at the first successful step, on an oracle failure, on an
// unknown capability, or after MaxSteps. Capability errors are recorded and the
// loop moves on; each step consumes one unit of budget whatever its outcome.
// A non-nil error means the orchestration itself failed (ErrExecutionFault).
func (e *Engine) Run(ctx context.Context, task string) (*AgentState, []StepOutcome, error) {
	if e == nil || e.registry == nil || e.oracle == nil {
		return nil, nil, fmt.Errorf("%w: engine is missing a registry or oracle", ErrExecutionFault)
	}

	state := NewAgentState(task)
	names := e.registry.List()
	outcomes := make([]StepOutcome, 0, e.maxSteps)

	for step := 1; step <= e.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return state, outcomes, fmt.Errorf("%w: %v", ErrExecutionFault, err)
		}

		proposal, err := e.decide(ctx, task, names)
		if err != nil {
			e.logger.Warn("decision failed", "step", step, "error", err)
			outcomes = append(outcomes, StepOutcome{
				Step:   step,
				Signal: SignalDecisionFailed,
				Result: Failure(err.Error()),
			})
			break
		}

		capability, err := e.registry.Resolve(proposal.CapabilityName)
		if err != nil {
			e.logger.Warn("proposal named unknown capability", "step", step, "capability", proposal.CapabilityName)
			outcomes = append(outcomes, StepOutcome{
				Step:     step,
				Signal:   SignalCapabilityNotFound,
				Proposal: &proposal,
				Result:   Failure(err.Error()),
			})
			break
		}

		result := e.invoke(ctx, capability, proposal.Input)
		state.Remember(e.clock(), proposal, result)
		outcomes = append(outcomes, StepOutcome{
			Step:     step,
			Signal:   SignalStep,
			Proposal: &proposal,
			Result:   result,
		})
		e.logger.Debug("step executed", "step", step, "capability", capability.Name, "status", result.Status)

		if result.OK() {
			break
		}
	}

	return state, outcomes, nil
}

func (e *Engine) decide(ctx context.Context, task string, names []string) (Proposal, error) {
	proposal, err := e.oracle.Propose(ctx, task, names)
	if err != nil {
		return Proposal{}, fmt.Errorf("%w: %v", ErrDecisionFailed, err)
	}
	if strings.TrimSpace(proposal.CapabilityName) == "" {
		return Proposal{}, fmt.Errorf("%w: proposal has no capability name", ErrDecisionFailed)
	}
	return proposal, nil
}

func (e *Engine) invoke(ctx context.Context, capability Capability, input string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("capability panicked", "capability", capability.Name, "panic", r)
			result = Failuref("capability %s panicked: %v", capability.Name, r)
		}
	}()

	result = capability.Invoke(ctx, input)
	switch result.Status {
	case StatusSuccess, StatusError:
		return result
	default:
		return Failuref("capability %s returned an untagged result", capability.Name)
	}
}
