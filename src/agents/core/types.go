package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Proposal is the oracle's choice for one decision step.
type Proposal struct {
	CapabilityName string `json:"tool_name"`
	Input          string `json:"input"`
	Rationale      string `json:"reasoning,omitempty"`
}

// ResultStatus tags a Result as success or error.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
)

// Result is the outcome envelope of a capability invocation. Exactly one of
// Payload (success) or Message (error) is meaningful.
type Result struct {
	Status  ResultStatus
	Payload map[string]any
	Message string
}

// Success wraps a capability payload.
func Success(payload map[string]any) Result {
	if payload == nil {
		payload = map[string]any{}
	}
	return Result{Status: StatusSuccess, Payload: payload}
}

// Failure wraps an error message.
func Failure(message string) Result {
	return Result{Status: StatusError, Message: message}
}

// Failuref formats an error message.
func Failuref(format string, args ...any) Result {
	return Failure(fmt.Sprintf(format, args...))
}

// OK reports whether the result is tagged success.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// MarshalJSON flattens the payload next to the status tag, matching the
// {"status": "success", "results": ...} shape capabilities historically returned.
func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Payload)+2)
	switch r.Status {
	case StatusSuccess:
		for k, v := range r.Payload {
			out[k] = v
		}
		out["status"] = StatusSuccess
	default:
		out["status"] = StatusError
		out["message"] = r.Message
	}
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	status, _ := raw["status"].(string)
	switch ResultStatus(status) {
	case StatusSuccess:
		delete(raw, "status")
		*r = Success(raw)
	case StatusError:
		msg, _ := raw["message"].(string)
		*r = Failure(msg)
	default:
		return fmt.Errorf("agents: unknown result status %q", status)
	}
	return nil
}

// Signal classifies a step outcome.
type Signal string

const (
	// SignalStep is an executed capability step (success or error result).
	SignalStep Signal = "step"
	// SignalDecisionFailed ends the loop when the oracle errors or its output is unusable.
	SignalDecisionFailed Signal = "decision_failed"
	// SignalCapabilityNotFound ends the loop when the proposal names an unknown capability.
	SignalCapabilityNotFound Signal = "capability_not_found"
)

// StepOutcome is one entry of a trajectory.
type StepOutcome struct {
	Step     int       `json:"step"`
	Signal   Signal    `json:"signal"`
	Proposal *Proposal `json:"action,omitempty"`
	Result   Result    `json:"result"`
}

// Terminal reports whether the outcome ended the loop on its own.
func (o StepOutcome) Terminal() bool {
	return o.Signal != SignalStep || o.Result.OK()
}

// MemoryEntry records one executed step.
type MemoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Proposal  Proposal  `json:"action"`
	Result    Result    `json:"result"`
}

// AgentState is the per-execution working memory. One instance is created for
// every execution and never shared.
type AgentState struct {
	CurrentTask string         `json:"current_task"`
	Memory      []MemoryEntry  `json:"memory"`
	Context     map[string]any `json:"context"`
}

// NewAgentState returns an empty state for task.
func NewAgentState(task string) *AgentState {
	return &AgentState{
		CurrentTask: task,
		Context:     map[string]any{},
	}
}

// Remember appends an executed step to memory.
func (s *AgentState) Remember(at time.Time, proposal Proposal, result Result) {
	s.Memory = append(s.Memory, MemoryEntry{
		Timestamp: at,
		Proposal:  proposal,
		Result:    result,
	})
}

// Capability is a named single-input operation the loop may invoke.
type Capability struct {
	Name        string
	Description string
	Invoke      InvokeFunc
}

// Descriptor captures static metadata about a registered capability.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
