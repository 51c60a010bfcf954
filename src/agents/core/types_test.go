package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_JSONShape(t *testing.T) {
	success, err := json.Marshal(Success(map[string]any{"summary": "short"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","summary":"short"}`, string(success))

	failure, err := json.Marshal(Failure("boom"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","message":"boom"}`, string(failure))
}

func TestResult_PayloadCannotOverrideStatus(t *testing.T) {
	raw, err := json.Marshal(Success(map[string]any{"status": "error"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success"}`, string(raw))
}

func TestResult_UnmarshalRejectsUnknownStatus(t *testing.T) {
	var r Result
	assert.Error(t, json.Unmarshal([]byte(`{"status":"maybe"}`), &r))

	require.NoError(t, json.Unmarshal([]byte(`{"status":"error","message":"m"}`), &r))
	assert.Equal(t, Failure("m"), r)
}

func TestStepOutcome_JSON(t *testing.T) {
	outcome := StepOutcome{
		Step:     1,
		Signal:   SignalStep,
		Proposal: &Proposal{CapabilityName: "web_search", Input: "X news", Rationale: "need sources"},
		Result:   Success(map[string]any{"results": []any{"a"}}),
	}
	raw, err := json.Marshal(outcome)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"step": 1,
		"signal": "step",
		"action": {"tool_name": "web_search", "input": "X news", "reasoning": "need sources"},
		"result": {"status": "success", "results": ["a"]}
	}`, string(raw))

	decisionFailed, err := json.Marshal(StepOutcome{Step: 2, Signal: SignalDecisionFailed, Result: Failure("no decision")})
	require.NoError(t, err)
	assert.NotContains(t, string(decisionFailed), "action")
}

func TestStepOutcome_Terminal(t *testing.T) {
	assert.True(t, StepOutcome{Signal: SignalStep, Result: Success(nil)}.Terminal())
	assert.False(t, StepOutcome{Signal: SignalStep, Result: Failure("x")}.Terminal())
	assert.True(t, StepOutcome{Signal: SignalCapabilityNotFound, Result: Failure("x")}.Terminal())
}
