package core

import (
	"context"
	"errors"
)

// InvokeFunc runs a capability. Implementations report faults as Failure
// results rather than panicking.
type InvokeFunc func(ctx context.Context, input string) Result

// Oracle proposes the next capability to invoke for a task.
type Oracle interface {
	Propose(ctx context.Context, task string, capabilities []string) (Proposal, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, task string, capabilities []string) (Proposal, error)

// Propose implements Oracle.
func (f OracleFunc) Propose(ctx context.Context, task string, capabilities []string) (Proposal, error) {
	return f(ctx, task, capabilities)
}

// Adapt converts a payload/error function into an InvokeFunc.
func Adapt(fn func(ctx context.Context, input string) (map[string]any, error)) InvokeFunc {
	return func(ctx context.Context, input string) Result {
		payload, err := fn(ctx, input)
		if err != nil {
			return Failure(err.Error())
		}
		return Success(payload)
	}
}

// ErrNilInvoke is returned when registering a capability without a function.
var ErrNilInvoke = errors.New("agents: capability function is nil")
