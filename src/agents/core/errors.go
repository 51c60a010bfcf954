package core

import (
	"errors"
	"fmt"
)

var (
	// ErrCapabilityNotFound is returned when a proposal names an unregistered capability.
	ErrCapabilityNotFound = errors.New("agents: capability not found")
	// ErrDecisionFailed marks an oracle call that errored or produced unusable output.
	ErrDecisionFailed = errors.New("agents: failed to decide next action")
	// ErrExecutionFault marks failures of the loop's own orchestration.
	ErrExecutionFault = errors.New("agents: execution fault")
)

// CapabilityNotFoundError names the capability that could not be resolved.
type CapabilityNotFoundError struct {
	Name string
}

func (e *CapabilityNotFoundError) Error() string {
	return fmt.Sprintf("Tool %s not found", e.Name)
}

// Is makes errors.Is(err, ErrCapabilityNotFound) hold.
func (e *CapabilityNotFoundError) Is(target error) bool {
	return target == ErrCapabilityNotFound
}
