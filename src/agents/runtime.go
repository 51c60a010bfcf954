package agents

import (
	agentcore "github.com/stake-plus/taskagent/src/agents/core"
	"github.com/stake-plus/taskagent/src/agents/oracle"
)

// Runtime is the wired decision loop and the pieces it was built from.
type Runtime struct {
	Registry *agentcore.Registry
	Oracle   *oracle.Oracle
	Engine   *agentcore.Engine
}

type (
	// Proposal re-exports the core proposal for convenience.
	Proposal = agentcore.Proposal
	// Result is the tagged capability outcome.
	Result = agentcore.Result
	// StepOutcome is one trajectory entry.
	StepOutcome = agentcore.StepOutcome
	// RuntimeDeps bundles shared resources for capabilities.
	RuntimeDeps = agentcore.RuntimeDeps
)
