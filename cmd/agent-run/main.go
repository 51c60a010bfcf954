package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/stake-plus/taskagent/src/agents"
	agentcore "github.com/stake-plus/taskagent/src/agents/core"
	sharedconfig "github.com/stake-plus/taskagent/src/config"
	"github.com/stake-plus/taskagent/src/logging"
)

var (
	taskFlag     = flag.String("task", defaultTask, "Task description to run")
	providerFlag = flag.String("provider", "", "Override AI provider (openai|claude)")
	modelFlag    = flag.String("model", "", "Override model name")
	stepsFlag    = flag.Int("max-steps", 0, "Override the step budget (0 keeps configuration)")
	timeoutFlag  = flag.Duration("timeout", 5*time.Minute, "Overall run timeout")
	memoryFlag   = flag.Bool("memory", false, "Print the agent memory instead of the trajectory")
	levelFlag    = flag.String("log-level", "warn", "Log level for stderr output")
)

const defaultTask = "Research the latest developments in quantum computing and provide a summary"

func main() {
	log.SetFlags(0)
	flag.Parse()

	if _, err := sharedconfig.LoadEnvFiles(); err != nil {
		log.Printf("env files: %v", err)
	}

	cfg := sharedconfig.LoadAgentsConfig()
	if p := strings.TrimSpace(*providerFlag); p != "" {
		cfg.AIConfig.AIProvider = strings.ToLower(p)
		if *modelFlag == "" {
			cfg.AIConfig.AIModel = ""
		}
	}
	if m := strings.TrimSpace(*modelFlag); m != "" {
		cfg.AIConfig.AIModel = m
	}
	if *stepsFlag > 0 {
		cfg.MaxSteps = *stepsFlag
	}

	logger := logging.NewWithOutput("agent-run", *levelFlag, os.Stderr)
	rt, err := agents.Build(cfg, agentcore.RuntimeDeps{Logger: logger})
	if err != nil {
		log.Fatalf("agents: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	state, outcomes, err := rt.Engine.Run(ctx, *taskFlag)
	if err != nil {
		log.Fatalf("run: %v", err)
	}

	var out interface{} = outcomes
	if *memoryFlag {
		out = state
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encode: %v", err)
	}
	fmt.Fprintf(os.Stderr, "%d step(s), success=%t\n", len(outcomes), succeeded(outcomes))
}

func succeeded(outcomes []agentcore.StepOutcome) bool {
	return len(outcomes) > 0 && outcomes[len(outcomes)-1].Result.OK()
}
