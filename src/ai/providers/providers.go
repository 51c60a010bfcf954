package providers

import (
	_ "github.com/stake-plus/taskagent/src/ai/anthropic"
	_ "github.com/stake-plus/taskagent/src/ai/openai"
)
