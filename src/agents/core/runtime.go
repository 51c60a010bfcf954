package core

import (
	"net/http"

	"github.com/hashicorp/go-hclog"

	aicore "github.com/stake-plus/taskagent/src/ai/core"
)

// RuntimeDeps captures shared resources that capabilities and the oracle can opt into.
type RuntimeDeps struct {
	HTTP   *http.Client
	AI     aicore.Client
	Logger hclog.Logger
}
