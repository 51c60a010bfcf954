package webserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stake-plus/taskagent/src/api/config"
	"github.com/stake-plus/taskagent/src/logging"
	"github.com/stake-plus/taskagent/src/tasks"
)

// TaskService is the lifecycle surface the handlers drive.
type TaskService interface {
	Submit(ctx context.Context, description string) (string, error)
	Status(ctx context.Context, id string) (*tasks.Record, error)
	ListActive(ctx context.Context) ([]tasks.Summary, error)
}

// Options carries optional collaborators for New.
type Options struct {
	Logger hclog.Logger
	// Gatherer backs /metrics; prometheus.DefaultGatherer when nil.
	Gatherer prometheus.Gatherer
	Limiter  *RateLimiter
}

func New(cfg config.Config, svc TaskService, opts Options) *gin.Engine {
	g := gin.New()
	g.Use(requestLogger(logging.OrNull(opts.Logger)), gin.Recovery())
	attachRoutes(g, cfg, svc, opts)
	return g
}

func requestLogger(logger hclog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		status := c.Writer.Status()
		args := []interface{}{"method", c.Request.Method, "path", c.FullPath(), "status", status, "client", c.ClientIP()}
		if status >= http.StatusInternalServerError {
			logger.Warn("request", args...)
			return
		}
		logger.Debug("request", args...)
	}
}
