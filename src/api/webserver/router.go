package webserver

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stake-plus/taskagent/src/api/config"
)

func attachRoutes(r *gin.Engine, cfg config.Config, svc TaskService, opts Options) {
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}
	if len(cfg.AllowOrigins) == 0 || (len(cfg.AllowOrigins) == 1 && cfg.AllowOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowOrigins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	taskH := NewTasks(svc)

	api := r.Group("/tasks")
	if cfg.JWTSecret != "" {
		api.Use(JWTMiddleware([]byte(cfg.JWTSecret)))
	}
	if opts.Limiter != nil {
		api.Use(RateLimitMiddleware(opts.Limiter))
	}
	{
		api.POST("", taskH.Create)
		api.GET("", taskH.List)
		api.GET("/:id", taskH.Get)
	}
}
