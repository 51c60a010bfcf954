package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stake-plus/taskagent/src/agents"
	agentcore "github.com/stake-plus/taskagent/src/agents/core"
	"github.com/stake-plus/taskagent/src/api/config"
	"github.com/stake-plus/taskagent/src/api/webserver"
	sharedconfig "github.com/stake-plus/taskagent/src/config"
	"github.com/stake-plus/taskagent/src/data"
	"github.com/stake-plus/taskagent/src/logging"
	"github.com/stake-plus/taskagent/src/tasks"
)

func loadSettings(dsn string, logger hclog.Logger) {
	if dsn == "" {
		return
	}
	db, err := data.ConnectMySQL(dsn)
	if err != nil {
		logger.Warn("settings database unavailable, using environment only", "error", err)
		return
	}
	if err := data.LoadSettings(db); err != nil {
		logger.Warn("loading settings failed, using environment only", "error", err)
	}
}

func main() {
	if _, err := sharedconfig.LoadEnvFiles(); err != nil {
		log.Printf("env files: %v", err)
	}
	cfg := config.Load()

	logger := logging.New("taskagent", cfg.LogLevel)
	if !strings.EqualFold(cfg.LogLevel, "debug") && !strings.EqualFold(cfg.LogLevel, "trace") {
		gin.SetMode(gin.ReleaseMode)
	}

	loadSettings(cfg.MySQLDSN, logger)

	rdb := data.MustRedis(cfg.RedisURL)
	store := data.NewRedisStore(rdb)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		log.Fatalf("redis: %v", err)
	}
	cancelPing()

	rt, err := agents.Build(sharedconfig.LoadAgentsConfig(), agentcore.RuntimeDeps{Logger: logger.Named("agents")})
	if err != nil {
		log.Fatalf("agents: %v", err)
	}

	tcfg := sharedconfig.LoadTasksConfig()
	manager := tasks.NewManager(tasks.Config{
		Retention:     tcfg.Retention,
		MaxConcurrent: tcfg.MaxConcurrent,
		KeyPrefix:     tcfg.KeyPrefix,
	}, store, rt.Engine, logger.Named("tasks"), tasks.MustNewMetrics(prometheus.DefaultRegisterer))

	limiter := webserver.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	defer limiter.Close()

	router := webserver.New(cfg, manager, webserver.Options{
		Logger:  logger.Named("api"),
		Limiter: limiter,
	})
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()
	logger.Info("task API listening", "port", cfg.Port)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutCtx, cancelShut := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShut()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := manager.Close(shutCtx); err != nil {
		logger.Warn("tasks still running at shutdown were marked failed", "error", err)
	}
	_ = rdb.Close()
	logger.Info("stopped")
}
