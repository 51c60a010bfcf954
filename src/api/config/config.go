package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stake-plus/taskagent/src/data"
)

type Config struct {
	Port            string
	RedisURL        string
	MySQLDSN        string
	JWTSecret       string
	LogLevel        string
	AllowOrigins    []string
	RateLimit       int
	RateWindow      time.Duration
	ShutdownTimeout time.Duration
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v, err := strconv.Atoi(getenv(key, ""))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// Load reads process configuration. REDIS_URL wins over REDIS_HOST/REDIS_PORT.
func Load() Config {
	redisURL := getenv("REDIS_URL", "")
	if redisURL == "" {
		redisURL = data.RedisURL(getenv("REDIS_HOST", "localhost"), getenv("REDIS_PORT", "6379"), getenvInt("REDIS_DB", 0))
	}

	var origins []string
	for _, o := range strings.Split(getenv("CORS_ALLOW_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return Config{
		Port:            getenv("PORT", "5000"),
		RedisURL:        redisURL,
		MySQLDSN:        getenv("MYSQL_DSN", ""),
		JWTSecret:       getenv("JWT_SECRET", ""),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		AllowOrigins:    origins,
		RateLimit:       getenvInt("RATE_LIMIT_REQUESTS", 60),
		RateWindow:      time.Duration(getenvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		ShutdownTimeout: time.Duration(getenvInt("SHUTDOWN_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}
