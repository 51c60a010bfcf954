package config

import "time"

// TasksConfig tunes the task lifecycle manager.
type TasksConfig struct {
	Retention     time.Duration
	MaxConcurrent int
	KeyPrefix     string
}

// LoadTasksConfig loads task manager configuration
func LoadTasksConfig() TasksConfig {
	return TasksConfig{
		Retention:     getSecondsSetting("tasks_retention_seconds", "TASKS_RETENTION_SECONDS", time.Hour),
		MaxConcurrent: getIntSetting("tasks_max_concurrent", "TASKS_MAX_CONCURRENT", 16),
		KeyPrefix:     GetSetting("tasks_key_prefix", "TASKS_KEY_PREFIX", "task:"),
	}
}
