package webserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/taskagent/src/tasks"
)

type Tasks struct {
	svc TaskService
}

func NewTasks(svc TaskService) Tasks {
	return Tasks{svc: svc}
}

func (t Tasks) Create(c *gin.Context) {
	var req struct {
		Task *string `json:"task"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Task == nil || strings.TrimSpace(*req.Task) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No task provided"})
		return
	}

	id, err := t.svc.Submit(c.Request.Context(), *req.Task)
	switch {
	case errors.Is(err, tasks.ErrEmptyTask):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No task provided"})
		return
	case errors.Is(err, tasks.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service is shutting down"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_id": id,
		"status":  tasks.StatePending,
		"message": "Task created successfully",
	})
}

func (t Tasks) Get(c *gin.Context) {
	rec, err := t.svc.Status(c.Request.Context(), c.Param("id"))
	if errors.Is(err, tasks.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load task"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (t Tasks) List(c *gin.Context) {
	list, err := t.svc.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tasks"})
		return
	}
	if list == nil {
		list = []tasks.Summary{}
	}
	c.JSON(http.StatusOK, gin.H{"tasks": list})
}
