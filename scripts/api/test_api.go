// Minimal end-to-end check of a running task API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	baseURL   = getenv("API_URL", "http://localhost:5000")
	redisURL  = getenv("REDIS_URL", "redis://localhost:6379/0")
	jwtSecret = os.Getenv("JWT_SECRET")
	taskText  = getenv("TASK", "Summarize: Go is an open source programming language that makes it simple to build secure, scalable systems.")
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	ctx := context.Background()
	rdb := mustRedis()
	defer rdb.Close()

	token := mintToken()

	checkHealth()
	rejectEmpty(token)
	checkMissing(token)

	id := createTask(token)
	checkTTL(ctx, rdb, id)
	status := waitTerminal(token, id)
	checkListed(token, id)

	fmt.Printf("task %s finished as %s\n", id, status)
	fmt.Println("✓ all endpoints passed")
}

// ----------------------------- auth

func mintToken() string {
	if jwtSecret == "" {
		return ""
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "integration-test",
		"exp": time.Now().Add(10 * time.Minute).Unix(),
	}).SignedString([]byte(jwtSecret))
	if err != nil {
		log.Fatalf("jwt: %v", err)
	}
	return tok
}

// ----------------------------- tasks

func checkHealth() {
	var resp struct{ Status string }
	doReq("GET", "/health", "", nil, &resp, http.StatusOK)
	if resp.Status != "healthy" {
		log.Fatalf("health: got %q", resp.Status)
	}
}

func rejectEmpty(tok string) {
	doReq("POST", "/tasks", tok, map[string]any{}, nil, http.StatusBadRequest)
}

func checkMissing(tok string) {
	doReq("GET", "/tasks/"+uuid.NewString(), tok, nil, nil, http.StatusNotFound)
}

func createTask(tok string) string {
	var resp struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	doReq("POST", "/tasks", tok, map[string]any{"task": taskText}, &resp, http.StatusOK)
	if resp.TaskID == "" || resp.Status != "pending" {
		log.Fatalf("create: unexpected response %+v", resp)
	}
	return resp.TaskID
}

func checkTTL(ctx context.Context, rdb *redis.Client, id string) {
	ttl, err := rdb.TTL(ctx, "task:"+id).Result()
	if err != nil {
		log.Fatalf("redis ttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Hour {
		log.Fatalf("redis ttl: unexpected %v", ttl)
	}
}

func waitTerminal(tok, id string) string {
	deadline := time.Now().Add(3 * time.Minute)
	for time.Now().Before(deadline) {
		var resp struct {
			Status     string            `json:"status"`
			Trajectory []json.RawMessage `json:"trajectory"`
			Error      *string           `json:"error"`
		}
		doReq("GET", "/tasks/"+id, tok, nil, &resp, http.StatusOK)
		switch resp.Status {
		case "completed":
			if len(resp.Trajectory) == 0 || resp.Error != nil {
				log.Fatalf("status: completed task has bad shape")
			}
			return resp.Status
		case "failed":
			if resp.Error == nil || resp.Trajectory != nil {
				log.Fatalf("status: failed task has bad shape")
			}
			return resp.Status
		}
		time.Sleep(time.Second)
	}
	log.Fatal("status: task did not finish in time")
	return ""
}

func checkListed(tok, id string) {
	var resp struct {
		Tasks []struct {
			TaskID string `json:"task_id"`
		} `json:"tasks"`
	}
	doReq("GET", "/tasks", tok, nil, &resp, http.StatusOK)
	for _, t := range resp.Tasks {
		if t.TaskID == id {
			return
		}
	}
	log.Fatal("list: created task not found")
}

// ----------------------------- helpers

func mustRedis() *redis.Client {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("redis url: %v", err)
	}
	return redis.NewClient(opt)
}

func doReq(method, path, token string, body, out any, want int) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("%s %s encode: %v", method, path, err)
		}
	}
	req, _ := http.NewRequest(method, baseURL+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	if res.StatusCode != want {
		log.Fatalf("%s %s: want %d got %d", method, path, want, res.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			log.Fatalf("%s %s decode: %v", method, path, err)
		}
	}
}
