// Package websearch exposes Tavily web search as the web_search capability.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/microcosm-cc/bluemonday"

	agentcore "github.com/stake-plus/taskagent/src/agents/core"
	"github.com/stake-plus/taskagent/src/logging"
	"github.com/stake-plus/taskagent/src/webclient"
)

const (
	// Name is the registry key of the capability.
	Name        = "web_search"
	Description = "Search the web for information"

	defaultEndpoint   = "https://api.tavily.com/search"
	defaultDepth      = "basic"
	defaultMaxResults = 5
)

// Config tunes the Tavily client.
type Config struct {
	APIKey     string
	Depth      string
	MaxResults int
	// Endpoint overrides the Tavily search URL.
	Endpoint string
}

// Searcher runs Tavily queries.
type Searcher struct {
	cfg       Config
	http      *http.Client
	sanitizer *bluemonday.Policy
	logger    hclog.Logger
}

// Hit is a single sanitised search result.
type Hit struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// New builds a Searcher from cfg and the shared runtime deps.
func New(cfg Config, deps agentcore.RuntimeDeps) *Searcher {
	if strings.TrimSpace(cfg.Depth) == "" {
		cfg.Depth = defaultDepth
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = defaultEndpoint
	}
	client := deps.HTTP
	if client == nil {
		client = webclient.NewDefault(30 * time.Second)
	}
	return &Searcher{
		cfg:       cfg,
		http:      client,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logging.OrNull(deps.Logger),
	}
}

// Invoke implements agentcore.InvokeFunc.
func (s *Searcher) Invoke(ctx context.Context, query string) agentcore.Result {
	hits, answer, err := s.Search(ctx, query)
	if err != nil {
		s.logger.Warn("web search failed", "query", query, "error", err)
		return agentcore.Failure(err.Error())
	}
	results := make([]any, 0, len(hits))
	for _, h := range hits {
		results = append(results, map[string]any{
			"title":   h.Title,
			"url":     h.URL,
			"content": h.Content,
			"score":   h.Score,
		})
	}
	payload := map[string]any{
		"query":   query,
		"results": results,
	}
	if answer != "" {
		payload["answer"] = answer
	}
	return agentcore.Success(payload)
}

// Search posts query to Tavily and returns at most MaxResults hits.
func (s *Searcher) Search(ctx context.Context, query string) ([]Hit, string, error) {
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return nil, "", errors.New("tavily: API key is missing")
	}
	if strings.TrimSpace(query) == "" {
		return nil, "", errors.New("tavily: empty query")
	}

	payload, err := json.Marshal(map[string]any{
		"api_key":      s.cfg.APIKey,
		"query":        query,
		"search_depth": s.cfg.Depth,
		"max_results":  s.cfg.MaxResults,
	})
	if err != nil {
		return nil, "", err
	}

	_, body, err := webclient.DoWithRetry(ctx, 3, time.Second, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.http.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, b, fmt.Errorf("tavily http %d", resp.StatusCode)
		}
		return resp.StatusCode, b, nil
	})
	if err != nil {
		return nil, "", err
	}

	var response struct {
		Answer  string `json:"answer"`
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, "", fmt.Errorf("tavily: decode response: %w", err)
	}

	hits := make([]Hit, 0, len(response.Results))
	for _, r := range response.Results {
		hits = append(hits, Hit{
			Title:   s.clean(r.Title),
			URL:     strings.TrimSpace(r.URL),
			Content: s.clean(r.Content),
			Score:   r.Score,
		})
		if len(hits) >= s.cfg.MaxResults {
			break
		}
	}
	return hits, s.clean(response.Answer), nil
}

func (s *Searcher) clean(text string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(text))
}
