package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stake-plus/taskagent/src/ai/core"
	"github.com/stake-plus/taskagent/src/webclient"
)

const (
	defaultBaseURL     = "https://api.anthropic.com/v1"
	defaultModel       = "claude-3-haiku-20240307"
	defaultMaxTokens   = 2048
	defaultTemperature = 0.2
	requestTimeout     = 90 * time.Second
	apiVersion         = "2023-06-01"
)

func init() {
	core.RegisterProvider("claude", newClient, "anthropic", "sonnet45")
}

type client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	defaults   core.Options
}

func newClient(cfg core.FactoryConfig) (core.Client, error) {
	if cfg.ClaudeKey == "" {
		return nil, fmt.Errorf("anthropic: API key not configured")
	}

	model := core.ResolveModelName(cfg.Provider, cfg.Model)
	if model == "unknown" {
		model = defaultModel
	}

	return &client{
		apiKey:     cfg.ClaudeKey,
		baseURL:    strings.TrimRight(cfg.ExtraValue("base_url", defaultBaseURL), "/"),
		httpClient: webclient.NewDefault(requestTimeout),
		defaults: core.Options{
			Model:               model,
			Temperature:         orFloat(cfg.Temperature, defaultTemperature),
			MaxCompletionTokens: orInt(cfg.MaxCompletionTokens, defaultMaxTokens),
			SystemPrompt:        cfg.SystemPrompt,
		},
	}, nil
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

// Respond uses the Messages API. Anthropic has no JSON response mode, so the
// constraint is restated in the system prompt instead.
func (c *client) Respond(ctx context.Context, input string, opts core.Options) (string, error) {
	merged := core.Merge(c.defaults, opts)

	system := merged.SystemPrompt
	if merged.JSONResponse {
		system = strings.TrimSpace(system + "\nRespond with a single JSON object and nothing else.")
	}

	reqBody := messagesRequest{
		Model:       merged.Model,
		System:      system,
		MaxTokens:   orInt(merged.MaxCompletionTokens, defaultMaxTokens),
		Temperature: merged.Temperature,
		Messages: []message{{
			Role:    "user",
			Content: []contentBlock{{Type: "text", Text: input}},
		}},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("anthropic: encode request: %w", err)
	}

	_, payload, err := webclient.DoWithRetry(ctx, 3, 2*time.Second, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(bodyBytes))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", apiVersion)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, b, fmt.Errorf("anthropic: status %d", resp.StatusCode)
		}
		return resp.StatusCode, b, nil
	})
	if err != nil {
		return "", err
	}

	var result struct {
		Content []contentBlock `json:"content"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return "", fmt.Errorf("anthropic: parse error: %w", err)
	}

	text := extractText(result.Content)
	if text == "" {
		return "", fmt.Errorf("anthropic: empty response")
	}
	return text, nil
}

func extractText(chunks []contentBlock) string {
	var builder strings.Builder
	for _, chunk := range chunks {
		if chunk.Type != "text" || strings.TrimSpace(chunk.Text) == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(chunk.Text)
	}
	return strings.TrimSpace(builder.String())
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orFloat(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}
