package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct{ cfg FactoryConfig }

func (s stubClient) Respond(context.Context, string, Options) (string, error) {
	return s.cfg.Model, nil
}

func TestNewClient_ResolvesAliasesCaseInsensitively(t *testing.T) {
	RegisterProvider("stub-test", func(cfg FactoryConfig) (Client, error) {
		return stubClient{cfg: cfg}, nil
	}, "Stub-Alias")

	client, err := NewClient(FactoryConfig{Provider: " STUB-ALIAS ", Model: "m1"})
	require.NoError(t, err)

	out, err := client.Respond(context.Background(), "hi", Options{})
	require.NoError(t, err)
	assert.Equal(t, "m1", out)
	assert.Contains(t, RegisteredProviders(), "stub-test")
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(FactoryConfig{Provider: "nope"})
	assert.EqualError(t, err, `ai: provider "nope" not registered`)
}

func TestMerge(t *testing.T) {
	defaults := Options{Model: "base", Temperature: 1, MaxCompletionTokens: 100, SystemPrompt: "sys"}
	merged := Merge(defaults, Options{Model: "override", JSONResponse: true})

	assert.Equal(t, "override", merged.Model)
	assert.Equal(t, float64(1), merged.Temperature)
	assert.Equal(t, 100, merged.MaxCompletionTokens)
	assert.Equal(t, "sys", merged.SystemPrompt)
	assert.True(t, merged.JSONResponse)
}

func TestMessages(t *testing.T) {
	assert.Equal(t, []Message{{Role: "user", Content: "x"}}, Messages(Options{}, "x"))
	assert.Equal(t, []Message{
		{Role: "system", Content: "s"},
		{Role: "user", Content: "x"},
	}, Messages(Options{SystemPrompt: "s"}, "x"))
}

func TestResolveModelName(t *testing.T) {
	assert.Equal(t, "custom", ResolveModelName("openai", " custom "))
	assert.Equal(t, "gpt-3.5-turbo", ResolveModelName("OpenAI", ""))
	assert.Equal(t, "unknown", ResolveModelName("mystery", ""))
}
