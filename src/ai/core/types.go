package core

import "context"

// Message represents a single chat turn.
type Message struct {
	Role    string
	Content string
}

// Options controls model behavior; fields are optional per provider.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int
	SystemPrompt        string
	// JSONResponse asks the provider to constrain output to a JSON object where supported.
	JSONResponse bool
}

// Client is a provider-agnostic interface for the LLM operations the agents need.
type Client interface {
	// Respond sends input as the user turn and returns the assistant text.
	Respond(ctx context.Context, input string, opts Options) (string, error)
}

// Merge overlays the non-zero fields of opts onto defaults.
func Merge(defaults, opts Options) Options {
	out := defaults
	if opts.Model != "" {
		out.Model = opts.Model
	}
	if opts.Temperature != 0 {
		out.Temperature = opts.Temperature
	}
	if opts.MaxCompletionTokens != 0 {
		out.MaxCompletionTokens = opts.MaxCompletionTokens
	}
	if opts.SystemPrompt != "" {
		out.SystemPrompt = opts.SystemPrompt
	}
	if opts.JSONResponse {
		out.JSONResponse = true
	}
	return out
}

// Messages renders the system prompt and input as an ordered chat transcript.
func Messages(opts Options, input string) []Message {
	out := make([]Message, 0, 2)
	if opts.SystemPrompt != "" {
		out = append(out, Message{Role: "system", Content: opts.SystemPrompt})
	}
	return append(out, Message{Role: "user", Content: input})
}
