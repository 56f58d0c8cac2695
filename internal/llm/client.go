// Package llm provides a provider-neutral chat client and the provider
// implementations behind it (OpenAI-compatible, Anthropic, Ollama).
package llm

import (
	"context"
	"fmt"
)

// Client is implemented by every provider.
type Client interface {
	// Chat sends one chat completion request.
	Chat(ctx context.Context, req Request) (*ChatResponse, error)

	// Ping checks that the provider is reachable.
	Ping(ctx context.Context) error
}

// Request is a single chat completion call.
type Request struct {
	Model    string
	Messages []Message

	// Tools advertises callable functions. Mutually exclusive with Schema
	// in practice: a call either asks for tool calls or for structured
	// output.
	Tools []ToolDef

	// Schema, when set, constrains the reply to a JSON object matching
	// it. Providers without native support receive it as an instruction.
	Schema *Schema

	// Temperature overrides the provider default when non-nil.
	Temperature *float64
}

// Temperature returns a pointer for Request.Temperature.
func Temperature(t float64) *float64 { return &t }

// APIError is a non-2xx response from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Body)
}
