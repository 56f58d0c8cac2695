// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pragasv/sola-labs-demo/internal/llm"
)

// Reply is one scripted outcome of a Chat call.
type Reply struct {
	Response *llm.ChatResponse
	Err      error
}

// Client replays scripted replies in order and records every request.
type Client struct {
	mu       sync.Mutex
	replies  []Reply
	requests []llm.Request
}

// New returns a Client that will answer with replies in order.
func New(replies ...Reply) *Client {
	return &Client{replies: replies}
}

// Push appends more replies to the script.
func (c *Client) Push(replies ...Reply) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, replies...)
}

// Chat returns the next scripted reply. Running out of replies is an
// error so tests catch unexpected extra calls.
func (c *Client) Chat(_ context.Context, req llm.Request) (*llm.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	if len(c.replies) == 0 {
		return nil, fmt.Errorf("llmtest: no scripted reply for call %d (model %s)", len(c.requests), req.Model)
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r.Response, r.Err
}

// Ping always succeeds.
func (c *Client) Ping(context.Context) error { return nil }

// Requests returns a copy of the requests received so far.
func (c *Client) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Request(nil), c.requests...)
}

// Calls is the number of Chat calls received.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// Remaining is the number of unused replies.
func (c *Client) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.replies)
}

// Text scripts a plain assistant reply that used tokens tokens.
func Text(content string, tokens int) Reply {
	return Reply{Response: &llm.ChatResponse{
		Model:        "scripted",
		Message:      llm.Message{Role: llm.RoleAssistant, Content: content},
		InputTokens:  tokens,
		OutputTokens: 0,
	}}
}

// JSON scripts a structured reply by encoding v.
func JSON(v any, tokens int) Reply {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("llmtest.JSON: %v", err))
	}
	return Text(string(b), tokens)
}

// Tools scripts a reply that requests the given tool calls.
func Tools(tokens int, calls ...llm.ToolCall) Reply {
	return Reply{Response: &llm.ChatResponse{
		Model:       "scripted",
		Message:     llm.Message{Role: llm.RoleAssistant, ToolCalls: calls},
		InputTokens: tokens,
	}}
}

// Call builds a tool call.
func Call(id, name string, args map[string]any) llm.ToolCall {
	return llm.ToolCall{ID: id, Function: llm.FunctionCall{Name: name, Arguments: args}}
}

// Fail scripts an error reply.
func Fail(err error) Reply {
	return Reply{Err: err}
}
