package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pragasv/sola-labs-demo/internal/httpkit"
)

// OpenAIClient speaks the chat completions protocol. It serves OpenAI
// itself and compatible endpoints such as Azure OpenAI's v1 API.
type OpenAIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// OpenAIOptions configures an OpenAIClient.
type OpenAIOptions struct {
	BaseURL string
	APIKey  string
	// AuthHeader names the header carrying APIKey; empty means a bearer
	// Authorization header.
	AuthHeader string
}

// NewOpenAIClient creates a chat completions client.
func NewOpenAIClient(opts OpenAIOptions, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}

	var auth httpkit.ClientOption
	if opts.AuthHeader != "" {
		auth = httpkit.WithHeader(opts.AuthHeader, opts.APIKey)
	} else {
		auth = httpkit.WithHeader("Authorization", "Bearer "+opts.APIKey)
	}

	return &OpenAIClient{
		baseURL: base,
		logger:  logger.With("provider", "openai"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(0),
			httpkit.WithResponseHeaderTimeout(120*time.Second),
			httpkit.WithRetry(2, 500*time.Millisecond),
			httpkit.WithLogger(logger),
			auth,
		),
	}
}

type openaiRequest struct {
	Model          string                `json:"model"`
	Messages       []openaiMessage       `json:"messages"`
	Tools          []openaiTool          `json:"tools,omitempty"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
	Temperature    *float64              `json:"temperature,omitempty"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    any              `json:"content"` // string, []openaiPart, or nil
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openaiImageURL `json:"image_url,omitempty"`
}

type openaiImageURL struct {
	URL string `json:"url"`
}

type openaiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openaiTool struct {
	Type     string  `json:"type"`
	Function ToolDef `json:"function"`
}

type openaiResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openaiJSONSchema `json:"json_schema,omitempty"`
}

type openaiJSONSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role      string           `json:"role"`
			Content   *string          `json:"content"`
			ToolCalls []openaiToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req Request) (*ChatResponse, error) {
	wire := openaiRequest{
		Model:       req.Model,
		Messages:    convertToOpenAI(req.Messages),
		Temperature: req.Temperature,
	}
	for _, t := range req.Tools {
		wire.Tools = append(wire.Tools, openaiTool{Type: "function", Function: t})
	}
	if req.Schema != nil {
		wire.ResponseFormat = &openaiResponseFormat{
			Type: "json_schema",
			JSONSchema: &openaiJSONSchema{
				Name:   req.Schema.Name,
				Schema: req.Schema.Definition,
				Strict: true,
			},
		}
	}

	c.logger.Debug("preparing request",
		"model", req.Model,
		"messages", len(wire.Messages),
		"tools", len(wire.Tools),
		"schema", req.Schema != nil,
	)
	if c.logger.Enabled(ctx, LevelTrace) {
		if payload, err := json.Marshal(wire); err == nil {
			c.logger.Log(ctx, LevelTrace, "request payload", "json", string(payload))
		}
	}

	var resp openaiResponse
	err := httpkit.DoJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+"/chat/completions", nil, wire, &resp)
	if err != nil {
		return nil, asAPIError("openai", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: response has no choices")
	}

	result, err := convertFromOpenAI(&resp)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("response received",
		"model", result.Model,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"tool_calls", len(result.Message.ToolCalls),
		"finish_reason", resp.Choices[0].FinishReason,
	)
	c.logger.Log(ctx, LevelTrace, "response content", "content", result.Message.Content)
	return result, nil
}

// Ping lists models to verify the endpoint and key.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	err := httpkit.DoJSON(ctx, c.httpClient, http.MethodGet, c.baseURL+"/models", nil, nil, nil)
	if err != nil {
		return asAPIError("openai", err)
	}
	return nil
}

func convertToOpenAI(messages []Message) []openaiMessage {
	out := make([]openaiMessage, 0, len(messages))
	for _, m := range messages {
		wm := openaiMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}

		if len(m.Images) > 0 {
			parts := []openaiPart{{Type: "text", Text: m.Content}}
			for _, img := range m.Images {
				parts = append(parts, openaiPart{
					Type:     "image_url",
					ImageURL: &openaiImageURL{URL: img.DataURL()},
				})
			}
			wm.Content = parts
		}

		for i, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Function.Arguments)
			if err != nil || tc.Function.Arguments == nil {
				args = []byte("{}")
			}
			id := tc.ID
			if id == "" {
				id = fmt.Sprintf("call_%s_%d", tc.Function.Name, i)
			}
			var wtc openaiToolCall
			wtc.ID = id
			wtc.Type = "function"
			wtc.Function.Name = tc.Function.Name
			wtc.Function.Arguments = string(args)
			wm.ToolCalls = append(wm.ToolCalls, wtc)
		}
		if len(wm.ToolCalls) > 0 && m.Content == "" {
			wm.Content = nil
		}

		out = append(out, wm)
	}
	return out
}

func convertFromOpenAI(resp *openaiResponse) (*ChatResponse, error) {
	choice := resp.Choices[0].Message
	msg := Message{Role: RoleAssistant}
	if choice.Content != nil {
		msg.Content = *choice.Content
	}
	for _, tc := range choice.ToolCalls {
		args := map[string]any{}
		if strings.TrimSpace(tc.Function.Arguments) != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("openai: tool call %s arguments: %w", tc.Function.Name, err)
			}
		}
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:       tc.ID,
			Function: FunctionCall{Name: tc.Function.Name, Arguments: args},
		})
	}
	return &ChatResponse{
		Model:        resp.Model,
		Message:      msg,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// asAPIError converts an httpkit status error into an *APIError.
func asAPIError(provider string, err error) error {
	var se *httpkit.StatusError
	if errors.As(err, &se) {
		return &APIError{Provider: provider, StatusCode: se.StatusCode, Body: se.Body}
	}
	return fmt.Errorf("%s request failed: %w", provider, err)
}
