package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pragasv/sola-labs-demo/internal/httpkit"
)

// OllamaClient is a client for the Ollama chat API.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOllamaClient creates a new Ollama client.
func NewOllamaClient(baseURL string, logger *slog.Logger) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With("provider", "ollama"),
		// Large local models with tools need time.
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(5*time.Minute),
			httpkit.WithResponseHeaderTimeout(5*time.Minute),
			httpkit.WithRetry(2, time.Second),
			httpkit.WithLogger(logger),
		),
	}
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []openaiTool    `json:"tools,omitempty"`
	Format   map[string]any  `json:"format,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Images    []string         `json:"images,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

// ollamaToolCall differs from the OpenAI wire form: arguments arrive as
// an object, not an encoded string.
type ollamaToolCall struct {
	Function FunctionCall `json:"function"`
}

type ollamaResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count,omitempty"`
	EvalCount       int           `json:"eval_count,omitempty"`
}

// Chat sends a non-streaming chat request.
func (c *OllamaClient) Chat(ctx context.Context, req Request) (*ChatResponse, error) {
	wire := ollamaRequest{
		Model:    req.Model,
		Messages: convertToOllama(req.Messages),
	}
	for _, t := range req.Tools {
		wire.Tools = append(wire.Tools, openaiTool{Type: "function", Function: t})
	}
	if req.Schema != nil {
		wire.Format = req.Schema.Definition
	}
	if req.Temperature != nil {
		wire.Options = &ollamaOptions{Temperature: req.Temperature}
	}

	c.logger.Debug("preparing request",
		"model", req.Model,
		"messages", len(wire.Messages),
		"tools", len(wire.Tools),
		"schema", req.Schema != nil,
	)

	var resp ollamaResponse
	if err := httpkit.DoJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+"/api/chat", nil, wire, &resp); err != nil {
		return nil, asAPIError("ollama", err)
	}

	msg := Message{Role: RoleAssistant, Content: resp.Message.Content}
	for _, tc := range resp.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{Function: tc.Function})
	}
	// Many local models emit tool calls as JSON text instead of using the
	// native field.
	if len(msg.ToolCalls) == 0 && len(req.Tools) > 0 && msg.Content != "" {
		if parsed := parseTextToolCalls(msg.Content); len(parsed) > 0 {
			msg.ToolCalls = parsed
			msg.Content = ""
		}
	}

	result := &ChatResponse{
		Model:        resp.Model,
		Message:      msg,
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
	}
	c.logger.Debug("response received",
		"model", result.Model,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"tool_calls", len(msg.ToolCalls),
	)
	c.logger.Log(ctx, LevelTrace, "response content", "content", msg.Content)
	return result, nil
}

// Ping checks that Ollama is reachable.
func (c *OllamaClient) Ping(ctx context.Context) error {
	if err := httpkit.DoJSON(ctx, c.httpClient, http.MethodGet, c.baseURL+"/api/tags", nil, nil, nil); err != nil {
		return asAPIError("ollama", err)
	}
	return nil
}

func convertToOllama(messages []Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(messages))
	for _, m := range messages {
		om := ollamaMessage{Role: m.Role, Content: m.Content}
		for _, img := range m.Images {
			om.Images = append(om.Images, img.Base64())
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, ollamaToolCall{Function: tc.Function})
		}
		out = append(out, om)
	}
	return out
}

// parseTextToolCalls extracts tool calls a model wrote into its text
// content. It accepts a single {"name","arguments"} object, an array of
// them, and either form wrapped in <tool_call> tags.
func parseTextToolCalls(content string) []ToolCall {
	content = strings.TrimSpace(content)
	if start := strings.Index(content, "<tool_call>"); start != -1 {
		content = content[start+len("<tool_call>"):]
		if end := strings.Index(content, "</tool_call>"); end != -1 {
			content = content[:end]
		}
		content = strings.TrimSpace(content)
	}
	content = stripCodeFence(content)
	if content == "" {
		return nil
	}

	type textCall struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}

	var calls []textCall
	if err := json.Unmarshal([]byte(content), &calls); err != nil {
		var single textCall
		if err := json.Unmarshal([]byte(content), &single); err != nil {
			return nil
		}
		calls = []textCall{single}
	}

	var result []ToolCall
	for _, c := range calls {
		if c.Name == "" {
			continue
		}
		result = append(result, ToolCall{Function: FunctionCall{Name: c.Name, Arguments: c.Arguments}})
	}
	return result
}
