package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenAIClient_Chat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"choices": [{"message": {"role": "assistant", "content": "{\"label\":\"other\"}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 5}
		}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIOptions{BaseURL: srv.URL + "/v1", APIKey: "sk-test"}, discardLogger())
	schema := ObjectSchema("route", map[string]any{"label": map[string]any{"type": "string"}})
	resp, err := c.Chat(context.Background(), Request{
		Model:       "gpt-4o-mini",
		Messages:    []Message{SystemMessage("classify"), UserMessage("hi")},
		Schema:      schema,
		Temperature: Temperature(0.4),
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if resp.Message.Content != `{"label":"other"}` {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.TotalTokens() != 17 {
		t.Errorf("TotalTokens = %d, want 17", resp.TotalTokens())
	}

	rf, _ := got["response_format"].(map[string]any)
	if rf["type"] != "json_schema" {
		t.Errorf("response_format = %v", got["response_format"])
	}
	if got["temperature"] != 0.4 {
		t.Errorf("temperature = %v", got["temperature"])
	}
}

func TestOpenAIClient_ToolCallsAndAzureHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "azure-key" {
			t.Errorf("api-key = %q", r.Header.Get("api-key"))
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected Authorization header")
		}
		w.Write([]byte(`{
			"model": "gpt-4",
			"choices": [{"message": {"role": "assistant", "content": null, "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "send_email_notification", "arguments": "{\"to\":\"a@b.c\",\"subject\":\"s\",\"body\":\"b\"}"}}
			]}, "finish_reason": "tool_calls"}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 4}
		}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIOptions{BaseURL: srv.URL, APIKey: "azure-key", AuthHeader: "api-key"}, discardLogger())
	resp, err := c.Chat(context.Background(), Request{
		Model:    "gpt-4",
		Messages: []Message{UserMessage("notify")},
		Tools:    []ToolDef{{Name: "send_email_notification", Parameters: map[string]any{"type": "object"}}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d", len(resp.Message.ToolCalls))
	}
	tc := resp.Message.ToolCalls[0]
	if tc.ID != "call_1" || tc.Function.Name != "send_email_notification" {
		t.Errorf("tool call = %+v", tc)
	}
	if tc.Function.Arguments["to"] != "a@b.c" {
		t.Errorf("arguments = %v", tc.Function.Arguments)
	}
}

func TestOpenAIClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIOptions{BaseURL: srv.URL, APIKey: "k"}, discardLogger())
	_, err := c.Chat(context.Background(), Request{Model: "m", Messages: []Message{UserMessage("x")}})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Provider != "openai" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestConvertToOpenAI(t *testing.T) {
	msgs := convertToOpenAI([]Message{
		UserMessage("describe", Image{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8}}),
		{Role: RoleAssistant, ToolCalls: []ToolCall{{Function: FunctionCall{Name: "call_API", Arguments: map[string]any{"method": "POST"}}}}},
		ToolResultMessage("call_call_API_0", `{"action":"call_API"}`),
	})

	parts, ok := msgs[0].Content.([]openaiPart)
	if !ok || len(parts) != 2 {
		t.Fatalf("user content = %#v", msgs[0].Content)
	}
	if !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,") {
		t.Errorf("image url = %q", parts[1].ImageURL.URL)
	}

	if msgs[1].Content != nil {
		t.Errorf("assistant content = %#v, want nil", msgs[1].Content)
	}
	tc := msgs[1].ToolCalls[0]
	if tc.ID != "call_call_API_0" || tc.Function.Arguments != `{"method":"POST"}` {
		t.Errorf("tool call = %+v", tc)
	}
	if msgs[2].ToolCallID != "call_call_API_0" {
		t.Errorf("tool_call_id = %q", msgs[2].ToolCallID)
	}
}
