package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseTextToolCalls(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"single object", `{"name": "call_API", "arguments": {"method": "POST"}}`, []string{"call_API"}},
		{"array", `[{"name": "a", "arguments": {}}, {"name": "b", "arguments": {}}]`, []string{"a", "b"}},
		{"tagged", "<tool_call>{\"name\": \"send_email_notification\", \"arguments\": {}}</tool_call>", []string{"send_email_notification"}},
		{"fenced", "```json\n{\"name\": \"call_API\", \"arguments\": {}}\n```", []string{"call_API"}},
		{"plain text", "The results look normal.", nil},
		{"json without name", `{"label": "other"}`, nil},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTextToolCalls(tt.content)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d calls, want %d", len(got), len(tt.want))
			}
			for i, name := range tt.want {
				if got[i].Function.Name != name {
					t.Errorf("call %d = %q, want %q", i, got[i].Function.Name, name)
				}
			}
		})
	}
}

func TestOllamaClient_Chat(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"{\"name\":\"call_API\",\"arguments\":{\"method\":\"GET\"}}"},"done":true,"prompt_eval_count":7,"eval_count":3}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, discardLogger())
	resp, err := c.Chat(context.Background(), Request{
		Model:       "llama3",
		Messages:    []Message{UserMessage("see", Image{Data: []byte("x")})},
		Tools:       []ToolDef{{Name: "call_API"}},
		Temperature: Temperature(0.2),
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if len(got.Messages) != 1 || len(got.Messages[0].Images) != 1 || got.Messages[0].Images[0] != "eA==" {
		t.Errorf("wire messages = %+v", got.Messages)
	}
	if got.Options == nil || *got.Options.Temperature != 0.2 {
		t.Errorf("options = %+v", got.Options)
	}
	if len(resp.Message.ToolCalls) != 1 || resp.Message.Content != "" {
		t.Errorf("text tool call not lifted: %+v", resp.Message)
	}
	if resp.TotalTokens() != 10 {
		t.Errorf("TotalTokens = %d", resp.TotalTokens())
	}
}

func TestOllamaClient_SchemaFormat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"{\"name\":\"x\"}"},"done":true}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, discardLogger())
	resp, err := c.Chat(context.Background(), Request{
		Model:    "llama3",
		Messages: []Message{UserMessage("q")},
		Schema:   ObjectSchema("s", map[string]any{"name": map[string]any{"type": "string"}}),
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if _, ok := got["format"].(map[string]any); !ok {
		t.Errorf("format = %#v", got["format"])
	}
	// No tools were offered, so JSON content stays content.
	if resp.Message.Content != `{"name":"x"}` {
		t.Errorf("content = %q", resp.Message.Content)
	}
}
