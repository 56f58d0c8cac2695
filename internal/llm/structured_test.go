package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type routeReply struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence_score"`
}

func (r *routeReply) Validate() error {
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence_score %v outside [0,1]", r.Confidence)
	}
	return nil
}

func routeSchema() *Schema {
	return ObjectSchema("route", map[string]any{
		"label":            map[string]any{"type": "string"},
		"confidence_score": map[string]any{"type": "number"},
	})
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		want    routeReply
	}{
		{"plain", `{"label":"apply_action","confidence_score":0.9}`, false, routeReply{"apply_action", 0.9}},
		{"fenced", "```json\n{\"label\":\"other\",\"confidence_score\":0.1}\n```", false, routeReply{"other", 0.1}},
		{"missing field", `{"label":"other"}`, true, routeReply{}},
		{"not json", "I think it is other", true, routeReply{}},
		{"wrong type", `{"label":1,"confidence_score":0.2}`, true, routeReply{}},
		{"out of range", `{"label":"other","confidence_score":3}`, true, routeReply{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got routeReply
			err := Decode(tt.content, routeSchema(), &got)
			if tt.wantErr {
				if !errors.Is(err, ErrSchemaValidation) {
					t.Fatalf("err = %v, want ErrSchemaValidation", err)
				}
				var se *SchemaError
				if !errors.As(err, &se) || se.Schema != "route" {
					t.Errorf("SchemaError = %+v", se)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSchemaRequired(t *testing.T) {
	s := routeSchema()
	req := s.Required()
	if len(req) != 2 || req[0] != "confidence_score" || req[1] != "label" {
		t.Errorf("Required() = %v", req)
	}

	decoded := &Schema{Name: "x", Definition: map[string]any{"required": []any{"a", "b"}}}
	if got := decoded.Required(); len(got) != 2 {
		t.Errorf("Required() from []any = %v", got)
	}
}

type stubClient struct {
	name  string
	calls int
	err   error
}

func (s *stubClient) Chat(context.Context, Request) (*ChatResponse, error) {
	s.calls++
	return &ChatResponse{Model: s.name}, nil
}

func (s *stubClient) Ping(context.Context) error { return s.err }

func TestMultiClient(t *testing.T) {
	openai := &stubClient{name: "openai"}
	ollama := &stubClient{name: "ollama", err: errors.New("down")}

	m := NewMultiClient("openai")
	m.AddProvider("openai", openai)
	m.AddProvider("ollama", ollama)
	m.AddModel("llama3", "ollama")

	resp, err := m.Chat(context.Background(), Request{Model: "llama3"})
	if err != nil || resp.Model != "ollama" {
		t.Errorf("llama3 routed to %v (err %v)", resp, err)
	}
	resp, err = m.Chat(context.Background(), Request{Model: "gpt-4"})
	if err != nil || resp.Model != "openai" {
		t.Errorf("gpt-4 routed to %v (err %v)", resp, err)
	}

	if err := m.Ping(context.Background()); err == nil {
		t.Error("Ping should report the failing provider")
	}

	empty := NewMultiClient("anthropic")
	if _, err := empty.Chat(context.Background(), Request{Model: "claude"}); err == nil {
		t.Error("Chat without providers should fail")
	}
}
