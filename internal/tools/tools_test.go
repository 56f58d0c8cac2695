package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pragasv/sola-labs-demo/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindSendEmail, KindCallAPI} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k, got, err)
		}
	}

	_, err := ParseKind("delete_records")
	var unknown *ErrUnknownTool
	if !errors.As(err, &unknown) || unknown.Name != "delete_records" {
		t.Errorf("err = %v", err)
	}
}

func TestDecodeCall(t *testing.T) {
	tests := []struct {
		name    string
		call    llm.ToolCall
		want    Call
		wantErr error
	}{
		{
			name: "email",
			call: llm.ToolCall{ID: "c1", Function: llm.FunctionCall{Name: "send_email_notification", Arguments: map[string]any{
				"to": "p@example.com", "subject": "Results", "body": "All good",
			}}},
			want: Call{ID: "c1", Kind: KindSendEmail, Email: &EmailArgs{To: "p@example.com", Subject: "Results", Body: "All good"}},
		},
		{
			name: "api",
			call: llm.ToolCall{ID: "c2", Function: llm.FunctionCall{Name: "call_API", Arguments: map[string]any{
				"endpoint": "https://x.test/posts", "method": "POST", "title": "t", "body": "b", "userId": float64(3),
			}}},
			want: Call{ID: "c2", Kind: KindCallAPI, API: &APIArgs{Endpoint: "https://x.test/posts", Method: "POST", Title: "t", Body: "b", UserID: 3}},
		},
		{
			name: "bad userId",
			call: llm.ToolCall{Function: llm.FunctionCall{Name: "call_API", Arguments: map[string]any{
				"userId": "three",
			}}},
			wantErr: ErrInvalidArguments,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCall(tt.call)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeCall: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeCall mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDefinitions(t *testing.T) {
	all := Definitions()
	if len(all) != 2 || all[0].Name != "send_email_notification" || all[1].Name != "call_API" {
		t.Fatalf("Definitions() = %+v", all)
	}
	api := Definitions(KindCallAPI)
	if len(api) != 1 {
		t.Fatalf("Definitions(KindCallAPI) = %+v", api)
	}
	req, _ := api[0].Parameters["required"].([]string)
	if diff := cmp.Diff([]string{"body", "endpoint", "method", "title", "userId"}, req); diff != "" {
		t.Errorf("required (-want +got):\n%s", diff)
	}
}

type fakeMailer struct {
	to  string
	err error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.to != "" {
		return f.to, nil
	}
	return to, nil
}

type fakeCaller struct {
	got APIArgs
	id  any
	err error
}

func (f *fakeCaller) Call(_ context.Context, args APIArgs) (any, error) {
	f.got = args
	return f.id, f.err
}

func TestRegistry_Run(t *testing.T) {
	emailCall := llm.ToolCall{ID: "1", Function: llm.FunctionCall{Name: "send_email_notification", Arguments: map[string]any{
		"to": "p@example.com", "subject": "Results", "body": "Fine",
	}}}
	apiCall := llm.ToolCall{ID: "2", Function: llm.FunctionCall{Name: "call_API", Arguments: map[string]any{
		"endpoint": "https://x.test/posts", "method": "POST", "title": "t", "body": "b", "userId": 1,
	}}}

	tests := []struct {
		name   string
		mailer Mailer
		api    APICaller
		call   llm.ToolCall
		want   Result
	}{
		{
			name:   "email sent with override",
			mailer: &fakeMailer{to: "owner@example.com"},
			call:   emailCall,
			want:   Result{Action: ActionEmailSent, To: "owner@example.com", Subject: "Results", Body: "Fine"},
		},
		{
			name:   "email transport failure",
			mailer: &fakeMailer{err: errors.New("535 auth failed")},
			call:   emailCall,
			want:   Result{Action: ActionEmailFailed, Error: "535 auth failed"},
		},
		{
			name: "no mailer",
			call: emailCall,
			want: Result{Action: ActionEmailFailed, Error: errNoMailer.Error()},
		},
		{
			name: "api called",
			api:  &fakeCaller{id: float64(101)},
			call: apiCall,
			want: Result{Action: ActionAPICalled, Endpoint: "https://x.test/posts", Method: "POST", ResponseID: float64(101), Title: "t", Body: "b", UserID: 1},
		},
		{
			name: "api failure",
			api:  &fakeCaller{err: errors.New("connection refused")},
			call: apiCall,
			want: Result{Action: ActionAPIFailed, Error: "connection refused"},
		},
		{
			name: "invalid arguments become a result",
			api:  &fakeCaller{},
			call: llm.ToolCall{Function: llm.FunctionCall{Name: "call_API", Arguments: map[string]any{"userId": []any{}}}},
			want: Result{Action: ActionAPIFailed},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(discardLogger(), tt.mailer, tt.api)
			_, got, err := r.Run(context.Background(), tt.call)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if tt.want.Error == "" && tt.want.Action == ActionAPIFailed {
				if got.OK() || got.Action != ActionAPIFailed {
					t.Errorf("got %+v, want a failed result", got)
				}
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Run mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRegistry_RunUnknownTool(t *testing.T) {
	r := NewRegistry(discardLogger(), nil, nil)
	_, _, err := r.Run(context.Background(), llm.ToolCall{Function: llm.FunctionCall{Name: "shell_exec"}})
	var unknown *ErrUnknownTool
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want *ErrUnknownTool", err)
	}
}

func TestResultJSON(t *testing.T) {
	var got map[string]any
	if err := json.Unmarshal([]byte(Result{Action: ActionAPIFailed, Error: "boom"}.JSON()), &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"action": "API call failed", "error": "boom"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("JSON (-want +got):\n%s", diff)
	}
}
