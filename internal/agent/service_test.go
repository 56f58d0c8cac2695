package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pragasv/sola-labs-demo/internal/creative"
	"github.com/pragasv/sola-labs-demo/internal/llm"
	"github.com/pragasv/sola-labs-demo/internal/llm/llmtest"
	"github.com/pragasv/sola-labs-demo/internal/memory"
	"github.com/pragasv/sola-labs-demo/internal/retrieval"
	"github.com/pragasv/sola-labs-demo/internal/router"
)

func newService(f *fixture, clear bool) *Service {
	logger := discardLogger()
	return NewService(logger, f.orch, creative.NewReactor(logger, f.client, "gpt-4o-mini"), clear)
}

func seedMemory(t *testing.T, f *fixture) {
	t.Helper()
	err := f.mem.Save(context.Background(), &memory.Memory{ConversationHistory: []memory.Entry{
		{Role: llm.RoleAssistant, Content: "Earlier summary"},
	}})
	if err != nil {
		t.Fatal(err)
	}
}

func TestService_NoAnswer(t *testing.T) {
	f := newFixture(nil, routeTo(router.LabelOther, 0.99))
	svc := newService(f, false)

	got, err := svc.Process(context.Background(), "Tell me a joke", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got != NoAnswer {
		t.Errorf("Process() = %q, want %q", got, NoAnswer)
	}
}

func TestService_ClearMemory(t *testing.T) {
	for _, clear := range []bool{true, false} {
		f := newFixture(nil, routeTo(router.LabelOther, 0.99))
		seedMemory(t, f)
		svc := newService(f, clear)

		if _, err := svc.Process(context.Background(), "hi", nil); err != nil {
			t.Fatalf("Process: %v", err)
		}
		want := 1
		if clear {
			want = 0
		}
		if got := f.memoryLen(t); got != want {
			t.Errorf("clear=%v: memory entries = %d, want %d", clear, got, want)
		}
	}
}

func TestService_Attachment(t *testing.T) {
	f := newFixture(nil, routeTo(router.LabelOther, 0.99))
	svc := newService(f, true)

	if _, err := svc.Process(context.Background(), "Explain", []byte("Ferritin: 12 ng/mL caf\xe9")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := "Explain" + AttachmentDelimiter + "Ferritin: 12 ng/mL café"
	if got := f.client.Requests()[0].Messages[1].Content; got != want {
		t.Errorf("routed input = %q, want %q", got, want)
	}
}

func TestService_EmptyPrompt(t *testing.T) {
	f := newFixture(nil)
	svc := newService(f, true)

	if _, err := svc.Process(context.Background(), " ", nil); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("err = %v, want ErrEmptyPrompt", err)
	}
	if f.client.Calls() != 0 {
		t.Error("model called for an empty prompt")
	}
}

// blockingClient holds every Chat call until released.
type blockingClient struct {
	entered chan struct{}
	release chan struct{}
}

func (c *blockingClient) Chat(context.Context, llm.Request) (*llm.ChatResponse, error) {
	c.entered <- struct{}{}
	<-c.release
	b, _ := json.Marshal(map[string]any{"request_type": router.LabelOther, "confidence_score": 0.9})
	return &llm.ChatResponse{Message: llm.Message{Role: llm.RoleAssistant, Content: string(b)}}, nil
}

func (c *blockingClient) Ping(context.Context) error { return nil }

func TestService_SerializesRuns(t *testing.T) {
	client := &blockingClient{entered: make(chan struct{}, 1), release: make(chan struct{})}
	logger := discardLogger()
	orch := NewOrchestrator(Options{Logger: logger, LLM: client, Models: testModels})
	svc := NewService(logger, orch, creative.NewReactor(logger, client, "m"), true)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Process(context.Background(), "first", nil)
		done <- err
	}()
	<-client.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := svc.Process(ctx, "second", nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second run err = %v, want DeadlineExceeded while the first holds the slot", err)
	}

	close(client.release)
	if err := <-done; err != nil {
		t.Errorf("first run: %v", err)
	}
}

func TestService_MemoryAccessWaitsForRun(t *testing.T) {
	client := &blockingClient{entered: make(chan struct{}, 1), release: make(chan struct{})}
	logger := discardLogger()
	mem := memory.NewInMemoryStore()
	orch := NewOrchestrator(Options{Logger: logger, LLM: client, Models: testModels, Memory: mem})
	svc := NewService(logger, orch, creative.NewReactor(logger, client, "m"), false)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Process(context.Background(), "first", nil)
		done <- err
	}()
	<-client.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := svc.ClearMemory(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ClearMemory err = %v, want DeadlineExceeded while a run holds memory", err)
	}
	if _, _, err := svc.RecentMemory(ctx, 5); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RecentMemory err = %v, want DeadlineExceeded while a run holds memory", err)
	}

	close(client.release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := svc.ClearMemory(context.Background()); err != nil {
		t.Errorf("ClearMemory after run: %v", err)
	}
}

func TestService_ConcurrentClearDuringRuns(t *testing.T) {
	var replies []llmtest.Reply
	for range 3 {
		replies = append(replies,
			routeTo(router.LabelAnalyzeTestResults, 0.9),
			investigationJSON("Ferritin is low", "labs.pdf", 0.8),
			llmtest.Text("Your ferritin is low.", 5),
			llmtest.Text("Low ferritin", 1),
		)
	}
	f := newFixture([]retrieval.Passage{ironPassage}, replies...)
	svc := newService(f, false)

	stop := make(chan struct{})
	cleared := make(chan struct{})
	go func() {
		defer close(cleared)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if err := svc.ClearMemory(context.Background()); err != nil {
				t.Errorf("ClearMemory: %v", err)
				return
			}
			if _, _, err := svc.RecentMemory(context.Background(), 0); err != nil {
				t.Errorf("RecentMemory: %v", err)
				return
			}
		}
	}()

	for range 3 {
		if _, err := svc.Process(context.Background(), "My ferritin is 12", nil); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	close(stop)
	<-cleared

	entries, total, err := svc.RecentMemory(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if total > 3 || len(entries) != total {
		t.Errorf("memory = %d entries (total %d)", len(entries), total)
	}
}

func TestService_CreativeReact(t *testing.T) {
	f := newFixture(nil)
	svc := newService(f, true)

	got := svc.CreativeReact(context.Background(), "h", "{oops", []byte("x"), "image/png")
	if len(got) == 0 || f.client.Calls() != 0 {
		t.Errorf("CreativeReact() = %q with %d calls", got, f.client.Calls())
	}
	if f.sink.flushes != 0 {
		t.Error("creative path recorded metrics")
	}
}
