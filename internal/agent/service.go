package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/pragasv/sola-labs-demo/internal/creative"
	"github.com/pragasv/sola-labs-demo/internal/memory"
)

// Service is the entry point used by the HTTP server and the CLI. It
// admits one Process call at a time because every run reads and
// rewrites the shared memory store.
type Service struct {
	logger      *slog.Logger
	orch        *Orchestrator
	reactor     *creative.Reactor
	memory      memory.Store
	clearMemory bool
	sem         *semaphore.Weighted
}

// NewService creates a Service. When clearMemory is set, memory is
// emptied at the start of every Process call.
func NewService(logger *slog.Logger, orch *Orchestrator, reactor *creative.Reactor, clearMemory bool) *Service {
	return &Service{
		logger:      logger.With("component", "service"),
		orch:        orch,
		reactor:     reactor,
		memory:      orch.memory,
		clearMemory: clearMemory,
		sem:         semaphore.NewWeighted(1),
	}
}

// Orchestrator returns the underlying orchestrator.
func (s *Service) Orchestrator() *Orchestrator { return s.orch }

// RecentMemory returns the last n memory entries and the total count.
// It waits for any running Process call to finish.
func (s *Service) RecentMemory(ctx context.Context, n int) ([]memory.Entry, int, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, 0, err
	}
	defer s.sem.Release(1)

	m, err := s.memory.Load(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load memory: %w", err)
	}
	return m.Recent(n), m.Len(), nil
}

// ClearMemory empties conversation memory between runs.
func (s *Service) ClearMemory(ctx context.Context) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)

	if err := s.memory.Clear(ctx); err != nil {
		return fmt.Errorf("clear memory: %w", err)
	}
	return nil
}

// Process answers prompt, with file appended when present. Waiting for
// a previous run honours ctx. An abstaining run yields NoAnswer.
func (s *Service) Process(ctx context.Context, prompt string, file []byte) (string, error) {
	input := prompt
	if len(file) > 0 {
		text, err := DecodeAttachment(file)
		if err != nil {
			return "", err
		}
		input += AttachmentDelimiter + text
	}
	if strings.TrimSpace(input) == "" {
		return "", ErrEmptyPrompt
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer s.sem.Release(1)

	if s.clearMemory {
		if err := s.memory.Clear(ctx); err != nil {
			return "", fmt.Errorf("clear memory: %w", err)
		}
	}

	out, err := s.orch.ProcessAgent(ctx, input)
	if err != nil {
		return "", err
	}
	answer, ok := out.Value()
	if !ok {
		s.logger.Info("no answer", "reason", out.Reason())
		return NoAnswer, nil
	}
	return answer, nil
}

// CreativeReact runs the creative reaction path. It does not wait on
// Process.
func (s *Service) CreativeReact(ctx context.Context, headline, personasJSON string, image []byte, mime string) string {
	return s.reactor.React(ctx, headline, personasJSON, image, mime)
}
