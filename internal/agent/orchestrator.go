package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pragasv/sola-labs-demo/internal/llm"
	"github.com/pragasv/sola-labs-demo/internal/memory"
	"github.com/pragasv/sola-labs-demo/internal/metrics"
	"github.com/pragasv/sola-labs-demo/internal/outcome"
	"github.com/pragasv/sola-labs-demo/internal/retrieval"
	"github.com/pragasv/sola-labs-demo/internal/router"
	"github.com/pragasv/sola-labs-demo/internal/tools"
)

// Options wires an Orchestrator to its collaborators.
type Options struct {
	Logger *slog.Logger
	LLM    llm.Client
	Models Models

	// Audit is shared by the general and action routers. Nil creates a
	// private one.
	Audit *router.Audit

	Retrieval *retrieval.Manager
	Tools     *tools.Registry
	Memory    memory.Store
	Metrics   metrics.Sink

	// RecentMemory is how many past entries are folded into the branch
	// input. Zero means memory.DefaultRecent.
	RecentMemory int
}

// Orchestrator runs one request through the routing state machine. It
// is safe for concurrent use only if its memory store is; Service
// serializes callers.
type Orchestrator struct {
	logger    *slog.Logger
	llm       llm.Client
	models    Models
	general   *router.Router
	action    *router.Router
	audit     *router.Audit
	retrieval *retrieval.Manager
	tools     *tools.Registry
	memory    memory.Store
	metrics   metrics.Sink
	recent    int
}

// NewOrchestrator builds an Orchestrator from opts.
func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	audit := opts.Audit
	if audit == nil {
		audit = router.NewAudit(router.DefaultMaxAuditLog)
	}
	mem := opts.Memory
	if mem == nil {
		mem = memory.NewInMemoryStore()
	}
	registry := opts.Tools
	if registry == nil {
		registry = tools.NewRegistry(logger, nil, nil)
	}
	models := opts.Models.withDefaults()

	return &Orchestrator{
		logger:    logger.With("component", "agent"),
		llm:       opts.LLM,
		models:    models,
		general:   router.New(logger, opts.LLM, router.General(models.Router), audit),
		action:    router.New(logger, opts.LLM, router.Action(models.Router), audit),
		audit:     audit,
		retrieval: opts.Retrieval,
		tools:     registry,
		memory:    mem,
		metrics:   opts.Metrics,
		recent:    opts.RecentMemory,
	}
}

// Audit returns the routing audit shared by both routers.
func (o *Orchestrator) Audit() *router.Audit { return o.audit }

// branch is what one routed branch produced.
type branch struct {
	label         string
	investigation *InvestigationResult
	action        *ActionResult
	success       bool
	confidence    float64
	tokens        int
	tool          string
	callsAPI      int
	response      string
}

// ProcessAgent runs input through routing, one branch, and synthesis.
// It abstains when the general router is not confident or labels the
// request other; nothing is written to memory in that case.
//
// Routing failures, schema validation failures and provider errors end
// the run with an unsuccessful metrics row and a failure message as the
// answer. Any other error is returned.
func (o *Orchestrator) ProcessAgent(ctx context.Context, input string) (outcome.Outcome[string], error) {
	start := time.Now()
	rec := metrics.NewRecorder(o.metrics, input, start)
	log := o.logger.With("run_id", rec.RunID())
	log.Info("agent run started", "input_len", len(input))

	out, err := o.run(ctx, log, rec, input)

	total := time.Since(start)
	if ferr := rec.Flush(context.WithoutCancel(ctx), total); ferr != nil {
		log.Error("metrics flush failed", "error", ferr)
	}
	if err != nil {
		return outcome.Abstain[string](""), err
	}
	log.Info("agent run completed",
		"proceeded", out.Proceeded(),
		"elapsed", total.Round(time.Millisecond),
	)
	return out, nil
}

func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, rec *metrics.Recorder, input string) (outcome.Outcome[string], error) {
	stepStart := time.Now()
	if strings.TrimSpace(input) == "" {
		return o.fail(log, rec, stepStart, metrics.StepRouting, 0, ErrEmptyPrompt)
	}
	decision, tokens, err := o.general.Route(ctx, input)
	if err != nil {
		return o.fail(log, rec, stepStart, metrics.StepRouting, tokens, err)
	}

	gate := decision.Gate()
	if !gate.Proceeded() {
		log.Info("agent abstained", "label", decision.Label, "reason", gate.Reason())
		rec.Add(metrics.Row{
			Step:       decision.Label,
			Latency:    time.Since(stepStart),
			Confidence: decision.Confidence,
			Tokens:     tokens,
		})
		return outcome.Abstain[string](gate.Reason()), nil
	}

	branchInput := input + " " + decision.Label + o.historyContext(ctx, log)

	var b *branch
	switch decision.Label {
	case router.LabelAnalyzeTestResults, router.LabelResponseQuestion:
		b, err = o.investigate(ctx, branchInput)
	case router.LabelApplyAction:
		b, err = o.act(ctx, log, branchInput)
	default:
		err = fmt.Errorf("%w: unexpected label %q", router.ErrRoutingFailure, decision.Label)
	}
	if err != nil {
		o.general.RecordOutcome(decision.RequestID, false)
		return o.fail(log, rec, stepStart, decision.Label, tokens, err)
	}
	b.label = decision.Label
	b.tokens += tokens
	o.general.RecordOutcome(decision.RequestID, b.success)

	rec.Add(metrics.Row{
		Step:       b.label,
		Tool:       b.tool,
		Success:    b.success,
		Latency:    time.Since(stepStart),
		Confidence: b.confidence,
		Tokens:     b.tokens,
		CallsAPI:   b.callsAPI,
		Response:   b.response,
	})

	synthStart := time.Now()
	answer, summary, synthTokens, err := o.Synthesize(ctx, b.investigation, b.action)
	if err != nil {
		return o.fail(log, rec, synthStart, metrics.StepSynthesized, synthTokens, err)
	}
	rec.Add(metrics.Row{
		Step:       metrics.StepSynthesized,
		Success:    true,
		Latency:    time.Since(synthStart),
		Confidence: 1,
		Tokens:     synthTokens,
		Response:   answer,
	})

	if err := o.remember(ctx, summary); err != nil {
		return outcome.Abstain[string](""), err
	}
	return outcome.Proceed(answer), nil
}

func (o *Orchestrator) investigate(ctx context.Context, input string) (*branch, error) {
	inv, err := o.HandleAnalyzeTestResults(ctx, input)
	if err != nil {
		return nil, err
	}
	return &branch{
		investigation: inv,
		success:       inv.Success,
		confidence:    inv.Confidence,
		tokens:        inv.Tokens,
		response:      inv.Message,
	}, nil
}

func (o *Orchestrator) act(ctx context.Context, log *slog.Logger, input string) (*branch, error) {
	out, tokens, err := o.ApplyAction(ctx, input)
	if err != nil {
		return nil, err
	}
	act, ok := out.Value()
	if !ok {
		log.Info("no action applied", "reason", out.Reason())
		return &branch{tokens: tokens}, nil
	}
	return &branch{
		action:     act,
		success:    act.Success,
		confidence: act.Confidence,
		tokens:     tokens + act.Tokens,
		tool:       act.Tool,
		callsAPI:   act.CallsAPI,
		response:   act.Message,
	}, nil
}

// fail records an expected failure as an unsuccessful row and turns it
// into the run's answer. Unexpected errors are returned unchanged.
func (o *Orchestrator) fail(log *slog.Logger, rec *metrics.Recorder, stepStart time.Time, step string, tokens int, err error) (outcome.Outcome[string], error) {
	if !isExpected(err) {
		log.Error("agent run aborted", "step", step, "error", err)
		return outcome.Abstain[string](""), err
	}
	log.Warn("agent step failed", "step", step, "error", err)
	msg := failurePrefix + err.Error()
	rec.Add(metrics.Row{
		Step:     step,
		Latency:  time.Since(stepStart),
		Tokens:   tokens,
		Response: msg,
	})
	return outcome.Proceed(msg), nil
}

// historyContext renders recent memory as a suffix for the branch
// input. A memory that cannot be loaded is treated as empty.
func (o *Orchestrator) historyContext(ctx context.Context, log *slog.Logger) string {
	m, err := o.memory.Load(ctx)
	if err != nil {
		log.Warn("memory unavailable", "error", err)
		return ""
	}
	return historySuffix(m.Recent(o.recent))
}

func historySuffix(entries []memory.Entry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.Content
	}
	s := strings.Join(parts, " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "  ", " ")
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return historyPrefix + s
}

// remember appends the run summary to memory and persists it.
func (o *Orchestrator) remember(ctx context.Context, summary string) error {
	m, err := o.memory.Load(ctx)
	if err != nil {
		return fmt.Errorf("load memory: %w", err)
	}
	m.Add(llm.RoleAssistant, summary)
	if err := o.memory.Save(ctx, m); err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	return nil
}
