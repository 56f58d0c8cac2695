// Package router classifies requests into intent labels and gates the
// agent's branches on the model's confidence.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/pragasv/sola-labs-demo/internal/llm"
	"github.com/pragasv/sola-labs-demo/internal/outcome"
	"github.com/pragasv/sola-labs-demo/internal/prompts"
)

// ConfidenceThreshold is the hard cutoff below which no branch proceeds.
const ConfidenceThreshold = 0.7

// Labels emitted by the general and action routers.
const (
	LabelAnalyzeTestResults = "analyze_test_results"
	LabelApplyAction        = "apply_action"
	LabelResponseQuestion   = "response_question"
	LabelCallAPI            = "call_API"
	LabelSendEmail          = "send_email_notification"
	LabelOther              = "other"
)

// ErrRoutingFailure means the classification call produced no usable
// decision. It is fatal to the current run and never retried.
var ErrRoutingFailure = errors.New("routing failure")

// Config describes one router instance.
type Config struct {
	Name   string   // "general" or "action"
	System string   // fixed system instruction
	Labels []string // allowed request_type values
	Model  string
}

// General is the top-level intent router.
func General(model string) Config {
	return Config{
		Name:   "general",
		System: prompts.GeneralRouterPrompt,
		Labels: []string{LabelAnalyzeTestResults, LabelApplyAction, LabelResponseQuestion, LabelOther},
		Model:  model,
	}
}

// Action picks which side-effecting tool an action request needs.
func Action(model string) Config {
	return Config{
		Name:   "action",
		System: prompts.ActionRouterPrompt,
		Labels: []string{LabelCallAPI, LabelSendEmail, LabelOther},
		Model:  model,
	}
}

// Decision is one routing result. It is immutable once returned.
type Decision struct {
	RequestID  string    `json:"request_id"`
	Timestamp  time.Time `json:"timestamp"`
	Router     string    `json:"router"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Abstained  bool      `json:"abstained"`
	Reason     string    `json:"reason,omitempty"`
	Tokens     int       `json:"tokens"`
	LatencyMs  int64     `json:"latency_ms"`

	// Filled in by RecordOutcome once the branch finishes.
	Success *bool `json:"success,omitempty"`
}

// Gate turns the decision into a Proceed or an Abstain. Label other
// and any confidence below ConfidenceThreshold abstain.
func (d Decision) Gate() outcome.Outcome[Decision] {
	if reason := d.abstainReason(); reason != "" {
		return outcome.Abstain[Decision](reason)
	}
	return outcome.Proceed(d)
}

func (d Decision) abstainReason() string {
	switch {
	case d.Label == LabelOther:
		return "request classified as other"
	case d.Confidence < ConfidenceThreshold:
		return fmt.Sprintf("low confidence score %.2f", d.Confidence)
	}
	return ""
}

// routeReply is the structured reply of a routing call.
type routeReply struct {
	RequestType string  `json:"request_type"`
	Confidence  float64 `json:"confidence_score"`

	labels []string
}

func (r *routeReply) Validate() error {
	if !slices.Contains(r.labels, r.RequestType) {
		return fmt.Errorf("request_type %q not one of %v", r.RequestType, r.labels)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence_score %v outside [0,1]", r.Confidence)
	}
	return nil
}

// Router runs one schema-constrained classification call per request.
type Router struct {
	logger *slog.Logger
	client llm.Client
	config Config
	schema *llm.Schema
	audit  *Audit
}

// New creates a router. Decisions are recorded in audit; a nil audit
// gets a private one.
func New(logger *slog.Logger, client llm.Client, config Config, audit *Audit) *Router {
	if audit == nil {
		audit = NewAudit(0)
	}
	return &Router{
		logger: logger.With("router", config.Name),
		client: client,
		config: config,
		schema: llm.ObjectSchema(config.Name+"_route", map[string]any{
			"request_type": map[string]any{
				"type": "string",
				"enum": config.Labels,
			},
			"confidence_score": map[string]any{
				"type":        "number",
				"description": "Confidence score between 0 and 1",
			},
		}),
		audit: audit,
	}
}

// Name is the configured router name.
func (r *Router) Name() string { return r.config.Name }

// Route classifies input. The returned token count is also set on the
// decision. Callers must check Decision.Gate before acting on the label.
func (r *Router) Route(ctx context.Context, input string) (Decision, int, error) {
	start := time.Now()
	d := Decision{
		RequestID: newRequestID(),
		Timestamp: start,
		Router:    r.config.Name,
	}

	resp, err := r.client.Chat(ctx, llm.Request{
		Model: r.config.Model,
		Messages: []llm.Message{
			llm.SystemMessage(r.config.System),
			llm.UserMessage(input),
		},
		Schema: r.schema,
	})
	if err != nil {
		r.audit.recordFailure(r.config.Name)
		return d, 0, fmt.Errorf("%w: %s router: %w", ErrRoutingFailure, r.config.Name, err)
	}

	tokens := resp.TotalTokens()
	reply := routeReply{labels: r.config.Labels}
	if err := llm.Decode(resp.Message.Content, r.schema, &reply); err != nil {
		r.audit.recordFailure(r.config.Name)
		r.logger.Warn("unparseable routing reply", "error", err)
		return d, tokens, fmt.Errorf("%w: %s router: %w", ErrRoutingFailure, r.config.Name, err)
	}

	d.Label = reply.RequestType
	d.Confidence = reply.Confidence
	d.Tokens = tokens
	d.LatencyMs = time.Since(start).Milliseconds()
	if reason := d.abstainReason(); reason != "" {
		d.Abstained = true
		d.Reason = reason
	}

	r.audit.record(d)

	if d.Abstained {
		r.logger.Warn("routing abstained",
			"request_id", d.RequestID,
			"label", d.Label,
			"confidence", d.Confidence,
			"reason", d.Reason,
		)
	} else {
		r.logger.Info("request routed",
			"request_id", d.RequestID,
			"label", d.Label,
			"confidence", d.Confidence,
			"tokens", tokens,
		)
	}
	return d, tokens, nil
}

// RecordOutcome marks whether the branch selected by a decision
// succeeded.
func (r *Router) RecordOutcome(requestID string, success bool) {
	r.audit.RecordOutcome(requestID, success)
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
