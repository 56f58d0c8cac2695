package tools

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pragasv/sola-labs-demo/internal/llm"
)

// Mailer delivers an email notification and returns the address it was
// delivered to. *email.Sender implements it.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
}

// APICaller performs a call_API request and returns the response id, if
// the remote reported one. *HTTPCaller implements it.
type APICaller interface {
	Call(ctx context.Context, args APIArgs) (any, error)
}

var (
	errNoMailer    = errors.New("email transport not configured")
	errNoAPICaller = errors.New("API caller not configured")
)

// Registry executes tool calls against the configured transports.
type Registry struct {
	logger *slog.Logger
	mailer Mailer
	api    APICaller
}

// NewRegistry creates a registry. A nil transport makes its tool return
// an error result.
func NewRegistry(logger *slog.Logger, mailer Mailer, api APICaller) *Registry {
	return &Registry{
		logger: logger.With("component", "tools"),
		mailer: mailer,
		api:    api,
	}
}

// Run decodes and executes one model tool call. Only an unknown tool is
// returned as an error; every other failure is captured in the Result.
func (r *Registry) Run(ctx context.Context, tc llm.ToolCall) (Call, Result, error) {
	call, err := DecodeCall(tc)
	if err != nil {
		var unknown *ErrUnknownTool
		if errors.As(err, &unknown) {
			return call, Result{}, err
		}
		r.logger.Warn("tool arguments rejected", "tool", tc.Function.Name, "error", err)
		return call, failure(call.Kind, err), nil
	}
	return call, r.Execute(ctx, call), nil
}

// Execute runs a decoded call synchronously.
func (r *Registry) Execute(ctx context.Context, c Call) Result {
	switch c.Kind {
	case KindSendEmail:
		return r.sendEmail(ctx, *c.Email)
	case KindCallAPI:
		return r.callAPI(ctx, *c.API)
	}
	return failure(c.Kind, &ErrUnknownTool{Name: c.Kind.String()})
}

func (r *Registry) sendEmail(ctx context.Context, args EmailArgs) Result {
	if r.mailer == nil {
		return failure(KindSendEmail, errNoMailer)
	}
	to, err := r.mailer.Send(ctx, args.To, args.Subject, args.Body)
	if err != nil {
		r.logger.Error("error sending email", "error", err)
		return failure(KindSendEmail, err)
	}
	r.logger.Info("email sent successfully", "to", to)
	return Result{
		Action:  ActionEmailSent,
		To:      to,
		Subject: args.Subject,
		Body:    args.Body,
	}
}

func (r *Registry) callAPI(ctx context.Context, args APIArgs) Result {
	if r.api == nil {
		return failure(KindCallAPI, errNoAPICaller)
	}
	id, err := r.api.Call(ctx, args)
	if err != nil {
		r.logger.Error("error calling API", "endpoint", args.Endpoint, "error", err)
		return failure(KindCallAPI, err)
	}
	r.logger.Info("API called successfully", "endpoint", args.Endpoint, "response_id", id)
	return Result{
		Action:     ActionAPICalled,
		Endpoint:   args.Endpoint,
		Method:     args.Method,
		ResponseID: id,
		Title:      args.Title,
		Body:       args.Body,
		UserID:     args.UserID,
	}
}
