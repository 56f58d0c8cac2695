package agent

import (
	"context"
	"fmt"

	"github.com/pragasv/sola-labs-demo/internal/llm"
	"github.com/pragasv/sola-labs-demo/internal/outcome"
	"github.com/pragasv/sola-labs-demo/internal/prompts"
	"github.com/pragasv/sola-labs-demo/internal/router"
	"github.com/pragasv/sola-labs-demo/internal/tools"
)

// ApplyAction routes description to one side-effecting handler. It
// abstains when the action router is not confident or finds no
// matching action. The returned token count covers the action routing
// call only; handler tokens are on the ActionResult.
func (o *Orchestrator) ApplyAction(ctx context.Context, description string) (outcome.Outcome[*ActionResult], int, error) {
	d, tokens, err := o.action.Route(ctx, description)
	if err != nil {
		return outcome.Abstain[*ActionResult](""), tokens, err
	}
	gate := d.Gate()
	if !gate.Proceeded() {
		return outcome.Abstain[*ActionResult](gate.Reason()), tokens, nil
	}

	var res *ActionResult
	switch d.Label {
	case router.LabelSendEmail:
		res, err = o.handleSendEmail(ctx, description)
	case router.LabelCallAPI:
		res, err = o.handleCallAPI(ctx, description)
	default:
		err = fmt.Errorf("%w: unexpected action %q", router.ErrRoutingFailure, d.Label)
	}
	if err != nil {
		o.action.RecordOutcome(d.RequestID, false)
		return outcome.Abstain[*ActionResult](""), tokens, err
	}
	o.action.RecordOutcome(d.RequestID, res.Success)
	return outcome.Proceed(res), tokens, nil
}

func (o *Orchestrator) handleSendEmail(ctx context.Context, description string) (*ActionResult, error) {
	messages := []llm.Message{
		llm.SystemMessage(prompts.EmailSystemPrompt),
		llm.UserMessage(prompts.EmailUserPrompt(description)),
	}
	messages, round, err := o.toolRound(ctx, messages)
	if err != nil {
		return nil, err
	}

	var reply emailReply
	tokens, err := o.extract(ctx, messages, emailSchema, &reply)
	if err != nil {
		return nil, err
	}

	res := &ActionResult{
		Tokens:     round.tokens + tokens,
		Confidence: reply.Confidence,
		Tool:       tools.KindSendEmail.String(),
		CallsAPI:   round.apiCalls,
	}
	if reply.Subject == "" {
		res.Message = emailFailedMessage
		return res, nil
	}
	res.Success = true
	res.Message = fmt.Sprintf("Email send to %s, subject %s. Text %s", reply.To, reply.Subject, reply.Body)
	return res, nil
}

func (o *Orchestrator) handleCallAPI(ctx context.Context, description string) (*ActionResult, error) {
	messages := []llm.Message{
		llm.SystemMessage(prompts.APISystemPrompt),
		llm.UserMessage(prompts.APIUserPrompt(description)),
	}
	messages, round, err := o.toolRound(ctx, messages)
	if err != nil {
		return nil, err
	}

	var reply apiReply
	tokens, err := o.extract(ctx, messages, apiSchema, &reply)
	if err != nil {
		return nil, err
	}

	res := &ActionResult{
		Tokens:     round.tokens + tokens,
		Confidence: reply.Confidence,
		Tool:       tools.KindCallAPI.String(),
		CallsAPI:   round.apiCalls,
	}
	if reply.Endpoint == "" {
		res.NextStep = "Send an email with the notification that the API called was not executed" + description
		res.Message = apiFailedMessage
		return res, nil
	}
	res.Success = true
	res.NextStep = "Send an email with the notification that the API called executed sucesfully" + description
	res.Message = fmt.Sprintf("API call %s, method %s. Title %s. Body %s. User ID %d",
		reply.Endpoint, reply.Method, reply.Title, reply.Body, reply.UserID)
	return res, nil
}

type roundStats struct {
	tokens   int
	apiCalls int
}

// toolRound offers every tool to the model once and executes whatever
// it asks for, in order. The returned messages carry the assistant turn
// and one tool message per call, ready for extraction. A reply without
// tool calls leaves messages unchanged.
func (o *Orchestrator) toolRound(ctx context.Context, messages []llm.Message) ([]llm.Message, roundStats, error) {
	var stats roundStats
	resp, err := o.llm.Chat(ctx, llm.Request{
		Model:    o.models.Tools,
		Messages: messages,
		Tools:    tools.Definitions(),
	})
	if err != nil {
		return nil, stats, fmt.Errorf("tool selection: %w", err)
	}
	stats.tokens = resp.TotalTokens()

	calls := resp.Message.ToolCalls
	if len(calls) == 0 {
		o.logger.Warn("model requested no tool call")
		return messages, stats, nil
	}

	out := append([]llm.Message(nil), messages...)
	out = append(out, resp.Message)
	for _, tc := range calls {
		call, result, err := o.tools.Run(ctx, tc)
		if err != nil {
			return nil, stats, err
		}
		if call.Kind == tools.KindCallAPI {
			stats.apiCalls++
		}
		o.logger.Info("tool executed",
			"tool", tc.Function.Name,
			"action", result.Action,
			"ok", result.OK(),
		)
		out = append(out, llm.ToolResultMessage(tc.ID, result.JSON()))
	}
	return out, stats, nil
}

// extract runs the schema-constrained call that reads the handler's
// fields out of the conversation.
func (o *Orchestrator) extract(ctx context.Context, messages []llm.Message, schema *llm.Schema, dst any) (int, error) {
	resp, err := o.llm.Chat(ctx, llm.Request{
		Model:    o.models.Router,
		Messages: messages,
		Schema:   schema,
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", schema.Name, err)
	}
	if err := llm.Decode(resp.Message.Content, schema, dst); err != nil {
		return resp.TotalTokens(), fmt.Errorf("%s: %w", schema.Name, err)
	}
	return resp.TotalTokens(), nil
}
