package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/pragasv/sola-labs-demo/internal/llm"
	"github.com/pragasv/sola-labs-demo/internal/prompts"
)

// HandleAnalyzeTestResults answers query from retrieved passages. The
// model is asked to use only the retrieved context, so an empty text
// in its reply means nothing relevant was found; that is an
// unsuccessful result, not an error.
func (o *Orchestrator) HandleAnalyzeTestResults(ctx context.Context, query string) (*InvestigationResult, error) {
	var (
		docs     string
		passages int
	)
	if o.retrieval != nil {
		c, found, err := o.retrieval.Context(ctx, prompts.SearchQuery(query))
		if err != nil {
			return nil, fmt.Errorf("retrieve context: %w", err)
		}
		docs, passages = c, len(found)
	}

	resp, err := o.llm.Chat(ctx, llm.Request{
		Model: o.models.Router,
		Messages: []llm.Message{
			llm.SystemMessage(prompts.InvestigationSystemPrompt),
			llm.UserMessage(prompts.InvestigationUserPrompt(query, docs)),
		},
		Schema: investigationSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("investigation: %w", err)
	}

	var reply investigationReply
	if err := llm.Decode(resp.Message.Content, investigationSchema, &reply); err != nil {
		return nil, fmt.Errorf("investigation: %w", err)
	}

	res := &InvestigationResult{
		Source:     reply.Source,
		Title:      reply.Title,
		Text:       reply.Text,
		Tokens:     resp.TotalTokens(),
		Confidence: reply.Confidence,
		Passages:   passages,
	}
	if strings.TrimSpace(reply.Text) == "" {
		res.Message = noInvestigationMessage
		o.logger.Info("investigation found nothing", "passages", passages)
		return res, nil
	}
	res.Success = true
	res.NextStep = "Apply the action indicated in the text: " + reply.Text
	res.Message = " " + reply.Text + ". Information was found in document " + reply.Source
	o.logger.Debug("investigation completed",
		"source", reply.Source,
		"passages", passages,
		"tokens", res.Tokens,
	)
	return res, nil
}
