package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/pragasv/sola-labs-demo/internal/llm"
	"github.com/pragasv/sola-labs-demo/internal/prompts"
)

// Synthesize writes the user-facing answer and a short summary for
// memory from whatever the branch produced. Either result may be nil.
func (o *Orchestrator) Synthesize(ctx context.Context, inv *InvestigationResult, act *ActionResult) (answer, summary string, tokens int, err error) {
	var invText, actText string
	if inv != nil {
		invText = inv.Text
	}
	if act != nil {
		actText = act.Message
	}

	answer, tokens, err = o.complete(ctx, prompts.SynthesisPrompt(invText, actText))
	if err != nil {
		return "", "", tokens, fmt.Errorf("synthesis: %w", err)
	}

	summary, n, err := o.complete(ctx, prompts.SummaryPrompt(invText, actText))
	tokens += n
	if err != nil {
		return "", "", tokens, fmt.Errorf("summary: %w", err)
	}
	return answer, strings.TrimSpace(summary), tokens, nil
}

func (o *Orchestrator) complete(ctx context.Context, system string) (string, int, error) {
	resp, err := o.llm.Chat(ctx, llm.Request{
		Model:    o.models.Synthesis,
		Messages: []llm.Message{llm.SystemMessage(system)},
	})
	if err != nil {
		return "", 0, err
	}
	return resp.Message.Content, resp.TotalTokens(), nil
}
