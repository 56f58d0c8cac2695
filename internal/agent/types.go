// Package agent implements the request orchestration state machine:
// route, investigate or act, synthesize, then update memory and flush
// telemetry.
package agent

import (
	"context"
	"errors"

	"github.com/pragasv/sola-labs-demo/internal/llm"
	"github.com/pragasv/sola-labs-demo/internal/router"
)

// Fixed user-visible strings.
const (
	// NoAnswer is returned when the agent abstains.
	NoAnswer = "The agent returned no answer."

	// AttachmentDelimiter joins an uploaded file's text to the prompt.
	AttachmentDelimiter = " analyze also the below content attached "

	noInvestigationMessage = "There is no investigation related with the results"
	emailFailedMessage     = "Email not send. Please check the information."
	apiFailedMessage       = "Call to API was no executed Please check the information."
	historyPrefix          = ". This is the context of the previous or historical request to analyze results:"
	failurePrefix          = "Error in processing the request "
)

// ErrEmptyPrompt rejects a request with neither prompt text nor file.
var ErrEmptyPrompt = errors.New("prompt is empty")

// InvestigationResult is the outcome of the retrieval and analysis
// branch. Success is false exactly when the model found no relevant
// text.
type InvestigationResult struct {
	Source     string  `json:"source"`
	Title      string  `json:"title"`
	Text       string  `json:"text"`
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	NextStep   string  `json:"next_step"`
	Tokens     int     `json:"tokens"`
	Confidence float64 `json:"confidence_score"`
	Passages   int     `json:"passages"`
}

// ActionResult is the outcome of one action handler.
type ActionResult struct {
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	NextStep   string  `json:"next_step"`
	Tokens     int     `json:"tokens"`
	Confidence float64 `json:"confidence_score"`

	// Tool and CallsAPI feed telemetry.
	Tool     string `json:"tool"`
	CallsAPI int    `json:"calls_api"`
}

// Models names the model used for each kind of call.
type Models struct {
	// Router serves routing, investigation and field extraction.
	Router string
	// Tools serves tool selection.
	Tools string
	// Synthesis serves the final answer and the memory summary.
	Synthesis string
}

func (m Models) withDefaults() Models {
	if m.Tools == "" {
		m.Tools = m.Router
	}
	if m.Synthesis == "" {
		m.Synthesis = m.Router
	}
	return m
}

// isExpected reports whether err is a data-dependent failure that the
// orchestrator turns into an unsuccessful result instead of returning.
func isExpected(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *llm.APIError
	return errors.Is(err, ErrEmptyPrompt) ||
		errors.Is(err, router.ErrRoutingFailure) ||
		errors.Is(err, llm.ErrSchemaValidation) ||
		errors.As(err, &apiErr)
}
