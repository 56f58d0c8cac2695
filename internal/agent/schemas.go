package agent

import (
	"fmt"

	"github.com/pragasv/sola-labs-demo/internal/llm"
)

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

var confidenceProp = map[string]any{
	"type":        "number",
	"description": "Confidence score between 0 and 1",
}

func checkConfidence(c float64) error {
	if c < 0 || c > 1 {
		return fmt.Errorf("confidence_score %v outside [0,1]", c)
	}
	return nil
}

var investigationSchema = llm.ObjectSchema("investigation_response", map[string]any{
	"source":           stringProp("Source of information about the medical results"),
	"title":            stringProp("Title of the information"),
	"text":             stringProp("Detail about the medical results in the investigation"),
	"success":          map[string]any{"type": "boolean", "description": "Whether the operation was successful"},
	"message":          stringProp("User-friendly response message"),
	"next_step":        stringProp("Next step to take after get investigation"),
	"tokens":           map[string]any{"type": "integer", "description": "Number of tokens used in the request"},
	"confidence_score": confidenceProp,
})

type investigationReply struct {
	Source     string  `json:"source"`
	Title      string  `json:"title"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence_score"`
}

func (r *investigationReply) Validate() error { return checkConfidence(r.Confidence) }

var emailSchema = llm.ObjectSchema("email_request", map[string]any{
	"to":               stringProp("Destination email address"),
	"subject":          stringProp("Subject of the email"),
	"body":             stringProp("Body of the email"),
	"confidence_score": confidenceProp,
})

type emailReply struct {
	To         string  `json:"to"`
	Subject    string  `json:"subject"`
	Body       string  `json:"body"`
	Confidence float64 `json:"confidence_score"`
}

func (r *emailReply) Validate() error { return checkConfidence(r.Confidence) }

var apiSchema = llm.ObjectSchema("api_request", map[string]any{
	"endpoint": stringProp("Endpoint of the API called"),
	"method": map[string]any{
		"type":        "string",
		"enum":        []string{"GET", "POST"},
		"description": "HTTP method used to call the API",
	},
	"title":            stringProp("Title of the API called"),
	"body":             stringProp("Body of the API called"),
	"userId":           map[string]any{"type": "integer", "description": "User ID of the API called"},
	"confidence_score": confidenceProp,
})

type apiReply struct {
	Endpoint   string  `json:"endpoint"`
	Method     string  `json:"method"`
	Title      string  `json:"title"`
	Body       string  `json:"body"`
	UserID     int     `json:"userId"`
	Confidence float64 `json:"confidence_score"`
}

// Validate checks the method only when an endpoint was extracted; an
// empty reply is the handler's "nothing to call" case.
func (r *apiReply) Validate() error {
	if r.Endpoint != "" && r.Method != "GET" && r.Method != "POST" {
		return fmt.Errorf("method %q must be GET or POST", r.Method)
	}
	return checkConfidence(r.Confidence)
}
