// Package tools defines the closed set of side-effecting tools the agent
// can call and executes them on behalf of the model.
package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pragasv/sola-labs-demo/internal/llm"
)

// Kind identifies one of the supported tools.
type Kind int

const (
	KindSendEmail Kind = iota + 1
	KindCallAPI
)

// String returns the wire name the model uses.
func (k Kind) String() string {
	switch k {
	case KindSendEmail:
		return "send_email_notification"
	case KindCallAPI:
		return "call_API"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a wire name to a Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "send_email_notification":
		return KindSendEmail, nil
	case "call_API":
		return KindCallAPI, nil
	}
	return 0, &ErrUnknownTool{Name: name}
}

// EmailArgs are the arguments of send_email_notification.
type EmailArgs struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// APIArgs are the arguments of call_API.
type APIArgs struct {
	Endpoint string `json:"endpoint"`
	Method   string `json:"method"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	UserID   int    `json:"userId"`
}

// Call is a decoded tool invocation. Exactly one of Email or API is set,
// matching Kind.
type Call struct {
	ID    string
	Kind  Kind
	Email *EmailArgs
	API   *APIArgs
}

// DecodeCall converts a model tool call into a typed Call. An unknown
// name yields *ErrUnknownTool; malformed arguments wrap
// ErrInvalidArguments.
func DecodeCall(tc llm.ToolCall) (Call, error) {
	kind, err := ParseKind(tc.Function.Name)
	if err != nil {
		return Call{}, err
	}
	c := Call{ID: tc.ID, Kind: kind}

	raw, err := json.Marshal(tc.Function.Arguments)
	if err != nil {
		return c, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	switch kind {
	case KindSendEmail:
		c.Email = &EmailArgs{}
		err = json.Unmarshal(raw, c.Email)
	case KindCallAPI:
		c.API = &APIArgs{}
		err = json.Unmarshal(raw, c.API)
	}
	if err != nil {
		return c, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, kind, err)
	}
	return c, nil
}

// Result is the JSON-encodable outcome of one tool execution. Failures
// carry Error and a failure Action instead of being returned as errors.
type Result struct {
	Action     string `json:"action"`
	Error      string `json:"error,omitempty"`
	To         string `json:"to,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
	Method     string `json:"method,omitempty"`
	ResponseID any    `json:"response_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Body       string `json:"body,omitempty"`
	UserID     int    `json:"userId,omitempty"`
}

// Action tags.
const (
	ActionEmailSent   = "Email sent"
	ActionEmailFailed = "Email failed"
	ActionAPICalled   = "API called"
	ActionAPIFailed   = "API call failed"
)

// OK reports whether the tool succeeded.
func (r Result) OK() bool { return r.Error == "" }

// JSON encodes the result for a tool message.
func (r Result) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"action":%q,"error":%q}`, r.Action, err.Error())
	}
	return string(b)
}

func failure(kind Kind, err error) Result {
	action := ActionAPIFailed
	if kind == KindSendEmail {
		action = ActionEmailFailed
	}
	return Result{Action: action, Error: err.Error()}
}

// Definitions returns the tool definitions advertised to the model for
// the given kinds. With no kinds, every tool is returned.
func Definitions(kinds ...Kind) []llm.ToolDef {
	if len(kinds) == 0 {
		kinds = []Kind{KindSendEmail, KindCallAPI}
	}
	defs := make([]llm.ToolDef, 0, len(kinds))
	for _, k := range kinds {
		switch k {
		case KindSendEmail:
			defs = append(defs, llm.ToolDef{
				Name:        k.String(),
				Description: "Send an email notification to the patient with the analysis and the plan to apply.",
				Parameters: objectParams(map[string]any{
					"to":      stringParam("Destination email address"),
					"subject": stringParam("Subject of the email"),
					"body":    stringParam("Body of the email"),
				}),
			})
		case KindCallAPI:
			defs = append(defs, llm.ToolDef{
				Name:        k.String(),
				Description: "Call an external HTTP API with a title, body and user ID payload.",
				Parameters: objectParams(map[string]any{
					"endpoint": stringParam("Endpoint of the API called"),
					"method": map[string]any{
						"type":        "string",
						"enum":        []string{"GET", "POST"},
						"description": "HTTP method used to call the API",
					},
					"title":  stringParam("Title of the API called"),
					"body":   stringParam("Body of the API called"),
					"userId": map[string]any{"type": "integer", "description": "User ID of the API called"},
				}),
			})
		}
	}
	return defs
}

func stringParam(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func objectParams(props map[string]any) map[string]any {
	return llm.ObjectSchema("", props).Definition
}

func normalizeMethod(m string) string {
	return strings.ToUpper(strings.TrimSpace(m))
}
