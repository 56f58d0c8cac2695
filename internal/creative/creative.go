// Package creative predicts how clinician and patient personas react
// to a piece of educational creative (an image plus a headline).
package creative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/pragasv/sola-labs-demo/internal/llm"
	"github.com/pragasv/sola-labs-demo/internal/prompts"
)

// Temperature is the sampling temperature for reaction calls.
const Temperature = 0.4

// DefaultMIMEType is assumed when the upload does not declare one.
const DefaultMIMEType = "image/png"

// Persona is one audience segment in the request.
type Persona struct {
	Key         string
	Label       string
	Description string
}

// DefaultPersonas fill any key missing from the caller's persona JSON.
var DefaultPersonas = []Persona{
	{"hcp_early", "HCP (Early Adopter)", "Dermatologist, 8 years experience, early adopter, comfortable with new therapies, values mechanism and emerging evidence."},
	{"hcp_conservative", "HCP (Conservative)", "Dermatologist, 15 years experience, conservative prescriber, skeptical of new drugs, guideline-driven, high safety/evidence threshold."},
	{"patient_new", "Patient (Newly Diagnosed)", "Patient newly diagnosed with microcystic lymphatic malformation, anxious, low-to-medium health literacy, wants reassurance and next steps."},
	{"patient_long", "Patient (Long-Term)", "Patient living with microcystic lymphatic malformation for 10+ years, has tried treatments, skeptical of generic education, wants specific actionable info."},
}

var errNotObject = errors.New("personas must be a JSON object")

// Reactor runs creative reaction requests. It touches neither memory
// nor metrics.
type Reactor struct {
	logger *slog.Logger
	llm    llm.Client
	model  string
}

// NewReactor creates a Reactor that calls model, which must accept
// image input.
func NewReactor(logger *slog.Logger, client llm.Client, model string) *Reactor {
	return &Reactor{
		logger: logger.With("component", "creative"),
		llm:    client,
		model:  model,
	}
}

type personaEntry struct {
	Label   string `json:"label"`
	Persona any    `json:"persona"`
}

type instructions struct {
	Task           string         `json:"task"`
	Headline       string         `json:"headline"`
	Personas       []personaEntry `json:"personas"`
	RequiredOutput requiredOutput `json:"required_output"`
}

type requiredOutput struct {
	PerPersona         map[string]string `json:"per_persona"`
	SegmentDifferences []string          `json:"segment_differences"`
}

// React returns the model's reaction report. Every outcome is a
// string: malformed personas and model failures are described rather
// than returned as errors, and a reply that is not JSON is returned as
// the model wrote it.
func (r *Reactor) React(ctx context.Context, headline, personasJSON string, image []byte, mime string) string {
	personas, err := parsePersonas(personasJSON)
	if err != nil {
		r.logger.Warn("invalid personas", "error", err)
		return "Invalid personas_json. Must be JSON. Error: " + err.Error()
	}
	if mime == "" {
		mime = DefaultMIMEType
	}

	payload, err := json.Marshal(buildInstructions(headline, personas))
	if err != nil {
		return "LLM call failed: " + err.Error()
	}

	resp, err := r.llm.Chat(ctx, llm.Request{
		Model: r.model,
		Messages: []llm.Message{
			llm.SystemMessage(prompts.CreativeSystemPrompt),
			llm.UserMessage(prompts.CreativeUserText+"\n"+string(payload),
				llm.Image{MIMEType: mime, Data: image}),
		},
		Temperature: llm.Temperature(Temperature),
	})
	if err != nil {
		r.logger.Error("creative reaction failed", "error", err)
		return "LLM call failed: " + err.Error()
	}
	r.logger.Info("creative reaction generated",
		"image_bytes", len(image),
		"tokens", resp.TotalTokens(),
	)
	return Canonicalize(resp.Message.Content)
}

func parsePersonas(raw string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return m, nil
}

func buildInstructions(headline string, personas map[string]any) instructions {
	entries := make([]personaEntry, 0, len(DefaultPersonas))
	for _, p := range DefaultPersonas {
		desc, ok := personas[p.Key]
		if !ok {
			desc = p.Description
		}
		entries = append(entries, personaEntry{Label: p.Label, Persona: desc})
	}
	return instructions{
		Task:     "creative_reaction_testing",
		Headline: headline,
		Personas: entries,
		RequiredOutput: requiredOutput{
			PerPersona: map[string]string{
				"reaction_label":  "one of: resonate, confuse, skepticism",
				"why":             "3-6 bullets tied to image/copy cues",
				"questions_next":  "2-4 bullets",
				"suggested_edits": "2-4 bullets",
			},
			SegmentDifferences: []string{
				"Compare HCP early adopter vs conservative for this creative",
				"Compare newly diagnosed vs long-term patient for this creative",
			},
		},
	}
}

// Canonicalize re-encodes a JSON reply with sorted keys, two-space
// indentation and no HTML escaping. Anything that is not JSON is
// returned unchanged. Canonicalize is idempotent.
func Canonicalize(raw string) string {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return raw
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

