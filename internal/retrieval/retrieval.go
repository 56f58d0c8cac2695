// Package retrieval searches the passage corpus and assembles the
// context bundle that grounds an investigation.
//
// Each backend implements [Searcher]. The [Manager] wraps the configured
// backend, removes duplicate passages and renders the context text the
// investigation prompt embeds.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultTopK is how many passages an investigation uses.
const DefaultTopK = 3

// Metadata describes where a passage came from.
type Metadata struct {
	Filename string `json:"filename"`
	Title    string `json:"title"`
	// PageNumbers is a comma-separated list such as "1,2,5". Optional.
	PageNumbers string `json:"page_numbers,omitempty"`
}

// Passage is one search hit.
type Passage struct {
	ID       string   `json:"id,omitempty"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score,omitempty"`
}

// Searcher is implemented by every passage backend. Results are ranked
// best first and hold at most limit passages.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Passage, error)
}

// FormatPages normalizes a page list: "1,2,5" and " 1 , 2,5 " both
// become "p. 1, 2, 5". An empty list renders as "".
func FormatPages(pages string) string {
	var parts []string
	for _, p := range strings.Split(pages, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "p. " + strings.Join(parts, ", ")
}

// Source renders the passage origin as "filename - p. 1, 2".
func (p Passage) Source() string {
	var parts []string
	if p.Metadata.Filename != "" {
		parts = append(parts, p.Metadata.Filename)
	}
	if pages := FormatPages(p.Metadata.PageNumbers); pages != "" {
		parts = append(parts, pages)
	}
	return strings.Join(parts, " - ")
}

// Render formats one passage for the investigation context.
func (p Passage) Render() string {
	var b strings.Builder
	b.WriteString(p.Text)
	b.WriteString("\nSource: ")
	b.WriteString(p.Source())
	if p.Metadata.Title != "" {
		b.WriteString("\nTitle: ")
		b.WriteString(p.Metadata.Title)
	}
	return b.String()
}

// BuildContext joins rendered passages with blank lines.
func BuildContext(passages []Passage) string {
	rendered := make([]string, len(passages))
	for i, p := range passages {
		rendered[i] = p.Render()
	}
	return strings.Join(rendered, "\n\n")
}

// Dedupe drops passages whose filename, title and text repeat an
// earlier one, keeping rank order.
func Dedupe(passages []Passage) []Passage {
	type key struct{ filename, title, text string }
	seen := make(map[key]bool, len(passages))
	out := passages[:0:0]
	for _, p := range passages {
		k := key{p.Metadata.Filename, p.Metadata.Title, strings.TrimSpace(p.Text)}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return out
}

// Manager runs searches against the configured backend.
type Manager struct {
	searcher Searcher
	topK     int
	logger   *slog.Logger
}

// NewManager wraps searcher. topK <= 0 uses DefaultTopK.
func NewManager(searcher Searcher, topK int, logger *slog.Logger) *Manager {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Manager{
		searcher: searcher,
		topK:     topK,
		logger:   logger.With("component", "retrieval"),
	}
}

// overfetch is how many candidates are requested per kept passage, so
// that duplicates removed by Dedupe do not leave fewer than topK.
const overfetch = 2

// Search returns up to topK distinct passages for query.
func (m *Manager) Search(ctx context.Context, query string) ([]Passage, error) {
	if m.searcher == nil {
		return nil, nil
	}
	found, err := m.searcher.Search(ctx, query, overfetch*m.topK)
	if err != nil {
		return nil, fmt.Errorf("search passages: %w", err)
	}
	passages := Dedupe(found)
	if len(passages) > m.topK {
		passages = passages[:m.topK]
	}
	m.logger.Debug("search completed", "found", len(found), "kept", len(passages))
	return passages, nil
}

// Context searches and renders the result. No matches yield an empty
// context, not an error.
func (m *Manager) Context(ctx context.Context, query string) (string, []Passage, error) {
	passages, err := m.Search(ctx, query)
	if err != nil {
		return "", nil, err
	}
	return BuildContext(passages), passages, nil
}
