package email

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/yuin/goldmark"
)

// Notification is one outbound message. Body is markdown.
type Notification struct {
	From    string
	To      []string
	Bcc     []string
	Subject string
	Body    string
}

// ComposeMessage renders n as an RFC 5322 message whose body is a
// multipart/alternative of plain text and HTML.
func ComposeMessage(n Notification) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message-id: %w", err)
	}
	h.SetSubject(n.Subject)

	from, err := mail.ParseAddress(n.From)
	if err != nil {
		return nil, fmt.Errorf("parse from address %q: %w", n.From, err)
	}
	h.SetAddressList("From", []*mail.Address{from})

	to, err := parseAddresses(n.To)
	if err != nil {
		return nil, fmt.Errorf("parse to addresses: %w", err)
	}
	if len(to) == 0 {
		return nil, fmt.Errorf("no recipients")
	}
	h.SetAddressList("To", to)

	html, err := markdownToHTML(n.Body)
	if err != nil {
		return nil, fmt.Errorf("render markdown to HTML: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create mail writer: %w", err)
	}
	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("create inline writer: %w", err)
	}

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=utf-8", markdownToPlain(n.Body)},
		{"text/html; charset=utf-8", html},
	}
	for _, p := range parts {
		var ph mail.InlineHeader
		ph.Set("Content-Type", p.contentType)
		pw, err := tw.CreatePart(ph)
		if err != nil {
			return nil, fmt.Errorf("create %s part: %w", p.contentType, err)
		}
		if _, err := io.WriteString(pw, p.body); err != nil {
			return nil, fmt.Errorf("write %s part: %w", p.contentType, err)
		}
		if err := pw.Close(); err != nil {
			return nil, fmt.Errorf("close %s part: %w", p.contentType, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close inline writer: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close mail writer: %w", err)
	}
	return buf.Bytes(), nil
}

// parseAddresses accepts entries that may themselves be comma-separated
// lists, as models often return "a@x.com, b@y.com" in a single field.
func parseAddresses(entries []string) ([]*mail.Address, error) {
	var out []*mail.Address
	for _, e := range entries {
		if strings.TrimSpace(e) == "" {
			continue
		}
		list, err := mail.ParseAddressList(e)
		if err != nil {
			return nil, fmt.Errorf("parse address %q: %w", e, err)
		}
		out = append(out, list...)
	}
	return out, nil
}

func markdownToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return `<!DOCTYPE html>
<html><head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; font-size: 14px; line-height: 1.5;">
` + buf.String() + `
</body></html>`, nil
}

var (
	mdBold       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdItalic     = regexp.MustCompile(`\*(.+?)\*`)
	mdLink       = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	mdHeading    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdInlineCode = regexp.MustCompile("`([^`]+)`")
)

// markdownToPlain strips the inline markdown a model typically emits in
// notification bodies.
func markdownToPlain(md string) string {
	s := mdLink.ReplaceAllString(md, "$1 ($2)")
	s = mdBold.ReplaceAllString(s, "$1")
	s = mdItalic.ReplaceAllString(s, "$1")
	s = mdInlineCode.ReplaceAllString(s, "$1")
	s = mdHeading.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
