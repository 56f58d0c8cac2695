package agent

import (
	"fmt"
	"strings"

	"golang.org/x/net/html/charset"
)

// DecodeAttachment converts uploaded file bytes to text. The encoding
// is taken from a byte order mark or an HTML meta declaration when
// present; otherwise valid UTF-8 is kept and anything else is read as
// windows-1252.
func DecodeAttachment(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	enc, name, _ := charset.DetermineEncoding(data, "text/plain")
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode attachment as %s: %w", name, err)
	}
	return strings.TrimPrefix(string(out), "\ufeff"), nil
}
