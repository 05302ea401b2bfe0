package attention

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"

	"github.com/agile-athletes/lrps/internal/helpers"
)

var markdown = goldmark.New()

// ToHTML renders ToMarkdown through goldmark and sanitizes the result so it
// can be injected into the web UI.
func (c *Converter) ToHTML() (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(c.ToMarkdown()), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return helpers.SanitizeDocument(buf.String()), nil
}
