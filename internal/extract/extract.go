// Package extract isolates the fenced JSON block that language models embed
// in free-form replies and decodes it into a generic mapping.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// ErrMalformedInput is returned when the text carries no JSON block or the
// block does not decode.
var ErrMalformedInput = errors.New("malformed input")

// jsonBlock captures the object between ```json and the closing fence.
var jsonBlock = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// Source is anything exposing the raw reply text.
type Source interface {
	Text() string
}

// Payload adapts a decoded message mapping carrying a "text" field.
type Payload map[string]any

// Text returns the "text" field, or "" when it is missing or not a string.
func (p Payload) Text() string {
	s, _ := p["text"].(string)
	return s
}

// Extract parses the first fenced JSON block found in src.
func Extract(src Source) (map[string]any, error) {
	if src == nil {
		return ExtractText("")
	}
	return ExtractText(src.Text())
}

// ExtractText parses the first fenced JSON block found in text.
func ExtractText(text string) (map[string]any, error) {
	m := jsonBlock.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("%w: no JSON block found in text", ErrMalformedInput)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(m[1]), &out); err != nil {
		return nil, fmt.Errorf("%w: parse JSON block: %v", ErrMalformedInput, err)
	}
	return out, nil
}
