// Package attention rebuilds the hierarchy encoded in a flat list of
// attention items and renders it as Markdown.
package attention

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Item is one flat attention record as returned by the model.
type Item struct {
	ID       int    `json:"id"`
	ParentID *int   `json:"parent_id"`
	Name     string `json:"name"`
	Value    Value  `json:"value"`
	Weight   any    `json:"weight,omitempty"`
}

// Value holds either plain text or a structured payload.
type Value struct {
	text       string
	structured any
	isText     bool
}

// TextValue wraps a plain string.
func TextValue(s string) Value { return Value{text: s, isText: true} }

// StructuredValue wraps a decoded JSON object, list, number or bool.
func StructuredValue(v any) Value {
	if s, ok := v.(string); ok {
		return TextValue(s)
	}
	return Value{structured: v}
}

// IsText reports whether the value is plain text.
func (v Value) IsText() bool { return v.isText }

// IsZero reports whether the value was absent.
func (v Value) IsZero() bool { return !v.isText && v.structured == nil }

// String renders text as-is and structured values as compact JSON.
func (v Value) String() string {
	if v.isText {
		return v.text
	}
	if v.structured == nil {
		return ""
	}
	b, err := json.Marshal(v.structured)
	if err != nil {
		return fmt.Sprint(v.structured)
	}
	return string(b)
}

// MarshalJSON emits the value in its original shape.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.isText {
		return json.Marshal(v.text)
	}
	return json.Marshal(v.structured)
}

// UnmarshalJSON accepts a string or any other JSON value.
func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*v = StructuredValue(raw)
	return nil
}

// Valid reports whether a raw attention carries id, name and value.
func Valid(raw map[string]any) bool {
	if raw == nil {
		return false
	}
	for _, k := range []string{"id", "name", "value"} {
		if _, ok := raw[k]; !ok {
			return false
		}
	}
	return true
}

// ParseItem converts a decoded JSON object into an Item. It fails only when
// the id is missing or not an integer.
func ParseItem(raw map[string]any) (Item, error) {
	id, ok := toInt(raw["id"])
	if !ok {
		return Item{}, fmt.Errorf("attention id %v is not an integer", raw["id"])
	}
	it := Item{ID: id, Weight: raw["weight"]}
	if p, ok := toInt(raw["parent_id"]); ok {
		it.ParentID = &p
	}
	switch n := raw["name"].(type) {
	case string:
		it.Name = n
	case nil:
	default:
		it.Name = fmt.Sprint(n)
	}
	if v, ok := raw["value"]; ok {
		it.Value = StructuredValue(v)
	}
	return it, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt || n >= math.MaxInt {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
