package pubsub

import "github.com/agile-athletes/lrps/internal/attention"

const (
	// EventAttentionsRendered is published after an attention tree was rendered.
	EventAttentionsRendered = "attentions.rendered"
	// VersionV1 is the only payload version so far.
	VersionV1 = "v1"
)

// RenderedPayload is the data of an attentions.rendered event.
type RenderedPayload struct {
	Markdown   string           `json:"markdown"`
	HTML       string           `json:"html,omitempty"`
	Attentions []attention.Item `json:"attentions"`
}

// Definition describes a schema entry managed by the registry.
type Definition struct {
	EventType string
	Version   string
	Schema    []byte
}

var definitions = []Definition{
	{
		EventType: EventAttentionsRendered,
		Version:   VersionV1,
		Schema: []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["markdown", "attentions"],
  "properties": {
    "markdown": {"type": "string"},
    "html": {"type": "string"},
    "attentions": {
      "type": "array",
      "items": {"$ref": "#/definitions/attention"}
    }
  },
  "additionalProperties": true,
  "definitions": {
    "attention": {
      "type": "object",
      "required": ["id", "name", "value"],
      "properties": {
        "id": {"type": "integer"},
        "parent_id": {"type": ["integer", "null"]},
        "name": {"type": "string"}
      }
    }
  }
}`),
	},
}
