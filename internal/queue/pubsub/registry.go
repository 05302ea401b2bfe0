package pubsub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

type schemaKey struct {
	eventType string
	version   string
}

// SchemaRegistry stores compiled JSON Schemas keyed by event type and payload version.
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[schemaKey]*jsonschema.Schema
}

// NewSchemaRegistry constructs an empty registry instance.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{schemas: make(map[schemaKey]*jsonschema.Schema)}
}

// Register compiles and stores a JSON schema for the given event type and version.
func (r *SchemaRegistry) Register(eventType, version string, schemaBytes []byte) error {
	if eventType == "" || version == "" {
		return fmt.Errorf("event type and version must be provided")
	}
	if len(schemaBytes) == 0 {
		return fmt.Errorf("schema for %s %s is empty", eventType, version)
	}

	url := fmt.Sprintf("mem://lrps/%s/%s.json", eventType, version)
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(url, bytes.NewReader(schemaBytes)); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	r.mu.Lock()
	r.schemas[schemaKey{eventType, version}] = compiled
	r.mu.Unlock()
	return nil
}

// Has reports whether a schema is registered for eventType and version.
func (r *SchemaRegistry) Has(eventType, version string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.schemas[schemaKey{eventType, version}]
	return ok
}

// Validate checks payload bytes against the registered schema for event type/version.
func (r *SchemaRegistry) Validate(eventType, version string, payload []byte) error {
	r.mu.RLock()
	schema, ok := r.schemas[schemaKey{eventType, version}]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no schema registered for event %q version %q", eventType, version)
	}
	if len(payload) == 0 {
		return fmt.Errorf("payload is empty")
	}

	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("payload validation failed: %w", err)
	}
	return nil
}

// DefaultRegistry returns a registry holding every built-in event schema.
func DefaultRegistry() (*SchemaRegistry, error) {
	reg := NewSchemaRegistry()
	for _, def := range definitions {
		if err := reg.Register(def.EventType, def.Version, def.Schema); err != nil {
			return nil, fmt.Errorf("register %s %s: %w", def.EventType, def.Version, err)
		}
	}
	return reg, nil
}
