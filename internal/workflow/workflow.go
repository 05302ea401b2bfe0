// Package workflow manages prompts that live inside n8n workflows: it reads,
// rewrites and stores workflow JSON through the n8n public REST API.
package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Workflow is the raw workflow document as returned by n8n.
type Workflow map[string]any

const (
	// DefaultPromptNode is the node whose parameters.text holds the prompt.
	DefaultPromptNode = "Basic LLM Chain"
	webhookNodeName   = "Webhook"
	webhookNodeType   = "n8n-nodes-base.webhook"
)

// putKeys are the only top-level properties n8n accepts on update.
var putKeys = []string{"name", "nodes", "connections", "settings", "staticData"}

// StripForPut returns a deep copy of wf without the properties n8n manages
// itself: everything outside putKeys, node ids and webhook ids.
func StripForPut(wf Workflow) (Workflow, error) {
	cp, err := deepCopy(wf)
	if err != nil {
		return nil, err
	}
	out := make(Workflow, len(putKeys))
	for _, k := range putKeys {
		if v, ok := cp[k]; ok {
			out[k] = v
		}
	}
	for _, node := range nodes(out) {
		delete(node, "id")
		if node["type"] == webhookNodeType {
			delete(node, "webhookId")
		}
	}
	return out, nil
}

// WebhookPath returns parameters.path of the node named "Webhook".
func WebhookPath(wf Workflow) (string, bool) {
	return nodeParam(wf, webhookNodeName, "path")
}

// Prompt returns parameters.text of the named node.
func Prompt(wf Workflow, node string) (string, bool) {
	return nodeParam(wf, node, "text")
}

// SetPrompt writes parameters.text on the named node. It reports false when
// no such node exists.
func SetPrompt(wf Workflow, node, text string) bool {
	for _, n := range nodes(wf) {
		if n["name"] != node {
			continue
		}
		params, ok := n["parameters"].(map[string]any)
		if !ok {
			params = map[string]any{}
			n["parameters"] = params
		}
		params["text"] = text
		return true
	}
	return false
}

// ReadFile loads a workflow stored as JSON.
func ReadFile(path string) (Workflow, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var wf Workflow
	if err := json.Unmarshal(b, &wf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return wf, nil
}

// WriteFile stores wf as two-space indented JSON, creating parent dirs.
func WriteFile(path string, wf Workflow) error {
	b, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func nodeParam(wf Workflow, node, key string) (string, bool) {
	for _, n := range nodes(wf) {
		if n["name"] != node {
			continue
		}
		params, _ := n["parameters"].(map[string]any)
		s, ok := params[key].(string)
		return s, ok
	}
	return "", false
}

func nodes(wf Workflow) []map[string]any {
	list, _ := wf["nodes"].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if n, ok := v.(map[string]any); ok {
			out = append(out, n)
		}
	}
	return out
}

func deepCopy(wf Workflow) (Workflow, error) {
	b, err := json.Marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("copy workflow: %w", err)
	}
	var out Workflow
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("copy workflow: %w", err)
	}
	return out, nil
}
