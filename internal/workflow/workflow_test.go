package workflow

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sample = `{
  "id": "uRpoEeLfCk4P9hoG",
  "name": "Select Workflow",
  "active": false,
  "versionId": "v-1",
  "meta": {"instanceId": "abc"},
  "nodes": [
    {"id": "n1", "name": "Webhook", "type": "n8n-nodes-base.webhook", "webhookId": "w-1", "parameters": {"path": "select-workflow"}},
    {"id": "n2", "name": "Basic LLM Chain", "type": "@n8n/n8n-nodes-langchain.chainLlm", "parameters": {"text": "old prompt"}},
    {"id": "n3", "name": "Respond", "type": "n8n-nodes-base.respondToWebhook"}
  ],
  "connections": {"Webhook": {"main": [[{"node": "Basic LLM Chain"}]]}},
  "settings": {"executionOrder": "v1"},
  "staticData": null
}`

func load(t *testing.T) Workflow {
	t.Helper()
	var wf Workflow
	if err := json.Unmarshal([]byte(sample), &wf); err != nil {
		t.Fatalf("decode sample: %v", err)
	}
	return wf
}

func TestStripForPut(t *testing.T) {
	t.Parallel()
	wf := load(t)
	got, err := StripForPut(wf)
	if err != nil {
		t.Fatalf("StripForPut: %v", err)
	}
	for _, k := range []string{"id", "active", "versionId", "meta"} {
		if _, ok := got[k]; ok {
			t.Fatalf("key %q should be stripped", k)
		}
	}
	if _, ok := got["staticData"]; !ok {
		t.Fatalf("staticData should be kept even when null")
	}
	for _, n := range nodes(got) {
		if _, ok := n["id"]; ok {
			t.Fatalf("node id should be stripped: %v", n)
		}
		if _, ok := n["webhookId"]; ok {
			t.Fatalf("webhookId should be stripped: %v", n)
		}
	}
	// the input is untouched
	if nodes(wf)[0]["id"] != "n1" || nodes(wf)[0]["webhookId"] != "w-1" {
		t.Fatalf("StripForPut mutated its input")
	}
}

func TestPromptAccessors(t *testing.T) {
	t.Parallel()
	wf := load(t)
	if p, ok := WebhookPath(wf); !ok || p != "select-workflow" {
		t.Fatalf("WebhookPath() = %q, %v", p, ok)
	}
	if p, ok := Prompt(wf, DefaultPromptNode); !ok || p != "old prompt" {
		t.Fatalf("Prompt() = %q, %v", p, ok)
	}
	if !SetPrompt(wf, DefaultPromptNode, "new prompt") {
		t.Fatal("SetPrompt() should find the node")
	}
	if p, _ := Prompt(wf, DefaultPromptNode); p != "new prompt" {
		t.Fatalf("prompt not updated, got %q", p)
	}
	if !SetPrompt(wf, "Respond", "added") {
		t.Fatal("SetPrompt() should create parameters")
	}
	if p, _ := Prompt(wf, "Respond"); p != "added" {
		t.Fatalf("prompt not added, got %q", p)
	}
	if SetPrompt(wf, "Missing", "x") {
		t.Fatal("SetPrompt() on a missing node should report false")
	}
	if _, ok := WebhookPath(Workflow{}); ok {
		t.Fatal("empty workflow has no webhook path")
	}
}

func TestFileRoundTrip(t *testing.T) {
	t.Parallel()
	wf := load(t)
	path := filepath.Join(t.TempDir(), "nested", "wf.json")
	if err := WriteFile(path, wf); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if diff := cmp.Diff(wf, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}
