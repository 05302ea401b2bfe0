package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/agile-athletes/lrps/internal/attention"
	"github.com/agile-athletes/lrps/internal/queue/pubsub"
	"github.com/agile-athletes/lrps/internal/runtime"
	"github.com/agile-athletes/lrps/internal/workflow"
)

const fenced = "Sure.\n```json\n" +
	`{"attentions":[{"id":1,"name":"Root","value":"R"},{"id":2,"parent_id":1,"name":"Child","value":"C","weight":0.4}]}` +
	"\n```"

func TestRenderInput(t *testing.T) {
	cases := []struct {
		name string
		in   string
		opts renderOptions
		want string
	}{
		{"fenced reply", fenced, renderOptions{}, "# Root\nR\n\n## Child\nC\n"},
		{"bare object", `{"attentions":[{"id":1,"name":"Root","value":"R"}]}`, renderOptions{}, "# Root\nR\n"},
		{"bare list", `[{"id":3,"name":"A","value":"a"},{"id":4,"parent_id":3,"name":"B","value":"b"}]`, renderOptions{}, "# A\na\n\n## B\nb\n"},
		{"single attention", `{"id":9,"name":"Solo","value":"s"}`, renderOptions{}, "# Solo\ns\n"},
		{"html", fenced, renderOptions{html: true}, "<h1>Root</h1>\n<p>R</p>\n<h2>Child</h2>\n<p>C</p>\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := renderInput(strings.NewReader(tc.in), &out, tc.opts, zap.NewNop()); err != nil {
				t.Fatalf("renderInput: %v", err)
			}
			if diff := cmp.Diff(tc.want, out.String()); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenderChildren(t *testing.T) {
	var out bytes.Buffer
	if err := renderInput(strings.NewReader(fenced), &out, renderOptions{children: "Root"}, zap.NewNop()); err != nil {
		t.Fatalf("renderInput: %v", err)
	}
	var kids []attention.Child
	if err := json.Unmarshal(out.Bytes(), &kids); err != nil {
		t.Fatalf("decode children: %v", err)
	}
	if len(kids) != 1 || kids[0].Name != "Child" || kids[0].Weight != 0.4 {
		t.Fatalf("unexpected children %+v", kids)
	}
}

func TestRenderRejectsPlainText(t *testing.T) {
	err := renderInput(strings.NewReader("no json here"), &bytes.Buffer{}, renderOptions{}, zap.NewNop())
	if err == nil {
		t.Fatal("expected malformed input error")
	}
}

func TestTokenCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"general":{"jwt_secret":"cli-secret"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	root := rootCMD()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"token", "-c", path, "--user", "ops@example.com", "--session", "s-42"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	claims, err := runtime.ParseJWT(strings.TrimSpace(out.String()), []byte("cli-secret"))
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if runtime.SessionID(claims) != "s-42" || claims["user_id"] != "ops@example.com" {
		t.Fatalf("unexpected claims %v", claims)
	}
}

func TestSuggestCommand(t *testing.T) {
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) != 1 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		prompt = req.Messages[0].Content
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "test",
			"choices": []any{map[string]any{"message": map[string]any{"content": fenced}, "finish_reason": "stop"}},
		})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"llm":{"api_key":"k","base_url":"` + srv.URL + `"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	root := rootCMD()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"suggest", "-c", path, "Operators leave within a year"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(prompt, "Operators leave within a year") {
		t.Fatalf("issue missing from prompt %q", prompt)
	}
	if got, want := out.String(), "# Root\nR\n\n## Child\nC\n"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestCommandTree(t *testing.T) {
	root := rootCMD()
	for _, path := range [][]string{
		{"serve"}, {"render"}, {"suggest"}, {"token"}, {"listen"},
		{"workflow", "get"}, {"workflow", "backup"}, {"workflow", "restore"},
		{"workflow", "prompt"}, {"workflow", "set-prompt"}, {"workflow", "activate"}, {"workflow", "delete"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Fatalf("command %v not registered: %v", path, err)
		}
	}
}

func TestWriteDocumentYAML(t *testing.T) {
	doc := workflow.Workflow{"name": "Issues", "active": true}
	var out bytes.Buffer
	if err := writeDocument(&out, doc, "yaml"); err != nil {
		t.Fatalf("writeDocument: %v", err)
	}
	if got, want := out.String(), "active: true\nname: Issues\n"; got != want {
		t.Fatalf("yaml = %q, want %q", got, want)
	}
	if err := writeDocument(&out, doc, "toml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestPrintRendered(t *testing.T) {
	data, err := json.Marshal(pubsub.RenderedPayload{
		Markdown: "ignored",
		Attentions: []attention.Item{
			{ID: 1, Name: "Root", Value: attention.TextValue("R")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	env := pubsub.Envelope{EventID: "e1", EventType: pubsub.EventAttentionsRendered, OccurredAt: time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC), Data: data}
	var out bytes.Buffer
	if err := printRendered(&out, false, zap.NewNop())(context.Background(), "attentions/s1", env); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got, want := out.String(), "--- attentions/s1 15:04:05\n# Root\nR\n"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}
