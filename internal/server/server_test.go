package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agile-athletes/lrps/config"
	"github.com/agile-athletes/lrps/internal/attention"
	"github.com/agile-athletes/lrps/internal/httpclient"
	"github.com/agile-athletes/lrps/internal/llm"
	"github.com/agile-athletes/lrps/internal/workflow"
)

const reply = "Here is the plan:\n```json\n" +
	`{"attentions":[{"id":1,"parent_id":null,"name":"Root","value":"R","weight":0.9},{"id":2,"parent_id":1,"name":"Child","value":"C","weight":0.5}]}` +
	"\n```\n"

type fakeLLM struct {
	content string
	err     error
	got     []llm.Message
}

func (f *fakeLLM) Complete(_ context.Context, msgs []llm.Message) (llm.Response, error) {
	f.got = msgs
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Content: f.content, FinishReason: "stop"}, nil
}

type publishCall struct {
	topic, eventType, session string
	payload                   interface{}
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []publishCall
}

func (f *fakePublisher) PublishRaw(_ context.Context, topic, eventType, _, session string, payload interface{}) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, publishCall{topic, eventType, session, payload})
	return 1, nil
}

type fakeWorkflows struct {
	wfs      map[string]workflow.Workflow
	prompted map[string]string
}

func (f *fakeWorkflows) Get(_ context.Context, id string) (workflow.Workflow, error) {
	wf, ok := f.wfs[id]
	if !ok {
		return nil, &httpclient.StatusError{Method: http.MethodGet, URL: "/workflows/" + id, Code: http.StatusNotFound}
	}
	return wf, nil
}

func (f *fakeWorkflows) Update(_ context.Context, id string, wf workflow.Workflow) (workflow.Workflow, error) {
	f.wfs[id] = wf
	return wf, nil
}

func (f *fakeWorkflows) UpdatePrompt(_ context.Context, id, node, text string, _ bool) (workflow.Workflow, error) {
	if _, ok := f.wfs[id]; !ok {
		return nil, errors.New("connection reset")
	}
	f.prompted[id] = text
	return f.wfs[id], nil
}

type fixture struct {
	e         *echo.Echo
	llm       *fakeLLM
	publisher *fakePublisher
	flows     *fakeWorkflows
	backupDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.General.JWTSecret = "test-secret"
	cfg.General.Debug = true
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Auth = config.AuthConfig{Users: map[string]string{"ops@example.com": string(hash)}}.Normalize()
	cfg.Workflow = config.WorkflowConfig{}.Normalize()
	cfg.Telemetry = config.TelemetryConfig{Enabled: true}.Normalize()

	f := &fixture{
		llm:       &fakeLLM{content: reply},
		publisher: &fakePublisher{},
		flows: &fakeWorkflows{
			wfs: map[string]workflow.Workflow{"wf1": {
				"name": "Select Workflow",
				"nodes": []any{
					map[string]any{"name": "Basic LLM Chain", "parameters": map[string]any{"text": "old"}},
				},
			}},
			prompted: map[string]string{},
		},
		backupDir: t.TempDir(),
	}
	f.e, err = New(cfg, Deps{
		LLM:       f.llm,
		Publisher: f.publisher,
		Workflows: f.flows,
		Backups:   &workflow.Backuper{Store: f.flows, Dir: f.backupDir},
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) login(t *testing.T) TokenResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"Ops@Example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tok TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.Token)
	require.NotEmpty(t, tok.SessionID)
	return tok
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lrps_http_requests_total")
}

func TestCORSAllowsCredentialedOrigin(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/attentions/render", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "true", rec.Header().Get(echo.HeaderAccessControlAllowCredentials))
}

func TestNewRejectsWildcardOrigin(t *testing.T) {
	cfg := &config.Config{}
	cfg.General.JWTSecret = "test-secret"
	cfg.Server.AllowedOrigins = []string{"*"}
	_, err := New(cfg, Deps{LLM: &fakeLLM{content: reply}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowed_origins")
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	rec := f.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"ops@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid credentials"}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"nobody@example.com","password":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/auth/logout", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/attentions/render", "/api/issues/suggest"} {
		rec := f.do(t, http.MethodPost, path, "", `{}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestRenderAttentions(t *testing.T) {
	f := newFixture(t)
	tok := f.login(t)

	rec := f.do(t, http.MethodPost, "/api/attentions/render", tok.Token, `{"text":`+jsonString(reply)+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp RenderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "# Root\nR\n\n## Child\nC", resp.Markdown)
	assert.Contains(t, resp.HTML, "<h2>Child</h2>")
	assert.Len(t, resp.Attentions, 2)

	rec = f.do(t, http.MethodPost, "/api/attentions/render", tok.Token, `{"data":{"attentions":[{"id":7,"name":"Only","value":{"k":1}}]}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "# Only\n{\"k\":1}", resp.Markdown)

	rec = f.do(t, http.MethodPost, "/api/attentions/render", tok.Token, `{"text":"no fenced block here"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/attentions/render", tok.Token, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChildren(t *testing.T) {
	f := newFixture(t)
	tok := f.login(t)

	rec := f.do(t, http.MethodPost, "/api/attentions/children", tok.Token, `{"name":"Root","text":`+jsonString(reply)+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var kids []attention.Child
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &kids))
	require.Len(t, kids, 1)
	assert.Equal(t, 2, kids[0].ID)
	assert.Equal(t, 1, kids[0].ParentID)
	assert.Equal(t, 0.5, kids[0].Weight)

	rec = f.do(t, http.MethodPost, "/api/attentions/children", tok.Token, `{"name":"Missing","text":`+jsonString(reply)+`}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/attentions/children", tok.Token, `{"text":`+jsonString(reply)+`}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggestPublishesToSession(t *testing.T) {
	f := newFixture(t)
	tok := f.login(t)

	rec := f.do(t, http.MethodPost, "/api/issues/suggest", tok.Token, `{"text":"We lack operators for the new plant."}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp SuggestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "# Root\nR\n\n## Child\nC", resp.Markdown)
	assert.Equal(t, reply, resp.Raw)

	require.Len(t, f.llm.got, 1)
	assert.Contains(t, f.llm.got[0].Content, "We lack operators for the new plant.")

	require.Len(t, f.publisher.calls, 1)
	call := f.publisher.calls[0]
	assert.Equal(t, "attentions/"+tok.SessionID, call.topic)
	assert.Equal(t, "attentions.rendered", call.eventType)
	assert.Equal(t, tok.SessionID, call.session)
}

func TestSuggestFailures(t *testing.T) {
	f := newFixture(t)
	tok := f.login(t)

	f.llm.content = "I cannot help with that."
	rec := f.do(t, http.MethodPost, "/api/issues/suggest", tok.Token, `{"text":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	f.llm.err = errors.New("timeout")
	rec = f.do(t, http.MethodPost, "/api/issues/suggest", tok.Token, `{"text":"x"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/issues/suggest", tok.Token, `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.publisher.calls)
}

func TestValidateKeepsConversation(t *testing.T) {
	f := newFixture(t)
	tok := f.login(t)
	f.llm.content = "The issue is well formed."

	body := `{"text":"Operators <b>leave</b> within a year.","history":[{"role":"user","content":"earlier"},{"role":"assistant","content":"answer"}]}`
	rec := f.do(t, http.MethodPost, "/api/issues/validate", tok.Token, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp ValidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "The issue is well formed.", resp.Reply)
	require.Len(t, resp.Messages, 4)
	assert.Equal(t, "assistant", resp.Messages[3].Role)

	require.Len(t, f.llm.got, 3)
	assert.Contains(t, f.llm.got[2].Content, "Operators leave within a year.")
	assert.Contains(t, f.llm.got[2].Content, "Long Range Planning Service")
}

func TestWorkflowPrompt(t *testing.T) {
	f := newFixture(t)
	tok := f.login(t)

	rec := f.do(t, http.MethodGet, "/api/workflows/wf1/prompt", tok.Token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"workflow_id":"wf1","node":"Basic LLM Chain","prompt":"old"}`, rec.Body.String())

	rec = f.do(t, http.MethodPut, "/api/workflows/wf1/prompt", tok.Token, `{"text":"new","activate":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "new", f.flows.prompted["wf1"])

	rec = f.do(t, http.MethodGet, "/api/workflows/nope/prompt", tok.Token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/workflows/nope/prompt", tok.Token, `{"text":"x"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/workflows/wf1/backup", tok.Token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var backup BackupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &backup))
	assert.FileExists(t, backup.Path)
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
