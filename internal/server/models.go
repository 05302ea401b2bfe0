package server

import (
	"github.com/agile-athletes/lrps/internal/attention"
	"github.com/agile-athletes/lrps/internal/llm"
)

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token and the session it is bound to.
type TokenResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
}

// AttentionRequest carries either a model reply with a fenced JSON block in
// Text or an already decoded object in Data. Data wins when both are set.
type AttentionRequest struct {
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
	Name string         `json:"name,omitempty"`
}

// RenderResponse is a rendered attention tree.
type RenderResponse struct {
	Markdown   string           `json:"markdown"`
	HTML       string           `json:"html"`
	Attentions []attention.Item `json:"attentions"`
}

// SuggestRequest is the planning issue typed by the user.
type SuggestRequest struct {
	Text string `json:"text"`
}

// SuggestResponse returns the rendered suggestion with the raw model reply.
type SuggestResponse struct {
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
	Raw      string `json:"raw"`
}

// ValidateRequest asks the model to check how an issue is worded. History
// carries earlier turns of the same conversation.
type ValidateRequest struct {
	Text    string        `json:"text"`
	History []llm.Message `json:"history,omitempty"`
}

// ValidateResponse returns the model's answer and the updated conversation.
type ValidateResponse struct {
	Reply    string        `json:"reply"`
	Messages []llm.Message `json:"messages"`
}

// PromptResponse shows the prompt stored in a workflow node.
type PromptResponse struct {
	WorkflowID string `json:"workflow_id"`
	Node       string `json:"node"`
	Prompt     string `json:"prompt"`
}

// UpdatePromptRequest replaces a workflow prompt.
type UpdatePromptRequest struct {
	Text     string `json:"text"`
	Activate bool   `json:"activate"`
}

// BackupResponse reports where a workflow snapshot was written.
type BackupResponse struct {
	WorkflowID string `json:"workflow_id"`
	Path       string `json:"path"`
}
