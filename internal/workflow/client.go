package workflow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agile-athletes/lrps/internal/httpclient"
)

const apiKeyHeader = "X-N8N-API-KEY"

// Client is a thin wrapper over the n8n public API (v1).
type Client struct {
	http    *httpclient.Client
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

// NewClient builds a client for baseURL, e.g. http://localhost:5678/api/v1.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:    httpclient.New(timeout, logger),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (Workflow, error) {
	var out Workflow
	headers := map[string]string{apiKeyHeader: c.apiKey}
	if err := c.http.DoJSON(ctx, method, c.baseURL+path, headers, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func workflowPath(id string) string {
	return "/workflows/" + url.PathEscape(id)
}

// Get fetches a workflow by id.
func (c *Client) Get(ctx context.Context, id string) (Workflow, error) {
	wf, err := c.do(ctx, http.MethodGet, workflowPath(id), nil)
	if err != nil {
		return nil, fmt.Errorf("get workflow %s: %w", id, err)
	}
	return wf, nil
}

// Create posts a new workflow and returns what n8n stored.
func (c *Client) Create(ctx context.Context, wf Workflow) (Workflow, error) {
	out, err := c.do(ctx, http.MethodPost, "/workflows", wf)
	if err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}
	return out, nil
}

// Update replaces a workflow. wf must already be stripped for PUT.
func (c *Client) Update(ctx context.Context, id string, wf Workflow) (Workflow, error) {
	c.logger.Info("updating workflow", zap.String("id", id))
	out, err := c.do(ctx, http.MethodPut, workflowPath(id), wf)
	if err != nil {
		return nil, fmt.Errorf("update workflow %s: %w", id, err)
	}
	return out, nil
}

// Activate turns a workflow on.
func (c *Client) Activate(ctx context.Context, id string) (Workflow, error) {
	out, err := c.do(ctx, http.MethodPost, workflowPath(id)+"/activate", nil)
	if err != nil {
		return nil, fmt.Errorf("activate workflow %s: %w", id, err)
	}
	return out, nil
}

// Delete removes a workflow and returns the deleted document.
func (c *Client) Delete(ctx context.Context, id string) (Workflow, error) {
	out, err := c.do(ctx, http.MethodDelete, workflowPath(id), nil)
	if err != nil {
		return nil, fmt.Errorf("delete workflow %s: %w", id, err)
	}
	return out, nil
}

// QueryWebhook posts messages to a workflow webhook as {"body": messages}.
// bearer, when non-empty, is sent as a JWT bearer token.
func (c *Client) QueryWebhook(ctx context.Context, webhookURL string, messages any, bearer string) (any, error) {
	headers := map[string]string{}
	if bearer != "" {
		headers["Authorization"] = "Bearer " + bearer
	}
	var out any
	if err := c.http.DoJSON(ctx, http.MethodPost, webhookURL, headers, map[string]any{"body": messages}, &out); err != nil {
		return nil, fmt.Errorf("query webhook: %w", err)
	}
	return out, nil
}

// UpdatePrompt fetches a workflow, replaces the prompt on node, strips it and
// writes it back. With activate set the workflow is activated afterwards.
func (c *Client) UpdatePrompt(ctx context.Context, id, node, text string, activate bool) (Workflow, error) {
	wf, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !SetPrompt(wf, node, text) {
		return nil, fmt.Errorf("workflow %s has no node %q", id, node)
	}
	body, err := StripForPut(wf)
	if err != nil {
		return nil, err
	}
	out, err := c.Update(ctx, id, body)
	if err != nil {
		return nil, err
	}
	if activate {
		if _, err := c.Activate(ctx, id); err != nil {
			return nil, err
		}
	}
	return out, nil
}
