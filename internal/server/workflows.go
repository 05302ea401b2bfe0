package server

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/agile-athletes/lrps/internal/httpclient"
	"github.com/agile-athletes/lrps/internal/runtime"
	"github.com/agile-athletes/lrps/internal/workflow"
)

// WorkflowAPI is the n8n surface used by the prompt endpoints.
type WorkflowAPI interface {
	workflow.Store
	UpdatePrompt(ctx context.Context, id, node, text string, activate bool) (workflow.Workflow, error)
}

// WorkflowsHandler reads and edits the prompts stored in n8n workflows.
type WorkflowsHandler struct {
	API        WorkflowAPI
	Backups    *workflow.Backuper
	PromptNode string
	Metrics    *runtime.Metrics
	Logger     *zap.Logger
}

func (h *WorkflowsHandler) Register(g *echo.Group) {
	g.GET("/:id/prompt", h.getPrompt)
	g.PUT("/:id/prompt", h.putPrompt)
	g.POST("/:id/backup", h.backup)
}

func (h *WorkflowsHandler) getPrompt(c echo.Context) error {
	id := c.Param("id")
	wf, err := h.API.Get(c.Request().Context(), id)
	h.Metrics.WorkflowCalls.WithLabelValues("get", runtime.Outcome(err)).Inc()
	if err != nil {
		return upstream(err)
	}
	prompt, ok := workflow.Prompt(wf, h.PromptNode)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "workflow has no prompt node "+h.PromptNode)
	}
	return c.JSON(http.StatusOK, PromptResponse{WorkflowID: id, Node: h.PromptNode, Prompt: prompt})
}

func (h *WorkflowsHandler) putPrompt(c echo.Context) error {
	id := c.Param("id")
	var req UpdatePromptRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text required")
	}
	ctx := c.Request().Context()
	if h.Backups != nil {
		if _, err := h.Backups.Backup(ctx, id); err != nil {
			h.Logger.Warn("backup before prompt update failed", zap.String("id", id), zap.Error(err))
		}
	}
	_, err := h.API.UpdatePrompt(ctx, id, h.PromptNode, req.Text, req.Activate)
	h.Metrics.WorkflowCalls.WithLabelValues("update_prompt", runtime.Outcome(err)).Inc()
	if err != nil {
		return upstream(err)
	}
	h.Logger.Info("workflow prompt updated", zap.String("id", id), zap.Bool("activate", req.Activate))
	return c.JSON(http.StatusOK, PromptResponse{WorkflowID: id, Node: h.PromptNode, Prompt: req.Text})
}

func (h *WorkflowsHandler) backup(c echo.Context) error {
	if h.Backups == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "backups not configured")
	}
	id := c.Param("id")
	path, err := h.Backups.Backup(c.Request().Context(), id)
	h.Metrics.WorkflowCalls.WithLabelValues("backup", runtime.Outcome(err)).Inc()
	if err != nil {
		var pe *os.PathError
		if errors.As(err, &pe) {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return upstream(err)
	}
	return c.JSON(http.StatusOK, BackupResponse{WorkflowID: id, Path: path})
}

// upstream passes n8n's 404 through and reports other failures as 502.
func upstream(err error) error {
	var se *httpclient.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "workflow not found")
	}
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}
