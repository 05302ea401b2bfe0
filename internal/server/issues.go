package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/agile-athletes/lrps/internal/attention"
	"github.com/agile-athletes/lrps/internal/extract"
	"github.com/agile-athletes/lrps/internal/helpers"
	"github.com/agile-athletes/lrps/internal/llm"
	"github.com/agile-athletes/lrps/internal/queue/pubsub"
	"github.com/agile-athletes/lrps/internal/runtime"
)

// Completer is the chat completion call the issue flow needs.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (llm.Response, error)
}

// EventPublisher publishes rendered trees to session subscribers.
type EventPublisher interface {
	PublishRaw(ctx context.Context, topic, eventType, version, sessionID string, payload interface{}) (int64, error)
}

// IssuesHandler turns a planning issue into a suggested attention tree.
type IssuesHandler struct {
	LLM       Completer
	Prompts   llm.PromptMaker
	Validator llm.PromptMaker
	Publisher EventPublisher
	Debug     bool
	Metrics   *runtime.Metrics
	Logger    *zap.Logger
}

func (h *IssuesHandler) Register(g *echo.Group) {
	g.POST("/suggest", h.suggest)
	g.POST("/validate", h.validate)
}

func (h *IssuesHandler) complete(ctx context.Context, msgs []llm.Message) (llm.Response, error) {
	start := time.Now()
	reply, err := h.LLM.Complete(ctx, msgs)
	h.Metrics.LLMLatency.Observe(time.Since(start).Seconds())
	h.Metrics.LLMCalls.WithLabelValues(runtime.Outcome(err)).Inc()
	if err != nil {
		h.Logger.Error("completion failed", zap.Error(err))
		return reply, echo.NewHTTPError(http.StatusBadGateway, "language model unavailable")
	}
	return reply, nil
}

// validate has the model review the wording of an issue and keeps the
// conversation so the user can refine it.
func (h *IssuesHandler) validate(c echo.Context) error {
	var req ValidateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	text := helpers.PlainText(req.Text)
	if text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text required")
	}
	prompt, err := h.Validator.MakePrompt(text)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	msgs := append(append([]llm.Message(nil), req.History...), llm.Message{Role: "user", Content: prompt})
	reply, err := h.complete(c.Request().Context(), msgs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ValidateResponse{Reply: reply.Content, Messages: llm.AddCompletion(msgs, reply)})
}

func (h *IssuesHandler) suggest(c echo.Context) error {
	var req SuggestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	text := helpers.PlainText(req.Text)
	if text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text required")
	}
	ctx := c.Request().Context()

	prompt, err := h.Prompts.MakePrompt(text)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	reply, err := h.complete(ctx, []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return err
	}

	data, err := extract.Extract(reply)
	h.Metrics.Extractions.WithLabelValues(runtime.Outcome(err)).Inc()
	if err != nil {
		h.Logger.Warn("reply without attention block", zap.String("finish_reason", reply.FinishReason), zap.Error(err))
		return malformed(err)
	}
	conv := attention.NewConverter(data, attention.WithLogger(h.Logger))
	tree, err := renderTree(conv)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.Metrics.Renders.Inc()

	if h.Publisher != nil {
		session, _ := runtime.SessionFromContext(ctx)
		topic := pubsub.TopicName(session, h.Debug)
		payload := pubsub.RenderedPayload{Markdown: tree.Markdown, HTML: tree.HTML, Attentions: tree.Attentions}
		_, err := h.Publisher.PublishRaw(ctx, topic, pubsub.EventAttentionsRendered, pubsub.VersionV1, session, payload)
		h.Metrics.EventsPublished.WithLabelValues(pubsub.EventAttentionsRendered, runtime.Outcome(err)).Inc()
		if err != nil {
			// subscribers are best effort; the caller still gets the tree
			h.Logger.Warn("publish failed", zap.String("topic", topic), zap.Error(err))
		}
	}
	return c.JSON(http.StatusOK, SuggestResponse{Markdown: tree.Markdown, HTML: tree.HTML, Raw: reply.Content})
}
