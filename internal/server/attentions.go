package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/agile-athletes/lrps/internal/attention"
	"github.com/agile-athletes/lrps/internal/extract"
	"github.com/agile-athletes/lrps/internal/runtime"
)

// AttentionsHandler renders attention trees sent by clients.
type AttentionsHandler struct {
	Metrics *runtime.Metrics
	Logger  *zap.Logger
}

func (h *AttentionsHandler) Register(g *echo.Group) {
	g.POST("/render", h.render)
	g.POST("/children", h.children)
}

func (h *AttentionsHandler) converter(c echo.Context) (*attention.Converter, AttentionRequest, error) {
	var req AttentionRequest
	if err := c.Bind(&req); err != nil {
		return nil, req, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	data := req.Data
	if data == nil {
		if strings.TrimSpace(req.Text) == "" {
			return nil, req, echo.NewHTTPError(http.StatusBadRequest, "text or data required")
		}
		var err error
		data, err = extract.ExtractText(req.Text)
		h.Metrics.Extractions.WithLabelValues(runtime.Outcome(err)).Inc()
		if err != nil {
			return nil, req, malformed(err)
		}
	}
	return attention.NewConverter(data, attention.WithLogger(h.Logger)), req, nil
}

func (h *AttentionsHandler) render(c echo.Context) error {
	conv, _, err := h.converter(c)
	if err != nil {
		return err
	}
	resp, err := renderTree(conv)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.Metrics.Renders.Inc()
	return c.JSON(http.StatusOK, resp)
}

func (h *AttentionsHandler) children(c echo.Context) error {
	conv, req, err := h.converter(c)
	if err != nil {
		return err
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}
	return c.JSON(http.StatusOK, conv.ChildrenByName(req.Name))
}

func renderTree(conv *attention.Converter) (RenderResponse, error) {
	html, err := conv.ToHTML()
	if err != nil {
		return RenderResponse{}, err
	}
	return RenderResponse{Markdown: conv.ToMarkdown(), HTML: html, Attentions: conv.Items()}, nil
}

// malformed maps extraction failures to 422 and anything else to 500.
func malformed(err error) error {
	if errors.Is(err, extract.ErrMalformedInput) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
