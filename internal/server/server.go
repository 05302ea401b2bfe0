package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agile-athletes/lrps/config"
	"github.com/agile-athletes/lrps/internal/llm"
	"github.com/agile-athletes/lrps/internal/queue/pubsub"
	"github.com/agile-athletes/lrps/internal/runtime"
	"github.com/agile-athletes/lrps/internal/workflow"
)

// Deps are the collaborators behind the HTTP API. Publisher, Workflows and
// Backups may be nil; the affected features then degrade.
type Deps struct {
	LLM       Completer
	Prompts   llm.PromptMaker
	Validator llm.PromptMaker
	Publisher EventPublisher
	Workflows WorkflowAPI
	Backups   *workflow.Backuper
	Metrics   *runtime.Metrics
	Logger    *zap.Logger
}

// New assembles the echo instance with every route registered.
func New(cfg *config.Config, deps Deps) (*echo.Echo, error) {
	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Server.ValidateOrigins(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = runtime.NewMetrics()
	}
	prompts := deps.Prompts
	if prompts == nil {
		prompts = llm.SuggestionPromptMaker{}
	}
	validator := deps.Validator
	if validator == nil {
		validator = llm.ValidatingPromptMaker{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = errorHandler(logger.Named("http"))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, "Cookie"},
		AllowCredentials: true,
	}))
	e.Use(countRequests(metrics))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if cfg.Telemetry.Enabled {
		e.GET(cfg.Telemetry.MetricsPath, echo.WrapHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	auth := &AuthHandler{
		Users:      cfg.Auth.Users,
		Secret:     secret,
		TTL:        cfg.Auth.TokenTTL,
		CookieName: cfg.Auth.CookieName,
		Secure:     !cfg.General.Debug,
		Logger:     logger,
	}
	auth.Register(api.Group("/auth"))

	authed := runtime.EchoAuthMiddleware(secret, cfg.Auth.CookieName)

	ah := &AttentionsHandler{Metrics: metrics, Logger: logger}
	ah.Register(api.Group("/attentions", authed))

	if deps.LLM != nil {
		ih := &IssuesHandler{
			LLM:       deps.LLM,
			Prompts:   prompts,
			Validator: validator,
			Publisher: deps.Publisher,
			Debug:     cfg.Messaging.Debug,
			Metrics:   metrics,
			Logger:    logger,
		}
		ih.Register(api.Group("/issues", authed))
	}

	if deps.Workflows != nil {
		wh := &WorkflowsHandler{
			API:        deps.Workflows,
			Backups:    deps.Backups,
			PromptNode: cfg.Workflow.PromptNode,
			Metrics:    metrics,
			Logger:     logger,
		}
		wh.Register(api.Group("/workflows", authed))
	}
	return e, nil
}

// Run wires the production collaborators from cfg and serves until ctx is
// cancelled.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	metrics := runtime.NewMetrics()

	chat := llm.NewClient(llm.Options{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.BulkyModel,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		Logger:      logger.Named("llm"),
	})

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Messaging.Redis.Addr(),
		Password:    cfg.Messaging.Redis.Password,
		DB:          cfg.Messaging.Redis.DB,
		DialTimeout: cfg.Messaging.Redis.Timeout,
	})
	defer rdb.Close()
	var publisher EventPublisher
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, rendered trees will not be published",
			zap.String("addr", cfg.Messaging.Redis.Addr()), zap.Error(err))
	} else {
		reg, err := pubsub.DefaultRegistry()
		if err != nil {
			return err
		}
		publisher = pubsub.NewPublisher(rdb, reg, logger.Named("pubsub"))
	}

	wf := workflow.NewClient(cfg.Workflow.BaseURL, cfg.Workflow.APIKey, cfg.Workflow.Timeout, logger.Named("workflow"))
	backups := &workflow.Backuper{Store: wf, Dir: cfg.Workflow.BackupDir, IDs: cfg.Workflow.IDs, Logger: logger.Named("backup")}

	e, err := New(cfg, Deps{
		LLM:       chat,
		Publisher: publisher,
		Workflows: wf,
		Backups:   backups,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Workflow.BackupSchedule != "" {
		g.Go(func() error {
			if err := backups.Run(gctx, cfg.Workflow.BackupSchedule); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("backup scheduler: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Server.Address))
		if err := e.Start(cfg.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// errorHandler writes {"error": msg} and logs server errors at error level.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		fields := []zap.Field{
			zap.Int("code", code),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("remote", c.RealIP()),
			zap.Error(err),
		}
		if code >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
		} else {
			logger.Debug("request rejected", fields...)
		}
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
}

func countRequests(m *runtime.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			code := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				code = he.Code
			} else if err != nil {
				code = http.StatusInternalServerError
			}
			m.Requests.WithLabelValues(c.Path(), strconv.Itoa(code)).Inc()
			return err
		}
	}
}
