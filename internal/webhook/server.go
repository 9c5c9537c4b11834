// Package webhook is the HTTP trigger. It receives Habitica taskActivity
// deliveries and hands them to the snooze service, and serves health and
// metrics endpoints.
package webhook

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Jayphen/habisnooze/internal/logging"
	"github.com/Jayphen/habisnooze/internal/metrics"
	"github.com/Jayphen/habisnooze/internal/types"
)

// DefaultPath is where task activity deliveries are received.
const DefaultPath = "/webhooks/task-activity"

const maxBodyBytes = 1 << 20

// Outcome classifies a delivery for logs and metrics.
type Outcome string

const (
	OutcomeAccepted     Outcome = "accepted"
	OutcomeEmpty        Outcome = "empty"
	OutcomeMalformed    Outcome = "malformed"
	OutcomeInvalid      Outcome = "invalid"
	OutcomeUnauthorized Outcome = "unauthorized"
	OutcomeFailed       Outcome = "failed"
)

// EventHandler receives decoded deliveries. *service.TaskService implements it.
type EventHandler interface {
	HandleTaskActivity(ctx context.Context, event types.TaskActivityEvent) error
}

// Config holds the listener settings.
type Config struct {
	Addr string
	Path string
	// Secret, when set, must match the key query parameter.
	Secret string
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// Server represents the webhook HTTP server
type Server struct {
	echo    *echo.Echo
	cfg     Config
	handler EventHandler
	log     *logging.Logger
	metrics *metrics.Metrics
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithMetrics counts deliveries on m and serves it on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a server for h.
func New(cfg Config, h EventHandler, opts ...Option) *Server {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &CustomValidator{validator: validator.New()}

	s := &Server{
		echo:    e,
		cfg:     cfg,
		handler: h,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.Get()
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Logger middleware
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			log := s.log.WithFields(map[string]interface{}{
				"method":     values.Method,
				"uri":        redactKey(values.URI),
				"status":     values.Status,
				"latency_ms": float64(values.Latency.Nanoseconds()) / 1000000,
				"remote_ip":  values.RemoteIP,
			})
			if values.Error != nil {
				log.WithError(values.Error).Error("HTTP request failed")
			} else {
				log.Debug("HTTP request")
			}
			return nil
		},
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.echo.GET("/healthz", s.healthCheck)
	s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	s.echo.POST(s.cfg.Path, s.taskActivity)
	s.echo.GET(s.cfg.Path, s.taskActivity)
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured address until Shutdown is called. It
// returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.log.WithFields(map[string]interface{}{
		"addr": s.cfg.Addr,
		"path": s.cfg.Path,
	}).Info("webhook server started")
	if err := s.echo.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("webhook server stopping")
	return s.echo.Shutdown(ctx)
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// taskActivity always acknowledges with 200 so Habitica keeps the webhook
// enabled, whatever happens to the delivery.
func (s *Server) taskActivity(c echo.Context) error {
	if !s.authorized(c.QueryParam("key")) {
		s.log.WithField("remote_ip", c.RealIP()).Warn("webhook delivery with a bad key ignored")
		s.metrics.ObserveWebhook(string(OutcomeUnauthorized))
		return c.String(http.StatusOK, "OK")
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		s.log.WithError(err).Warn("failed to read webhook body")
		s.metrics.ObserveWebhook(string(OutcomeMalformed))
		return c.String(http.StatusOK, "OK")
	}

	s.Dispatch(c.Request().Context(), body)
	return c.String(http.StatusOK, "OK")
}

func (s *Server) authorized(key string) bool {
	if s.cfg.Secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.Secret)) == 1
}

// Dispatch decodes one delivery body and passes it to the handler. It
// never fails: the outcome is logged, counted and returned.
func (s *Server) Dispatch(ctx context.Context, body []byte) Outcome {
	outcome := s.dispatch(ctx, body)
	s.metrics.ObserveWebhook(string(outcome))
	return outcome
}

func (s *Server) dispatch(ctx context.Context, body []byte) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", fmt.Sprint(r)).Error("task activity handler panicked")
			outcome = OutcomeFailed
		}
	}()

	if len(bytes.TrimSpace(body)) == 0 {
		s.log.Debug("empty webhook delivery")
		return OutcomeEmpty
	}

	var event types.TaskActivityEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.WithError(err).WithField("body", truncate(body, 512)).Warn("malformed webhook body")
		return OutcomeMalformed
	}

	if err := s.echo.Validator.Validate(&event); err != nil {
		s.log.WithError(err).Warn("webhook event rejected")
		return OutcomeInvalid
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.handler.HandleTaskActivity(ctx, event); err != nil {
		s.log.WithError(err).WithField("event_type", event.Type).Error("failed to handle task activity")
		return OutcomeFailed
	}
	return OutcomeAccepted
}

// redactKey hides the shared secret in logged URIs.
func redactKey(uri string) string {
	u, err := url.ParseRequestURI(uri)
	if err != nil {
		return uri
	}
	q := u.Query()
	if !q.Has("key") {
		return uri
	}
	q.Set("key", "redacted")
	u.RawQuery = q.Encode()
	return u.String()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
