package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"FinAlert/internal/domain/models"
	xhttp "FinAlert/pkg/http"
	"FinAlert/pkg/http/middleware"
	xlogger "FinAlert/pkg/logger"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// AlertStream is the part of the stream client exposed over HTTP.
type AlertStream interface {
	Enable() error
	Disable()
	Status() models.ConnectionStatus
	Enabled() bool
	History() []models.Alert
	ClearHistory()
}

// HistoryClearer removes a persisted history snapshot.
type HistoryClearer interface {
	Clear(ctx context.Context) error
}

type AlertsOption func(*AlertsEchoHandler)

// WithHistoryClearer also clears the persisted snapshot on DELETE /api/alerts.
func WithHistoryClearer(hc HistoryClearer) AlertsOption {
	return func(h *AlertsEchoHandler) { h.clearer = hc }
}

// WithEnableRateLimit limits POST /api/feed/enable per client IP.
// Disable stays unlimited so a client can always stop the feed.
func WithEnableRateLimit(store echomw.RateLimiterStore) AlertsOption {
	return func(h *AlertsEchoHandler) { h.limiter = store }
}

// WithFeedURL reports url in the status response.
func WithFeedURL(url string) AlertsOption {
	return func(h *AlertsEchoHandler) { h.url = url }
}

type AlertsEchoHandler struct {
	logger  *xlogger.Logger
	stream  AlertStream
	clearer HistoryClearer
	limiter echomw.RateLimiterStore
	url     string
}

func NewAlertsEchoHandler(logger *xlogger.Logger, stream AlertStream, opts ...AlertsOption) *AlertsEchoHandler {
	h := &AlertsEchoHandler{logger: logger, stream: stream}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *AlertsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/alerts", h.List)
	g.DELETE("/alerts", h.Clear)
	g.GET("/feed/status", h.Status)

	var enableMW []echo.MiddlewareFunc
	if h.limiter != nil {
		enableMW = append(enableMW, middleware.RateLimit(h.limiter))
	}
	g.POST("/feed/enable", h.Enable, enableMW...)
	g.POST("/feed/disable", h.Disable)
}

// List returns the history snapshot, most recent first.
func (h *AlertsEchoHandler) List(c echo.Context) error {
	req := &models.AlertsQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var since time.Time
	if req.Since != "" {
		t, ok := xhttp.ParseTime(req.Since)
		if !ok {
			return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
				Code:    "ERR_FORMAT",
				Field:   "since",
				Message: "since must be RFC3339 or unix seconds",
			}})
		}
		since = t
	}

	snapshot := h.stream.History()
	rows := make([]models.Alert, 0, min(len(snapshot), req.Limit))
	for _, a := range snapshot {
		if len(rows) == req.Limit {
			break
		}
		if !since.IsZero() && a.ObservedAt.Before(since) {
			continue
		}
		if req.Ticker != "" && !strings.EqualFold(a.Ticker, req.Ticker) {
			continue
		}
		rows = append(rows, a)
	}
	return xhttp.ListResponse(c, rows, int64(len(snapshot)))
}

func (h *AlertsEchoHandler) Clear(c echo.Context) error {
	h.stream.ClearHistory()
	if h.clearer != nil {
		if err := h.clearer.Clear(c.Request().Context()); err != nil {
			h.logger.Warn("persisted history clear failed", xlogger.Error(err))
		}
	}
	return xhttp.NoContentResponse(c)
}

func (h *AlertsEchoHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.status())
}

func (h *AlertsEchoHandler) Enable(c echo.Context) error {
	if err := h.stream.Enable(); err != nil {
		var cfgErr *models.ConfigurationError
		if errors.As(err, &cfgErr) {
			return xhttp.AppErrorResponse(c, xhttp.ConfigurationError(cfgErr.Field, cfgErr.Error()).WithError(err))
		}
		if errors.Is(err, models.ErrClientClosed) {
			return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("alert stream is shut down"))
		}
		h.logger.Error("feed enable failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, h.status())
}

func (h *AlertsEchoHandler) Disable(c echo.Context) error {
	h.stream.Disable()
	return xhttp.SuccessResponse(c, h.status())
}

func (h *AlertsEchoHandler) status() models.FeedStatusResponse {
	return models.FeedStatusResponse{
		Status:  h.stream.Status(),
		Enabled: h.stream.Enabled(),
		URL:     h.url,
	}
}
