// Package httpapi serves fishsync over HTTP: deep links scanned from QR
// codes, the JSON API used by the registration desk, CSV exports and metrics.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/app"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/deeplink"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/engine"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/service"
)

// Handler holds the collaborators shared by every route.
type Handler struct {
	svc      *service.Service
	eng      *engine.Engine
	resolver *deeplink.Resolver
	baseURL  string
	logger   *slog.Logger
}

// NewHandler builds a Handler from an assembled application.
func NewHandler(a *app.App) *Handler {
	return &Handler{
		svc:      a.Service,
		eng:      a.Engine,
		resolver: a.Resolver,
		baseURL:  a.Config.App.BaseURL,
		logger:   a.Logger,
	}
}

// Health is a liveness probe.
func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// fail maps a domain error to a status code and a JSON error body.
func (h *Handler) fail(c echo.Context, err error) error {
	status, body := h.errorBody(c, err)
	return c.JSON(status, body)
}

func (h *Handler) errorBody(c echo.Context, err error) (int, map[string]string) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		status := http.StatusConflict
		switch ve.Code {
		case service.CodeNotFound:
			status = http.StatusNotFound
		case service.CodeInvalidInput:
			status = http.StatusBadRequest
		}
		return status, map[string]string{"error": ve.Message, "code": ve.Code}
	case errors.Is(err, service.ErrConfirmationRequired):
		return http.StatusPreconditionRequired, map[string]string{"error": "add confirm=true to delete"}
	case deeplink.IsNotFoundError(err):
		return http.StatusNotFound, map[string]string{"error": err.Error()}
	case errors.Is(err, deeplink.ErrNoAction):
		return http.StatusBadRequest, map[string]string{"error": err.Error()}
	case engine.IsConfigError(err):
		return http.StatusBadGateway, map[string]string{"error": err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, map[string]string{"error": err.Error()}
	}
	h.logger.Error("request failed", "path", c.Path(), "error", err)
	return http.StatusInternalServerError, map[string]string{"error": "internal error"}
}

func confirmed(c echo.Context) bool {
	switch c.QueryParam("confirm") {
	case "1", "true", "yes":
		return true
	}
	return false
}
