package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/deeplink"
)

// Link handles GET /link, the target of scanned QR codes.
//
// The response names the workflow step to show and the URL without action
// parameters, so a reload does not repeat the action. A link without a
// usable action resolves to step "none". Error bodies carry the clean URL too.
func (h *Handler) Link(c echo.Context) error {
	clean, err := deeplink.CleanURL(c.Request().URL.String())
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	l, err := deeplink.FromQuery(c.QueryParams())
	if errors.Is(err, deeplink.ErrNoAction) {
		return c.JSON(http.StatusOK, stepResponse{Step: "none", CleanURL: clean})
	}
	if err != nil {
		return h.failLink(c, err, clean)
	}

	step, err := h.resolver.Resolve(c.Request().Context(), l)
	if err != nil {
		return h.failLink(c, err, clean)
	}
	return c.JSON(http.StatusOK, stepOf(step, clean))
}

func (h *Handler) failLink(c echo.Context, err error, clean string) error {
	status, body := h.errorBody(c, err)
	body["cleanUrl"] = clean
	return c.JSON(status, body)
}

// QR handles GET /qr and returns the deep link for the given parameters.
func (h *Handler) QR(c echo.Context) error {
	l, err := deeplink.FromQuery(c.QueryParams())
	if err != nil {
		return h.fail(c, err)
	}
	u, err := deeplink.Build(h.baseURL, l)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"url": u})
}

// RemoteStatus handles GET /remote.
func (h *Handler) RemoteStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"mode":     string(h.eng.Mode()),
		"endpoint": h.eng.Endpoint(),
	})
}

// ConnectRemote handles POST /remote. A failed connection leaves the
// engine in local mode and answers 502.
func (h *Handler) ConnectRemote(c echo.Context) error {
	var body remoteRequest
	if err := c.Bind(&body); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(body.Endpoint) == "" {
		return errorJSON(c, http.StatusBadRequest, "endpoint is required")
	}
	// Subscriptions outlive the request.
	ctx := context.WithoutCancel(c.Request().Context())
	if err := h.eng.ConfigureRemote(ctx, strings.TrimSpace(body.Endpoint), body.Credential); err != nil {
		return h.fail(c, err)
	}
	return h.RemoteStatus(c)
}

// DisconnectRemote handles DELETE /remote.
func (h *Handler) DisconnectRemote(c echo.Context) error {
	if err := h.eng.DisconnectRemote(c.Request().Context()); err != nil {
		return h.fail(c, err)
	}
	return h.RemoteStatus(c)
}
