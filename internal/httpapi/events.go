package httpapi

import (
	"bytes"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/export"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/service"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/views"
)

// ListEvents handles GET /events.
func (h *Handler) ListEvents(c echo.Context) error {
	sums := h.svc.Events()
	items := make([]eventSummary, 0, len(sums))
	for _, s := range sums {
		items = append(items, summaryOf(s))
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// GetEvent handles GET /events/:id.
func (h *Handler) GetEvent(c echo.Context) error {
	id := c.Param("id")
	for _, s := range h.svc.Events() {
		if s.Event.ID == id {
			return c.JSON(http.StatusOK, summaryOf(s))
		}
	}
	return errorJSON(c, http.StatusNotFound, "event not found")
}

// CreateEvent handles POST /events.
func (h *Handler) CreateEvent(c echo.Context) error {
	var body eventRequest
	if err := c.Bind(&body); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}
	ev, err := h.svc.CreateEvent(c.Request().Context(), body.input())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, ev)
}

// UpdateEvent handles PUT /events/:id.
func (h *Handler) UpdateEvent(c echo.Context) error {
	var body eventRequest
	if err := c.Bind(&body); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}
	ev, err := h.svc.UpdateEvent(c.Request().Context(), c.Param("id"), body.input())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, ev)
}

// DeleteEvent handles DELETE /events/:id?confirm=true.
func (h *Handler) DeleteEvent(c echo.Context) error {
	if err := h.svc.DeleteEvent(c.Request().Context(), c.Param("id"), confirmed(c)); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Register handles POST /events/:id/entrants.
func (h *Handler) Register(c echo.Context) error {
	var body registrationRequest
	if err := c.Bind(&body); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}
	ent, err := h.svc.Register(c.Request().Context(), service.Registration{
		EventID:  c.Param("id"),
		Name:     body.Name,
		Club:     body.Club,
		Phone:    body.Phone,
		Email:    body.Email,
		Category: body.Category,
		Note:     body.Note,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, ent)
}

// Roster handles GET /events/:id/roster?pond=<sub-location>.
func (h *Handler) Roster(c echo.Context) error {
	ev, entrants, checked, ok := h.svc.Roster(c.Param("id"), c.QueryParam("pond"))
	if !ok {
		return errorJSON(c, http.StatusNotFound, "event not found")
	}
	return c.JSON(http.StatusOK, rosterResponse{Event: ev, Entrants: entrants, CheckedIn: checked})
}

// Export handles GET /events/:id/export and returns the entrant table as CSV.
func (h *Handler) Export(c echo.Context) error {
	ev, rows, ok := views.ExportRows(h.eng.Dataset(), c.Param("id"))
	if !ok {
		return errorJSON(c, http.StatusNotFound, "event not found")
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, rows); err != nil {
		return h.fail(c, err)
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": export.Filename(ev.Name)})
	c.Response().Header().Set(echo.HeaderContentDisposition, disposition)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// RemoveEntrant handles DELETE /entrants/:id?confirm=true.
func (h *Handler) RemoveEntrant(c echo.Context) error {
	if err := h.svc.RemoveEntrant(c.Request().Context(), c.Param("id"), confirmed(c)); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
