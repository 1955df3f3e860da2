package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/engine"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/quota"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/service"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/views"
)

// CheckIn handles POST /checkins. A body with fisherId checks an angler in
// for today; otherwise eventId and entrantId are required.
func (h *Handler) CheckIn(c echo.Context) error {
	var body checkInRequest
	if err := c.Bind(&body); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}
	ctx := c.Request().Context()

	if body.FisherID != "" {
		rec, created, err := h.svc.CheckInAngler(ctx, body.FisherID)
		if err != nil {
			return h.fail(c, err)
		}
		status := http.StatusCreated
		if !created {
			status = http.StatusOK
		}
		return c.JSON(status, rec)
	}

	rec, err := h.svc.CheckIn(ctx, body.EventID, body.EntrantID, body.SubLocation)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, rec)
}

// RecordCatch handles POST /catches. A body with fisherId is a club catch
// counted against the daily limit; otherwise it is a competition catch.
func (h *Handler) RecordCatch(c echo.Context) error {
	var body catchRequest
	if err := c.Bind(&body); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}
	ctx := c.Request().Context()

	var (
		res service.CatchResult
		err error
	)
	if body.FisherID != "" {
		res, err = h.svc.RecordClubCatch(ctx, service.ClubCatch{
			FisherID: body.FisherID,
			Species:  body.Species,
			Length:   body.Length,
			InRange:  body.InRange,
			Kept:     body.Kept,
		})
	} else {
		res, err = h.svc.RecordCatch(ctx, body.EventID, body.EntrantID, body.SubLocation)
	}
	if err != nil {
		return h.fail(c, err)
	}

	out := catchResponse{
		Catch:   res.Catch,
		Outcome: res.Outcome,
		Count:   res.Count,
		Limit:   res.Limit,
		Fee:     res.Fee,
	}
	if res.Outcome == quota.Over {
		out.FeeText = h.svc.Fees().Format(res.Fee)
	}
	return c.JSON(http.StatusCreated, out)
}

// RecordVisit handles POST /visits.
func (h *Handler) RecordVisit(c echo.Context) error {
	var body visitRequest
	if err := c.Bind(&body); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}
	v, err := h.svc.RecordVisit(c.Request().Context(), body.FisherID, body.VisitorName, body.TookSpecialCatch)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// ListAnglers handles GET /anglers.
func (h *Handler) ListAnglers(c echo.Context) error {
	items := engine.All[record.Angler](h.eng, record.Anglers)
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// CreateAngler handles POST /anglers.
func (h *Handler) CreateAngler(c echo.Context) error {
	var body anglerRequest
	if err := c.Bind(&body); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}
	a, err := h.svc.CreateAngler(c.Request().Context(), service.AnglerInput{
		Name:     body.Name,
		Club:     body.Club,
		Phone:    body.Phone,
		Email:    body.Email,
		MemberNo: body.MemberNo,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

// DeleteAngler handles DELETE /anglers/:id?confirm=true.
func (h *Handler) DeleteAngler(c echo.Context) error {
	if err := h.svc.DeleteAngler(c.Request().Context(), c.Param("id"), confirmed(c)); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Stats handles GET /stats/:year.
func (h *Handler) Stats(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1000 || year > 9999 {
		return errorJSON(c, http.StatusBadRequest, "year must have 4 digits")
	}
	st := views.Year(h.eng.Dataset(), year)
	if st.Standings == nil {
		st.Standings = []views.Standing{}
	}
	return c.JSON(http.StatusOK, st)
}
