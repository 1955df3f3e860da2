package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/app"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/config"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/export"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/ident"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/remote/memremote"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/testutil"
)

type fixture struct {
	app *app.App
	srv *Server
	hub *memremote.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.NoError(t, err)
	cfg.Store.Path = filepath.Join(t.TempDir(), "fishsync.db")
	cfg.DeepLink.PollAttempts = 2
	cfg.DeepLink.PollInterval = time.Millisecond

	hub := memremote.NewHub("secret")
	clock := testutil.MustParse("2025-05-01T10:00:00Z")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := app.New(context.Background(), cfg, logger,
		app.WithDialer(hub.Dialer()),
		app.WithClock(clock.Now),
		app.WithIDs(ident.NewSequenceGenerator("id")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	return &fixture{app: a, srv: NewServer(a), hub: hub}
}

func (f *fixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func (f *fixture) createEvent(t *testing.T, body map[string]any) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/events", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)["id"].(string)
}

func (f *fixture) register(t *testing.T, eventID, name string) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, "/events/"+eventID+"/entrants", map[string]any{"name": name, "category": "dospeli"})
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestEvents_RegistrationUntilFull(t *testing.T) {
	f := newFixture(t)
	id := f.createEvent(t, map[string]any{"name": "Cup", "date": "2025-06-01", "maxEntrants": 1})

	require.Equal(t, http.StatusCreated, f.register(t, id, "Jan").Code)

	rec := f.register(t, id, "Eva")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EVENT_FULL", decode(t, rec)["code"])

	rec = f.do(t, http.MethodGet, "/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	sum := items[0].(map[string]any)
	assert.Equal(t, "FULL", sum["status"])
	assert.EqualValues(t, 1, sum["entrants"])
}

func TestEvents_ValidationAndNotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/events", map[string]any{"date": "2025-06-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decode(t, rec)["code"])

	rec = f.register(t, "nope", "Jan")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/events/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvents_DeleteNeedsConfirmation(t *testing.T) {
	f := newFixture(t)
	id := f.createEvent(t, map[string]any{"name": "Cup", "date": "2025-06-01"})

	rec := f.do(t, http.MethodDelete, "/events/"+id, nil)
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/events/"+id, nil).Code)

	rec = f.do(t, http.MethodDelete, "/events/"+id+"?confirm=true", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/events/"+id, nil).Code)
}

func TestCatches_Sequence(t *testing.T) {
	f := newFixture(t)
	id := f.createEvent(t, map[string]any{"name": "Cup", "date": "2025-06-01", "catchLimit": 2, "subLocations": []string{"A"}})
	rec := f.register(t, id, "Jan")
	require.Equal(t, http.StatusCreated, rec.Code)
	entrant := decode(t, rec)["id"].(string)

	body := map[string]any{"eventId": id, "entrantId": entrant, "subLocation": "A"}
	want := []string{"UNDER", "AT_LIMIT", "OVER"}
	var last map[string]any
	for _, outcome := range want {
		rec := f.do(t, http.MethodPost, "/catches", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		last = decode(t, rec)
		assert.Equal(t, outcome, last["outcome"])
	}
	assert.EqualValues(t, 100, last["fee"])
	assert.Equal(t, "100 CZK", last["feeText"])

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `fishsync_catches_total{outcome="OVER"} 1`)
}

func TestCheckIn_DuplicateIsConflict(t *testing.T) {
	f := newFixture(t)
	id := f.createEvent(t, map[string]any{"name": "Cup", "date": "2025-06-01", "subLocations": []string{"A"}})
	entrant := decode(t, f.register(t, id, "Jan"))["id"].(string)

	body := map[string]any{"eventId": id, "entrantId": entrant, "subLocation": "A"}
	assert.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/checkins", body).Code)

	rec := f.do(t, http.MethodPost, "/checkins", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_CHECKIN", decode(t, rec)["code"])

	rec = f.do(t, http.MethodGet, "/events/"+id+"/roster?pond=A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	checked := decode(t, rec)["checkedIn"].(map[string]any)
	assert.Equal(t, true, checked[entrant])
}

func TestExport_CSVAttachment(t *testing.T) {
	f := newFixture(t)
	id := f.createEvent(t, map[string]any{"name": "Jarní závody", "date": "2025-06-01"})
	require.Equal(t, http.StatusCreated, f.register(t, id, "Jan Novák").Code)

	rec := f.do(t, http.MethodGet, "/events/"+id+"/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename=jarni-zavody_ucastnici.csv`, rec.Header().Get(echo.HeaderContentDisposition))
	assert.True(t, strings.HasPrefix(rec.Body.String(), export.BOM))
	assert.Contains(t, rec.Body.String(), `"Jan Novák"`)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/events/nope/export", nil).Code)
}

func TestAnglers_CheckInVisitAndClubCatch(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/anglers", map[string]any{"name": "Petr", "memberNo": "42"})
	require.Equal(t, http.StatusCreated, rec.Code)
	angler := decode(t, rec)["id"].(string)

	assert.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/checkins", map[string]any{"fisherId": angler}).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/checkins", map[string]any{"fisherId": angler}).Code)

	rec = f.do(t, http.MethodPost, "/visits", map[string]any{"fisherId": angler, "visitorName": "Host", "tookSpecialCatch": true})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.EqualValues(t, 200, decode(t, rec)["fee"])

	rec = f.do(t, http.MethodPost, "/catches", map[string]any{"fisherId": angler, "species": "kapr", "length": 55})
	require.Equal(t, http.StatusCreated, rec.Code)
	res := decode(t, rec)
	assert.Equal(t, "UNDER", res["outcome"])
	assert.EqualValues(t, 4, res["limit"])

	rec = f.do(t, http.MethodGet, "/anglers", nil)
	assert.Len(t, decode(t, rec)["items"], 1)

	assert.Equal(t, http.StatusPreconditionRequired, f.do(t, http.MethodDelete, "/anglers/"+angler, nil).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/anglers/"+angler+"?confirm=1", nil).Code)
}

func TestLink_Steps(t *testing.T) {
	f := newFixture(t)
	id := f.createEvent(t, map[string]any{"name": "Cup", "date": "2025-06-01"})

	rec := f.do(t, http.MethodGet, "/link?keep=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "none", decode(t, rec)["step"])

	rec = f.do(t, http.MethodGet, "/link?action=register&comp="+id+"&keep=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	step := decode(t, rec)
	assert.Equal(t, "register", step["step"])
	assert.Equal(t, "/link?keep=1", step["cleanUrl"])
	assert.Equal(t, id, step["event"].(map[string]any)["id"])

	rec = f.do(t, http.MethodGet, "/link?action=checkin&f=ghost&keep=1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "/link?keep=1", body["cleanUrl"])
	assert.NotEmpty(t, body["error"])
}

func TestQR_BuildsLink(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/qr?action=catch&angler=a1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:8080/?action=catch&f=a1", decode(t, rec)["url"])

	rec = f.do(t, http.MethodGet, "/qr?action=register", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemote_ConnectAndDisconnect(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/remote", nil)
	assert.Equal(t, "local", decode(t, rec)["mode"])

	rec = f.do(t, http.MethodPost, "/remote", map[string]any{"endpoint": "mem://club", "credential": "wrong"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "local", string(f.app.Engine.Mode()))

	rec = f.do(t, http.MethodPost, "/remote", map[string]any{"endpoint": "mem://club", "credential": "secret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	status := decode(t, rec)
	assert.Equal(t, "remote", status["mode"])
	assert.Equal(t, "mem://club", status["endpoint"])

	rec = f.do(t, http.MethodDelete, "/remote", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "local", decode(t, rec)["mode"])
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	id := f.createEvent(t, map[string]any{"name": "Cup", "date": "2025-06-01"})
	require.Equal(t, http.StatusCreated, f.register(t, id, "Jan").Code)

	rec := f.do(t, http.MethodGet, "/stats/2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode(t, rec)
	assert.EqualValues(t, 1, st["events"])
	assert.EqualValues(t, 1, st["registrations"])

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/stats/25", nil).Code)
}

func TestCORS_Preflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/events", nil)
	req.Header.Set("Origin", "https://desk.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.app.Config.Server.Port = 0
	srv := NewServer(f.app)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
