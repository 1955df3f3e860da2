package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/app"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/remote/memremote"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/testutil"
)

// desk runs commands against one store file, reopening it for every
// command the way separate invocations do.
type desk struct {
	config string
	dir    string
	opts   []app.Option
}

func newDesk(t *testing.T, opts ...app.Option) *desk {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`
app:
  base_url: "https://club.example/desk/"
  timezone: "UTC"
store:
  path: %q
remote:
  max_attempts: 2
  retry_interval: "1ms"
deeplink:
  poll_attempts: 1
  poll_interval: "1ms"
log:
  level: "error"
`, filepath.Join(dir, "fishsync.db"))
	path := filepath.Join(dir, "fishsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	clock := testutil.MustParse("2025-05-01T10:00:00Z")
	return &desk{
		config: path,
		dir:    dir,
		opts:   append([]app.Option{app.WithClock(clock.Now)}, opts...),
	}
}

func (d *desk) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := newRootCommand(&RootOptions{appOptions: d.opts})
	cmd.SetOut(out)
	cmd.SetErr(diag)
	cmd.SetArgs(append([]string{"--config", d.config}, args...))
	err := cmd.Execute()
	return out.String(), diag.String(), err
}

// json runs a command with --format json and decodes the response.
func (d *desk) json(t *testing.T, args ...string) (map[string]any, error) {
	t.Helper()
	out, _, err := d.run(t, append([]string{"--format", "json"}, args...)...)
	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp, err
}

func (d *desk) mustJSON(t *testing.T, args ...string) map[string]any {
	t.Helper()
	resp, err := d.json(t, args...)
	require.NoError(t, err)
	require.Equal(t, "ok", resp["status"], resp)
	data, _ := resp["data"].(map[string]any)
	return data
}

func (d *desk) createEvent(t *testing.T, args ...string) string {
	t.Helper()
	data := d.mustJSON(t, append([]string{"event", "create"}, args...)...)
	return data["id"].(string)
}

func errorCodeOf(resp map[string]any) string {
	e, _ := resp["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestDesk_RegistrationUntilFull(t *testing.T) {
	d := newDesk(t)
	ev := d.createEvent(t, "--name", "Cup", "--date", "2025-06-01", "--max", "1")

	out, diag, err := d.run(t, "register", ev, "Jan Novák", "--club", "MO Brno")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered Jan Novák")
	assert.Contains(t, diag, "Jan Novák registered")

	resp, err := d.json(t, "register", ev, "Eva")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "EVENT_FULL", errorCodeOf(resp))

	resp, err = d.json(t, "register", ev, " jan novák ")
	require.Error(t, err)
	assert.Equal(t, "DUPLICATE_NAME", errorCodeOf(resp))

	resp, err = d.json(t, "event", "list")
	require.NoError(t, err)
	items := resp["data"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "Cup", item["name"])
	assert.Equal(t, "FULL", item["status"])
	assert.Equal(t, float64(1), item["entrants"])
}

func TestDesk_EventListText(t *testing.T) {
	d := newDesk(t)

	out, _, err := d.run(t, "event", "list")
	require.NoError(t, err)
	assert.Equal(t, "No events.\n", out)

	d.createEvent(t, "--name", "Cup", "--date", "2025-06-01", "--time", "07:00", "--max", "30")
	out, _, err = d.run(t, "event", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-06-01 07:00")
	assert.Contains(t, out, "0/30")
}

func TestDesk_InvalidInput(t *testing.T) {
	d := newDesk(t)

	out, _, err := d.run(t, "event", "create", "--name", "Cup", "--date", "1.6.2025")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [INVALID_INPUT]")
}

func TestDesk_UpdateEvent(t *testing.T) {
	d := newDesk(t)
	ev := d.createEvent(t, "--name", "Cup", "--date", "2025-06-01")

	data := d.mustJSON(t, "event", "update", ev, "--name", "Summer Cup", "--date", "2025-06-02", "--max", "10")
	assert.Equal(t, "Summer Cup", data["name"])
	assert.Equal(t, float64(10), data["maxEntrants"])
}

func TestDesk_DeleteNeedsConfirmation(t *testing.T) {
	d := newDesk(t)
	ev := d.createEvent(t, "--name", "Cup", "--date", "2025-06-01")
	d.mustJSON(t, "register", ev, "Jan")

	resp, err := d.json(t, "event", "delete", ev)
	require.Error(t, err)
	assert.Equal(t, "CONFIRMATION_REQUIRED", errorCodeOf(resp))

	d.mustJSON(t, "event", "delete", ev, "--yes")

	resp, err = d.json(t, "event", "list")
	require.NoError(t, err)
	assert.Empty(t, resp["data"])
}

func TestDesk_CheckInAndCatches(t *testing.T) {
	d := newDesk(t)
	ev := d.createEvent(t, "--name", "Cup", "--date", "2025-05-01", "--time", "18:00", "--sub", "A", "--catch-limit", "2")
	ent := d.mustJSON(t, "register", ev, "Jan")["id"].(string)

	data := d.mustJSON(t, "checkin", "--event", ev, "--entrant", ent, "--pond", "A")
	assert.Equal(t, "A", data["subLocation"])

	resp, err := d.json(t, "checkin", "--event", ev, "--entrant", ent, "--pond", "A")
	require.Error(t, err)
	assert.Equal(t, "DUPLICATE_CHECKIN", errorCodeOf(resp))

	var outcomes []any
	for i := 0; i < 3; i++ {
		data := d.mustJSON(t, "catch", "--event", ev, "--entrant", ent)
		outcomes = append(outcomes, data["outcome"])
	}
	assert.Equal(t, []any{"UNDER", "AT_LIMIT", "OVER"}, outcomes)

	out, diag, err := d.run(t, "catch", "--event", ev, "--entrant", ent)
	require.NoError(t, err)
	assert.Equal(t, "Catch 4 of 2 recorded: OVER, fee 100 CZK\n", out)
	assert.Contains(t, diag, "[blocking]")
}

func TestDesk_ClubDay(t *testing.T) {
	d := newDesk(t)

	angler := d.mustJSON(t, "angler", "create", "Petr", "--member-no", "17")["id"].(string)

	resp, err := d.json(t, "angler", "create", " petr ")
	require.Error(t, err)
	assert.Equal(t, "DUPLICATE_NAME", errorCodeOf(resp))

	out, _, err := d.run(t, "checkin", "--angler", angler)
	require.NoError(t, err)
	assert.Equal(t, "Checked in at 10:00\n", out)

	out, _, err = d.run(t, "checkin", "--angler", angler)
	require.NoError(t, err)
	assert.Equal(t, "Already checked in at 10:00\n", out)

	data := d.mustJSON(t, "catch", "--angler", angler, "--species", "pike", "--length", "62", "--in-range", "--kept")
	assert.Equal(t, "UNDER", data["outcome"])
	assert.Equal(t, float64(4), data["limit"])

	out, _, err = d.run(t, "visit", angler, "Karel", "--special")
	require.NoError(t, err)
	assert.Equal(t, "Guest Karel recorded, fee 200 CZK\n", out)

	out, _, err = d.run(t, "angler", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Petr")
	assert.Contains(t, out, "17")

	out, _, err = d.run(t, "stats", "2025")
	require.NoError(t, err)
	assert.Contains(t, out, "Year 2025")
	assert.Contains(t, out, "Petr")
}

func TestDesk_Export(t *testing.T) {
	d := newDesk(t)
	ev := d.createEvent(t, "--name", "Jarní závody", "--date", "2025-06-01")
	d.mustJSON(t, "register", ev, "Jan")

	out, _, err := d.run(t, "export", ev, "--out", "-")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "\uFEFF"))
	assert.Contains(t, out, `"Jan"`)

	path := filepath.Join(d.dir, "entrants.csv")
	data := d.mustJSON(t, "export", ev, "--out", path)
	assert.Equal(t, float64(1), data["rows"])
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, out, string(content))

	resp, err := d.json(t, "export", "missing")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", errorCodeOf(resp))
}

func TestDesk_Stats(t *testing.T) {
	d := newDesk(t)

	_, _, err := d.run(t, "stats", "25")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	data := d.mustJSON(t, "stats")
	assert.Equal(t, float64(2025), data["year"])
}

func TestDesk_Links(t *testing.T) {
	d := newDesk(t)
	ev := d.createEvent(t, "--name", "Cup", "--date", "2025-05-01", "--time", "18:00", "--sub", "A")
	ent := d.mustJSON(t, "register", ev, "Jan")["id"].(string)

	out, _, err := d.run(t, "link", "build", "checkin", "--event", ev, "--pond", "A")
	require.NoError(t, err)
	link := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(link, "https://club.example/desk/?"), link)

	data := d.mustJSON(t, "link", "resolve", link)
	assert.Equal(t, "roster", data["step"])
	assert.Equal(t, []any{"Jan"}, data["roster"])

	withEntrant, _, err := d.run(t, "link", "build", "checkin", "--event", ev, "--pond", "A", "--entrant", ent)
	require.NoError(t, err)
	out, _, err = d.run(t, "link", "resolve", strings.TrimSpace(withEntrant))
	require.NoError(t, err)
	assert.Equal(t, "Jan checked in at 10:00\n", out)

	resp, err := d.json(t, "link", "resolve", "https://club.example/?action=catch&comp="+ev+"&pid=ghost")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", errorCodeOf(resp))

	_, _, err = d.run(t, "link", "build", "dance", "--event", ev)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDesk_Import(t *testing.T) {
	d := newDesk(t)
	catalogFile := filepath.Join(d.dir, "season.cue")
	require.NoError(t, os.WriteFile(catalogFile, []byte(`
event: spring: {name: "Jarní závody", date: "2025-06-10", maxEntrants: 40}
event: kids: {name: "Dětské závody", date: "2025-06-20"}
`), 0o644))

	out, _, err := d.run(t, "import", catalogFile, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Catalog is valid: 2 events (spring, kids)")

	data := d.mustJSON(t, "import", catalogFile)
	assert.Len(t, data["created"], 2)

	out, _, err = d.run(t, "import", catalogFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 0 events, skipped 2")

	require.NoError(t, os.WriteFile(catalogFile, []byte(`event: x: {name: "X", date: "soon"}`), 0o644))
	_, _, err = d.run(t, "import", catalogFile)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDesk_RemoteLifecycle(t *testing.T) {
	hub := memremote.NewHub("s3cret")
	d := newDesk(t, app.WithDialer(hub.Dialer()))

	resp, err := d.json(t, "remote", "connect", "mem://club", "--credential", "wrong")
	require.Error(t, err)
	assert.Equal(t, "CONFIG_ERROR", errorCodeOf(resp))

	data := d.mustJSON(t, "remote", "connect", "mem://club", "--credential", "s3cret")
	assert.Equal(t, "remote", data["mode"])
	assert.Equal(t, "mem://club", data["endpoint"])

	// the saved connection is restored by the next invocation
	d.createEvent(t, "--name", "Cup", "--date", "2025-06-01")
	assert.Len(t, hub.Contents("events"), 1)

	out, _, err := d.run(t, "remote", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Mode: remote")
	assert.Contains(t, out, "Pending writes: 0")

	data = d.mustJSON(t, "remote", "disconnect")
	assert.Equal(t, "local", data["mode"])

	data = d.mustJSON(t, "remote", "status")
	assert.Equal(t, "local", data["mode"])
}

func TestDesk_MissingConfig(t *testing.T) {
	cmd := newRootCommand(&RootOptions{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "event", "list"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}
