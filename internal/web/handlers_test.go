package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jaminalder/tictactoe-timetravel/internal/app"
	"github.com/jaminalder/tictactoe-timetravel/internal/domain"
	"github.com/jaminalder/tictactoe-timetravel/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*app.Service, http.Handler) {
	t.Helper()
	m := metrics.New()
	s := app.NewService(app.WithMetrics(m))
	h := NewServer(s, WithMetrics(m))
	return s, h
}

// post sends an htmx form post and returns the recorder.
func post(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func move(t *testing.T, h http.Handler, id string, i string) *httptest.ResponseRecorder {
	t.Helper()
	return post(t, h, "/game/"+id+"/move", url.Values{"i": {i}})
}

func TestIndexPage(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "<form")
	assert.Contains(t, body, `action="/game"`)
}

func TestPing(t *testing.T) {
	_, h := newTestServer(t)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "pong", rr.Body.String())
}

func TestCreateRedirectsToGame(t *testing.T) {
	svc, h := newTestServer(t)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/game", nil))

	require.Equal(t, http.StatusSeeOther, rr.Code)
	loc := rr.Result().Header.Get("Location")
	require.True(t, strings.HasPrefix(loc, "/game/"), loc)
	_, ok := svc.Get(strings.TrimPrefix(loc, "/game/"))
	assert.True(t, ok)
}

func TestGamePage(t *testing.T) {
	svc, h := newTestServer(t)
	gs := svc.Create()
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/game/"+url.PathEscape(gs.ID), nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `hx-ext="sse"`)
	assert.Contains(t, body, "/game/"+gs.ID+"/events")
	assert.Contains(t, body, `id="game"`)
	assert.Contains(t, body, "Next player: X")
	assert.Contains(t, body, "Go to game start")
	assert.Contains(t, body, "Sort by latest first")
	assert.Equal(t, 9, strings.Count(body, `name="i"`))
}

func TestUnknownGame(t *testing.T) {
	_, h := newTestServer(t)

	for _, path := range []string{"/game/nope", "/game/nope/snapshot", "/game/nope/events"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
	}
	assert.Equal(t, http.StatusNotFound, move(t, h, "nope", "0").Code)
	assert.Equal(t, http.StatusNotFound, post(t, h, "/game/nope/sort", nil).Code)
}

func TestMoveReturnsFragment(t *testing.T) {
	svc, h := newTestServer(t)
	gs := svc.Create()

	rr := move(t, h, gs.ID, "4")

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `id="game"`)
	assert.NotContains(t, body, "<html>")
	assert.Contains(t, body, "Next player: O")
	assert.Contains(t, body, "Go to move #1 (col, row): (2, 2)")
	latest, _ := svc.Get(gs.ID)
	assert.Equal(t, domain.X, latest.Session.Current()[4])
}

func TestMoveWithoutHTMXRedirects(t *testing.T) {
	svc, h := newTestServer(t)
	gs := svc.Create()
	req := httptest.NewRequest(http.MethodPost, "/game/"+gs.ID+"/move", strings.NewReader("i=0"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/game/"+gs.ID, rr.Result().Header.Get("Location"))
}

func TestMoveRejectsBadIndex(t *testing.T) {
	svc, h := newTestServer(t)
	gs := svc.Create()

	for _, i := range []string{"9", "-1", "x", ""} {
		rr := move(t, h, gs.ID, i)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "index %q", i)
	}
	latest, _ := svc.Get(gs.ID)
	assert.Equal(t, 1, latest.Session.Len())
}

func TestWinHighlightsLine(t *testing.T) {
	svc, h := newTestServer(t)
	gs := svc.Create()

	var rr *httptest.ResponseRecorder
	for _, i := range []string{"0", "4", "1", "3", "2"} {
		rr = move(t, h, gs.ID, i)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	body := rr.Body.String()
	assert.Contains(t, body, "Winner: X @ squares: 0,1,2")
	assert.Equal(t, 3, strings.Count(body, "square--winning"))

	// A click after the win changes nothing
	rr = move(t, h, gs.ID, "8")
	require.Equal(t, http.StatusOK, rr.Code)
	latest, _ := svc.Get(gs.ID)
	assert.Equal(t, 6, latest.Session.Len())
}

func TestJumpAndSort(t *testing.T) {
	svc, h := newTestServer(t)
	gs := svc.Create()
	for _, i := range []string{"0", "4"} {
		require.Equal(t, http.StatusOK, move(t, h, gs.ID, i).Code)
	}

	rr := post(t, h, "/game/"+gs.ID+"/jump", url.Values{"step": {"1"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<b>Go to move #1 (col, row): (1, 1)</b>")
	assert.Contains(t, rr.Body.String(), "Next player: O")

	rr = post(t, h, "/game/"+gs.ID+"/jump", url.Values{"step": {"7"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = post(t, h, "/game/"+gs.ID+"/sort", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Sort by oldest first")
	assert.Less(t, strings.Index(body, "Go to move #2"), strings.Index(body, "Go to game start"))
}

func TestSnapshotJSON(t *testing.T) {
	svc, h := newTestServer(t)
	gs := svc.Create()
	for _, i := range []string{"0", "4", "1", "3", "2"} {
		require.Equal(t, http.StatusOK, move(t, h, gs.ID, i).Code)
	}
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/game/"+gs.ID+"/snapshot", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var got snapshotJSON
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, gs.ID, got.ID)
	assert.Equal(t, 5, got.CurrentStep)
	assert.Len(t, got.History, 6)
	assert.Nil(t, got.History[0].Index)
	assert.Equal(t, "won", got.Status.State)
	assert.Equal(t, "Winner: X", got.Status.Text)
	assert.Equal(t, "X", got.Status.Winner)
	assert.Equal(t, []int{0, 1, 2}, got.Status.Line)
	assert.Equal(t, []string{"X", "X", "X", "O", "O", "", "", "", ""}, got.Board)
}

func TestEventsEndpointSSEHeaders(t *testing.T) {
	svc, h := newTestServer(t)
	gs := svc.Create()
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/game/"+gs.ID+"/events", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Result().Header.Get("Content-Type"), "text/event-stream"))
}

func TestEventsStreamRendersState(t *testing.T) {
	svc, h := newTestServer(t)
	gs := svc.Create()
	_, err := svc.ApplyMove(gs.ID, 0)
	require.NoError(t, err)

	// The stream ends when the request context does
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/game/"+gs.ID+"/events", nil).WithContext(ctx)
	req.Header.Set("Accept", "text/event-stream")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	body := rr.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: game\n"), body)
	assert.Contains(t, body, "data: ")
	assert.Contains(t, body, "Next player: O")
}

func TestWriteEventPrefixesEveryLine(t *testing.T) {
	var b strings.Builder

	writeEvent(&b, "game", []byte("<div>\n<p>x</p>\n</div>\n"))

	assert.Equal(t, "event: game\ndata: <div>\ndata: <p>x</p>\ndata: </div>\n\n", b.String())
}

func TestBroadcastUsesFragmentRenderer(t *testing.T) {
	svc, _ := newTestServer(t)
	gs := svc.Create()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ch, unsub, err := svc.Subscribe(ctx, gs.ID)
	require.NoError(t, err)
	defer unsub()

	_, err = svc.ApplyMove(gs.ID, 8)
	require.NoError(t, err)

	select {
	case b := <-ch:
		assert.Contains(t, string(b), `id="game"`)
		assert.Contains(t, string(b), "Go to move #1 (col, row): (3, 3)")
	case <-ctx.Done():
		t.Fatal("no broadcast")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	svc, h := newTestServer(t)
	gs := svc.Create()
	require.Equal(t, http.StatusOK, move(t, h, gs.ID, "0").Code)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "tictactoe_intents_total")
}
