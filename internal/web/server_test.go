package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pylintview/internal/model"
	"pylintview/internal/plugin"
	"pylintview/internal/pylint"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeActions struct {
	mu      sync.Mutex
	runErr  error
	runs    []string
	running bool
	stopped int
	store   *Store
}

func (f *fakeActions) Run(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, path)
	return f.runErr
}

func (f *fakeActions) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

func (f *fakeActions) Clear() { f.store.Clear() }

func (f *fakeActions) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeActions) GenerateOrOpenRCFile(_ context.Context, dir string) (string, bool, error) {
	if dir == "" {
		return "", false, pylint.ErrNoRCFileLocation
	}
	return filepath.Join(dir, "pylintrc"), true, nil
}

func (f *fakeActions) About(context.Context) model.About {
	return model.About{PluginVersion: model.Version, PylintVersion: "3.1.0", Supported: true}
}

func newTestServer(t *testing.T, opts Options) (*Server, *Store, *fakeActions) {
	t.Helper()
	store := NewStore(NewHub(nil))
	actions := &fakeActions{store: store}
	return NewServer(actions, store, opts), store, actions
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func result(path string) model.AnalysisResult {
	stdout := "************* Module mod\nW0611:   1,0: : Unused import os\n"
	return model.AnalysisResult{
		ID:         "abc",
		FilePath:   path,
		Timestamp:  "2026-10-14 09:30:00",
		ExitStatus: model.ExitNormal,
		ExitCode:   model.IntPtr(4),
		Stdout:     &stdout,
		Stderr:     model.StrPtr(""),
		Rate:       model.StrPtr("5.00"),
		Messages: map[model.Category][]model.Message{
			model.CategoryError:      {},
			model.CategoryWarning:    {{Module: "mod", Line: 1, Code: "W0611", Text: "Unused import os"}},
			model.CategoryRefactor:   {},
			model.CategoryConvention: {},
		},
	}
}

func TestHandleResult(t *testing.T) {
	s, store, _ := newTestServer(t, Options{})

	w := do(t, s, http.MethodGet, "/api/result", "")
	require.Equal(t, http.StatusOK, w.Code)
	var empty resultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &empty))
	assert.False(t, empty.HasResult)
	assert.Equal(t, "No results available\n", empty.Report)
	assert.Equal(t, model.Version, empty.Version)

	store.ShowResults(result("/src/mod.py"))
	w = do(t, s, http.MethodGet, "/api/result", "")
	var got resultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.True(t, got.HasResult)
	assert.Equal(t, "abc", got.Result.ID)
	assert.Contains(t, got.Report, "Unused import os")
	assert.Contains(t, got.VerboseReport, "--- Standard output ---")
}

func TestHandleRun(t *testing.T) {
	s, _, actions := newTestServer(t, Options{DefaultFile: "/src/default.py"})

	w := do(t, s, http.MethodPost, "/api/run", `{"path":"/src/other.py"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = do(t, s, http.MethodPost, "/api/run", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"/src/other.py", "/src/default.py"}, actions.runs)

	actions.runErr = pylint.ErrBusy
	w = do(t, s, http.MethodPost, "/api/run", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "in progress")

	actions.runErr = fmt.Errorf("%w: /src/a.txt", plugin.ErrNotPython)
	w = do(t, s, http.MethodPost, "/api/run", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/api/run", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRun_NoFile(t *testing.T) {
	s, _, _ := newTestServer(t, Options{})
	w := do(t, s, http.MethodPost, "/api/run", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "path is required")
}

func TestHandleStopAndClear(t *testing.T) {
	s, store, actions := newTestServer(t, Options{})

	w := do(t, s, http.MethodPost, "/api/stop", "")
	assert.JSONEq(t, `{"stopped":false}`, w.Body.String())
	assert.Zero(t, actions.stopped)

	actions.running = true
	w = do(t, s, http.MethodPost, "/api/stop", "")
	assert.JSONEq(t, `{"stopped":true}`, w.Body.String())
	assert.Equal(t, 1, actions.stopped)

	store.ShowResults(result("/src/mod.py"))
	w = do(t, s, http.MethodPost, "/api/clear", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	_, ok := store.Latest()
	assert.False(t, ok)
}

func TestHandleClear_Twice(t *testing.T) {
	s, store, _ := newTestServer(t, Options{})
	store.ShowResults(result("/src/mod.py"))

	require.Equal(t, http.StatusNoContent, do(t, s, http.MethodPost, "/api/clear", "").Code)
	once := do(t, s, http.MethodGet, "/api/result", "").Body.String()
	onceResult, onceHas := store.Latest()

	require.Equal(t, http.StatusNoContent, do(t, s, http.MethodPost, "/api/clear", "").Code)
	twice := do(t, s, http.MethodGet, "/api/result", "").Body.String()
	twiceResult, twiceHas := store.Latest()

	assert.JSONEq(t, once, twice)
	assert.Equal(t, onceResult, twiceResult)
	assert.False(t, onceHas)
	assert.False(t, twiceHas)
}

func TestGuard_RejectsCrossOrigin(t *testing.T) {
	s, _, actions := newTestServer(t, Options{DefaultFile: "/src/pkg/mod.py"})

	for _, target := range []string{"/api/run", "/api/rcfile", "/api/clear"} {
		req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(`{"path":"/victim/evil.py"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Origin", "http://evil.example")
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code, target)
	}
	assert.Empty(t, actions.runs)

	req := httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader(`{"path":"/src/pkg/mod.py"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://"+req.Host)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"/src/pkg/mod.py"}, actions.runs)
}

func TestGuard_RequiresJSON(t *testing.T) {
	s, _, actions := newTestServer(t, Options{})

	for _, ct := range []string{"text/plain", "", "application/x-www-form-urlencoded"} {
		req := httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader(`{"path":"/src/evil.py"}`))
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code, ct)
	}
	assert.Empty(t, actions.runs)

	req := httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader(`{"path":"/src/ok.py"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestSameOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:8765", true},
		{"http://LOCALHOST:8765", true},
		{"http://localhost:9999", false},
		{"http://evil.example", false},
		{"null", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "http://localhost:8765/api/events", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, sameOrigin(req), tt.origin)
	}
}

func TestHandleRaw(t *testing.T) {
	s, store, _ := newTestServer(t, Options{})

	w := do(t, s, http.MethodGet, "/api/raw", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	store.ShowResults(result("/src/mod.py"))
	w = do(t, s, http.MethodGet, "/api/raw", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Exit status: normal exit")
	assert.Contains(t, body, "Exit code:   4 (warning message issued)")
	assert.Contains(t, body, "W0611:   1,0: : Unused import os")
}

func TestHandleLineContext(t *testing.T) {
	s, store, _ := newTestServer(t, Options{})
	path := filepath.Join(t.TempDir(), "mod.py")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\nc\nd\ne\n"), 0o644))

	w := do(t, s, http.MethodGet, "/api/line-context?line=3", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "no path and no result")

	store.ShowResults(result(path))
	w = do(t, s, http.MethodGet, "/api/line-context?line=3&radius=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var ctx model.LineContext
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ctx))
	require.Len(t, ctx.Lines, 3)
	assert.Equal(t, "c", ctx.Lines[1].Text)
	assert.True(t, ctx.Lines[1].Target)

	w = do(t, s, http.MethodGet, "/api/line-context?path="+path+"&line=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/api/line-context?line=1&radius=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/api/line-context?line=99", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ctx))
	assert.Contains(t, ctx.ErrorMsg, "out of range")
}

func TestHandleAboutHelpRCFile(t *testing.T) {
	s, _, _ := newTestServer(t, Options{DefaultFile: "/src/pkg/mod.py"})

	w := do(t, s, http.MethodGet, "/api/about", "")
	var about model.About
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &about))
	assert.Equal(t, "3.1.0", about.PylintVersion)

	w = do(t, s, http.MethodGet, "/api/help", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# pylintview")

	w = do(t, s, http.MethodPost, "/api/rcfile", "")
	assert.JSONEq(t, `{"path":"/src/pkg/pylintrc","created":true}`, w.Body.String())

	noDefault, _, _ := newTestServer(t, Options{})
	w = do(t, noDefault, http.MethodPost, "/api/rcfile", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStaticUI(t *testing.T) {
	s, _, _ := newTestServer(t, Options{})

	w := do(t, s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusFound, w.Code)

	w = do(t, s, http.MethodGet, "/ui/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<title>pylintview</title>")
}

func TestMetricsEndpoint(t *testing.T) {
	m, err := NewMetrics(false)
	require.NoError(t, err)
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	counter, err := m.provider.Meter("test").Int64Counter("pylint_runs_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)

	s, _, _ := newTestServer(t, Options{Metrics: m.Handler})
	w := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pylint_runs_total")

	plain, _, _ := newTestServer(t, Options{})
	w = do(t, plain, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestEvents(t *testing.T) {
	s, store, _ := newTestServer(t, Options{})
	store.ShowResults(result("/src/first.py"))

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// the latest result is replayed on connect
	ev := readEvent(t, conn)
	assert.Equal(t, "results", ev.Type)
	require.NotNil(t, ev.Result)
	assert.Equal(t, "/src/first.py", ev.Result.FilePath)

	require.Eventually(t, func() bool { return store.hub.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	store.ShowResults(result("/src/second.py"))
	ev = readEvent(t, conn)
	assert.Equal(t, "/src/second.py", ev.Result.FilePath)

	store.Clear()
	ev = readEvent(t, conn)
	assert.Equal(t, "cleared", ev.Type)
	assert.Nil(t, ev.Result)

	conn.Close()
	require.Eventually(t, func() bool { return store.hub.Clients() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestEvents_RejectsCrossOrigin(t *testing.T) {
	s, _, _ := newTestServer(t, Options{})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	req := httptest.NewRequest(http.MethodGet, "http://localhost:8765/api/events", nil)
	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, upgrader.CheckOrigin(req))
}
