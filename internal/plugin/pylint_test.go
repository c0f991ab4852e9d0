package plugin

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pylintview/internal/config"
	"pylintview/internal/host"
	"pylintview/internal/model"
	"pylintview/internal/pylint"
)

const reportScript = `printf '************* Module mod\nW0611:   1,0: : unused import os\nYour code has been rated at 5.00/10\n'
exit 4`

func fakeInterpreter(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "python")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func pythonFile(t *testing.T, dir string) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	path := filepath.Join(dir, "mod.py")
	require.NoError(t, os.WriteFile(path, []byte("import os\n"), 0o644))
	return path
}

type presenter struct {
	mu      sync.Mutex
	results []model.AnalysisResult
	cleared int
	got     chan struct{}
}

func newPresenter() *presenter {
	return &presenter{got: make(chan struct{}, 8)}
}

func (p *presenter) ShowResults(r model.AnalysisResult) {
	p.mu.Lock()
	p.results = append(p.results, r)
	p.mu.Unlock()
	p.got <- struct{}{}
}

func (p *presenter) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared++
}

func (p *presenter) wait(t *testing.T) model.AnalysisResult {
	t.Helper()
	select {
	case <-p.got:
	case <-time.After(10 * time.Second):
		t.Fatal("no result presented")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results[len(p.results)-1]
}

type fixture struct {
	host      *host.Host
	plugin    *Pylint
	presenter *presenter
	status    []string
}

func setup(t *testing.T, script string, settings config.Settings) *fixture {
	t.Helper()
	f := &fixture{presenter: newPresenter()}
	f.host = host.New(host.Context{
		Settings: settings,
		Version:  "1.2.0",
		Status:   func(s string) { f.status = append(f.status, s) },
	})
	f.host.AddPresenter(f.presenter)
	f.plugin = New(pylint.NewDriver(fakeInterpreter(t, script)))
	require.NoError(t, f.host.Activate(f.plugin))
	t.Cleanup(f.host.Shutdown)
	return f
}

func TestIsPython(t *testing.T) {
	for _, p := range []string{"/a/b.py", "/a/b.PYW", "stub.pyi"} {
		assert.True(t, IsPython(p), p)
	}
	for _, p := range []string{"/a/b.txt", "/a/py", "/a/b.py.bak"} {
		assert.False(t, IsPython(p), p)
	}
}

func TestPylint_CanRun(t *testing.T) {
	f := setup(t, "exec sleep 30", config.Default())
	file := pythonFile(t, "")

	assert.ErrorIs(t, f.plugin.CanRun("/tmp/readme.md"), ErrNotPython)
	assert.ErrorIs(t, f.plugin.CanRun("rel/mod.py"), ErrNotAbsolute)
	require.NoError(t, f.plugin.CanRun(file))

	require.NoError(t, f.plugin.Run(file))
	assert.ErrorIs(t, f.plugin.CanRun(file), pylint.ErrBusy)
	assert.ErrorIs(t, f.plugin.Run(file), pylint.ErrBusy)

	f.plugin.Stop()
	r := f.presenter.wait(t)
	assert.Equal(t, model.ExitCrash, r.ExitStatus)
	assert.NoError(t, f.plugin.CanRun(file))
}

func TestPylint_Request(t *testing.T) {
	project := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(project, ".pylintrc"), []byte("[MASTER]\n"), 0o644))

	s := config.Default()
	s.Encoding = "latin-1"
	s.ProjectRoot = project
	s.SearchPaths = []string{"/libs"}
	f := setup(t, "exit 0", s)

	file := pythonFile(t, "")
	req, err := f.plugin.Request(file)
	require.NoError(t, err)
	assert.Equal(t, model.AnalysisRequest{
		FilePath:    file,
		Encoding:    "latin-1",
		ConfigFile:  filepath.Join(project, ".pylintrc"),
		SearchPaths: []string{"/libs"},
	}, req)
}

func TestPylint_RunWaitPresents(t *testing.T) {
	f := setup(t, reportScript, config.Default())
	file := pythonFile(t, "")

	r, err := f.plugin.RunWait(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, file, r.FilePath)
	require.Len(t, r.Messages[model.CategoryWarning], 1)
	assert.Equal(t, "unused import os", r.Messages[model.CategoryWarning][0].Text)

	presented := f.presenter.wait(t)
	assert.Equal(t, r.ID, presented.ID)
	assert.Equal(t, file, f.plugin.LastFile())
}

func TestPylint_ProcessErrorStillPresented(t *testing.T) {
	f := setup(t, "echo 'No module named pylint' >&2\nexit 1", config.Default())

	require.NoError(t, f.plugin.Run(pythonFile(t, "")))
	r := f.presenter.wait(t)
	require.NotNil(t, r.ProcessError)
	assert.Contains(t, *r.ProcessError, "No module named pylint")
}

func TestPylint_Topics(t *testing.T) {
	f := setup(t, reportScript, config.Default())
	file := pythonFile(t, "")

	f.host.Publish(host.Event{Topic: host.TopicFileSaved, Path: file})
	r := f.presenter.wait(t)
	assert.Equal(t, file, r.FilePath)

	// empty path reruns the last file
	f.host.Publish(host.Event{Topic: host.TopicRunRequested})
	r = f.presenter.wait(t)
	assert.Equal(t, file, r.FilePath)

	f.host.Publish(host.Event{Topic: host.TopicClearRequested})
	f.presenter.mu.Lock()
	assert.Equal(t, 1, f.presenter.cleared)
	f.presenter.mu.Unlock()

	// saved non-python files are ignored without status noise
	f.host.Publish(host.Event{Topic: host.TopicFileSaved, Path: "/tmp/notes.txt"})
	f.host.Publish(host.Event{Topic: host.TopicRunRequested, Path: "/tmp/notes.txt"})
	require.Len(t, f.status, 1)
	assert.Contains(t, f.status[0], "not a python file")
}

func TestPylint_DeactivateReleasesSubscriptions(t *testing.T) {
	f := setup(t, reportScript, config.Default())
	for _, topic := range []string{host.TopicRunRequested, host.TopicFileSaved, host.TopicStopRequested, host.TopicClearRequested} {
		assert.Equal(t, 1, f.host.Subscribers(topic), topic)
	}

	f.host.Shutdown()
	for _, topic := range []string{host.TopicRunRequested, host.TopicFileSaved, host.TopicStopRequested, host.TopicClearRequested} {
		assert.Zero(t, f.host.Subscribers(topic), topic)
	}

	_, err := f.plugin.Request(pythonFile(t, ""))
	assert.ErrorIs(t, err, ErrInactive)
}

func TestPylint_DeactivateDoesNotPresentKilledRun(t *testing.T) {
	f := setup(t, "exec sleep 30", config.Default())
	require.NoError(t, f.plugin.Run(pythonFile(t, "")))

	f.plugin.Deactivate()
	assert.False(t, f.plugin.IsRunning())
	f.presenter.mu.Lock()
	assert.Empty(t, f.presenter.results)
	f.presenter.mu.Unlock()
}

// panel keeps the latest result the way the real front ends do.
type panel struct {
	mu     sync.Mutex
	result *model.AnalysisResult
}

func (p *panel) ShowResults(r model.AnalysisResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result = &r
}

func (p *panel) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result = nil
}

func (p *panel) state() *model.AnalysisResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

func TestPylint_ClearTwiceIsIdempotent(t *testing.T) {
	f := setup(t, reportScript, config.Default())
	view := &panel{}
	f.host.AddPresenter(view)

	_, err := f.plugin.RunWait(context.Background(), pythonFile(t, ""))
	require.NoError(t, err)
	require.NotNil(t, view.state())

	f.plugin.Clear()
	once := view.state()
	f.plugin.Clear()
	assert.Equal(t, once, view.state())
	assert.Nil(t, view.state())

	f.presenter.mu.Lock()
	assert.Equal(t, 2, f.presenter.cleared)
	f.presenter.mu.Unlock()
}

func TestPylint_GenerateOrOpenRCFile(t *testing.T) {
	project := t.TempDir()
	s := config.Default()
	s.ProjectRoot = project
	f := setup(t, `printf '[MAIN]\njobs=1\n'`, s)

	fileDir := t.TempDir()
	path, created, err := f.plugin.GenerateOrOpenRCFile(context.Background(), fileDir)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, filepath.Join(project, pylint.RCFileName), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[MAIN]\njobs=1\n", string(data))

	again, created, err := f.plugin.GenerateOrOpenRCFile(context.Background(), fileDir)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, path, again)
}

func TestPylint_GenerateRCFileLogsOnce(t *testing.T) {
	var buf bytes.Buffer
	s := config.Default()
	s.ProjectRoot = t.TempDir()
	h := host.New(host.Context{
		Settings: s,
		Version:  "1.2.0",
		Logger:   slog.New(slog.NewTextHandler(&buf, nil)),
	})
	p := New(pylint.NewDriver(fakeInterpreter(t, `printf '[MAIN]\n'`)))
	require.NoError(t, h.Activate(p))
	t.Cleanup(h.Shutdown)

	_, created, err := p.GenerateOrOpenRCFile(context.Background(), t.TempDir())
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, 1, strings.Count(buf.String(), "Generated pylintrc"))
	assert.Contains(t, buf.String(), "plugin=pylint")
}

func TestPylint_About(t *testing.T) {
	f := setup(t, `printf '2.17.4\n/usr/lib/python3/site-packages/pylint\n'`, config.Default())

	about := f.plugin.About(context.Background())
	assert.Equal(t, model.Version, about.PluginVersion)
	assert.Equal(t, "2.17.4", about.PylintVersion)
	assert.Equal(t, "/usr/lib/python3/site-packages/pylint", about.PylintLocation)
	assert.True(t, about.Supported)
	assert.NotEmpty(t, about.PluginLocation)
}

func TestPylint_AboutProbeFailure(t *testing.T) {
	f := setup(t, "exit 1", config.Default())

	about := f.plugin.About(context.Background())
	assert.Equal(t, "Unknown", about.PylintVersion)
	assert.Equal(t, "Unknown", about.PylintLocation)
	assert.False(t, about.Supported)
}
