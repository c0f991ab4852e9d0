// Package plugin connects the pylint driver to the host.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pylintview/internal/host"
	"pylintview/internal/model"
	"pylintview/internal/pylint"
)

var (
	ErrNotPython   = errors.New("not a python file")
	ErrNotAbsolute = errors.New("file path must be absolute")
	ErrInactive    = errors.New("plugin is not active")
)

// MinHostVersion is the oldest host the plugin runs in.
const MinHostVersion = "1.0.0"

var pythonExts = []string{".py", ".pyw", ".pyi"}

// Pylint runs pylint for the host and hands results to its presenters.
type Pylint struct {
	driver *pylint.Driver

	mu     sync.Mutex
	host   *host.Host
	subs   []host.Subscription
	logger *slog.Logger
	last   string
}

// New wraps driver. Listeners are registered on the driver right away and
// ignore results while the plugin is inactive.
func New(driver *pylint.Driver) *Pylint {
	p := &Pylint{driver: driver, logger: slog.Default()}
	driver.OnFinished(p.finished)
	return p
}

func (p *Pylint) Name() string           { return "pylint" }
func (p *Pylint) MinHostVersion() string { return MinHostVersion }

// Activate subscribes to the host topics.
func (p *Pylint) Activate(h *host.Host) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.host = h
	p.logger = h.Logger().With(slog.String("plugin", p.Name()))
	p.subs = append(p.subs,
		h.Subscribe(host.TopicRunRequested, p.onRun),
		h.Subscribe(host.TopicFileSaved, p.onSaved),
		h.Subscribe(host.TopicStopRequested, func(host.Event) { p.Stop() }),
		h.Subscribe(host.TopicClearRequested, func(host.Event) { p.Clear() }),
	)
	return nil
}

// Deactivate stops any running analysis and releases all subscriptions. The
// host is detached first so the killed run is not presented.
func (p *Pylint) Deactivate() {
	p.mu.Lock()
	h, subs := p.host, p.subs
	p.host, p.subs = nil, nil
	p.mu.Unlock()

	p.driver.Stop()
	if h == nil {
		return
	}
	for _, s := range subs {
		h.Unsubscribe(s)
	}
}

// IsRunning reports whether an analysis is outstanding.
func (p *Pylint) IsRunning() bool {
	return p.driver.IsRunning()
}

// LastFile is the file most recently analysed, or "".
func (p *Pylint) LastFile() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// IsPython reports whether path has a python source extension.
func IsPython(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range pythonExts {
		if ext == e {
			return true
		}
	}
	return false
}

// CanRun tells why path cannot be analysed right now, or nil.
func (p *Pylint) CanRun(path string) error {
	if !IsPython(path) {
		return fmt.Errorf("%w: %s", ErrNotPython, path)
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %s", ErrNotAbsolute, path)
	}
	if p.driver.IsRunning() {
		return pylint.ErrBusy
	}
	return nil
}

// Request builds the analysis request for path from the injected settings.
func (p *Pylint) Request(path string) (model.AnalysisRequest, error) {
	h := p.currentHost()
	if h == nil {
		return model.AnalysisRequest{}, ErrInactive
	}
	s := h.Context().Settings
	return model.AnalysisRequest{
		FilePath:    path,
		Encoding:    s.Encoding,
		ConfigFile:  pylint.FindRCFile(filepath.Dir(path), s.ProjectRoot),
		SearchPaths: s.SearchPaths,
	}, nil
}

// Run starts an analysis of path in the background.
func (p *Pylint) Run(path string) error {
	req, err := p.prepare(path)
	if err != nil {
		return err
	}
	return p.driver.Start(req)
}

// RunWait analyses path and returns the result. Presenters get it too.
func (p *Pylint) RunWait(ctx context.Context, path string) (model.AnalysisResult, error) {
	req, err := p.prepare(path)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	return p.driver.Run(ctx, req)
}

// Stop kills the running analysis, if any.
func (p *Pylint) Stop() {
	p.driver.Stop()
}

// Clear empties every presenter.
func (p *Pylint) Clear() {
	if h := p.currentHost(); h != nil {
		h.ClearResults()
	}
}

// GenerateOrOpenRCFile returns the pylintrc that applies to fileDir,
// generating one in the project root when none exists. created is true when
// the file was written by this call.
func (p *Pylint) GenerateOrOpenRCFile(ctx context.Context, fileDir string) (path string, created bool, err error) {
	h := p.currentHost()
	if h == nil {
		return "", false, ErrInactive
	}
	root := h.Context().Settings.ProjectRoot
	if existing := pylint.FindRCFile(fileDir, root); existing != "" {
		return existing, false, nil
	}
	path, err = pylint.GenerateRCFile(ctx, p.driver.Interpreter(), fileDir, root)
	if err != nil {
		return path, false, err
	}
	p.logger.Info("Generated pylintrc", slog.String("path", path))
	return path, true, nil
}

// About collects what the about view shows. A failed probe leaves the pylint
// fields as "Unknown".
func (p *Pylint) About(ctx context.Context) model.About {
	about := model.About{
		PluginVersion:  model.Version,
		PluginLocation: model.UnknownVersion,
		Interpreter:    p.driver.Interpreter(),
	}
	if exe, err := os.Executable(); err == nil {
		about.PluginLocation = exe
	}
	inst, err := pylint.Probe(ctx, p.driver.Interpreter())
	if err != nil {
		p.logger.Warn("Probe pylint", slog.String("error", err.Error()))
	}
	about.PylintVersion = inst.Version
	about.PylintLocation = inst.Location
	about.Supported = inst.Supported
	return about
}

func (p *Pylint) prepare(path string) (model.AnalysisRequest, error) {
	if err := p.CanRun(path); err != nil {
		return model.AnalysisRequest{}, err
	}
	req, err := p.Request(path)
	if err != nil {
		return req, err
	}
	p.mu.Lock()
	p.last = path
	p.mu.Unlock()
	return req, nil
}

func (p *Pylint) currentHost() *host.Host {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.host
}

func (p *Pylint) onRun(ev host.Event) {
	path := ev.Path
	if path == "" {
		path = p.LastFile()
	}
	if err := p.Run(path); err != nil {
		p.report(err)
	}
}

func (p *Pylint) onSaved(ev host.Event) {
	if !IsPython(ev.Path) {
		return
	}
	err := p.Run(ev.Path)
	if errors.Is(err, pylint.ErrBusy) {
		p.logger.Debug("Skip analysis of saved file", slog.String("file", ev.Path))
		return
	}
	if err != nil {
		p.report(err)
	}
}

func (p *Pylint) report(err error) {
	if h := p.currentHost(); h != nil {
		h.ShowStatus(err.Error())
	}
}

func (p *Pylint) finished(r model.AnalysisResult) {
	h := p.currentHost()
	if h == nil {
		return
	}
	if r.ProcessError != nil {
		p.logger.Error("Pylint failed",
			slog.String("file", r.FilePath),
			slog.String("error", *r.ProcessError),
		)
	}
	h.ShowResults(r)
}
