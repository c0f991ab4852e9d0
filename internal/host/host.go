// Package host is the small plugin host the CLI front ends run: it injects
// settings into plugins, routes events between them and fans results out to
// whatever presenters are attached.
package host

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/hashicorp/go-version"

	"pylintview/internal/config"
	"pylintview/internal/model"
)

// ErrIncompatible is returned when a plugin needs a newer host.
var ErrIncompatible = errors.New("plugin is not compatible with this host")

// Topics published on the host bus.
const (
	TopicRunRequested   = "run.requested"
	TopicStopRequested  = "stop.requested"
	TopicClearRequested = "clear.requested"
	TopicFileSaved      = "file.saved"
)

// Event is something that happened in the host.
type Event struct {
	Topic string
	Path  string
}

// Handler receives events for one topic.
type Handler func(Event)

// Subscription identifies a handler so it can be removed again.
type Subscription struct {
	id    uint64
	topic string
}

// Presenter shows analysis results.
type Presenter interface {
	ShowResults(model.AnalysisResult)
	Clear()
}

// Plugin is what the host activates.
type Plugin interface {
	Name() string
	MinHostVersion() string
	Activate(h *Host) error
	Deactivate()
}

// Context is everything a plugin may use from the host.
type Context struct {
	Settings config.Settings
	Logger   *slog.Logger
	Version  string

	// Status shows a short message to the user. Optional.
	Status func(string)
}

// Host owns plugins, subscriptions and presenters.
type Host struct {
	ctx Context

	mu         sync.RWMutex
	nextID     uint64
	handlers   map[string]map[uint64]Handler
	presenters []Presenter
	plugins    []Plugin
}

// New creates a host around ctx. Missing logger and version are defaulted.
func New(ctx Context) *Host {
	if ctx.Logger == nil {
		ctx.Logger = slog.Default()
	}
	if ctx.Version == "" {
		ctx.Version = model.Version
	}
	return &Host{
		ctx:      ctx,
		handlers: make(map[string]map[uint64]Handler),
	}
}

// Context returns the injected context.
func (h *Host) Context() Context {
	return h.ctx
}

// Logger is a shortcut for Context().Logger.
func (h *Host) Logger() *slog.Logger {
	return h.ctx.Logger
}

// ShowStatus forwards msg to the status sink, or logs it when there is none.
func (h *Host) ShowStatus(msg string) {
	if h.ctx.Status != nil {
		h.ctx.Status(msg)
		return
	}
	h.ctx.Logger.Info(msg)
}

// Compatible reports whether the host satisfies minVersion.
func (h *Host) Compatible(minVersion string) bool {
	if minVersion == "" {
		return true
	}
	have, err := version.NewVersion(h.ctx.Version)
	if err != nil {
		return false
	}
	want, err := version.NewVersion(minVersion)
	if err != nil {
		return false
	}
	return have.GreaterThanOrEqual(want)
}

// Activate checks compatibility and activates p.
func (h *Host) Activate(p Plugin) error {
	if !h.Compatible(p.MinHostVersion()) {
		return fmt.Errorf("%w: %s needs %s, host is %s", ErrIncompatible, p.Name(), p.MinHostVersion(), h.ctx.Version)
	}
	if err := p.Activate(h); err != nil {
		return fmt.Errorf("activating %s: %w", p.Name(), err)
	}
	h.mu.Lock()
	h.plugins = append(h.plugins, p)
	h.mu.Unlock()
	h.ctx.Logger.Debug("Plugin activated", slog.String("plugin", p.Name()))
	return nil
}

// Shutdown deactivates plugins in reverse activation order.
func (h *Host) Shutdown() {
	h.mu.Lock()
	plugins := h.plugins
	h.plugins = nil
	h.mu.Unlock()

	for _, p := range slices.Backward(plugins) {
		p.Deactivate()
		h.ctx.Logger.Debug("Plugin deactivated", slog.String("plugin", p.Name()))
	}
}

// Subscribe registers fn for topic.
func (h *Host) Subscribe(topic string, fn Handler) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	if h.handlers[topic] == nil {
		h.handlers[topic] = make(map[uint64]Handler)
	}
	h.handlers[topic][h.nextID] = fn
	return Subscription{id: h.nextID, topic: topic}
}

// Unsubscribe removes a handler. Unknown subscriptions are ignored.
func (h *Host) Unsubscribe(s Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.handlers[s.topic], s.id)
	if len(h.handlers[s.topic]) == 0 {
		delete(h.handlers, s.topic)
	}
}

// Subscribers returns the number of handlers for topic.
func (h *Host) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers[topic])
}

// Publish calls every handler of ev.Topic in subscription order.
func (h *Host) Publish(ev Event) {
	h.mu.RLock()
	ids := make([]uint64, 0, len(h.handlers[ev.Topic]))
	for id := range h.handlers[ev.Topic] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]Handler, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.handlers[ev.Topic][id])
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// AddPresenter attaches a result consumer.
func (h *Host) AddPresenter(p Presenter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.presenters = append(h.presenters, p)
}

// ShowResults hands r to every presenter.
func (h *Host) ShowResults(r model.AnalysisResult) {
	for _, p := range h.snapshotPresenters() {
		p.ShowResults(r)
	}
}

// ClearResults clears every presenter.
func (h *Host) ClearResults() {
	for _, p := range h.snapshotPresenters() {
		p.Clear()
	}
}

func (h *Host) snapshotPresenters() []Presenter {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.presenters)
}
