package pylint

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/ianaindex"

	"pylintview/internal/model"
)

// MessageTemplate makes every diagnostic start with its code and line.
const MessageTemplate = "{msg_id}:{line:3d},{column}: {obj}: {msg}"

// TimestampLayout is how result timestamps are formatted.
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultEncoding is used when a request does not name one.
const DefaultEncoding = "utf-8"

const waitDelay = 2 * time.Second

// Listener receives every finished result.
type Listener func(model.AnalysisResult)

// Driver runs pylint in the background, one process at a time.
type Driver struct {
	interpreter string
	logger      *slog.Logger
	now         func() time.Time

	mu        sync.Mutex
	cmd       *exec.Cmd
	done      chan struct{}
	listeners []Listener
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = l
	}
}

// WithClock replaces time.Now for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		d.now = now
	}
}

// NewDriver creates a driver that launches pylint through interpreter.
func NewDriver(interpreter string, opts ...Option) *Driver {
	d := &Driver{
		interpreter: interpreter,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Interpreter returns the python executable the driver runs.
func (d *Driver) Interpreter() string {
	return d.interpreter
}

// OnFinished registers a listener for finished runs.
func (d *Driver) OnFinished(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// IsRunning is true while a pylint process is outstanding.
func (d *Driver) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cmd != nil
}

// Start launches pylint for req and returns immediately. The result goes to
// the registered listeners when the process exits.
func (d *Driver) Start(req model.AnalysisRequest) error {
	return d.start(req, nil)
}

// Run starts pylint and waits for the result. Cancelling ctx kills the child;
// the crash result is still returned together with ctx.Err().
func (d *Driver) Run(ctx context.Context, req model.AnalysisRequest) (model.AnalysisResult, error) {
	ch := make(chan model.AnalysisResult, 1)
	if err := d.start(req, func(r model.AnalysisResult) { ch <- r }); err != nil {
		return model.AnalysisResult{}, err
	}
	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		d.Stop()
		return <-ch, ctx.Err()
	}
}

// Stop kills the running process, if any, and waits until it has exited.
func (d *Driver) Stop() {
	d.mu.Lock()
	cmd, done := d.cmd, d.done
	d.mu.Unlock()
	if cmd == nil {
		return
	}
	if cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil {
			d.logger.Debug("Kill pylint", slog.String("error", err.Error()))
		}
	}
	<-done
}

func (d *Driver) start(req model.AnalysisRequest, onDone Listener) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd != nil {
		return ErrBusy
	}

	encoding := req.Encoding
	if encoding == "" {
		encoding = DefaultEncoding
	}

	cmd := exec.Command(d.interpreter, BuildArgs(req)...)
	cmd.Dir = filepath.Dir(req.FilePath)
	cmd.Env = append(os.Environ(), "PYTHONIOENCODING="+encoding)
	// grandchildren may keep the pipes open after a kill
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	ctx, span := startRunSpan(context.Background(), req.FilePath)
	started := time.Now()

	if err := cmd.Start(); err != nil {
		span.End()
		recordRunMetrics(ctx, time.Since(started), nil, false)
		d.logger.Error("Start pylint",
			slog.String("interpreter", d.interpreter),
			slog.String("file", req.FilePath),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	d.logger.Info("Pylint started",
		slog.String("file", req.FilePath),
		slog.Int("pid", cmd.Process.Pid),
	)

	done := make(chan struct{})
	d.cmd, d.done = cmd, done

	go func() {
		defer span.End()
		// pylint exits non-zero whenever it reports something
		_ = cmd.Wait()
		exitCode, status := exitInfo(cmd.ProcessState)

		result := Parse(
			decode(stdout.Bytes(), encoding),
			decode(stderr.Bytes(), encoding),
			exitCode, status, req.FilePath, d.now().Format(TimestampLayout),
		)
		result.ID = uuid.NewString()

		setRunSpanResult(span, result)
		recordRunMetrics(ctx, time.Since(started), &result, true)
		d.logger.Info("Pylint finished",
			slog.String("file", req.FilePath),
			slog.String("exit_status", status.String()),
			slog.Int("messages", result.Total()),
			slog.Duration("duration", time.Since(started)),
		)

		d.mu.Lock()
		if d.cmd == cmd {
			d.cmd, d.done = nil, nil
		}
		listeners := slices.Clone(d.listeners)
		d.mu.Unlock()
		close(done)

		if onDone != nil {
			onDone(result)
		}
		for _, l := range listeners {
			l(result)
		}
	}()
	return nil
}

// BuildArgs returns the interpreter arguments for req.
func BuildArgs(req model.AnalysisRequest) []string {
	args := []string{
		"-m", "pylint",
		"--output-format", "text",
		"--msg-template", MessageTemplate,
	}
	if req.ConfigFile != "" {
		args = append(args, "--rcfile", req.ConfigFile)
	}
	if hook := InitHook(req.SearchPaths); hook != "" {
		args = append(args, "--init-hook", hook)
	}
	return append(args, filepath.Base(req.FilePath))
}

// InitHook builds python code that puts paths at the front of sys.path,
// keeping their order. Empty when there is nothing to add.
func InitHook(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	parts := []string{"import sys"}
	for _, p := range slices.Backward(paths) {
		parts = append(parts, "sys.path.insert(0, "+strconv.Quote(p)+")")
	}
	return strings.Join(parts, "; ")
}

// exitInfo tells a normal exit (with its code) from a kill.
func exitInfo(ps *os.ProcessState) (*int, model.ExitStatus) {
	if ps == nil || !ps.Exited() {
		return nil, model.ExitCrash
	}
	return model.IntPtr(ps.ExitCode()), model.ExitNormal
}

// decode converts process output from the given IANA encoding to UTF-8.
// Unknown encodings and undecodable input are passed through unchanged.
func decode(b []byte, encoding string) string {
	enc, err := ianaindex.IANA.Encoding(encoding)
	if err != nil || enc == nil {
		return string(b)
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
