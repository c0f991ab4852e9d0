package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
	"github.com/tcnksm/go-latest"
	"golang.org/x/sync/errgroup"

	"pylintview/internal/config"
	"pylintview/internal/host"
	"pylintview/internal/model"
	"pylintview/internal/plugin"
	"pylintview/internal/pylint"
	"pylintview/internal/tui"
	"pylintview/internal/watch"
	"pylintview/internal/web"
)

func checkUpdate(currentVer string, explicit bool) {
	githubTag := &latest.GithubTag{
		Owner:      "pylintview",
		Repository: "pylintview",
	}

	res, err := latest.Check(githubTag, currentVer)
	if err != nil {
		if explicit {
			fmt.Fprintf(os.Stderr, "Could not check for updates: %v\n", err)
		}
		return
	}

	if res.Outdated {
		fmt.Printf("\n✨ A new version is available: %s (you have %s)\n", res.Current, currentVer)
	} else if explicit {
		fmt.Printf("✅ You are using the latest version: %s\n", currentVer)
	}
}

type options struct {
	file        string
	configPath  string
	interpreter string
	project     string
	encoding    string
	searchPaths []string
	logLevel    string
	verbose     bool
	output      string
}

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pylintview [options] [file.py]\n\n")
		fmt.Fprintf(os.Stderr, "pylintview runs pylint on a python file and shows its messages\n")
		fmt.Fprintf(os.Stderr, "grouped by category, with the rate and the raw output.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pylintview mod.py              # results panel (TUI)\n")
		fmt.Fprintf(os.Stderr, "  pylintview --report mod.py     # print a report\n")
		fmt.Fprintf(os.Stderr, "  pylintview --json mod.py       # print the result as JSON\n")
		fmt.Fprintf(os.Stderr, "  pylintview --web --watch mod.py\n")
	}

	var opts options
	jsonFlag := pflag.BoolP("json", "j", false, "Print the analysis result as JSON")
	reportFlag := pflag.BoolP("report", "r", false, "Print a text report (CLI mode)")
	pflag.StringVarP(&opts.output, "output", "o", "", "Save the report to the specified file (with --report)")
	pflag.BoolVarP(&opts.verbose, "verbose", "v", false, "Include the raw pylint output in the report")
	webFlag := pflag.BoolP("web", "w", false, "Serve the results panel over HTTP")
	watchFlag := pflag.Bool("watch", false, "Re-run pylint whenever the file is saved")
	rcFlag := pflag.Bool("generate-rcfile", false, "Show the pylintrc in use, generating one if there is none")
	aboutFlag := pflag.Bool("about", false, "Show version information about pylintview and pylint")
	configureFlag := pflag.Bool("configure", false, "Edit the settings interactively")
	versionFlag := pflag.BoolP("version", "V", false, "Print version information")
	updateFlag := pflag.BoolP("update", "u", false, "Check for a newer release")
	helpFlag := pflag.BoolP("help", "h", false, "Show this help message")
	pflag.StringVar(&opts.configPath, "config", "", "Settings file (default: user config dir)")
	pflag.StringVar(&opts.interpreter, "interpreter", "", "Python interpreter that runs pylint")
	pflag.StringVar(&opts.project, "project", "", "Project root for pylintrc lookup")
	pflag.StringVar(&opts.encoding, "encoding", "", "Encoding of the file and of pylint's output")
	pflag.StringSliceVar(&opts.searchPaths, "search-path", nil, "Directory to add to sys.path (repeatable)")
	pflag.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pflag.Parse()

	if *helpFlag {
		pflag.Usage()
		return
	}

	if *versionFlag {
		fmt.Printf("pylintview version %s\n", model.Version)
		return
	}

	if *updateFlag {
		checkUpdate(model.Version, true)
		return
	}

	if pflag.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "Error: only one file can be analysed at a time")
		os.Exit(2)
	}
	if pflag.NArg() == 1 {
		abs, err := filepath.Abs(pflag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		opts.file = abs
	}

	if opts.configPath == "" {
		if p, err := config.DefaultPath(); err == nil {
			opts.configPath = p
		}
	}

	if *configureFlag {
		if err := runConfigure(opts.configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	settings, err := loadSettings(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	tuiMode := !*reportFlag && !*jsonFlag && !*webFlag && !*rcFlag && !*aboutFlag &&
		(isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
	logger, closeLog := setupLogger(opts.logLevel, tuiMode)
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *aboutFlag:
		err = runAbout(ctx, settings, logger)
	case *rcFlag:
		err = runGenerateRCFile(ctx, settings, logger, opts.file)
	case *webFlag:
		err = runWebMode(ctx, settings, logger, opts.file, *watchFlag)
	case *jsonFlag:
		err = runJSONMode(ctx, settings, logger, opts.file)
	case *reportFlag || !tuiMode:
		err = runReportMode(ctx, settings, logger, opts, *watchFlag)
	default:
		err = runTuiMode(ctx, settings, logger, opts.file, *watchFlag)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadSettings(opts options) (config.Settings, error) {
	s := config.Default()
	if opts.configPath != "" {
		var err error
		if s, err = config.Load(opts.configPath); err != nil {
			return s, err
		}
	}
	if opts.interpreter != "" {
		s.Interpreter = opts.interpreter
	}
	if opts.project != "" {
		abs, err := filepath.Abs(opts.project)
		if err != nil {
			return s, err
		}
		s.ProjectRoot = abs
	}
	if opts.encoding != "" {
		s.Encoding = opts.encoding
	}
	if len(opts.searchPaths) > 0 {
		s.SearchPaths = opts.searchPaths
	}
	return s, s.Validate()
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// setupLogger logs to stderr, or to a file while the TUI owns the terminal.
func setupLogger(level string, tuiMode bool) (*slog.Logger, func()) {
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(level)}
	if !tuiMode {
		return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts)), func() {}
	}

	var w io.Writer = io.Discard
	closeFn := func() {}
	if dir, err := os.UserCacheDir(); err == nil {
		dir = filepath.Join(dir, "pylintview")
		if err := os.MkdirAll(dir, 0o755); err == nil {
			f, err := os.OpenFile(filepath.Join(dir, "pylintview.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				w = f
				closeFn = func() { f.Close() }
			}
		}
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts)), closeFn
}

// newPlugin builds the driver and plugin for settings. The host is created
// separately so front ends can attach their presenters first.
func newPlugin(settings config.Settings, logger *slog.Logger) *plugin.Pylint {
	interp := pylint.DetectInterpreter(settings.Interpreter)
	return plugin.New(pylint.NewDriver(interp, pylint.WithLogger(logger)))
}

func startHost(settings config.Settings, logger *slog.Logger, p *plugin.Pylint, status func(string), presenters ...host.Presenter) (*host.Host, error) {
	h := host.New(host.Context{
		Settings: settings,
		Logger:   logger,
		Status:   status,
	})
	for _, pr := range presenters {
		h.AddPresenter(pr)
	}
	if err := h.Activate(p); err != nil {
		return nil, err
	}
	return h, nil
}

func startWatcher(h *host.Host, settings config.Settings, logger *slog.Logger, file string) (*watch.Watcher, error) {
	target := file
	if target == "" {
		var err error
		if target, err = os.Getwd(); err != nil {
			return nil, err
		}
	}
	return watch.New([]string{target}, func(path string) {
		h.Publish(host.Event{Topic: host.TopicFileSaved, Path: path})
	},
		watch.WithDebounce(settings.Watch.Debounce),
		watch.WithLogger(logger),
		watch.WithMatch(plugin.IsPython),
	)
}

func requireFile(file string) error {
	if file == "" {
		return errors.New("no file given")
	}
	return nil
}

func runReportMode(ctx context.Context, settings config.Settings, logger *slog.Logger, opts options, watchMode bool) error {
	if watchMode {
		return runReportWatch(ctx, settings, logger, opts)
	}
	if err := requireFile(opts.file); err != nil {
		return err
	}

	p := newPlugin(settings, logger)
	h, err := startHost(settings, logger, p, nil)
	if err != nil {
		return err
	}
	defer h.Shutdown()

	result, err := p.RunWait(ctx, opts.file)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	report := pylint.GenerateReport(result, opts.verbose)

	if opts.output != "" {
		if err := os.WriteFile(opts.output, []byte(report), 0o644); err != nil {
			return fmt.Errorf("writing report to %s: %w", opts.output, err)
		}
		fmt.Printf("Report saved to %s\n", opts.output)
		return nil
	}
	fmt.Print(report)
	return nil
}

// reportPresenter prints every result as it arrives.
type reportPresenter struct {
	w       io.Writer
	verbose bool
}

func (r reportPresenter) ShowResults(res model.AnalysisResult) {
	fmt.Fprintln(r.w, strings.Repeat("─", 60))
	fmt.Fprint(r.w, pylint.GenerateReport(res, r.verbose))
}

func (r reportPresenter) Clear() {}

func runReportWatch(ctx context.Context, settings config.Settings, logger *slog.Logger, opts options) error {
	p := newPlugin(settings, logger)
	h, err := startHost(settings, logger, p, nil, reportPresenter{w: os.Stdout, verbose: opts.verbose})
	if err != nil {
		return err
	}
	defer h.Shutdown()

	w, err := startWatcher(h, settings, logger, opts.file)
	if err != nil {
		return err
	}
	if opts.file != "" {
		h.Publish(host.Event{Topic: host.TopicRunRequested, Path: opts.file})
	}
	logger.Info("Watching for saves, press Ctrl-C to stop", slog.Any("dirs", w.Dirs()))
	return w.Run(ctx)
}

func runJSONMode(ctx context.Context, settings config.Settings, logger *slog.Logger, file string) error {
	if err := requireFile(file); err != nil {
		return err
	}
	p := newPlugin(settings, logger)
	h, err := startHost(settings, logger, p, nil)
	if err != nil {
		return err
	}
	defer h.Shutdown()

	result, err := p.RunWait(ctx, file)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runAbout(ctx context.Context, settings config.Settings, logger *slog.Logger) error {
	about := newPlugin(settings, logger).About(ctx)
	fmt.Printf("pylintview version %s\n", about.PluginVersion)
	fmt.Printf("Location:         %s\n", about.PluginLocation)
	fmt.Printf("pylint version:   %s\n", about.PylintVersion)
	fmt.Printf("pylint location:  %s\n", about.PylintLocation)
	fmt.Printf("Interpreter:      %s\n", about.Interpreter)
	if !about.Supported {
		fmt.Printf("\npylint %s or later is required.\n", pylint.MinimumVersion)
	}
	checkUpdate(about.PluginVersion, false)
	return nil
}

func runGenerateRCFile(ctx context.Context, settings config.Settings, logger *slog.Logger, file string) error {
	p := newPlugin(settings, logger)
	h, err := startHost(settings, logger, p, nil)
	if err != nil {
		return err
	}
	defer h.Shutdown()

	dir := ""
	if file != "" {
		dir = filepath.Dir(file)
	} else if dir, err = os.Getwd(); err != nil {
		return err
	}
	path, created, err := p.GenerateOrOpenRCFile(ctx, dir)
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("Generated %s\n", path)
	} else {
		fmt.Printf("Using %s\n", path)
	}
	return nil
}

func runWebMode(ctx context.Context, settings config.Settings, logger *slog.Logger, file string, watchMode bool) error {
	metrics, err := web.NewMetrics(true)
	if err != nil {
		return err
	}
	defer metrics.Shutdown(context.Background())

	p := newPlugin(settings, logger)
	store := web.NewStore(web.NewHub(logger))
	h, err := startHost(settings, logger, p, nil, store)
	if err != nil {
		return err
	}
	defer h.Shutdown()

	srv := web.NewServer(p, store, web.Options{
		DefaultFile: file,
		Metrics:     metrics.Handler,
		Logger:      logger,
	})

	var w *watch.Watcher
	if watchMode {
		if w, err = startWatcher(h, settings, logger, file); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, settings.Web.Addr)
	})
	if w != nil {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	if file != "" {
		if err := p.Run(file); err != nil {
			logger.Warn("Initial analysis", slog.String("error", err.Error()))
		}
	}
	return g.Wait()
}

func runTuiMode(ctx context.Context, settings config.Settings, logger *slog.Logger, file string, watchMode bool) error {
	p := newPlugin(settings, logger)
	m := tui.InitialModel(p, file)
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	presenter := tui.NewPresenter(prog)

	h, err := startHost(settings, logger, p, presenter.Status, presenter)
	if err != nil {
		return err
	}
	defer h.Shutdown()

	if watchMode {
		w, err := startWatcher(h, settings, logger, file)
		if err != nil {
			return err
		}
		wctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := w.Run(wctx); err != nil {
				logger.Error("Watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running the results panel: %w", err)
	}
	return nil
}

func runConfigure(path string) error {
	if path == "" {
		return errors.New("no settings file location")
	}
	current, err := config.Load(path)
	if err != nil {
		return err
	}
	updated, err := tui.EditSettings(current)
	if err != nil {
		return err
	}
	if err := config.Save(path, updated); err != nil {
		return err
	}
	fmt.Printf("Settings saved to %s\n", path)
	return nil
}
