// Package web serves the results panel over HTTP.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"pylintview/internal/model"
	"pylintview/internal/plugin"
	"pylintview/internal/pylint"
)

//go:embed static/*
var staticFS embed.FS

//go:embed help.md
var helpMD string

const (
	defaultRadius = 3
	maxRadius     = 50
	probeTimeout  = 10 * time.Second
)

// Actions is what the API can ask the pylint plugin to do.
type Actions interface {
	Run(path string) error
	Stop()
	Clear()
	IsRunning() bool
	GenerateOrOpenRCFile(ctx context.Context, fileDir string) (string, bool, error)
	About(ctx context.Context) model.About
}

// Options configures a Server.
type Options struct {
	// DefaultFile is analysed when a run request names no file.
	DefaultFile string
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server is the web front end.
type Server struct {
	actions Actions
	store   *Store
	hub     *Hub
	opts    Options
	engine  *gin.Engine
}

// NewServer wires the routes.
func NewServer(actions Actions, store *Store, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		actions: actions,
		store:   store,
		hub:     store.hub,
		opts:    opts,
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery(), otelgin.Middleware("pylintview"), s.requestLogger())

	subFS, _ := fs.Sub(staticFS, "static")
	s.engine.StaticFS("/ui", http.FS(subFS))
	s.engine.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/ui/")
	})

	api := s.engine.Group("/api", guard())
	api.GET("/result", s.handleResult)
	api.POST("/run", s.handleRun)
	api.POST("/stop", s.handleStop)
	api.POST("/clear", s.handleClear)
	api.GET("/raw", s.handleRaw)
	api.GET("/line-context", s.handleLineContext)
	api.GET("/about", s.handleAbout)
	api.POST("/rcfile", s.handleRCFile)
	api.GET("/help", s.handleHelp)
	api.GET("/events", s.handleEvents)

	if opts.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	return s
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("Web server listening", slog.String("addr", "http://"+addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down web server: %w", err)
		}
		return nil
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.opts.Logger.Debug("HTTP request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

type resultResponse struct {
	HasResult     bool                  `json:"has_result"`
	Running       bool                  `json:"running"`
	Result        *model.AnalysisResult `json:"result,omitempty"`
	Report        string                `json:"report"`
	VerboseReport string                `json:"verbose_report,omitempty"`
	Version       string                `json:"version"`
}

func (s *Server) handleResult(c *gin.Context) {
	resp := resultResponse{
		Running: s.actions.IsRunning(),
		Version: model.Version,
	}
	r, ok := s.store.Latest()
	resp.HasResult = ok
	resp.Report = pylint.GenerateReport(r, false)
	if ok {
		resp.Result = &r
		resp.VerboseReport = pylint.GenerateReport(r, true)
	}
	c.JSON(http.StatusOK, resp)
}

type runRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleRun(c *gin.Context) {
	var req runRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Path == "" {
		req.Path = s.opts.DefaultFile
	}
	if req.Path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	err := s.actions.Run(req.Path)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"path": req.Path})
	case errors.Is(err, pylint.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, plugin.ErrNotPython), errors.Is(err, plugin.ErrNotAbsolute):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) handleStop(c *gin.Context) {
	running := s.actions.IsRunning()
	if running {
		s.actions.Stop()
	}
	c.JSON(http.StatusOK, gin.H{"stopped": running})
}

func (s *Server) handleClear(c *gin.Context) {
	s.actions.Clear()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRaw(c *gin.Context) {
	r, ok := s.store.Latest()
	if !ok {
		c.String(http.StatusNotFound, "No results available\n")
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Exit status: %s\nExit code:   %s\n", pylint.ExitStatusText(r), pylint.ExitCodeText(r))
	if r.ProcessError != nil {
		b.WriteString("\n" + *r.ProcessError + "\n")
	}
	b.WriteString("\n--- Standard output ---\n" + model.Deref(r.Stdout))
	b.WriteString("\n--- Standard error ---\n" + model.Deref(r.Stderr))
	c.String(http.StatusOK, b.String())
}

func (s *Server) handleLineContext(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		if r, ok := s.store.Latest(); ok {
			path = r.FilePath
		}
	}
	lineStr := c.Query("line")
	if path == "" || lineStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path and line are required"})
		return
	}
	line, err := strconv.Atoi(lineStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid line number"})
		return
	}
	radius := defaultRadius
	if v := c.Query("radius"); v != "" {
		radius, err = strconv.Atoi(v)
		if err != nil || radius < 0 || radius > maxRadius {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid radius"})
			return
		}
	}
	c.JSON(http.StatusOK, model.GetLineContext(path, line, radius))
}

func (s *Server) handleAbout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()
	c.JSON(http.StatusOK, s.actions.About(ctx))
}

type rcFileRequest struct {
	Dir string `json:"dir"`
}

func (s *Server) handleRCFile(c *gin.Context) {
	var req rcFileRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Dir == "" && s.opts.DefaultFile != "" {
		req.Dir = filepath.Dir(s.opts.DefaultFile)
	}
	path, created, err := s.actions.GenerateOrOpenRCFile(c.Request.Context(), req.Dir)
	switch {
	case errors.Is(err, pylint.ErrNoRCFileLocation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"path": path, "created": created})
	}
}

func (s *Server) handleHelp(c *gin.Context) {
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(helpMD))
}

func (s *Server) handleEvents(c *gin.Context) {
	var first *Event
	if r, ok := s.store.Latest(); ok {
		first = &Event{Type: "results", Result: &r}
	}
	s.hub.Serve(c.Writer, c.Request, first)
}
