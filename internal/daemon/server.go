package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/asheshgoplani/promptbuffer/internal/config"
	"github.com/asheshgoplani/promptbuffer/internal/logging"
	"github.com/asheshgoplani/promptbuffer/internal/platform"
	"github.com/asheshgoplani/promptbuffer/internal/plugins"
	"github.com/asheshgoplani/promptbuffer/internal/prompt"
	"github.com/asheshgoplani/promptbuffer/internal/supervisor"
	"github.com/asheshgoplani/promptbuffer/internal/worker"
)

var daemonLog = logging.ForComponent(logging.CompDaemon)

var (
	// ErrAlreadyRunning means another daemon owns the socket.
	ErrAlreadyRunning = errors.New("daemon already running")

	// ErrUnsupported means the platform has no usable unix sockets.
	ErrUnsupported = errors.New("unix sockets are not supported on this platform")
)

// connTimeout bounds one request/response exchange.
const connTimeout = 5 * time.Second

// DefaultMaxWorkers is the per-dialect worker limit when [supervisor]
// max_workers is unset.
const DefaultMaxWorkers = 8

// Server owns one supervisor per dialect and answers socket requests.
type Server struct {
	socketPath string
	metrics    *Metrics
	started    time.Time

	mu   sync.Mutex
	cfg  *config.Config
	sups map[string]*supervisor.Supervisor

	conns sync.WaitGroup
}

// NewServer creates a server for cfg listening on socketPath. metrics may
// be nil.
func NewServer(cfg *config.Config, socketPath string, metrics *Metrics) *Server {
	s := &Server{
		socketPath: socketPath,
		metrics:    metrics,
		cfg:        cfg,
		sups:       make(map[string]*supervisor.Supervisor),
	}
	if metrics != nil {
		metrics.gauge("promptbuffer_workers", "Live workers across dialects", func() float64 {
			return float64(s.liveWorkers())
		})
	}
	return s
}

// Run listens until ctx is cancelled, then closes every worker and removes
// the socket.
func (s *Server) Run(ctx context.Context) error {
	if !platform.SupportsUnixSockets() {
		return ErrUnsupported
	}
	if err := platform.CheckSocketPath(s.socketPath); err != nil {
		return err
	}
	if IsAlive(s.socketPath) {
		return fmt.Errorf("%w on %s", ErrAlreadyRunning, s.socketPath)
	}

	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	// A socket file nobody answers on is left over from a crash.
	_ = os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.started = time.Now()
	daemonLog.Info("daemon_listening", slog.String("socket", s.socketPath), slog.Int("pid", os.Getpid()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		return s.acceptLoop(ctx, ln)
	})
	if addr := s.config().Daemon.MetricsAddr; addr != "" && s.metrics != nil {
		g.Go(func() error {
			return s.serveMetrics(ctx, addr)
		})
	}

	err = g.Wait()
	s.conns.Wait()
	s.closeSupervisors()
	_ = os.Remove(s.socketPath)
	daemonLog.Info("daemon_stopped")
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			daemonLog.Warn("accept_failed", slog.String("error", err.Error()))
			continue
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handle(conn)
		}()
	}
}

func (s *Server) serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	daemonLog.Info("metrics_listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		daemonLog.Debug("read_failed", slog.String("error", err.Error()))
		return
	}

	var req Request
	var resp Response
	if err := json.Unmarshal(line, &req); err != nil {
		resp = Response{Error: fmt.Sprintf("bad request: %v", err)}
		s.count("invalid", "error")
	} else {
		resp = s.Dispatch(req)
	}

	out, err := encodeLine(resp)
	if err != nil {
		daemonLog.Error("encode_failed", slog.String("error", err.Error()))
		return
	}
	if _, err := conn.Write(out); err != nil {
		daemonLog.Debug("write_failed", slog.String("error", err.Error()))
	}
}

// Dispatch answers one request.
func (s *Server) Dispatch(req Request) Response {
	op := req.Op
	if op == "" {
		op = OpRender
	}
	switch op {
	case OpPing:
		s.count(op, "ok")
		return Response{}
	case OpStats:
		s.count(op, "ok")
		return Response{Stats: s.Stats()}
	case OpRender:
		return s.render(req)
	default:
		s.count("invalid", "error")
		return Response{Error: fmt.Sprintf("unknown op %q", op)}
	}
}

func (s *Server) render(req Request) Response {
	if !filepath.IsAbs(req.Path) {
		s.count(OpRender, "error")
		return Response{Error: fmt.Sprintf("path must be absolute: %q", req.Path)}
	}
	path := filepath.Clean(req.Path)

	sup, err := s.supervisorFor(req.Dialect)
	if err != nil {
		s.count(OpRender, "error")
		return Response{Error: err.Error()}
	}

	text, err := sup.Render(path)
	if err == nil {
		s.count(OpRender, "ok")
		return Response{Prompt: text}
	}

	daemonLog.Warn("render_failed", slog.String("path", path), slog.String("error", err.Error()))
	s.count(OpRender, "error")
	resp := Response{Error: err.Error()}
	if fallback, ferr := s.fallback(req.Dialect, path); ferr == nil {
		resp.Prompt = fallback
	}
	return resp
}

// fallback renders the header and marker alone.
func (s *Server) fallback(dialect, path string) (string, error) {
	d, err := s.dialect(dialect)
	if err != nil {
		return "", err
	}
	return prompt.Renderer{Dialect: d, Path: path}.Render(nil), nil
}

func (s *Server) dialect(name string) (prompt.Dialect, error) {
	if name == "" {
		name = s.config().GetDialect()
	}
	return prompt.DialectByName(name)
}

// supervisorFor returns the supervisor for a dialect, creating it on first use.
func (s *Server) supervisorFor(name string) (*supervisor.Supervisor, error) {
	d, err := s.dialect(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sup, ok := s.sups[d.Name]; ok {
		return sup, nil
	}
	factory, err := plugins.Factory(s.cfg, d)
	if err != nil {
		return nil, err
	}
	sup := supervisor.New(factory, s.supervisorOptions(s.cfg))
	s.sups[d.Name] = sup
	return sup, nil
}

// supervisorOptions applies the daemon's worker default. Every shell shares
// the daemon, so one worker would be evicted whenever two shells sit in
// different directories.
func (s *Server) supervisorOptions(cfg *config.Config) supervisor.Options {
	opts := supervisor.OptionsFromConfig(cfg, s.observer())
	if cfg.Supervisor.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}
	return opts
}

// observer keeps a nil *Metrics out of the interface.
func (s *Server) observer() worker.Observer {
	if s.metrics == nil {
		return nil
	}
	return s.metrics
}

// Reconfigure applies a reloaded config to every supervisor. An invalid
// config is rejected and the running one kept.
func (s *Server) Reconfigure(cfg *config.Config) error {
	if err := cfg.Validate(plugins.Names()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	for name, sup := range s.sups {
		d, err := prompt.DialectByName(name)
		if err != nil {
			continue
		}
		factory, err := plugins.Factory(cfg, d)
		if err != nil {
			return err
		}
		sup.Reconfigure(factory, s.supervisorOptions(cfg))
	}
	daemonLog.Info("daemon_reconfigured", slog.Int("supervisors", len(s.sups)))
	return nil
}

// Stats snapshots every supervisor.
func (s *Server) Stats() *StatsReply {
	s.mu.Lock()
	defer s.mu.Unlock()
	reply := &StatsReply{
		PID:         os.Getpid(),
		Socket:      s.socketPath,
		Supervisors: make(map[string]supervisor.Stats, len(s.sups)),
	}
	if !s.started.IsZero() {
		reply.Uptime = time.Since(s.started).Round(time.Second).String()
	}
	for name, sup := range s.sups {
		reply.Supervisors[name] = sup.Stats()
	}
	reply.Events = logging.Events()
	return reply
}

func (s *Server) liveWorkers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sup := range s.sups {
		n += sup.Stats().Workers
	}
	return n
}

func (s *Server) config() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Server) closeSupervisors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, sup := range s.sups {
		sup.Close()
		delete(s.sups, name)
	}
}

func (s *Server) count(op, outcome string) {
	if s.metrics != nil {
		s.metrics.request(op, outcome)
	}
}
