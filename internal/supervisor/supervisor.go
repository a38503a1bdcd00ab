// Package supervisor owns the per-path workers. With the default of one
// worker, changing directory retires the previous path's worker; a daemon
// serving several shells raises MaxWorkers and the least recently used
// path is evicted instead.
package supervisor

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/asheshgoplani/promptbuffer/internal/config"
	"github.com/asheshgoplani/promptbuffer/internal/logging"
	"github.com/asheshgoplani/promptbuffer/internal/prompt"
	"github.com/asheshgoplani/promptbuffer/internal/worker"
)

var supLog = logging.ForComponent(logging.CompSupervisor)

// ErrClosed is returned by Render after Close.
var ErrClosed = errors.New("supervisor closed")

const DefaultMaxWorkers = 1

// Options tune a Supervisor. Zero values select the defaults.
type Options struct {
	// MaxWorkers bounds the number of live workers (default 1).
	MaxWorkers int

	// SpawnRate limits new workers per second. Zero disables throttling.
	SpawnRate float64

	// SpawnBurst is the limiter burst (default 1 when SpawnRate is set).
	SpawnBurst int

	// Worker is passed to every worker the supervisor creates.
	Worker worker.Options
}

func (o Options) withDefaults() Options {
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = DefaultMaxWorkers
	}
	if o.SpawnRate > 0 && o.SpawnBurst <= 0 {
		o.SpawnBurst = 1
	}
	return o
}

// OptionsFromConfig reads the [worker] and [supervisor] sections.
func OptionsFromConfig(cfg *config.Config, obs worker.Observer) Options {
	return Options{
		MaxWorkers: cfg.Supervisor.GetMaxWorkers(),
		SpawnRate:  cfg.Supervisor.SpawnRate,
		SpawnBurst: cfg.Supervisor.SpawnBurst,
		Worker: worker.Options{
			ComputeBudget: cfg.Worker.ComputeBudget(),
			IdleTimeout:   cfg.Worker.IdleTimeout(),
			Observer:      obs,
		},
	}
}

func (o Options) limiter() *rate.Limiter {
	if o.SpawnRate <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(o.SpawnRate), o.SpawnBurst)
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Workers   int
	Paths     []string
	Current   string
	Evictions uint64
	Throttled uint64
}

// entry serializes requesters of one worker.
type entry struct {
	mu      sync.Mutex
	w       *worker.Worker
	used    uint64
	retired bool
}

// Supervisor maps paths to workers.
type Supervisor struct {
	mu      sync.Mutex
	factory worker.Factory
	opts    Options
	limiter *rate.Limiter
	workers map[string]*entry
	current string
	clock   uint64
	gen     uint64
	closed  bool

	evictions uint64
	throttled uint64

	sf singleflight.Group
}

// New creates an empty supervisor. Workers are created on first Render.
func New(factory worker.Factory, opts Options) *Supervisor {
	opts = opts.withDefaults()
	return &Supervisor{
		factory: factory,
		opts:    opts,
		limiter: opts.limiter(),
		workers: make(map[string]*entry),
	}
}

// Render returns the prompt for path, fresh if it is ready within the
// compute budget and cached otherwise. Concurrent calls for the same path
// share one request.
func (s *Supervisor) Render(path string) (string, error) {
	v, err, shared := s.sf.Do(path, func() (any, error) {
		return s.render(path)
	})
	if shared {
		logging.Aggregate(logging.CompSupervisor, "render_shared", slog.String("path", path))
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Supervisor) render(path string) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	s.current = path
	factory, wopts, gen := s.factory, s.opts.Worker, s.gen

	e, ok := s.workers[path]
	if !ok {
		if s.limiter != nil && !s.limiter.Allow() {
			s.throttled++
			s.mu.Unlock()
			supLog.Debug("spawn_throttled", slog.String("path", path))
			return FastRender(factory, path)
		}
		s.mu.Unlock()

		// The seed render runs plugins; other paths must not wait on it.
		w, err := worker.New(path, factory, wopts)
		if err != nil {
			supLog.Warn("worker_spawn_failed", slog.String("path", path), slog.String("error", err.Error()))
			return "", err
		}

		s.mu.Lock()
		switch existing, ok := s.workers[path]; {
		case s.closed:
			s.mu.Unlock()
			w.Close()
			return "", ErrClosed
		case s.gen != gen:
			// Reconfigured while spawning; the worker was built from the old factory.
			s.mu.Unlock()
			w.Close()
			return s.render(path)
		case ok:
			w.Close()
			e = existing
		default:
			e = &entry{w: w}
			s.workers[path] = e
		}
	}
	s.clock++
	e.used = s.clock
	evicted := s.evictLocked(path)
	s.mu.Unlock()

	retire(evicted)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.retired {
		return e.w.Cached(), nil
	}
	text, err := e.w.Get(factory)
	if err != nil && e.retired && errors.Is(err, worker.ErrChannel) {
		// Evicted while we waited; its last render is still the right answer.
		return e.w.Cached(), nil
	}
	return text, err
}

// evictLocked drops least recently used workers until the registry fits,
// never evicting keep. The caller closes the returned entries after
// releasing s.mu.
func (s *Supervisor) evictLocked(keep string) []*entry {
	var out []*entry
	for len(s.workers) > s.opts.MaxWorkers {
		victim := ""
		var oldest uint64
		for p, e := range s.workers {
			if p == keep {
				continue
			}
			if victim == "" || e.used < oldest {
				victim, oldest = p, e.used
			}
		}
		if victim == "" {
			break
		}
		supLog.Debug("worker_evicted", slog.String("path", victim))
		out = append(out, s.workers[victim])
		delete(s.workers, victim)
		s.evictions++
	}
	return out
}

func retire(entries []*entry) {
	for _, e := range entries {
		e.mu.Lock()
		e.retired = true
		e.w.Close()
		e.mu.Unlock()
	}
}

// FastRender renders path with only the fast plugins, without a worker.
func FastRender(factory worker.Factory, path string) (string, error) {
	if factory == nil {
		return "", &worker.SpawnError{Path: path, Err: errors.New("no buffer factory")}
	}
	buf, err := factory()
	if err != nil {
		return "", &worker.SpawnError{Path: path, Err: err}
	}
	if buf == nil {
		return "", &worker.SpawnError{Path: path, Err: errors.New("factory returned no buffer")}
	}
	buf.SetPath(path)
	return buf.StringWithSpeed(prompt.Fast), nil
}

// Reconfigure swaps the factory and options. Existing workers are retired
// so the next Render builds them with the new settings.
func (s *Supervisor) Reconfigure(factory worker.Factory, opts Options) {
	opts = opts.withDefaults()

	s.mu.Lock()
	s.factory = factory
	s.opts = opts
	s.limiter = opts.limiter()
	s.gen++
	old := make([]*entry, 0, len(s.workers))
	for p, e := range s.workers {
		old = append(old, e)
		delete(s.workers, p)
	}
	s.mu.Unlock()

	retire(old)
	supLog.Info("supervisor_reconfigured",
		slog.Int("max_workers", opts.MaxWorkers),
		slog.Int("retired", len(old)))
}

// CurrentPath returns the path of the most recent Render.
func (s *Supervisor) CurrentPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Stats reports the live workers.
func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.workers))
	for p := range s.workers {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return Stats{
		Workers:   len(s.workers),
		Paths:     paths,
		Current:   s.current,
		Evictions: s.evictions,
		Throttled: s.throttled,
	}
}

// Close retires every worker. Render fails with ErrClosed afterwards.
func (s *Supervisor) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	old := make([]*entry, 0, len(s.workers))
	for p, e := range s.workers {
		old = append(old, e)
		delete(s.workers, p)
	}
	s.mu.Unlock()

	retire(old)
}
