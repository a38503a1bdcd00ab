// Package worker keeps one background goroutine per directory that renders
// the prompt on request. Callers get the fresh render when it is ready within
// the compute budget and the last good render otherwise, so a slow plugin
// never blocks the shell. Idle workers exit on their own and are revived on
// the next request.
package worker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/asheshgoplani/promptbuffer/internal/logging"
	"github.com/asheshgoplani/promptbuffer/internal/prompt"
)

var workerLog = logging.ForComponent(logging.CompWorker)

const (
	DefaultComputeBudget = 100 * time.Millisecond
	DefaultIdleTimeout   = 10 * time.Minute
)

// responseBuffer bounds how many finished renders can wait for the requester.
const responseBuffer = 4

// Factory builds the buffer a worker renders with. It is called once per
// spawn, so each worker owns its buffer and plugins.
type Factory func() (*prompt.Buffer, error)

// Observer is notified about what a worker serves. Methods are called from
// the requesting goroutine.
type Observer interface {
	Spawned(path string)
	Served(path string, fresh bool, wait time.Duration)
	Died(path string)
}

// Options tune a worker. Zero values select the defaults.
type Options struct {
	ComputeBudget time.Duration
	IdleTimeout   time.Duration
	Observer      Observer
}

func (o Options) withDefaults() Options {
	if o.ComputeBudget <= 0 {
		o.ComputeBudget = DefaultComputeBudget
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	return o
}

// Worker is the requester's handle on one path's render goroutine. It is
// not safe for concurrent use; the supervisor serializes access.
type Worker struct {
	path string
	opts Options

	notify    chan<- struct{}
	responses <-chan string
	death     <-chan struct{}
	done      <-chan struct{}
	stop      chan struct{}

	cached string
	alive  bool
}

// New renders the fast plugins synchronously to seed the cache, then starts
// the render goroutine for path.
func New(path string, factory Factory, opts Options) (*Worker, error) {
	if factory == nil {
		return nil, &SpawnError{Path: path, Err: errors.New("no buffer factory")}
	}
	buf, err := factory()
	if err != nil {
		return nil, &SpawnError{Path: path, Err: err}
	}
	if buf == nil {
		return nil, &SpawnError{Path: path, Err: errors.New("factory returned no buffer")}
	}
	buf.SetPath(path)
	opts = opts.withDefaults()

	notify := make(chan struct{}, 1)
	responses := make(chan string, responseBuffer)
	death := make(chan struct{}, 1)
	done := make(chan struct{})
	stop := make(chan struct{})

	w := &Worker{
		path:      path,
		opts:      opts,
		notify:    notify,
		responses: responses,
		death:     death,
		done:      done,
		stop:      stop,
		cached:    buf.StringWithSpeed(prompt.Fast),
		alive:     true,
	}

	t := &task{
		path:      path,
		idle:      opts.IdleTimeout,
		buf:       buf,
		notify:    notify,
		responses: responses,
		death:     death,
		done:      done,
		stop:      stop,
	}
	go t.run()

	workerLog.Debug("worker_spawned", slog.String("path", path))
	if opts.Observer != nil {
		opts.Observer.Spawned(path)
	}
	return w, nil
}

// Path returns the directory this worker renders.
func (w *Worker) Path() string {
	return w.path
}

// Cached returns the last render the requester received.
func (w *Worker) Cached() string {
	return w.cached
}

// CheckIsAlive polls the death signal without blocking. Once a death has
// been seen the worker stays dead until the next Get revives it.
func (w *Worker) CheckIsAlive() bool {
	if !w.alive {
		return false
	}
	select {
	case <-w.death:
		w.alive = false
		workerLog.Debug("worker_death_observed", slog.String("path", w.path))
		if w.opts.Observer != nil {
			w.opts.Observer.Died(w.path)
		}
	default:
	}
	return w.alive
}

// Get asks for a fresh render and waits at most the compute budget for it.
// When the budget runs out the cached render is returned; the render keeps
// going and a later Get picks its result up. A dead worker is replaced by a
// new one built from factory before the request is sent.
func (w *Worker) Get(factory Factory) (string, error) {
	if !w.CheckIsAlive() {
		if err := w.revive(factory); err != nil {
			return "", err
		}
	}

	select {
	case <-w.done:
		// Exited since the check above. Only an idle death is revived.
		if w.CheckIsAlive() {
			return "", &ChannelError{Path: w.path}
		}
		if err := w.revive(factory); err != nil {
			return "", err
		}
	default:
	}

	// A pending notification already covers this request.
	select {
	case w.notify <- struct{}{}:
	default:
	}

	start := time.Now()
	deadline := time.NewTimer(w.opts.ComputeBudget)
	defer deadline.Stop()

	select {
	case text := <-w.responses:
		return w.adopt(text, start), nil
	case <-deadline.C:
	case <-w.done:
		// The goroutine exited while we waited; it may have delivered first.
		select {
		case text := <-w.responses:
			return w.adopt(text, start), nil
		default:
		}
	}

	w.served(false, start)
	return w.cached, nil
}

// adopt keeps the newest of the buffered responses.
func (w *Worker) adopt(text string, start time.Time) string {
	for {
		select {
		case newer := <-w.responses:
			text = newer
		default:
			w.cached = text
			w.served(true, start)
			return text
		}
	}
}

func (w *Worker) served(fresh bool, start time.Time) {
	wait := time.Since(start)
	event := "served_cached"
	if fresh {
		event = "served_fresh"
	}
	logging.Aggregate(logging.CompWorker, event, slog.String("path", w.path))
	if w.opts.Observer != nil {
		w.opts.Observer.Served(w.path, fresh, wait)
	}
}

func (w *Worker) revive(factory Factory) error {
	workerLog.Info("worker_revive", slog.String("path", w.path))
	fresh, err := New(w.path, factory, w.opts)
	if err != nil {
		return err
	}
	*w = *fresh
	return nil
}

// Close stops the render goroutine without a death signal. A render in
// progress finishes first. Later Gets fail with a ChannelError.
func (w *Worker) Close() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
}

// task is the render goroutine. It owns the buffer; everything it produces
// goes back over responses.
type task struct {
	path string
	idle time.Duration
	buf  *prompt.Buffer

	notify    <-chan struct{}
	responses chan<- string
	death     chan<- struct{}
	done      chan<- struct{}
	stop      <-chan struct{}
}

func (t *task) run() {
	defer close(t.done)

	idle := time.NewTimer(t.idle)
	defer idle.Stop()

	for {
		select {
		case <-t.notify:
			text := t.buf.String()
			select {
			case t.responses <- text:
			case <-t.stop:
				return
			}
			t.drainNotify()
		case <-idle.C:
			workerLog.Info("worker_idle_timeout",
				slog.String("path", t.path),
				slog.Duration("idle", t.idle))
			select {
			case t.death <- struct{}{}:
			default:
			}
			return
		case <-t.stop:
			workerLog.Debug("worker_stopped", slog.String("path", t.path))
			return
		}
		idle.Reset(t.idle)
	}
}

// drainNotify drops requests that arrived while rendering; the response just
// sent answers them.
func (t *task) drainNotify() {
	for {
		select {
		case <-t.notify:
		default:
			return
		}
	}
}
