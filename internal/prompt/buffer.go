package prompt

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/asheshgoplani/promptbuffer/internal/logging"
)

var pluginLog = logging.ForComponent(logging.CompPlugin)

// Speed classifies how expensive a plugin is to run.
type Speed int

const (
	// Fast plugins are cheap enough to run synchronously on the seed render.
	Fast Speed = iota
	// Slow plugins only run on the worker goroutine.
	Slow
)

func (s Speed) String() string {
	if s == Fast {
		return "fast"
	}
	return "slow"
}

// Plugin contributes lines for a directory. Run appends to lines and returns
// the extended slice; it must not reorder or drop what earlier plugins added.
// Errors are the plugin's own business: Run has no error return.
type Plugin interface {
	Name() string
	Speed() Speed
	Run(path string, lines []Line) []Line
}

// Buffer runs its plugins in registration order for one path and renders
// the collected lines. A Buffer is not safe for concurrent use; each worker
// owns its own.
type Buffer struct {
	plugins  []Plugin
	renderer Renderer
}

// NewBuffer creates an empty buffer rendering with dialect d.
func NewBuffer(d Dialect) *Buffer {
	return &Buffer{renderer: Renderer{Dialect: d}}
}

// AddPlugin appends p to the run order.
func (b *Buffer) AddPlugin(p Plugin) {
	b.plugins = append(b.plugins, p)
}

// Plugins returns the registered plugins in run order.
func (b *Buffer) Plugins() []Plugin {
	return append([]Plugin(nil), b.plugins...)
}

// SetPath sets the directory the plugins inspect.
func (b *Buffer) SetPath(path string) {
	b.renderer.Path = path
}

// Path returns the directory the plugins inspect.
func (b *Buffer) Path() string {
	return b.renderer.Path
}

// String runs every plugin and renders the result.
func (b *Buffer) String() string {
	return b.StringWithSpeed(Slow)
}

// StringWithSpeed runs only plugins at or below max and renders the result.
func (b *Buffer) StringWithSpeed(max Speed) string {
	var lines []Line
	for _, p := range b.plugins {
		if p.Speed() > max {
			continue
		}
		lines = b.run(p, lines)
	}
	return b.renderer.Render(lines)
}

// run executes one plugin. A panicking plugin loses its own output but
// does not take the worker down with it.
func (b *Buffer) run(p Plugin, lines []Line) (out []Line) {
	start := time.Now()
	before := len(lines)
	kept := lines[:before:before]

	defer func() {
		if r := recover(); r != nil {
			pluginLog.Error("plugin_panic",
				slog.String("plugin", p.Name()),
				slog.String("path", b.renderer.Path),
				slog.String("panic", fmt.Sprint(r)))
			out = kept
		}
	}()

	out = p.Run(b.renderer.Path, kept)
	if len(out) < before {
		pluginLog.Warn("plugin_dropped_lines", slog.String("plugin", p.Name()))
		return kept
	}
	pluginLog.Debug("plugin_run",
		slog.String("plugin", p.Name()),
		slog.Int("lines", len(out)-before),
		slog.Duration("elapsed", time.Since(start)))
	return out
}
