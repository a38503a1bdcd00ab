// Package plugins maps the names in [prompt] plugins to constructors and
// builds the buffer factory workers use.
package plugins

import (
	"sort"
	"time"

	"github.com/asheshgoplani/promptbuffer/internal/config"
	"github.com/asheshgoplani/promptbuffer/internal/git"
	"github.com/asheshgoplani/promptbuffer/internal/prompt"
	"github.com/asheshgoplani/promptbuffer/internal/worker"
)

// Constructor builds a fresh plugin. Each worker gets its own instances.
type Constructor func(cfg *config.Config) prompt.Plugin

var registry = map[string]Constructor{
	git.PluginName: func(cfg *config.Config) prompt.Plugin {
		g := cfg.Git.WithDefaults()
		return git.NewPlugin(git.Options{
			MaxFiles:     g.MaxFiles,
			MaxOutgoing:  g.MaxOutgoing,
			SummaryWidth: g.SummaryWidth,
			Timeout:      time.Duration(g.TimeoutMS) * time.Millisecond,
		})
	},
}

// Names returns the registered plugin names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Factory validates cfg and returns a factory producing buffers with the
// configured plugins in order.
func Factory(cfg *config.Config, d prompt.Dialect) (worker.Factory, error) {
	if err := cfg.Validate(Names()); err != nil {
		return nil, err
	}
	names := cfg.GetPlugins()
	return func() (*prompt.Buffer, error) {
		buf := prompt.NewBuffer(d)
		for _, n := range names {
			buf.AddPlugin(registry[n](cfg))
		}
		return buf, nil
	}, nil
}
