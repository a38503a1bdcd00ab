package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reloads struct {
	mu   sync.Mutex
	cfgs []*Config
	errs []error
}

func (r *reloads) record(cfg *Config, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfgs = append(r.cfgs, cfg)
	r.errs = append(r.errs, err)
}

func (r *reloads) last() (*Config, error, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.cfgs) == 0 {
		return nil, nil, 0
	}
	return r.cfgs[len(r.cfgs)-1], r.errs[len(r.errs)-1], len(r.cfgs)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("[worker]\ncompute_budget_ms = 10\n"), 0o600))

	got := &reloads{}
	w, err := NewWatcher(path, got.record)
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	require.NoError(t, w.Start())
	defer w.Stop()

	// Several quick writes settle into one reload with the final content.
	for _, ms := range []string{"11", "12", "42"} {
		require.NoError(t, os.WriteFile(path, []byte("[worker]\ncompute_budget_ms = "+ms+"\n"), 0o600))
	}

	require.Eventually(t, func() bool {
		cfg, err, _ := got.last()
		return cfg != nil && err == nil && cfg.Worker.ComputeBudgetMS == 42
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, FileName)

	got := &reloads{}
	w, err := NewWatcher(path, got.record)
	require.NoError(t, err)
	w.SetDebounce(10 * time.Millisecond)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600))
	time.Sleep(150 * time.Millisecond)

	_, _, n := got.last()
	assert.Zero(t, n)
}

func TestWatcherReportsParseErrors(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, FileName)

	got := &reloads{}
	w, err := NewWatcher(path, got.record)
	require.NoError(t, err)
	w.SetDebounce(10 * time.Millisecond)
	require.NoError(t, w.Start())

	require.NoError(t, os.WriteFile(path, []byte("not toml ["), 0o600))

	require.Eventually(t, func() bool {
		cfg, err, _ := got.last()
		return cfg != nil && err != nil
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
