package supervisor

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/promptbuffer/internal/config"
	"github.com/asheshgoplani/promptbuffer/internal/prompt"
	"github.com/asheshgoplani/promptbuffer/internal/worker"
)

// pathPlugin writes the requested path into a block.
type pathPlugin struct {
	label string
	speed prompt.Speed
	delay time.Duration
	runs  atomic.Int32
}

func (p *pathPlugin) Name() string       { return p.label }
func (p *pathPlugin) Speed() prompt.Speed { return p.speed }

func (p *pathPlugin) Run(path string, lines []prompt.Line) []prompt.Line {
	p.runs.Add(1)
	time.Sleep(p.delay)
	return append(lines, prompt.NewLine().Block(p.label+":"+path).Build())
}

func factoryFor(plugins ...prompt.Plugin) worker.Factory {
	return func() (*prompt.Buffer, error) {
		b := prompt.NewBuffer(prompt.Bash)
		for _, p := range plugins {
			b.AddPlugin(p)
		}
		return b, nil
	}
}

func budget(d time.Duration) Options {
	return Options{Worker: worker.Options{ComputeBudget: d}}
}

func TestRenderCreatesWorkerForPath(t *testing.T) {
	p := &pathPlugin{label: "slow", speed: prompt.Slow}
	s := New(factoryFor(p), budget(time.Second))
	defer s.Close()

	got, err := s.Render("/a")
	require.NoError(t, err)
	assert.Contains(t, got, "slow:/a")
	assert.Equal(t, "/a", s.CurrentPath())

	stats := s.Stats()
	assert.Equal(t, 1, stats.Workers)
	assert.Equal(t, []string{"/a"}, stats.Paths)
}

func TestPathChangeReplacesWorker(t *testing.T) {
	p := &pathPlugin{label: "slow", speed: prompt.Slow}
	s := New(factoryFor(p), budget(time.Second))
	defer s.Close()

	_, err := s.Render("/a")
	require.NoError(t, err)
	got, err := s.Render("/b")
	require.NoError(t, err)
	assert.Contains(t, got, "slow:/b")

	stats := s.Stats()
	assert.Equal(t, []string{"/b"}, stats.Paths)
	assert.Equal(t, "/b", stats.Current)
	assert.EqualValues(t, 1, stats.Evictions)
}

func TestLeastRecentlyUsedIsEvicted(t *testing.T) {
	p := &pathPlugin{label: "slow", speed: prompt.Slow}
	opts := budget(time.Second)
	opts.MaxWorkers = 2
	s := New(factoryFor(p), opts)
	defer s.Close()

	for _, path := range []string{"/a", "/b", "/a", "/c"} {
		_, err := s.Render(path)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"/a", "/c"}, s.Stats().Paths)
}

func TestAlternatingPathsKeepFreshOutput(t *testing.T) {
	p := &pathPlugin{label: "slow", speed: prompt.Slow, delay: 80 * time.Millisecond}
	opts := budget(40 * time.Millisecond)
	opts.MaxWorkers = 2
	s := New(factoryFor(p), opts)
	defer s.Close()

	fresh := 0
	for i := range 8 {
		path := []string{"/a", "/b"}[i%2]
		got, err := s.Render(path)
		require.NoError(t, err)
		if strings.Contains(got, "slow:"+path) {
			fresh++
		}
		time.Sleep(150 * time.Millisecond)
	}

	// Only the first render of each path is over budget.
	assert.Equal(t, 6, fresh)
	assert.EqualValues(t, 0, s.Stats().Evictions)
}

func TestSpawnDoesNotBlockOtherPaths(t *testing.T) {
	var gated atomic.Bool
	release := make(chan struct{})
	factory := func() (*prompt.Buffer, error) {
		if gated.Load() {
			<-release
		}
		return prompt.NewBuffer(prompt.Bash), nil
	}
	opts := budget(time.Second)
	opts.MaxWorkers = 2
	s := New(factory, opts)
	defer s.Close()

	_, err := s.Render("/a")
	require.NoError(t, err)

	gated.Store(true)
	spawned := make(chan error, 1)
	go func() {
		_, err := s.Render("/b")
		spawned <- err
	}()

	done := make(chan error, 1)
	go func() {
		_, err := s.Render("/a")
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("render of /a waited for the spawn of /b")
	}

	close(release)
	require.NoError(t, <-spawned)
	assert.Equal(t, []string{"/a", "/b"}, s.Stats().Paths)
}

func TestConcurrentRendersAreDeduplicated(t *testing.T) {
	p := &pathPlugin{label: "slow", speed: prompt.Slow, delay: 100 * time.Millisecond}
	s := New(factoryFor(p), budget(time.Second))
	defer s.Close()

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := s.Render("/a")
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.NotEmpty(t, r)
	}
	assert.Less(t, p.runs.Load(), int32(len(results)))
	assert.Equal(t, 1, s.Stats().Workers)
}

func TestThrottledSpawnFallsBackToFastRender(t *testing.T) {
	fast := &pathPlugin{label: "fast", speed: prompt.Fast}
	slow := &pathPlugin{label: "slow", speed: prompt.Slow}
	opts := budget(time.Second)
	opts.MaxWorkers = 4
	opts.SpawnRate = 0.001
	opts.SpawnBurst = 1
	s := New(factoryFor(fast, slow), opts)
	defer s.Close()

	got, err := s.Render("/a")
	require.NoError(t, err)
	assert.Contains(t, got, "slow:/a")

	got, err = s.Render("/b")
	require.NoError(t, err)
	assert.Contains(t, got, "fast:/b")
	assert.NotContains(t, got, "slow:/b")

	stats := s.Stats()
	assert.Equal(t, []string{"/a"}, stats.Paths)
	assert.EqualValues(t, 1, stats.Throttled)
}

func TestSpawnErrorIsSurfaced(t *testing.T) {
	cause := errors.New("bad config")
	s := New(func() (*prompt.Buffer, error) { return nil, cause }, Options{})
	defer s.Close()

	_, err := s.Render("/a")
	require.Error(t, err)
	assert.ErrorIs(t, err, worker.ErrSpawn)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 0, s.Stats().Workers)
}

func TestReconfigureRetiresWorkers(t *testing.T) {
	before := &pathPlugin{label: "before", speed: prompt.Slow}
	after := &pathPlugin{label: "after", speed: prompt.Slow}
	s := New(factoryFor(before), budget(time.Second))
	defer s.Close()

	_, err := s.Render("/a")
	require.NoError(t, err)

	s.Reconfigure(factoryFor(after), budget(time.Second))
	assert.Equal(t, 0, s.Stats().Workers)

	got, err := s.Render("/a")
	require.NoError(t, err)
	assert.Contains(t, got, "after:/a")
	assert.NotContains(t, got, "before:/a")
}

func TestRenderAfterClose(t *testing.T) {
	s := New(factoryFor(), Options{})
	_, err := s.Render("/a")
	require.NoError(t, err)

	s.Close()
	s.Close()

	_, err = s.Render("/a")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, s.Stats().Workers)
}

func TestManyPathsNeverEmpty(t *testing.T) {
	p := &pathPlugin{label: "slow", speed: prompt.Slow, delay: 3 * time.Millisecond}
	opts := budget(2 * time.Millisecond)
	opts.MaxWorkers = 3
	s := New(factoryFor(p), opts)
	defer s.Close()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := s.Render(fmt.Sprintf("/p%d", i%5))
			assert.NoError(t, err)
			assert.NotEmpty(t, got)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, s.Stats().Workers, 3)
}

func TestFastRender(t *testing.T) {
	fast := &pathPlugin{label: "fast", speed: prompt.Fast}
	slow := &pathPlugin{label: "slow", speed: prompt.Slow}

	got, err := FastRender(factoryFor(fast, slow), "/x")
	require.NoError(t, err)
	assert.Contains(t, got, "fast:/x")
	assert.EqualValues(t, 0, slow.runs.Load())

	_, err = FastRender(nil, "/x")
	assert.ErrorIs(t, err, worker.ErrSpawn)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Worker.ComputeBudgetMS = 40
	cfg.Supervisor.MaxWorkers = 3
	cfg.Supervisor.SpawnRate = 5

	opts := OptionsFromConfig(cfg, nil)
	assert.Equal(t, 3, opts.MaxWorkers)
	assert.InDelta(t, 5.0, opts.SpawnRate, 1e-9)
	assert.Equal(t, 40*time.Millisecond, opts.Worker.ComputeBudget)
	assert.Equal(t, 10*time.Minute, opts.Worker.IdleTimeout)

	opts = OptionsFromConfig(&config.Config{}, nil).withDefaults()
	assert.Equal(t, 1, opts.MaxWorkers)
	assert.Equal(t, 0, opts.SpawnBurst)
}
