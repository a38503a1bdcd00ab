package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/promptbuffer/internal/config"
	"github.com/asheshgoplani/promptbuffer/internal/daemon"
	"github.com/asheshgoplani/promptbuffer/internal/logging"
	"github.com/asheshgoplani/promptbuffer/internal/supervisor"
)

// TestMain points every test at a throwaway state dir so a developer's
// config and daemon socket are never touched.
func TestMain(m *testing.M) {
	home, err := os.MkdirTemp("", "pbcmd")
	if err != nil {
		panic(err)
	}
	os.Setenv(config.HomeEnv, home)
	code := m.Run()
	os.RemoveAll(home)
	os.Exit(code)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	config.ClearCache()
	t.Cleanup(config.ClearCache)

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "promptbuffer v"+Version+"\n", out)
}

func TestRenderInProcess(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "render", "--no-daemon", "--shell", "raw", dir)
	require.NoError(t, err)

	assert.Contains(t, out, filepath.Base(dir))
	assert.Contains(t, out, "$")
	assert.True(t, strings.HasSuffix(out, "m "), "no trailing newline: %q", out)
}

func TestRenderBashDialect(t *testing.T) {
	out, err := run(t, "render", "--no-daemon", "--shell", "bash", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, `\w`)
	assert.Contains(t, out, `\[`)
}

func TestRenderNeverFails(t *testing.T) {
	out, err := run(t, "render", "--no-daemon", "--shell", "fish", t.TempDir())
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestChooseDialect(t *testing.T) {
	cfg := &config.Config{}
	cfg.Prompt.Dialect = "zsh"

	assert.Equal(t, "bash", chooseDialect("bash", cfg, true))
	assert.Equal(t, "raw", chooseDialect("", cfg, true))
	assert.Equal(t, "zsh", chooseDialect("", cfg, false))
}

func TestTargetPath(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	got, err := targetPath(nil)
	require.NoError(t, err)
	assert.Equal(t, wd, got)

	got, err = targetPath([]string{"sub"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "sub"), got)
}

func TestInitScripts(t *testing.T) {
	out, err := run(t, "init", "zsh", "--bin", "/usr/local/bin/promptbuffer")
	require.NoError(t, err)
	assert.Contains(t, out, `PROMPT="$(command /usr/local/bin/promptbuffer render --shell zsh "$PWD")"`)
	assert.Contains(t, out, "add-zsh-hook precmd")

	out, err = run(t, "init", "bash", "--bin", "/opt/my tools/promptbuffer")
	require.NoError(t, err)
	assert.Contains(t, out, `command '/opt/my tools/promptbuffer' render --shell bash`)
	assert.Contains(t, out, "shopt -u promptvars")

	_, err = run(t, "init", "fish")
	assert.Error(t, err)
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "/usr/bin/pb", shellQuote("/usr/bin/pb"))
	assert.Equal(t, "'a b'", shellQuote("a b"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
	assert.Equal(t, "''", shellQuote(""))
}

func TestConfigCommands(t *testing.T) {
	out, err := run(t, "config", "path")
	require.NoError(t, err)
	want, err := config.Path()
	require.NoError(t, err)
	assert.Equal(t, want+"\n", out)

	out, err = run(t, "config", "init")
	require.NoError(t, err)
	assert.Equal(t, want+"\n", out)
	assert.FileExists(t, want)

	out, err = run(t, "config", "check")
	require.NoError(t, err)
	assert.Equal(t, "config ok\n", out)
}

func TestStatusWithoutDaemon(t *testing.T) {
	out, err := run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "not running")
}

func TestWriteStatus(t *testing.T) {
	var out bytes.Buffer
	writeStatus(&out, &daemon.StatsReply{
		PID:    42,
		Uptime: "3m0s",
		Socket: "/tmp/pb.sock",
		Supervisors: map[string]supervisor.Stats{
			"zsh": {Workers: 2, Paths: []string{"/a", "/b"}, Current: "/b", Evictions: 1},
		},
		Events: []logging.EventCount{{Component: logging.CompWorker, Event: "served_fresh", Count: 5}},
	})

	got := out.String()
	assert.Contains(t, got, "pid 42, up 3m0s")
	assert.Contains(t, got, "zsh      2 worker(s), 1 evicted, 0 throttled")
	assert.Contains(t, got, "    /a\n")
	assert.Contains(t, got, "  * /b\n")
	assert.Contains(t, got, logging.CompWorker+".served_fresh: 5\n")

	out.Reset()
	writeStatus(&out, &daemon.StatsReply{PID: 1})
	assert.Contains(t, out.String(), "no workers")
}
