package logging

import (
	"bytes"
	"log/slog"
	"strings"
)

// BridgeWriter wraps slog as an io.Writer so that stdlib log.Printf output
// (from dependencies or quick debug prints) ends up in the structured log.
// A leading "[category] " prefix becomes the component field.
type BridgeWriter struct {
	logger    *slog.Logger
	component string
}

// NewBridgeWriter creates a writer that forwards writes to slog.
// defaultComponent is used when no [category] prefix is found.
func NewBridgeWriter(defaultComponent string) *BridgeWriter {
	return &BridgeWriter{
		logger:    Logger(),
		component: defaultComponent,
	}
}

// Write implements io.Writer. Each write is treated as one log line.
func (bw *BridgeWriter) Write(p []byte) (int, error) {
	n := len(p)
	msg := string(bytes.TrimSpace(p))
	if msg == "" {
		return n, nil
	}

	msg = stripLogTimestamp(msg)

	component := bw.component
	if strings.HasPrefix(msg, "[") {
		if idx := strings.Index(msg, "] "); idx > 0 {
			component = strings.ToLower(msg[1:idx])
			msg = msg[idx+2:]
		}
	}

	bw.logger.Info(msg, slog.String("component", canonicalComponent(component)))
	return n, nil
}

// stripLogTimestamp removes the time prefix added by log.Ltime, with or
// without log.Lmicroseconds; slog adds its own.
func stripLogTimestamp(s string) string {
	if len(s) > 16 && s[2] == ':' && s[5] == ':' && s[8] == '.' && s[15] == ' ' {
		return s[16:]
	}
	if len(s) > 9 && s[2] == ':' && s[5] == ':' && s[8] == ' ' {
		return s[9:]
	}
	return s
}

func canonicalComponent(cat string) string {
	switch cat {
	case "worker", "thread", "prompt-thread":
		return CompWorker
	case "supervisor", "registry":
		return CompSupervisor
	case "plugin", "plugins":
		return CompPlugin
	case "git", "vcs":
		return CompGit
	case "daemon", "server", "client", "metrics":
		return CompDaemon
	case "config", "watcher":
		return CompConfig
	case "perf", "pprof":
		return CompPerf
	case "ui", "preview":
		return CompUI
	default:
		return cat
	}
}
