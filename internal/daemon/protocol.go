// Package daemon serves renders to shells over a unix socket so workers
// outlive the short-lived `promptbuffer render` processes.
//
// The protocol is one JSON request line answered by one JSON response line.
package daemon

import (
	"encoding/json"
	"fmt"

	"github.com/asheshgoplani/promptbuffer/internal/logging"
	"github.com/asheshgoplani/promptbuffer/internal/supervisor"
)

// Request operations.
const (
	OpRender = "render"
	OpStats  = "stats"
	OpPing   = "ping"
)

// Request is one client line. Op defaults to render.
type Request struct {
	Op      string `json:"op,omitempty"`
	Path    string `json:"path,omitempty"`
	Dialect string `json:"dialect,omitempty"`
}

// Response is one server line. A render that failed still carries a fast
// render in Prompt when one could be produced.
type Response struct {
	Prompt string      `json:"prompt,omitempty"`
	Error  string      `json:"error,omitempty"`
	Stats  *StatsReply `json:"stats,omitempty"`
}

// StatsReply describes a running daemon.
type StatsReply struct {
	PID         int                         `json:"pid"`
	Uptime      string                      `json:"uptime"`
	Socket      string                      `json:"socket"`
	Supervisors map[string]supervisor.Stats `json:"supervisors"`

	// Events are the aggregated log events since the last flush.
	Events []logging.EventCount `json:"events,omitempty"`
}

func encodeLine(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return append(b, '\n'), nil
}
