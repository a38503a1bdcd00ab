package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/asheshgoplani/promptbuffer/internal/daemon"
)

const colDialect = 8

func writeStatus(out io.Writer, stats *daemon.StatsReply) {
	fmt.Fprintf(out, "daemon: running (pid %d, up %s)\n", stats.PID, stats.Uptime)
	fmt.Fprintf(out, "socket: %s\n", stats.Socket)

	dialects := make([]string, 0, len(stats.Supervisors))
	for name := range stats.Supervisors {
		dialects = append(dialects, name)
	}
	sort.Strings(dialects)
	if len(dialects) == 0 {
		fmt.Fprintln(out, "no workers")
		return
	}
	for _, name := range dialects {
		s := stats.Supervisors[name]
		fmt.Fprintf(out, "%-*s %d worker(s), %d evicted, %d throttled\n",
			colDialect, name, s.Workers, s.Evictions, s.Throttled)
		for _, p := range s.Paths {
			marker := " "
			if p == s.Current {
				marker = "*"
			}
			fmt.Fprintf(out, "  %s %s\n", marker, p)
		}
	}
	for _, e := range stats.Events {
		fmt.Fprintf(out, "%s.%s: %d\n", e.Component, e.Event, e.Count)
	}
}
