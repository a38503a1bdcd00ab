package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/muesli/termenv"
)

// Dialect describes how escape sequences and the fixed header/marker texts
// are written for one shell. Prompt strings need their non-printing escapes
// wrapped so the shell can compute the visible width of the prompt.
type Dialect struct {
	Name string

	// open and close wrap every escape sequence.
	open  string
	close string

	// Cwd and Host are the header blocks. For the raw dialect they are
	// empty and the header is filled from the render path and hostname.
	Cwd    string
	Host   string
	Marker string

	host string
}

var (
	// Bash writes escapes inside \[ \] and uses bash prompt expansions.
	Bash = Dialect{Name: "bash", open: `\[`, close: `\]`, Cwd: `\w`, Host: `\H`, Marker: `\$`}

	// Zsh writes escapes inside %{ %} and uses zsh prompt expansions.
	Zsh = Dialect{Name: "zsh", open: "%{", close: "%}", Cwd: "%~", Host: "%M", Marker: "%#"}
)

// Raw returns a dialect that emits bare escape sequences, for printing to a
// terminal directly. The header shows the render path and the given host.
func Raw(host string) Dialect {
	return Dialect{Name: "raw", Marker: "$", host: host}
}

// DialectByName resolves "bash", "zsh" or "raw".
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", "bash":
		return Bash, nil
	case "zsh":
		return Zsh, nil
	case "raw", "none":
		host, _ := os.Hostname()
		return Raw(host), nil
	default:
		return Dialect{}, fmt.Errorf("unknown prompt dialect %q", name)
	}
}

func (d Dialect) escape(seq string) string {
	return d.open + termenv.CSI + seq + "m" + d.close
}

// Enable returns the escape that switches to color c.
func (d Dialect) Enable(c Color, bold bool) string {
	seq := termenv.ANSIColor(c).Sequence(false)
	if bold {
		seq = termenv.BoldSeq + ";" + seq
	}
	return d.escape(seq)
}

// Reset returns the escape that clears all attributes.
func (d Dialect) Reset() string {
	return d.escape(termenv.ResetSeq)
}

// Format renders a block as enable, text, reset. Text from plugins is
// quoted so the shell prints it verbatim.
func (d Dialect) Format(b Block) string {
	text := b.Text
	if !b.Shell {
		text = d.Quote(text)
	}
	return d.Enable(b.Color, b.Bold) + text + d.Reset()
}

// Quote escapes the characters the shell would decode in a prompt string:
// backslash for bash, percent for zsh.
func (d Dialect) Quote(text string) string {
	switch d.Name {
	case "bash":
		return strings.ReplaceAll(text, `\`, `\\`)
	case "zsh":
		return strings.ReplaceAll(text, "%", "%%")
	default:
		return text
	}
}

// Header returns the fixed first line: working directory and host.
func (d Dialect) Header(path string) Line {
	cwd, host := d.Cwd, d.Host
	if cwd == "" {
		cwd = abbreviateHome(path)
	}
	if host == "" {
		host = d.host
	}
	return NewLine().ShellBlock(cwd).ShellBlock(host).Build()
}

func abbreviateHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" || path == "" {
		return path
	}
	if path == home {
		return "~"
	}
	if rel, err := filepath.Rel(home, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.Join("~", rel)
	}
	return path
}
