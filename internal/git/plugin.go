package git

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/asheshgoplani/promptbuffer/internal/logging"
	"github.com/asheshgoplani/promptbuffer/internal/prompt"
)

var gitLog = logging.ForComponent(logging.CompGit)

// PluginName is the name used in the [prompt] plugins list.
const PluginName = "git"

// Options limit how much of the repository state is drawn.
type Options struct {
	// MaxFiles caps the status lines; the rest are summarized. Zero means no cap.
	MaxFiles int
	// MaxOutgoing caps outgoing commits. Zero means no cap.
	MaxOutgoing int
	// SummaryWidth truncates commit summaries to this many cells. Zero disables.
	SummaryWidth int
	// Timeout bounds each git invocation.
	Timeout time.Duration
}

// Plugin draws status, outgoing commits and the branch for the repository
// containing the rendered path. It shells out to git, so it is Slow.
type Plugin struct {
	opts Options

	path string
	root string
}

// NewPlugin creates a git plugin.
func NewPlugin(opts Options) *Plugin {
	return &Plugin{opts: opts}
}

func (p *Plugin) Name() string        { return PluginName }
func (p *Plugin) Speed() prompt.Speed { return prompt.Slow }

// Run appends the git section for path. Nothing is added outside a work tree.
func (p *Plugin) Run(path string, lines []prompt.Line) []prompt.Line {
	if path != p.path || p.root == "" {
		p.path = path
		p.root, _ = Runner{Dir: path, Timeout: p.opts.Timeout}.Root()
	}
	if p.root == "" {
		return lines
	}

	r := Runner{Dir: p.root, Timeout: p.opts.Timeout}

	lines, hasStatus := p.status(r, path, lines)

	branch, err := r.Branch()
	if err != nil {
		gitLog.Debug("git_branch_failed", slog.String("path", path), slog.String("error", err.Error()))
		return lines
	}

	lines, hasOutgoing := p.outgoing(r, branch, hasStatus, lines)

	end := branchLine(branch)
	if hasStatus || hasOutgoing {
		end = end.Indent()
	}
	return append(lines, end.Build())
}

// branchLine draws the branch in cyan and the upstream part in magenta,
// inside one box.
func branchLine(b BranchInfo) *prompt.LineBuilder {
	line := prompt.NewLine()
	if b.Name == "" || b.Upstream == "" {
		return line.ColoredBlock(b.Label(), prompt.Cyan)
	}
	return line.ColoredBlock(b.Name, prompt.Cyan).Joined(" -> "+b.Upstream, prompt.Magenta)
}

func (p *Plugin) status(r Runner, path string, lines []prompt.Line) ([]prompt.Line, bool) {
	files, err := r.Status()
	if err != nil {
		gitLog.Debug("git_status_failed", slog.String("path", path), slog.String("error", err.Error()))
		return lines, false
	}
	if len(files) == 0 {
		return lines, false
	}

	base := path
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		base = resolved
	}

	lines = append(lines, prompt.NewLine().ColoredBlock("Git Status", prompt.Cyan).Build())

	shown := files
	if p.opts.MaxFiles > 0 && len(files) > p.opts.MaxFiles {
		shown = files[:p.opts.MaxFiles]
	}
	for _, f := range shown {
		lines = append(lines, fileLine(f, p.relative(base, f)))
	}
	if hidden := len(files) - len(shown); hidden > 0 {
		lines = append(lines, prompt.NewFreeLine().Indent().
			ColoredBlock(fmt.Sprintf("   ... %d more", hidden), prompt.White).Build())
	}
	return lines, true
}

// relative formats the file's path relative to the rendered directory.
func (p *Plugin) relative(base string, f FileStatus) string {
	rel := func(name string) string {
		out, err := filepath.Rel(base, filepath.Join(p.root, name))
		if err != nil {
			return name
		}
		return out
	}
	if f.OldPath != "" && f.OldPath != f.Path {
		return rel(f.OldPath) + " -> " + rel(f.Path)
	}
	return rel(f.Path)
}

// fileLine colors by the column that changed. Staged changes are bold;
// a file changed in both index and work tree is bold red.
func fileLine(f FileStatus, name string) prompt.Line {
	text := f.Code() + " " + name
	b := prompt.NewFreeLine().Indent()
	switch {
	case f.Index == Clean:
		b = b.ColoredBlock(text, stateColor(f.Workdir))
	case f.Workdir == Clean || f.Workdir == Untracked:
		b = b.BoldColoredBlock(text, stateColor(f.Index))
	default:
		b = b.BoldColoredBlock(text, prompt.Red)
	}
	return b.Build()
}

func stateColor(s FileState) prompt.Color {
	switch s {
	case Deleted:
		return prompt.Red
	case Modified:
		return prompt.Blue
	case New:
		return prompt.Green
	case Renamed:
		return prompt.Cyan
	case TypeChange:
		return prompt.Yellow
	default:
		return prompt.White
	}
}

func (p *Plugin) outgoing(r Runner, branch BranchInfo, hasStatus bool, lines []prompt.Line) ([]prompt.Line, bool) {
	if branch.Detached || branch.Upstream == "" {
		return lines, false
	}
	commits, err := r.Outgoing(branch.Upstream, p.opts.MaxOutgoing)
	if err != nil {
		gitLog.Debug("git_outgoing_failed", slog.String("upstream", branch.Upstream), slog.String("error", err.Error()))
		return lines, false
	}
	if len(commits) == 0 {
		return lines, false
	}

	header := prompt.NewLine().ColoredBlock("Git Outgoing", prompt.Cyan)
	if hasStatus {
		header = header.Indent()
	}
	lines = append(lines, header.Build())

	for _, c := range commits {
		summary := c.Summary
		if p.opts.SummaryWidth > 0 {
			summary = runewidth.Truncate(summary, p.opts.SummaryWidth, "…")
		}
		lines = append(lines, prompt.NewFreeLine().Indent().
			ColoredBlock(c.ShortID+" "+summary, prompt.White).Build())
	}
	return lines, true
}
