package git

import (
	"bytes"
	"strconv"
	"strings"
)

// FileState is one column of a porcelain status code.
type FileState byte

const (
	Clean      FileState = ' '
	New        FileState = 'A'
	Modified   FileState = 'M'
	Deleted    FileState = 'D'
	Renamed    FileState = 'R'
	TypeChange FileState = 'T'
	Untracked  FileState = '?'
)

func stateFromCode(c byte) FileState {
	switch c {
	case 'A', 'C':
		return New
	case 'M', 'U':
		return Modified
	case 'D':
		return Deleted
	case 'R':
		return Renamed
	case 'T':
		return TypeChange
	case '?':
		return Untracked
	default:
		return Clean
	}
}

// FileStatus is one changed path. Paths are relative to the repository root.
type FileStatus struct {
	Index   FileState
	Workdir FileState
	Path    string
	OldPath string
}

// Code returns the two-letter status, index first.
func (f FileStatus) Code() string {
	return string([]byte{byte(f.Index), byte(f.Workdir)})
}

// Status lists changed and untracked files, submodules excluded.
func (r Runner) Status() ([]FileStatus, error) {
	out, err := r.raw("status", "--porcelain=v1", "-z", "--untracked-files=all", "--ignore-submodules=all")
	if err != nil {
		return nil, err
	}
	return parseStatus(out), nil
}

// parseStatus reads `git status --porcelain=v1 -z`. Renames and copies are
// followed by a second NUL-terminated field holding the source path.
func parseStatus(out []byte) []FileStatus {
	var files []FileStatus
	fields := bytes.Split(out, []byte{0})
	for i := 0; i < len(fields); i++ {
		entry := fields[i]
		if len(entry) < 4 {
			continue
		}
		x, y := entry[0], entry[1]
		f := FileStatus{
			Index:   stateFromCode(x),
			Workdir: stateFromCode(y),
			Path:    string(entry[3:]),
		}
		if (x == 'R' || x == 'C' || y == 'R' || y == 'C') && i+1 < len(fields) {
			i++
			f.OldPath = string(fields[i])
		}
		files = append(files, f)
	}
	return files
}

// BranchInfo describes what HEAD points at.
type BranchInfo struct {
	// Name is the branch, or the short commit id when detached. Empty for
	// a repository without commits.
	Name string
	// Upstream is the tracking branch, "?" when detached.
	Upstream string
	Detached bool
}

// Label is the text of the closing branch line.
func (b BranchInfo) Label() string {
	switch {
	case b.Name == "":
		return "New Repository"
	case b.Upstream == "":
		return b.Name
	default:
		return b.Name + " -> " + b.Upstream
	}
}

// Branch resolves HEAD and its upstream.
func (r Runner) Branch() (BranchInfo, error) {
	if _, err := r.Output("rev-parse", "--verify", "--quiet", "HEAD"); err != nil {
		return BranchInfo{}, nil
	}

	name, err := r.CurrentBranch()
	if err != nil {
		short, err := r.Output("rev-parse", "--short", "HEAD")
		if err != nil {
			return BranchInfo{}, err
		}
		return BranchInfo{Name: short, Upstream: "?", Detached: true}, nil
	}

	upstream, err := r.Output("rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{upstream}")
	if err != nil {
		upstream = ""
	}
	return BranchInfo{Name: name, Upstream: upstream}, nil
}

// Commit is one outgoing commit.
type Commit struct {
	ShortID string
	Summary string
}

// Outgoing lists commits reachable from HEAD but not from upstream, oldest
// first. At most limit commits are returned when limit is positive.
func (r Runner) Outgoing(upstream string, limit int) ([]Commit, error) {
	args := []string{"log", "--reverse", "--format=%h%x1f%s"}
	if limit > 0 {
		args = append(args, "-n", strconv.Itoa(limit))
	}
	args = append(args, upstream+"..HEAD", "--")
	out, err := r.Output(args...)
	if err != nil {
		return nil, err
	}
	return parseLog(out), nil
}

func parseLog(out string) []Commit {
	var commits []Commit
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		id, summary, _ := strings.Cut(line, "\x1f")
		commits = append(commits, Commit{ShortID: id, Summary: summary})
	}
	return commits
}
