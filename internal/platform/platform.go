// Package platform answers the few OS questions the daemon cares about:
// whether unix sockets work and whether config watching can be trusted.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Platform represents the detected platform
type Platform string

const (
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformWSL1    Platform = "wsl1"
	PlatformWSL2    Platform = "wsl2"
	PlatformWindows Platform = "windows"
	PlatformUnknown Platform = "unknown"
)

var (
	detectOnce sync.Once
	detected   Platform
)

// Detect returns the current platform, caching the result
func Detect() Platform {
	detectOnce.Do(func() {
		detected = classify(runtime.GOOS, os.Getenv("WSL_DISTRO_NAME"), readFile("/proc/version"), exists("/run/WSL"))
	})
	return detected
}

func readFile(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(b)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// classify maps what the OS reports to a Platform. WSL2 kernels carry
// "microsoft-standard" in /proc/version; WSL1 reports "Microsoft".
func classify(goos, wslDistro, procVersion string, runWSL bool) Platform {
	switch goos {
	case "darwin":
		return PlatformMacOS
	case "windows":
		return PlatformWindows
	case "linux":
	default:
		return PlatformUnknown
	}

	isWSL := wslDistro != "" || strings.Contains(strings.ToLower(procVersion), "microsoft")
	if !isWSL {
		return PlatformLinux
	}
	if strings.Contains(procVersion, "microsoft-standard") || runWSL {
		return PlatformWSL2
	}
	return PlatformWSL1
}

// String returns a human-readable platform name
func (p Platform) String() string {
	switch p {
	case PlatformMacOS:
		return "macOS"
	case PlatformLinux:
		return "Linux"
	case PlatformWSL1:
		return "WSL1"
	case PlatformWSL2:
		return "WSL2"
	case PlatformWindows:
		return "Windows"
	default:
		return "Unknown"
	}
}

// SupportsUnixSockets reports whether the daemon can listen on a unix socket.
func SupportsUnixSockets() bool {
	return socketsSupported(Detect())
}

func socketsSupported(p Platform) bool {
	switch p {
	case PlatformMacOS, PlatformLinux, PlatformWSL2:
		return true
	default:
		return false
	}
}

// maxSocketPath is sizeof(sun_path) minus the terminating NUL.
func maxSocketPath(goos string) int {
	if goos == "linux" {
		return 107
	}
	return 103
}

// CheckSocketPath rejects socket paths the kernel would truncate.
func CheckSocketPath(path string) error {
	limit := maxSocketPath(runtime.GOOS)
	if len(path) > limit {
		return fmt.Errorf("socket path %q is %d bytes, limit is %d; set [daemon] socket to a shorter path", path, len(path), limit)
	}
	return nil
}

// CheckFsnotifySupport returns a warning when path lives on a filesystem
// where change events are unreliable, or "" when watching should work.
func CheckFsnotifySupport(path string) string {
	if runtime.GOOS != "linux" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	return fsnotifyWarning(mountType(abs, readFile("/proc/mounts")))
}

// mountType finds the filesystem type of the longest mount point holding path.
func mountType(path, mounts string) string {
	var matched, fsType string
	for _, line := range strings.Split(mounts, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mp := fields[1]
		if !within(path, mp) || len(mp) <= len(matched) {
			continue
		}
		matched, fsType = mp, fields[2]
	}
	return fsType
}

func within(path, mountPoint string) bool {
	if mountPoint == "/" || path == mountPoint {
		return true
	}
	return strings.HasPrefix(path, mountPoint+"/")
}

func fsnotifyWarning(fsType string) string {
	const tail = "config changes may not reload; restart the daemon after editing"
	switch {
	case fsType == "9p":
		return "config on 9p mount (WSL2 Windows filesystem): " + tail
	case fsType == "nfs" || fsType == "nfs4":
		return "config on NFS mount: " + tail
	case fsType == "cifs" || fsType == "smbfs":
		return "config on CIFS/SMB mount: " + tail
	case strings.HasPrefix(fsType, "fuse.sshfs"):
		return "config on SSHFS mount: " + tail
	}
	return ""
}
