// Package buildinfo holds version and build metadata stamped at compile time via ldflags.
package buildinfo

import (
	"fmt"
	"runtime"
	"time"
)

// These variables are set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitBranch = "unknown"
	BuildTime = "unknown"
)

var startTime = time.Now()

// BuildInfo returns the values stamped at build time.
func BuildInfo() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"git_branch": GitBranch,
		"build_time": BuildTime,
	}
}

// RuntimeInfo describes the running process.
func RuntimeInfo() map[string]string {
	return map[string]string{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"uptime":     Uptime().String(),
	}
}

// Info merges BuildInfo and RuntimeInfo.
func Info() map[string]string {
	out := BuildInfo()
	for k, v := range RuntimeInfo() {
		out[k] = v
	}
	return out
}

// Uptime returns the duration since process start.
func Uptime() time.Duration {
	return time.Since(startTime).Truncate(time.Second)
}

// UserAgent is sent on every outbound HTTP request.
func UserAgent() string {
	return "vitaroute/" + Version
}

// String returns a one-line summary for logging.
func String() string {
	return fmt.Sprintf("VitaRoute %s (%s@%s) built %s", Version, GitCommit, GitBranch, BuildTime)
}
