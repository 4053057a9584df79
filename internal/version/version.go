// Package version provides build information for the idaframe client.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const (
	unknownValue     = "unknown"
	commitHashLength = 7
)

// Build-time variables set by ldflags
var (
	Version   = "dev"
	BuildDate = unknownValue
	GitCommit = unknownValue
	GitTag    = unknownValue
	GoVersion = runtime.Version()
)

// driverModules are the database/sql drivers the client can be built with.
var driverModules = map[string]string{
	"github.com/IBM/nzgo/v12":     "nzgo",
	"github.com/mattn/go-sqlite3": "sqlite3",
}

// BuildInfo contains detailed build information
type BuildInfo struct {
	Version   string    `json:"version"`
	BuildDate string    `json:"build_date"`
	GitCommit string    `json:"git_commit"`
	GitTag    string    `json:"git_tag"`
	GoVersion string    `json:"go_version"`
	BuildTime time.Time `json:"build_time"`
	Dirty     bool      `json:"dirty"`
	Main      Module    `json:"main"`
	Drivers   []Module  `json:"drivers"`
}

// Module represents a Go module with version information
type Module struct {
	Name    string `json:"name,omitempty"`
	Path    string `json:"path"`
	Version string `json:"version"`
}

// Info returns detailed build information
func Info() BuildInfo {
	buildTime, _ := time.Parse(time.RFC3339, BuildDate)
	if buildTime.IsZero() {
		buildTime = time.Now()
	}

	info := BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GitTag:    GitTag,
		GoVersion: GoVersion,
		BuildTime: buildTime,
		Dirty:     strings.Contains(GitCommit, "-dirty"),
	}

	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		info.Main = Module{Path: buildInfo.Main.Path, Version: buildInfo.Main.Version}
		info.Drivers = drivers(buildInfo.Deps)
	}

	return info
}

func drivers(deps []*debug.Module) []Module {
	var out []Module
	for _, dep := range deps {
		if name, ok := driverModules[dep.Path]; ok {
			out = append(out, Module{Name: name, Path: dep.Path, Version: dep.Version})
		}
	}
	return out
}

// String returns a formatted version string
func (b BuildInfo) String() string {
	var sb strings.Builder
	sb.WriteString("idaframe in-database analytics client\n")
	sb.WriteString(fmt.Sprintf("Version: %s", b.Version))

	if b.GitTag != unknownValue && b.GitTag != "" && b.GitTag != b.Version {
		sb.WriteString(fmt.Sprintf(" (%s)", b.GitTag))
	}

	if b.Dirty {
		sb.WriteString(" (dirty)")
	}
	sb.WriteString("\n")

	if b.BuildDate != unknownValue && b.BuildDate != "" {
		sb.WriteString(fmt.Sprintf("Build Date: %s\n", b.BuildDate))
	}

	if b.GitCommit != unknownValue && b.GitCommit != "" {
		commit := b.GitCommit
		if len(commit) > commitHashLength {
			commit = commit[:commitHashLength]
		}
		sb.WriteString(fmt.Sprintf("Git Commit: %s\n", commit))
	}

	sb.WriteString(fmt.Sprintf("Go Version: %s\n", b.GoVersion))

	for _, d := range b.Drivers {
		sb.WriteString(fmt.Sprintf("Driver: %s %s\n", d.Name, d.Version))
	}

	return sb.String()
}

// UserAgent identifies the client in logs
func UserAgent() string {
	return fmt.Sprintf("idaframe/%s", Version)
}

// IsRelease returns true if this is a release version (not dev)
func IsRelease() bool {
	return Version != "dev" && !strings.Contains(Version, "-")
}
