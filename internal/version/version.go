// Package version exposes build metadata injected at link time.
//
// Release builds set Version, Commit, and Date through ldflags:
//
//	go build -ldflags "-X github.com/shtefko55/toolsy/internal/version.Version=1.2.3 \
//	                   -X github.com/shtefko55/toolsy/internal/version.Commit=$(git rev-parse HEAD) \
//	                   -X github.com/shtefko55/toolsy/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
)

// ApplicationName is the canonical name of this application.
const ApplicationName = "toolsy"

// Injected via ldflags, defaulting to development values.
var (
	// Version is a SemVer 2.0.0 string. Prerelease builds use the
	// "X.Y.Z-SNAPSHOT.shortsha" form.
	Version = "dev"

	// Commit is the full git commit SHA.
	Commit = "unknown"

	// Date is the build timestamp in RFC3339.
	Date = "unknown"
)

// GoVersion is the Go runtime this binary was built with.
var GoVersion = runtime.Version()

// Info is the structured form of the build metadata.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo collects all build metadata.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func shortCommit() (string, bool) {
	if Commit == "unknown" || len(Commit) < 8 {
		return "", false
	}
	return Commit[:8], true
}

// String returns the long human-readable version line.
func String() string {
	info := GetInfo()
	if sha, ok := shortCommit(); ok {
		return fmt.Sprintf("%s version %s (commit: %s, built: %s, %s, %s)",
			ApplicationName, info.Version, sha, info.Date, info.GoVersion, info.Platform)
	}
	return fmt.Sprintf("%s version %s (%s, %s)", ApplicationName, info.Version, info.GoVersion, info.Platform)
}

// Short returns a compact version string for --version output.
func Short() string {
	if sha, ok := shortCommit(); ok {
		return fmt.Sprintf("%s %s (%s)", ApplicationName, Version, sha)
	}
	return fmt.Sprintf("%s %s", ApplicationName, Version)
}

// JSON returns the build metadata serialized as indented JSON.
func JSON() string {
	data, err := json.MarshalIndent(GetInfo(), "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"version":%q}`, Version)
	}
	return string(data)
}

// UserAgent returns the User-Agent value for outbound HTTP requests.
func UserAgent() string {
	return ApplicationName + "/" + Version
}

// IsSnapshot reports whether this is a development or prerelease build.
func IsSnapshot() bool {
	return Version == "dev" || strings.Contains(Version, "-SNAPSHOT")
}

// IsRelease reports whether this is a tagged release build.
func IsRelease() bool {
	return !IsSnapshot() && Version != "dev"
}
