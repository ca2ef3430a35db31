package routes

import (
	"net/http"
	"runtime"
	"runtime/debug"

	"pixbatch/logger"
)

// Build-time variables (injected by ldflags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// VersionResponse represents the version information response
type VersionResponse struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	GitCommit string `json:"git_commit,omitempty"`
}

// getVersion returns the ldflags version, or the module version go install
// recorded.
func getVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

// getCommit falls back to the VCS revision stamped by the go tool.
func getCommit() string {
	if gitCommit != "unknown" {
		return gitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return gitCommit
}

// VersionHandler provides version information about the build
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Version request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

	if r.Method != http.MethodGet {
		logger.Warnf("Invalid method for version endpoint: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := VersionResponse{
		Version:   getVersion(),
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
		GitCommit: getCommit(),
	}

	logger.Debugf("Version response: version=%s, go_version=%s, git_commit=%s",
		response.Version, response.GoVersion, response.GitCommit)
	writeJSON(w, http.StatusOK, response)
}
