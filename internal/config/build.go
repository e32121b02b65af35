package config

import "runtime/debug"

// Set with -ldflags "-X inboxinspire/internal/config.version=..." (and commit,
// buildTime) in release builds. Local builds keep the defaults, and commit
// falls back to the VCS revision the toolchain stamps into the binary.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo returns the build metadata of the running binary.
func NewBuildInfo() BuildInfo {
	info := BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}
	if info.Commit == "none" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			info.Commit, info.BuildTime = vcsStamp(bi.Settings, info.BuildTime)
		}
	}
	return info
}

// vcsStamp picks the short revision and commit time from the toolchain's
// build settings. Missing values leave "none" and fallbackTime in place.
func vcsStamp(settings []debug.BuildSetting, fallbackTime string) (rev, at string) {
	rev, at = "none", fallbackTime
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
			if len(rev) > 12 {
				rev = rev[:12]
			}
		case "vcs.time":
			if at == "unknown" {
				at = s.Value
			}
		}
	}
	return rev, at
}
