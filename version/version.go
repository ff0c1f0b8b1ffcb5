// Package version reports which build of auricle is running: the
// release tag injected at build time, or the vcs revision baked into the
// binary when there is none.
package version

import "runtime/debug"

// Version can be set at build time:
// go build -ldflags "-X github.com/auricle-audio/auricle/version.Version=$(git describe --dirty)"
var Version string

var Hash = func() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		modified := false
		for _, setting := range info.Settings {
			if setting.Key == "vcs.modified" && setting.Value == "true" {
				modified = true
				break
			}
		}
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				shortHash := setting.Value[:7]
				if modified {
					return shortHash + "-dirty"
				}
				return shortHash
			}
		}
	}
	return ""
}()

var VersionOrHash = func() string {
	if Version != "" {
		return Version
	}
	return Hash
}()
