// Package version stamps log lines and the gateway's own outbound HTTP
// requests with the build the binary was compiled from.
package version

import (
	"runtime/debug"
	"sync"
)

// AppName is the application name used in version strings and log banners.
const AppName = "nightjar"

// commitOverride is set via -ldflags for release builds without a .git
// directory.
var commitOverride string

// Commit returns the short git revision, or "dev" for non-VCS builds and
// `go test` binaries.
var Commit = sync.OnceValue(func() string {
	if commitOverride != "" {
		return shortRev(commitOverride)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return shortRev(s.Value)
			}
		}
	}
	return "dev"
})

func shortRev(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full is the "nightjar/<commit>" string the startup banner logs.
func Full() string { return AppName + "/" + Commit() }

// UserAgent identifies the gateway's own HTTP clients (DocStore, loopback
// pairing) in upstream access logs.
func UserAgent() string { return AppName + "-gateway/" + Commit() }
