// Package version holds the aicommit version string. Default is "dev"; release
// builds set it with scripts/release.sh, which passes:
//
//	-X aicommit/cli/internal/version.Version=1.2.0
//	-X 'aicommit/cli/internal/version.Declaration=<LF>version = "1.2.0"<LF>'
//
// The release value is what the self-updater compares against the remote
// declaration, so it must use the same "x.y.z" shape (no leading "v").
package version

import "strings"

// Version is the aicommit version. Set at build time for releases.
var Version = "dev"

// Declaration is the version line the self-updater looks for in a downloaded
// release. It is stored as string data in the binary; the surrounding
// newlines keep it on a line of its own among the neighbouring bytes.
var Declaration = "\nversion = \"dev\"\n"

// Commit is the short git commit hash. Set at build time via ldflags.
var Commit = ""

// String returns the version string for display (--version, update output).
// For dev builds with Commit set, returns "dev (abc1234)"; otherwise returns Version.
func String() string {
	if Version != "dev" || Commit == "" {
		return Version
	}
	return Version + " (" + Commit + ")"
}

// IsDev reports whether this is an unreleased build.
func IsDev() bool {
	return Version == "dev"
}

// Declared returns the version named by Declaration, or "" when it is malformed.
func Declared() string {
	_, value, ok := strings.Cut(strings.TrimSpace(Declaration), "=")
	if !ok {
		return ""
	}
	return strings.Trim(strings.TrimSpace(value), `"'`)
}

// Consistent reports whether Declaration names Version. A release built
// without the declaration would never be recognised as newer by older installs.
func Consistent() bool {
	return Declared() == Version
}
