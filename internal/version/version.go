// Package version holds build metadata injected via ldflags.
package version

import "go.uber.org/zap"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the build as "version (commit, date)".
func String() string {
	return Version + " (" + Commit + ", " + Date + ")"
}

// Field returns the build metadata as one structured log field.
func Field() zap.Field {
	return zap.Dict("build",
		zap.String("version", Version),
		zap.String("commit", Commit),
		zap.String("date", Date),
	)
}
