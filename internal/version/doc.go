// Package version exposes build metadata for the catpoint binaries.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds.
// Helper functions Short and Full render the version string for CLI output and logs,
// and AttachCobraVersionCommand adds a `version` subcommand to a cobra root.
package version
