// Package version exposes build metadata for vehicle-safety.
//
// Version, Commit and BuildTime are injected at build time via ldflags.
// Full is what the version subcommand prints and what STARTUP logs.
package version
