package main

import (
	"github.com/Fostonger/swiftscip/internal/version"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "swiftscip",
	Short: "swiftscip - SCIP index generation for Swift projects",
	Long: `swiftscip drives the compiler's on-disk index store (libIndexStore)
through incremental or full runs, storing the result as a queryable SQLite
index (or, with --json, the legacy single-file JSON format) with per-branch
caching so switching branches doesn't force a full rebuild.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("swiftscip version {{.Version}}\n")
}
