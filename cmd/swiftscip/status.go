package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Fostonger/swiftscip/internal/branchcache"
	"github.com/Fostonger/swiftscip/internal/logging"
	"github.com/Fostonger/swiftscip/internal/storage"
	"github.com/Fostonger/swiftscip/internal/vcs"
)

const statusStateDirName = ".swiftscip"

var (
	statusProjectRoot string
	statusVerbose     bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show branch, cache, and index state for a project",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusProjectRoot, "project-root", ".", "Swift project or package root")
	statusCmd.Flags().BoolVar(&statusVerbose, "verbose", false, "List every cached branch, not just the current one")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	level := logging.InfoLevel
	if statusVerbose {
		level = logging.DebugLevel
	}
	logger := logging.NewLogger(logging.Config{Format: logging.HumanFormat, Level: level})

	projectRoot, err := filepath.Abs(statusProjectRoot)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}

	tracker := vcs.New(projectRoot, logger)
	if !tracker.IsRepository() {
		fmt.Println("not a git repository; only legacy-mode indexing is available")
		return nil
	}

	branch := tracker.CurrentBranch()
	commit := tracker.CurrentCommitHash()
	fmt.Printf("branch:  %s\n", branch)
	fmt.Printf("commit:  %s\n", commit)

	cacheMgr := branchcache.New(projectRoot, statusStateDirName, logger)

	cache, err := cacheMgr.GetBranchCache(branch)
	if err != nil {
		return fmt.Errorf("reading branch cache: %w", err)
	}
	if cache == nil {
		fmt.Println("cache:   none for this branch")
	} else {
		fmt.Printf("cache:   %s @ %s%s\n", cache.Path, shortenCommit(cache.Commit), staleSuffix(cache.Commit, commit))

		db, openErr := storage.Open(cache.Path, true, logger)
		if openErr == nil {
			if state, stateErr := db.LoadState(); stateErr == nil && state != nil {
				fmt.Printf("indexed: %d files as of commit %s\n", len(state.IndexedPaths), shortenCommit(state.Commit))
			}
			_ = db.Close()
		}
	}

	if statusVerbose {
		branches, err := cacheMgr.ListCachedBranches()
		if err != nil {
			return fmt.Errorf("listing cached branches: %w", err)
		}
		fmt.Printf("all cached branches (%d):\n", len(branches))
		for _, sanitized := range branches {
			manifest, mErr := cacheMgr.ReadManifest(sanitized)
			if mErr != nil || manifest == nil {
				fmt.Printf("  %-30s (no manifest)\n", sanitized)
				continue
			}
			fmt.Printf("  %-30s %s\n", manifest.Branch, shortenCommit(manifest.Commit))
		}
	}

	return nil
}

func shortenCommit(commit string) string {
	if len(commit) > 10 {
		return commit[:10]
	}
	return commit
}

func staleSuffix(cached, current string) string {
	if cached != current {
		return " (stale)"
	}
	return ""
}
