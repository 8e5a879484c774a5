// Package orchestrator implements the index operation: the decision tree
// tying together the Index-Store Reader, Storage Engine, VCS State Tracker,
// and Branch Cache Manager into one run.
package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Fostonger/swiftscip/internal/branchcache"
	"github.com/Fostonger/swiftscip/internal/errors"
	"github.com/Fostonger/swiftscip/internal/indexstore"
	"github.com/Fostonger/swiftscip/internal/legacyjson"
	"github.com/Fostonger/swiftscip/internal/logging"
	"github.com/Fostonger/swiftscip/internal/reader"
	"github.com/Fostonger/swiftscip/internal/scipmodel"
	"github.com/Fostonger/swiftscip/internal/storage"
	"github.com/Fostonger/swiftscip/internal/vcs"
)

const (
	stateDirName        = ".swiftscip"
	dbExtension         = ".db"
	toolName            = "swiftscip"
	toolVersion         = "0.1.0"
	unknownBranchFolder = "main"
)

// Options configures a single index run.
type Options struct {
	ProjectRoot     string
	OutputPath      string
	Incremental     bool
	Force           bool
	IncludeSnippets bool
	JSON            bool

	// BranchCacheRetentionHours is how long a branch cache may go
	// unswitched-to before this run opportunistically archives it. Zero
	// disables the sweep.
	BranchCacheRetentionHours int
}

// Result summarizes what the run did, for CLI reporting.
type Result struct {
	RunID        string
	Mode         string // "legacy", "fast-switch", "incremental", "full"
	FilesWritten int
	Commit       string
}

// Orchestrator runs the index operation against a caller-supplied
// indexstore.Store. The store itself — opening the compiler's native index
// and the dynamic-library loader it requires — is outside this package's
// concern; that loader lives with the caller.
type Orchestrator struct {
	store  indexstore.Store
	logger *logging.Logger
}

// New constructs an Orchestrator over an already-opened Store.
func New(store indexstore.Store, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{store: store, logger: logger}
}

// Run executes the full fast-switch/incremental/full-rebuild decision tree.
func (o *Orchestrator) Run(opts Options) (*Result, error) {
	runID := uuid.New().String()
	log := o.logger.ForRun(runID)
	log.Info("starting index run", map[string]interface{}{"project_root": opts.ProjectRoot})

	tracker := vcs.New(opts.ProjectRoot, o.logger)

	if opts.JSON || !tracker.IsRepository() {
		return o.runLegacy(opts, runID, log)
	}

	cacheMgr := branchcache.New(opts.ProjectRoot, stateDirName, o.logger)
	if _, err := cacheMgr.MigrateLegacyState(tracker.CurrentBranch(), "", nil); err != nil {
		log.Warn("legacy state migration failed, continuing without it", map[string]interface{}{"error": err.Error()})
	}

	branch := tracker.CurrentBranch()
	if branch == "" {
		branch = unknownBranchFolder
	}
	commit := tracker.CurrentCommitHash()

	if opts.BranchCacheRetentionHours > 0 {
		o.archiveStaleBranches(cacheMgr, branch, opts.BranchCacheRetentionHours, log)
	}

	outputPath := normalizeOutputExtension(opts.OutputPath)

	cache, err := cacheMgr.GetBranchCache(branch)
	if err != nil {
		return nil, err
	}

	// Fast-path: cached commit matches current commit.
	if cache != nil && cache.Commit == commit && !opts.Force {
		if err := cacheMgr.FastSwitchToBranch(branch, outputPath); err == nil {
			log.Info("fast switch: cache already current", map[string]interface{}{"branch": branch, "commit": commit})
			return &Result{RunID: runID, Mode: "fast-switch", Commit: commit}, nil
		}
	}

	if opts.Incremental && !opts.Force && cache != nil {
		changes, changeErr := tracker.ChangedFilesForBranch(branch, cache.Commit)
		if changeErr == nil {
			if len(changes) == 0 {
				if err := cacheMgr.FastSwitchToBranch(branch, outputPath); err != nil {
					return nil, err
				}
				db, openErr := storage.Open(outputPath, false, o.logger)
				if openErr != nil {
					return nil, openErr
				}
				defer db.Close() //nolint:errcheck
				paths, pathsErr := db.GetIndexedFilePaths()
				if pathsErr != nil {
					return nil, pathsErr
				}
				if err := db.SaveState(scipmodel.IndexState{Commit: commit, IndexedAt: time.Now().Unix(), IndexedPaths: paths}); err != nil {
					return nil, err
				}
				if err := cacheMgr.SaveToBranchCache(branch, outputPath); err != nil {
					return nil, err
				}
				log.Info("no changes since cached commit, state refreshed", map[string]interface{}{"branch": branch})
				return &Result{RunID: runID, Mode: "fast-switch", Commit: commit, FilesWritten: len(paths)}, nil
			}
			return o.runIncremental(opts, tracker, cacheMgr, branch, commit, cache, changes, outputPath, runID, log)
		}
		log.Warn("changed-files query failed, falling back to full rebuild", map[string]interface{}{"error": changeErr.Error()})
	}

	return o.runFull(opts, tracker, cacheMgr, branch, commit, outputPath, runID, log)
}

func (o *Orchestrator) runLegacy(opts Options, runID string, log *logging.RunLogger) (*Result, error) {
	log.Info("running in legacy mode", map[string]interface{}{"json": opts.JSON})

	r := reader.New(o.store, opts.ProjectRoot, opts.IncludeSnippets)
	symbols, relationships, err := r.CollectSymbols()
	if err != nil {
		return nil, err
	}
	occurrences, err := r.CollectOccurrences(nil)
	if err != nil {
		return nil, err
	}

	meta := scipmodel.Metadata{
		Version: 1, ToolName: toolName, ToolVersion: toolVersion, ProjectRoot: opts.ProjectRoot,
		ToolArguments: []string{"--run-id=" + runID},
	}
	idx := legacyjson.Build(meta, symbols, occurrences, relationships)

	f, err := os.Create(opts.OutputPath)
	if err != nil {
		return nil, errors.New(errors.OpenFailed, "failed to create legacy output file", err)
	}
	defer f.Close() //nolint:errcheck
	if err := legacyjson.Write(f, idx); err != nil {
		return nil, errors.New(errors.StatementExecution, "failed to write legacy JSON", err)
	}

	return &Result{RunID: runID, Mode: "legacy", FilesWritten: len(idx.Documents)}, nil
}

func (o *Orchestrator) runIncremental(
	opts Options, tracker *vcs.Tracker, cacheMgr *branchcache.Manager,
	branch, commit string, cache *branchcache.CacheInfo, changes []vcs.ChangedFile,
	outputPath string, runID string, log *logging.RunLogger,
) (*Result, error) {
	log.Info("running incremental update", map[string]interface{}{"branch": branch, "changed_files": len(changes)})

	if err := cacheMgr.FastSwitchToBranch(branch, outputPath); err != nil {
		return nil, err
	}

	db, err := storage.Open(outputPath, false, o.logger)
	if err != nil {
		return nil, err
	}
	defer db.Close() //nolint:errcheck

	deleted, err := tracker.DeletedFilesSince(cache.Commit)
	if err != nil {
		return nil, err
	}
	if len(deleted) > 0 {
		if err := db.DeleteDocuments(deleted); err != nil {
			return nil, err
		}
	}

	changedPaths := make([]string, 0, len(changes))
	whitelist := make(map[string]bool, len(changes))
	for _, c := range changes {
		if c.ChangeType == vcs.ChangeDeleted {
			continue
		}
		changedPaths = append(changedPaths, c.Path)
		whitelist[c.Path] = true
	}

	r := reader.New(o.store, opts.ProjectRoot, opts.IncludeSnippets)
	symbols, _, err := r.CollectSymbols()
	if err != nil {
		return nil, err
	}
	occurrences, err := r.CollectOccurrences(whitelist)
	if err != nil {
		return nil, err
	}

	if err := db.UpdateDocuments(changedPaths, symbols, occurrences); err != nil {
		return nil, err
	}

	paths, err := db.GetIndexedFilePaths()
	if err != nil {
		return nil, err
	}
	if err := db.SaveState(scipmodel.IndexState{Commit: commit, IndexedAt: time.Now().Unix(), IndexedPaths: paths}); err != nil {
		return nil, err
	}

	if err := cacheMgr.SaveToBranchCache(branch, outputPath); err != nil {
		return nil, err
	}

	return &Result{RunID: runID, Mode: "incremental", Commit: commit, FilesWritten: len(changedPaths)}, nil
}

func (o *Orchestrator) runFull(
	opts Options, tracker *vcs.Tracker, cacheMgr *branchcache.Manager,
	branch, commit, outputPath, runID string, log *logging.RunLogger,
) (*Result, error) {
	log.Info("running full rebuild", map[string]interface{}{"branch": branch})

	if err := cacheMgr.CreateBranchCache(branch); err != nil {
		return nil, err
	}

	r := reader.New(o.store, opts.ProjectRoot, opts.IncludeSnippets)
	symbols, relationships, err := r.CollectSymbols()
	if err != nil {
		return nil, err
	}
	occurrences, err := r.CollectOccurrences(nil)
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(outputPath, false, o.logger)
	if err != nil {
		return nil, err
	}
	defer db.Close() //nolint:errcheck

	idx := scipmodel.Index{
		Metadata: scipmodel.Metadata{
			Version: 1, ToolName: toolName, ToolVersion: toolVersion, ProjectRoot: opts.ProjectRoot,
			ToolArguments: []string{"--run-id=" + runID},
		},
		Symbols:       symbols,
		Occurrences:   occurrences,
		Relationships: relationships,
	}
	if err := db.Write(idx, opts.ProjectRoot); err != nil {
		return nil, err
	}

	paths := uniqueDocPaths(occurrences)
	if err := db.SaveState(scipmodel.IndexState{Commit: commit, IndexedAt: time.Now().Unix(), IndexedPaths: paths}); err != nil {
		return nil, err
	}

	if err := cacheMgr.SaveToBranchCache(branch, outputPath); err != nil {
		return nil, err
	}

	return &Result{RunID: runID, Mode: "full", Commit: commit, FilesWritten: len(paths)}, nil
}

// archiveStaleBranches compresses every cached branch (other than the one
// this run just touched) whose manifest says it hasn't been switched to
// within retentionHours. Failures are logged and skipped — this is
// opportunistic housekeeping, never fatal to the run it rides along with.
func (o *Orchestrator) archiveStaleBranches(cacheMgr *branchcache.Manager, currentBranch string, retentionHours int, log *logging.RunLogger) {
	branches, err := cacheMgr.ListCachedBranches()
	if err != nil {
		log.Info("failed to list cached branches for retention sweep", map[string]interface{}{"error": err.Error()})
		return
	}

	cutoff := time.Now().Add(-time.Duration(retentionHours) * time.Hour)
	currentDir := branchcache.SanitizeBranch(currentBranch)

	for _, sanitized := range branches {
		if sanitized == currentDir {
			continue
		}
		manifest, err := cacheMgr.ReadManifest(sanitized)
		if err != nil || manifest == nil {
			continue
		}
		if time.Unix(manifest.LastSwitchUnix, 0).After(cutoff) {
			continue
		}
		if err := cacheMgr.ArchiveBranchCache(sanitized); err != nil {
			log.Info("failed to archive stale branch cache", map[string]interface{}{"branch": sanitized, "error": err.Error()})
			continue
		}
		log.Info("archived stale branch cache", map[string]interface{}{"branch": sanitized, "retention_hours": retentionHours})
	}
}

func uniqueDocPaths(occurrences []scipmodel.Occurrence) []string {
	seen := make(map[string]bool)
	var paths []string
	for _, occ := range occurrences {
		if !seen[occ.DocPath] {
			seen[occ.DocPath] = true
			paths = append(paths, occ.DocPath)
		}
	}
	return paths
}

func normalizeOutputExtension(path string) string {
	if strings.EqualFold(filepath.Ext(path), dbExtension) {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + dbExtension
}
