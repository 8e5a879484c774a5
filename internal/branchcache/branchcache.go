// Package branchcache implements the branch cache manager: a directory tree
// of per-branch SQLite snapshots under
// <project>/<state-dir>/branches/<sanitized-branch>/, enabling an O(size of
// database) branch switch instead of a full re-read of the index store.
package branchcache

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/Fostonger/swiftscip/internal/errors"
	"github.com/Fostonger/swiftscip/internal/logging"
	"github.com/Fostonger/swiftscip/internal/scipmodel"
	"github.com/Fostonger/swiftscip/internal/storage"
)

const (
	databaseFileName  = "index.db"
	manifestFileName  = "cache.toml"
	archiveSuffix     = ".zst"
	sidecarWAL        = "-wal"
	sidecarSHM        = "-shm"
	legacyStateFile   = ".swift-scip-state.json"
	legacyBackupExt   = ".backup"
	defaultBranchName = "main"
)

var unsafeChars = strings.NewReplacer(
	"/", "_", "\\", "_", "?", "_", "%", "_",
	"*", "_", "|", "_", "\"", "_", "<", "_", ">", "_", ":", "_",
)

// Manifest is the advisory sidecar written next to each branch's database.
// It is never authoritative — get_branch_cache trusts the database's own
// Index State row — but lets status reporting avoid opening every branch's
// database, and flags a cache directory that exists but was never fully
// written.
type Manifest struct {
	Branch          string `toml:"branch"`
	SanitizedDir    string `toml:"sanitized_dir"`
	Commit          string `toml:"commit"`
	LastSwitchUnix  int64  `toml:"last_switch_unix"`
	SchemaVersion   int    `toml:"schema_version"` // not set by touchManifest; written as 0
}

// CacheInfo summarizes a branch's cache state.
type CacheInfo struct {
	Branch string
	Commit string
	Path   string
	Mtime  time.Time
}

// Manager owns the branches/ subtree of a project's state directory.
type Manager struct {
	branchesRoot string
	projectRoot  string
	logger       *logging.Logger
}

// New constructs a Manager rooted at <projectRoot>/<stateDirName>/branches.
func New(projectRoot, stateDirName string, logger *logging.Logger) *Manager {
	return &Manager{
		branchesRoot: filepath.Join(projectRoot, stateDirName, "branches"),
		projectRoot:  projectRoot,
		logger:       logger,
	}
}

// SanitizeBranch replaces filesystem-unsafe characters in a branch name.
func SanitizeBranch(branch string) string {
	return unsafeChars.Replace(branch)
}

// BranchCacheDir returns the directory holding a branch's cache.
func (m *Manager) BranchCacheDir(branch string) string {
	return filepath.Join(m.branchesRoot, SanitizeBranch(branch))
}

// BranchDatabasePath returns the path to a branch's index.db.
func (m *Manager) BranchDatabasePath(branch string) string {
	return filepath.Join(m.BranchCacheDir(branch), databaseFileName)
}

func (m *Manager) manifestPath(branch string) string {
	return filepath.Join(m.BranchCacheDir(branch), manifestFileName)
}

func (m *Manager) archivePath(branch string) string {
	return m.BranchDatabasePath(branch) + archiveSuffix
}

// GetBranchCache opens the branch's database read-only and reads its Index
// State. Returns (nil, nil) if no cache exists for the branch yet.
func (m *Manager) GetBranchCache(branch string) (*CacheInfo, error) {
	path := m.BranchDatabasePath(branch)
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, nil
		}
		return nil, statErr
	}

	db, err := storage.Open(path, true, m.logger)
	if err != nil {
		return nil, err
	}
	defer db.Close() //nolint:errcheck

	state, err := db.LoadState()
	if err != nil {
		return nil, err
	}

	commit := ""
	if state != nil {
		commit = state.Commit
	}
	return &CacheInfo{Branch: branch, Commit: commit, Path: path, Mtime: info.ModTime()}, nil
}

// CreateBranchCache ensures the branch's cache directory exists.
func (m *Manager) CreateBranchCache(branch string) error {
	dir := m.BranchCacheDir(branch)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(errors.OpenFailed, "failed to create branch cache directory", err)
	}
	return nil
}

// FastSwitchToBranch copies the branch's cached database (decompressing an
// archived cache transparently) to outPath, replacing whatever is there.
// This is the O(size-of-database) branch switch — no re-read of the index
// store is involved.
func (m *Manager) FastSwitchToBranch(branch, outPath string) error {
	src := m.BranchDatabasePath(branch)
	archived := m.archivePath(branch)

	hasCache := fileExists(src)
	hasArchive := fileExists(archived)
	if !hasCache && !hasArchive {
		return errors.New(errors.CacheNotFound, "no cache for branch: "+branch, nil)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return errors.New(errors.OpenFailed, "failed to create output directory", err)
	}

	if err := removeWithSidecars(outPath); err != nil {
		return errors.New(errors.OpenFailed, "failed to clear previous output", err)
	}

	if hasArchive && !hasCache {
		if err := decompressFile(archived, outPath); err != nil {
			return errors.New(errors.OpenFailed, "failed to decompress archived branch cache", err)
		}
	} else {
		if err := copyWithSidecars(src, outPath); err != nil {
			return errors.New(errors.OpenFailed, "failed to copy branch cache", err)
		}
	}

	m.touchManifest(branch)
	return nil
}

// SaveToBranchCache creates the branch directory (if needed) and copies src
// (and its WAL/SHM sidecars) into it, replacing any existing cache.
func (m *Manager) SaveToBranchCache(branch, src string) error {
	if err := m.CreateBranchCache(branch); err != nil {
		return err
	}

	dst := m.BranchDatabasePath(branch)
	if err := removeWithSidecars(dst); err != nil {
		return errors.New(errors.OpenFailed, "failed to clear previous branch cache", err)
	}
	os.Remove(m.archivePath(branch)) //nolint:errcheck

	if err := copyWithSidecars(src, dst); err != nil {
		return errors.New(errors.OpenFailed, "failed to save branch cache", err)
	}

	m.touchManifest(branch)
	return nil
}

// ListCachedBranches enumerates subdirectories holding either a live or an
// archived database, returning sanitized branch names in sorted order.
func (m *Manager) ListCachedBranches() ([]string, error) {
	entries, err := os.ReadDir(m.branchesRoot)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var branches []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dbPath := filepath.Join(m.branchesRoot, e.Name(), databaseFileName)
		archivePath := dbPath + archiveSuffix
		if fileExists(dbPath) || fileExists(archivePath) {
			branches = append(branches, e.Name())
		}
	}
	sort.Strings(branches)
	return branches, nil
}

// ReadManifest reads the advisory cache.toml for a sanitized branch
// directory name (as returned by ListCachedBranches), for status reporting
// that should avoid opening every branch's database. Returns (nil, nil) if
// no manifest has been written yet (e.g. a cache created before this
// manager wrote manifests, or one never switched to).
func (m *Manager) ReadManifest(sanitizedBranch string) (*Manifest, error) {
	path := filepath.Join(m.branchesRoot, sanitizedBranch, manifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var manifest Manifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return nil, errors.New(errors.MigrationFailure, "failed to parse branch cache manifest "+path, err)
	}
	return &manifest, nil
}

// CleanBranchCache recursively removes a single branch's cache directory.
func (m *Manager) CleanBranchCache(branch string) error {
	return os.RemoveAll(m.BranchCacheDir(branch))
}

// CleanAllCaches recursively removes the entire branches/ subtree.
func (m *Manager) CleanAllCaches() error {
	return os.RemoveAll(m.branchesRoot)
}

// ArchiveBranchCache compresses a branch's index.db into index.db.zst and
// removes the uncompressed copy, used for branches that have not been
// switched to within a configured retention window. A cache that is already
// archived, or absent, is a no-op.
func (m *Manager) ArchiveBranchCache(branch string) error {
	src := m.BranchDatabasePath(branch)
	if !fileExists(src) {
		return nil
	}

	dst := m.archivePath(branch)
	if err := compressFile(src, dst); err != nil {
		return errors.New(errors.OpenFailed, "failed to archive branch cache", err)
	}

	if err := removeWithSidecars(src); err != nil {
		return errors.New(errors.OpenFailed, "failed to remove uncompressed branch cache after archiving", err)
	}
	return nil
}

// MigrateLegacyState looks for a legacy JSON state file at
// <project>/.swift-scip-state.json; if present, it creates a branch cache
// database for the current branch (or "main" if it cannot be determined),
// writes an Index State row from the legacyCommit/legacyFiles arguments, and
// renames the legacy file to a .backup suffix. The legacy file's contents
// are not read. Returns whether migration ran.
func (m *Manager) MigrateLegacyState(currentBranch string, legacyCommit string, legacyFiles []string) (bool, error) {
	legacyPath := filepath.Join(m.projectRoot, legacyStateFile)
	if !fileExists(legacyPath) {
		return false, nil
	}

	branch := currentBranch
	if branch == "" {
		branch = defaultBranchName
	}

	if err := m.CreateBranchCache(branch); err != nil {
		return false, err
	}

	db, err := storage.Open(m.BranchDatabasePath(branch), false, m.logger)
	if err != nil {
		return false, err
	}
	defer db.Close() //nolint:errcheck

	state := scipmodel.IndexState{Commit: legacyCommit, IndexedAt: time.Now().Unix(), IndexedPaths: legacyFiles}
	if err := db.SaveState(state); err != nil {
		return false, err
	}

	if err := os.Rename(legacyPath, legacyPath+legacyBackupExt); err != nil {
		return false, errors.New(errors.OpenFailed, "failed to back up legacy state file", err)
	}

	m.logger.Info("migrated legacy state file to branch cache", map[string]interface{}{
		"branch": branch, "legacy_path": legacyPath,
	})
	return true, nil
}

func (m *Manager) touchManifest(branch string) {
	manifest := Manifest{
		Branch:         branch,
		SanitizedDir:   SanitizeBranch(branch),
		LastSwitchUnix: time.Now().Unix(),
	}
	if cache, err := m.GetBranchCache(branch); err == nil && cache != nil {
		manifest.Commit = cache.Commit
	}

	data, err := toml.Marshal(manifest)
	if err != nil {
		m.logger.Warn("failed to marshal branch cache manifest", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := os.WriteFile(m.manifestPath(branch), data, 0o644); err != nil {
		m.logger.Warn("failed to write branch cache manifest", map[string]interface{}{"error": err.Error()})
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func sidecarPaths(path string) []string {
	return []string{path + sidecarWAL, path + sidecarSHM}
}

func removeWithSidecars(path string) error {
	if err := removeIfExists(path); err != nil {
		return err
	}
	for _, sidecar := range sidecarPaths(path) {
		if err := removeIfExists(sidecar); err != nil {
			return err
		}
	}
	return nil
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func copyWithSidecars(src, dst string) error {
	if err := copyFile(src, dst); err != nil {
		return err
	}
	for _, sidecar := range sidecarPaths(src) {
		dstSidecar := dst + sidecar[len(src):]
		if fileExists(sidecar) {
			if err := copyFile(sidecar, dstSidecar); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	_, err = io.Copy(out, in)
	return err
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	enc, err := zstd.NewWriter(out)
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, in); err != nil {
		enc.Close() //nolint:errcheck
		return err
	}
	return enc.Close()
}

func decompressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	dec, err := zstd.NewReader(in)
	if err != nil {
		return err
	}
	defer dec.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	_, err = io.Copy(out, dec)
	return err
}
