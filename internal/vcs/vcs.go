// Package vcs implements the VCS state tracker: it answers "what changed"
// questions against the project's git history. Failed git queries are
// returned as errors; HashTree offers a separate content-hash walk that the
// change-detection methods do not call.
package vcs

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/Fostonger/swiftscip/internal/errors"
	"github.com/Fostonger/swiftscip/internal/logging"
)

// DefaultCommandTimeout bounds every git invocation made through run/runRaw.
// IsRepository's probe runs without it.
const DefaultCommandTimeout = 5000 * time.Millisecond

const sourceExtension = ".swift"

var skipDirs = map[string]bool{
	".git":          true,
	".swiftscip":    true,
	"Pods":          true,
	".build":        true,
	"DerivedData":   true,
	"node_modules":  true,
}

// ChangeType classifies how a file changed between two states.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
	ChangeRenamed  ChangeType = "renamed"
)

// ChangedFile is one entry in a change set.
type ChangedFile struct {
	Path       string
	OldPath    string // populated only for ChangeRenamed
	ChangeType ChangeType
	Hash       string // populated only by hash-based detection
}

// Tracker answers change-detection questions for a single project root.
type Tracker struct {
	projectRoot string
	timeout     time.Duration
	logger      *logging.Logger
}

// New constructs a Tracker rooted at projectRoot.
func New(projectRoot string, logger *logging.Logger) *Tracker {
	return &Tracker{projectRoot: projectRoot, timeout: DefaultCommandTimeout, logger: logger}
}

// IsRepository reports whether projectRoot is inside a git working tree.
func (t *Tracker) IsRepository() bool {
	cmd := exec.Command("git", "rev-parse", "--git-dir")
	cmd.Dir = t.projectRoot
	return cmd.Run() == nil
}

// CurrentCommitHash returns the HEAD commit hash, or "" if unavailable
// (unborn branch, or not a repository).
func (t *Tracker) CurrentCommitHash() string {
	out, err := t.run("rev-parse", "HEAD")
	if err != nil {
		return ""
	}
	return out
}

// CurrentBranch returns the checked-out branch name, or "" when detached.
func (t *Tracker) CurrentBranch() string {
	out, err := t.run("symbolic-ref", "--short", "HEAD")
	if err != nil {
		return ""
	}
	return out
}

// ChangedFilesSince returns the set of Swift source files that differ
// between since and HEAD, plus any uncommitted working-tree changes. If
// projectRoot is not a repository it returns a NotAGitRepository error; if
// the diff against since fails, that error is returned. No content-hash
// walk is attempted.
func (t *Tracker) ChangedFilesSince(since string) ([]ChangedFile, error) {
	if !t.IsRepository() {
		return nil, errors.New(errors.NotAGitRepository, "not a git repository: "+t.projectRoot, nil)
	}

	if since == "" {
		return t.WorkingTreeChanges()
	}

	head := t.CurrentCommitHash()
	if head == "" {
		return t.WorkingTreeChanges()
	}
	if head == since {
		return t.WorkingTreeChanges()
	}

	out, err := t.runRaw("diff", "--name-status", "-z", since, head)
	if err != nil {
		t.logger.Warn("git diff against prior commit failed", map[string]interface{}{
			"since": since, "error": err.Error(),
		})
		return nil, err
	}

	changes := parseDiffNUL(out)
	uncommitted, _ := t.WorkingTreeChanges()
	changes = append(changes, uncommitted...)
	return dedupe(changes), nil
}

// DeletedFilesSince returns just the deletions out of ChangedFilesSince.
func (t *Tracker) DeletedFilesSince(since string) ([]string, error) {
	changes, err := t.ChangedFilesSince(since)
	if err != nil {
		return nil, err
	}
	var deleted []string
	for _, c := range changes {
		if c.ChangeType == ChangeDeleted {
			deleted = append(deleted, c.Path)
		}
	}
	return deleted, nil
}

// WorkingTreeChanges reports staged, unstaged, and untracked Swift files.
func (t *Tracker) WorkingTreeChanges() ([]ChangedFile, error) {
	var changes []ChangedFile

	if staged, err := t.runRaw("diff", "--name-status", "-z", "--cached"); err == nil {
		changes = append(changes, parseDiffNUL(staged)...)
	}
	if unstaged, err := t.runRaw("diff", "--name-status", "-z"); err == nil {
		changes = append(changes, parseDiffNUL(unstaged)...)
	}
	if untracked, err := t.runRaw("ls-files", "-z", "--others", "--exclude-standard"); err == nil {
		for _, path := range bytes.Split(untracked, []byte{0}) {
			p := string(path)
			if p != "" && isSourceFile(p) {
				changes = append(changes, ChangedFile{Path: p, ChangeType: ChangeAdded})
			}
		}
	}

	return dedupe(changes), nil
}

// ChangedFilesForBranch diffs sinceCommit (a branch cache's recorded commit)
// against the tip of branch, used by the orchestrator to decide whether a
// cached branch snapshot can be restored as-is or needs an incremental
// catch-up. It returns nil when the tip equals sinceCommit. Uncommitted
// working-tree changes are not included in either case.
func (t *Tracker) ChangedFilesForBranch(branch, sinceCommit string) ([]ChangedFile, error) {
	tip, err := t.run("rev-parse", branch)
	if err != nil {
		return nil, errors.New(errors.NotAGitRepository, "unknown branch: "+branch, err)
	}
	if tip == sinceCommit {
		return nil, nil
	}

	out, err := t.runRaw("diff", "--name-status", "-z", sinceCommit, tip)
	if err != nil {
		return nil, err
	}
	return parseDiffNUL(out), nil
}

// HashTree walks projectRoot and returns a blake2b-256 content hash per
// Swift source file, skipping the directories in skipDirs. The git-based
// change-detection methods above do not call it.
func (t *Tracker) HashTree() (map[string]string, error) {
	hashes := make(map[string]string)

	err := filepath.Walk(t.projectRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil //nolint:nilerr
		}
		if info.IsDir() {
			if skipDirs[filepath.Base(path)] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(t.projectRoot, path)
		if relErr != nil || !isSourceFile(rel) {
			return nil
		}

		hash, hashErr := hashFile(path)
		if hashErr != nil {
			return nil //nolint:nilerr
		}
		hashes[rel] = hash
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hashes, nil
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return fmtHex(sum[:]), nil
}

func fmtHex(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0f]
	}
	return string(out)
}

func isSourceFile(path string) bool {
	return strings.HasSuffix(path, sourceExtension)
}

func (t *Tracker) run(args ...string) (string, error) {
	out, err := t.runRaw(args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (t *Tracker) runRaw(args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = t.projectRoot

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.New(errors.InternalError, "git command timed out", err)
		}
		return nil, errors.New(errors.InternalError, "git command failed: "+strings.Join(args, " "), err)
	}
	return out, nil
}

// parseDiffNUL parses `git diff --name-status -z` output. Renames carry
// both the old and new path; both must be read before deciding whether the
// rename crosses in or out of the tracked Swift-source set.
func parseDiffNUL(output []byte) []ChangedFile {
	var changes []ChangedFile
	parts := bytes.Split(output, []byte{0})

	for i := 0; i < len(parts); {
		if len(parts[i]) == 0 {
			i++
			continue
		}
		status := string(parts[i])
		if i+1 >= len(parts) {
			break
		}

		isRenameOrCopy := strings.HasPrefix(status, "R") || strings.HasPrefix(status, "C")

		var oldPath, newPath string
		if isRenameOrCopy {
			oldPath = string(parts[i+1])
			i += 2
			if i >= len(parts) {
				continue
			}
			newPath = string(parts[i])
			i++
		} else {
			newPath = string(parts[i+1])
			oldPath = newPath
			i += 2
		}

		switch {
		case status == "A":
			if isSourceFile(newPath) {
				changes = append(changes, ChangedFile{Path: newPath, ChangeType: ChangeAdded})
			}
		case status == "M":
			if isSourceFile(newPath) {
				changes = append(changes, ChangedFile{Path: newPath, ChangeType: ChangeModified})
			}
		case status == "D":
			if isSourceFile(oldPath) {
				changes = append(changes, ChangedFile{Path: oldPath, ChangeType: ChangeDeleted})
			}
		case strings.HasPrefix(status, "R"):
			oldIsSource, newIsSource := isSourceFile(oldPath), isSourceFile(newPath)
			switch {
			case oldIsSource && newIsSource:
				changes = append(changes, ChangedFile{Path: newPath, OldPath: oldPath, ChangeType: ChangeRenamed})
			case oldIsSource:
				changes = append(changes, ChangedFile{Path: oldPath, ChangeType: ChangeDeleted})
			case newIsSource:
				changes = append(changes, ChangedFile{Path: newPath, ChangeType: ChangeAdded})
			}
		case strings.HasPrefix(status, "C"):
			if isSourceFile(newPath) {
				changes = append(changes, ChangedFile{Path: newPath, ChangeType: ChangeAdded})
			}
		default:
			if isSourceFile(newPath) {
				changes = append(changes, ChangedFile{Path: newPath, ChangeType: ChangeModified})
			}
		}
	}

	return changes
}

// dedupe keeps the last entry seen for each path, then sorts for determinism.
func dedupe(changes []ChangedFile) []ChangedFile {
	seen := make(map[string]int)
	var result []ChangedFile
	for _, c := range changes {
		if idx, ok := seen[c.Path]; ok {
			result[idx] = c
		} else {
			seen[c.Path] = len(result)
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result
}
