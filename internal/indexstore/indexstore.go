// Package indexstore defines the boundary between the Index-Store Reader
// and the compiler's on-disk index store. Loading the real store requires
// linking against libIndexStore, a dynamic library search/load concern left
// out of this package — it only defines the Store interface the Reader
// consumes and the derived-data path discovery rule. A real loader is
// expected to be supplied by the CLI driver.
package indexstore

import (
	"os"
	"path/filepath"

	"github.com/Fostonger/swiftscip/internal/errors"
)

// Relation describes one compiler-reported relation attached to a canonical
// occurrence: "base of" (inherits), "override of" (overrides), or "child of"
// (enclosing-symbol resolution).
type Relation struct {
	USR          string
	Name         string
	IsBaseOf     bool
	IsOverrideOf bool
	IsChildOf    bool
}

// CanonicalOccurrence is the distinguished occurrence the store returns once
// per live USR, standing in for the symbol itself.
type CanonicalOccurrence struct {
	USR       string
	Name      string
	Kind      string // compiler-reported kind, mapped by the Reader's kind table (reader.mapKind)
	Relations []Relation
}

// RawOccurrence is one textual appearance of a USR at any role, as reported
// by the store in its native (1-indexed line, UTF-8 column, absolute path)
// coordinate system.
type RawOccurrence struct {
	USR          string
	AbsolutePath string
	Line         int // 1-indexed
	UTF8Column   int
	Roles        uint32
	Relations    []Relation // carries this occurrence's own child-of/base-of/override-of edges
}

// Store is the interface the Index-Store Reader drives. Implementations
// wrap the native index-store library's callback-based iteration and
// expose it as two plain methods instead.
type Store interface {
	// CanonicalOccurrences visits every canonical occurrence. Iteration
	// stops early if visit returns false. An error here is fatal to the run.
	CanonicalOccurrences(visit func(CanonicalOccurrence) bool) error

	// OccurrencesForUSR visits every occurrence of usr at any role. Errors
	// enumerating a single USR are reported through the returned error but
	// are never fatal — callers skip the USR and continue.
	OccurrencesForUSR(usr string, visit func(RawOccurrence) bool) error
}

const (
	newLayout = "Index.noindex/DataStore"
	oldLayout = "Index/DataStore"
)

// DiscoverPath locates the index store under a derived-data root, preferring
// the newer Index.noindex layout and falling back to the legacy Index
// layout.
func DiscoverPath(derivedDataRoot string) (string, error) {
	for _, layout := range []string{newLayout, oldLayout} {
		candidate := filepath.Join(derivedDataRoot, layout)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
	}
	return "", errors.New(
		errors.IndexStoreNotFound,
		"no index store found under "+derivedDataRoot,
		nil,
	).WithDetails(map[string]string{
		"searched": filepath.Join(derivedDataRoot, newLayout) + ", " + filepath.Join(derivedDataRoot, oldLayout),
	})
}
