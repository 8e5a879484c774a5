package storage

import (
	"path/filepath"
	"testing"

	"github.com/Fostonger/swiftscip/internal/errors"
	"github.com/Fostonger/swiftscip/internal/logging"
	"github.com/Fostonger/swiftscip/internal/scipmodel"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Format: logging.HumanFormat, Level: logging.ErrorLevel})
}

func openTemp(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	db, err := Open(path, false, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	return db
}

func sampleIndex() scipmodel.Index {
	classDef := scipmodel.Occurrence{
		SymbolID: "swift MyModule MyClass#",
		DocPath:  "Sources/File.swift",
		Range:    scipmodel.SourceRange{StartLine: 1, StartCol: 6, EndLine: 1, EndCol: 13},
		Roles:    scipmodel.RoleDefinition,
	}
	methodDef := scipmodel.Occurrence{
		SymbolID:        "swift MyModule MyClass#doSomething().",
		DocPath:         "Sources/File.swift",
		Range:           scipmodel.SourceRange{StartLine: 2, StartCol: 8, EndLine: 2, EndCol: 19},
		Roles:           scipmodel.RoleDefinition,
		EnclosingSymbol: "swift MyModule MyClass#",
	}
	return scipmodel.Index{
		Metadata: scipmodel.Metadata{Version: 1, ToolName: "swiftscip", ProjectRoot: "/proj"},
		Symbols: []scipmodel.Symbol{
			{SymbolID: "swift MyModule MyClass#", Kind: scipmodel.KindClass, Module: "MyModule"},
			{SymbolID: "swift MyModule MyClass#doSomething().", Kind: scipmodel.KindFunction, Module: "MyModule"},
		},
		Occurrences: []scipmodel.Occurrence{classDef, methodDef},
	}
}

func TestOpen_ReadOnlyMissingIsCacheNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	_, err := Open(path, true, testLogger())
	if err == nil {
		t.Fatal("expected an error opening a missing database read-only")
	}
	if e, ok := err.(*errors.IndexError); !ok || e.Code != errors.CacheNotFound {
		t.Errorf("Open() error = %v, want a %s error", err, errors.CacheNotFound)
	}
}

func TestWrite_AndGetIndexedFilePaths(t *testing.T) {
	db := openTemp(t)

	if err := db.Write(sampleIndex(), "/proj"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	paths, err := db.GetIndexedFilePaths()
	if err != nil {
		t.Fatalf("GetIndexedFilePaths() error = %v", err)
	}
	if len(paths) != 1 || paths[0] != "Sources/File.swift" {
		t.Fatalf("GetIndexedFilePaths() = %v, want [Sources/File.swift]", paths)
	}
}

func TestWrite_OverwritesPreviousData(t *testing.T) {
	db := openTemp(t)

	if err := db.Write(sampleIndex(), "/proj"); err != nil {
		t.Fatalf("first Write() error = %v", err)
	}

	empty := scipmodel.Index{Metadata: scipmodel.Metadata{Version: 1}}
	if err := db.Write(empty, "/proj"); err != nil {
		t.Fatalf("second Write() error = %v", err)
	}

	paths, err := db.GetIndexedFilePaths()
	if err != nil {
		t.Fatalf("GetIndexedFilePaths() error = %v", err)
	}
	if len(paths) != 0 {
		t.Fatalf("GetIndexedFilePaths() = %v, want empty after overwrite", paths)
	}
}

func TestUpdateDocuments_LeavesOtherDocumentsUntouched(t *testing.T) {
	db := openTemp(t)
	if err := db.Write(sampleIndex(), "/proj"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	other := scipmodel.Occurrence{
		SymbolID: "swift MyModule Other#",
		DocPath:  "Sources/Other.swift",
		Range:    scipmodel.SourceRange{StartLine: 0, StartCol: 0, EndLine: 0, EndCol: 5},
		Roles:    scipmodel.RoleDefinition,
	}
	err := db.UpdateDocuments(
		[]string{"Sources/Other.swift"},
		[]scipmodel.Symbol{{SymbolID: "swift MyModule Other#", Kind: scipmodel.KindClass, Module: "MyModule"}},
		[]scipmodel.Occurrence{other},
	)
	if err != nil {
		t.Fatalf("UpdateDocuments() error = %v", err)
	}

	paths, err := db.GetIndexedFilePaths()
	if err != nil {
		t.Fatalf("GetIndexedFilePaths() error = %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("GetIndexedFilePaths() = %v, want 2 documents (original untouched + new)", paths)
	}
}

func TestDeleteDocuments_CascadesOccurrencesAndSymbols(t *testing.T) {
	db := openTemp(t)
	if err := db.Write(sampleIndex(), "/proj"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if err := db.DeleteDocuments([]string{"Sources/File.swift"}); err != nil {
		t.Fatalf("DeleteDocuments() error = %v", err)
	}

	paths, err := db.GetIndexedFilePaths()
	if err != nil {
		t.Fatalf("GetIndexedFilePaths() error = %v", err)
	}
	if len(paths) != 0 {
		t.Fatalf("GetIndexedFilePaths() = %v, want empty after delete", paths)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM occurrences`).Scan(&count); err != nil {
		t.Fatalf("count occurrences: %v", err)
	}
	if count != 0 {
		t.Errorf("occurrences count = %d, want 0 (cascade delete)", count)
	}

	if err := db.QueryRow(`SELECT COUNT(*) FROM symbols`).Scan(&count); err != nil {
		t.Fatalf("count symbols: %v", err)
	}
	if count != 0 {
		t.Errorf("symbols count = %d, want 0 (cascade delete)", count)
	}
}

func TestSaveState_RoundTrip(t *testing.T) {
	db := openTemp(t)

	state := scipmodel.IndexState{Commit: "abc123", IndexedAt: 1234, IndexedPaths: []string{"a.swift", "b.swift"}}
	if err := db.SaveState(state); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}

	loaded, err := db.LoadState()
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadState() = nil, want a state")
	}
	if loaded.Commit != state.Commit || loaded.IndexedAt != state.IndexedAt {
		t.Errorf("LoadState() = %+v, want %+v", loaded, state)
	}
	if len(loaded.IndexedPaths) != 2 {
		t.Errorf("len(IndexedPaths) = %d, want 2", len(loaded.IndexedPaths))
	}
}

func TestSaveState_ReplacesPreviousSingletonRow(t *testing.T) {
	db := openTemp(t)

	if err := db.SaveState(scipmodel.IndexState{Commit: "first"}); err != nil {
		t.Fatalf("first SaveState() error = %v", err)
	}
	if err := db.SaveState(scipmodel.IndexState{Commit: "second"}); err != nil {
		t.Fatalf("second SaveState() error = %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM index_state`).Scan(&count); err != nil {
		t.Fatalf("count index_state: %v", err)
	}
	if count != 1 {
		t.Fatalf("index_state row count = %d, want 1 (singleton)", count)
	}

	loaded, err := db.LoadState()
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if loaded.Commit != "second" {
		t.Errorf("LoadState().Commit = %q, want %q", loaded.Commit, "second")
	}
}

func TestLoadState_NoneSavedReturnsNil(t *testing.T) {
	db := openTemp(t)

	loaded, err := db.LoadState()
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if loaded != nil {
		t.Errorf("LoadState() = %+v, want nil when no state has been saved", loaded)
	}
}
