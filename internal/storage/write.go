package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/Fostonger/swiftscip/internal/errors"
	"github.com/Fostonger/swiftscip/internal/scipmodel"
)

// Write performs a full overwrite: every existing document, symbol,
// occurrence, and relationship is deleted and replaced from idx.
func (db *DB) Write(idx scipmodel.Index, projectRoot string) error {
	return db.WithTx(func(tx *sql.Tx) error {
		if err := deleteAll(tx); err != nil {
			return errors.New(errors.StatementExecution, "failed to clear existing data", err)
		}
		if err := writeMetadata(tx, idx.Metadata); err != nil {
			return errors.New(errors.StatementExecution, "failed to write metadata", err)
		}

		byFile := groupByFile(idx.Symbols, idx.Occurrences)
		paths := sortedKeys(byFile)

		for _, path := range paths {
			group := byFile[path]
			fileID, err := insertDocument(tx, path, "swift", time.Now().Unix())
			if err != nil {
				return errors.New(errors.StatementExecution, "failed to insert document "+path, err)
			}
			if err := insertSymbols(tx, fileID, group.symbols); err != nil {
				return errors.New(errors.StatementExecution, "failed to insert symbols for "+path, err)
			}
			if err := insertOccurrences(tx, fileID, group.occurrences); err != nil {
				return errors.New(errors.StatementExecution, "failed to insert occurrences for "+path, err)
			}
		}

		if err := insertRelationships(tx, idx.Relationships); err != nil {
			return errors.New(errors.StatementExecution, "failed to insert relationships", err)
		}
		return nil
	})
}

// UpdateDocuments surgically replaces the documents named by paths: for
// each, the existing Document (and its occurrences/symbols, via cascade and
// explicit deletes) is removed and re-inserted from the provided records.
// Documents not named in paths are untouched. Relationships are not
// modified — a deliberate consistency/speed trade-off.
func (db *DB) UpdateDocuments(paths []string, symbols []scipmodel.Symbol, occurrences []scipmodel.Occurrence) error {
	return db.WithTx(func(tx *sql.Tx) error {
		byFile := groupByFile(symbols, occurrences)

		for _, path := range paths {
			if err := deleteDocumentByPath(tx, path); err != nil {
				return errors.New(errors.StatementExecution, "failed to delete document "+path, err)
			}

			group := byFile[path]
			fileID, err := insertDocument(tx, path, "swift", time.Now().Unix())
			if err != nil {
				return errors.New(errors.StatementExecution, "failed to insert document "+path, err)
			}
			if err := insertSymbols(tx, fileID, group.symbols); err != nil {
				return errors.New(errors.StatementExecution, "failed to insert symbols for "+path, err)
			}
			if err := insertOccurrences(tx, fileID, group.occurrences); err != nil {
				return errors.New(errors.StatementExecution, "failed to insert occurrences for "+path, err)
			}
		}
		return nil
	})
}

// DeleteDocuments removes the named documents; occurrences and symbols
// belonging to them cascade away.
func (db *DB) DeleteDocuments(paths []string) error {
	return db.WithTx(func(tx *sql.Tx) error {
		for _, path := range paths {
			if err := deleteDocumentByPath(tx, path); err != nil {
				return errors.New(errors.StatementExecution, "failed to delete document "+path, err)
			}
		}
		return nil
	})
}

// SaveState atomically replaces the singleton Index State row.
func (db *DB) SaveState(state scipmodel.IndexState) error {
	filesJSON, err := json.Marshal(state.IndexedPaths)
	if err != nil {
		return fmt.Errorf("failed to marshal indexed paths: %w", err)
	}

	return db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM index_state`); err != nil {
			return err
		}
		_, err := tx.Exec(
			`INSERT INTO index_state (id, commit_hash, indexed_at, files_json) VALUES (1, ?, ?, ?)`,
			state.Commit, state.IndexedAt, string(filesJSON),
		)
		return err
	})
}

// LoadState returns the Index State row, or nil if none has been saved yet.
func (db *DB) LoadState() (*scipmodel.IndexState, error) {
	var commit string
	var indexedAt int64
	var filesJSON string

	err := db.QueryRow(`SELECT commit_hash, indexed_at, files_json FROM index_state WHERE id = 1`).
		Scan(&commit, &indexedAt, &filesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var paths []string
	if err := json.Unmarshal([]byte(filesJSON), &paths); err != nil {
		return nil, fmt.Errorf("failed to unmarshal indexed paths: %w", err)
	}

	return &scipmodel.IndexState{Commit: commit, IndexedAt: indexedAt, IndexedPaths: paths}, nil
}

// GetIndexedFilePaths enumerates Document paths in sorted order.
func (db *DB) GetIndexedFilePaths() ([]string, error) {
	rows, err := db.Query(`SELECT rel_path FROM documents ORDER BY rel_path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// fileGroup is the per-document slice of an Index used when writing documents.
type fileGroup struct {
	symbols     []scipmodel.Symbol
	occurrences []scipmodel.Occurrence
}

// groupByFile partitions symbols (by their defining document, inferred from
// the file containing one of their definition-role occurrences) and
// occurrences (by their own DocPath) into per-file groups.
func groupByFile(symbols []scipmodel.Symbol, occurrences []scipmodel.Occurrence) map[string]*fileGroup {
	groups := make(map[string]*fileGroup)

	group := func(path string) *fileGroup {
		g, ok := groups[path]
		if !ok {
			g = &fileGroup{}
			groups[path] = g
		}
		return g
	}

	definingDoc := make(map[string]string, len(symbols)) // symbol-id -> doc path
	for _, occ := range occurrences {
		g := group(occ.DocPath)
		g.occurrences = append(g.occurrences, occ)
		if occ.Roles.Has(scipmodel.RoleDefinition) {
			definingDoc[occ.SymbolID] = occ.DocPath
		}
	}

	for _, sym := range symbols {
		path, ok := definingDoc[sym.SymbolID]
		if !ok {
			continue // no definition occurrence observed; the symbol has no home document
		}
		g := group(path)
		g.symbols = append(g.symbols, sym)
	}

	return groups
}

func sortedKeys(m map[string]*fileGroup) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func deleteAll(tx *sql.Tx) error {
	// Respect FK ordering: occurrences/relationships/symbols before documents.
	for _, stmt := range []string{
		`DELETE FROM occurrences`,
		`DELETE FROM relationships`,
		`DELETE FROM symbols`,
		`DELETE FROM documents`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func deleteDocumentByPath(tx *sql.Tx, path string) error {
	var fileID int64
	err := tx.QueryRow(`SELECT id FROM documents WHERE rel_path = ?`, path).Scan(&fileID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM occurrences WHERE file_id = ?`, fileID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM symbols WHERE file_id = ?`, fileID); err != nil {
		return err
	}
	_, err = tx.Exec(`DELETE FROM documents WHERE id = ?`, fileID)
	return err
}

func insertDocument(tx *sql.Tx, relPath, language string, indexedAt int64) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO documents (rel_path, language, indexed_at) VALUES (?, ?, ?)`,
		relPath, language, indexedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertSymbols(tx *sql.Tx, fileID int64, symbols []scipmodel.Symbol) error {
	if len(symbols) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO symbols (symbol_id, kind, module, doc_json, file_id) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close() //nolint:errcheck

	for _, sym := range symbols {
		docJSON, err := json.Marshal(sym.Documentation)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(sym.SymbolID, string(sym.Kind), sym.Module, string(docJSON), fileID); err != nil {
			return err
		}
	}
	return nil
}

func insertOccurrences(tx *sql.Tx, fileID int64, occurrences []scipmodel.Occurrence) error {
	if len(occurrences) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT INTO occurrences (symbol_id, file_id, start_line, start_col, end_line, end_col, roles, enclosing, snippet)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close() //nolint:errcheck

	for _, occ := range occurrences {
		var enclosing, snippet sql.NullString
		if occ.EnclosingSymbol != "" {
			enclosing = sql.NullString{String: occ.EnclosingSymbol, Valid: true}
		}
		if occ.Snippet != "" {
			snippet = sql.NullString{String: occ.Snippet, Valid: true}
		}
		if _, err := stmt.Exec(
			occ.SymbolID, fileID,
			occ.Range.StartLine, occ.Range.StartCol, occ.Range.EndLine, occ.Range.EndCol,
			uint32(occ.Roles), enclosing, snippet,
		); err != nil {
			return err
		}
	}
	return nil
}

func insertRelationships(tx *sql.Tx, relationships []scipmodel.Relationship) error {
	if len(relationships) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO relationships (symbol_id, target_symbol_id, kind) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close() //nolint:errcheck

	for _, rel := range relationships {
		if _, err := stmt.Exec(rel.SymbolID, rel.TargetSymbolID, string(rel.Kind)); err != nil {
			return err
		}
	}
	return nil
}

func writeMetadata(tx *sql.Tx, meta scipmodel.Metadata) error {
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close() //nolint:errcheck

	toolArguments, err := json.Marshal(meta.ToolArguments)
	if err != nil {
		return err
	}

	entries := map[string]string{
		"version":                strconv.Itoa(meta.Version),
		"tool_name":              meta.ToolName,
		"tool_version":           meta.ToolVersion,
		"tool_arguments":         string(toolArguments),
		"project_root":           meta.ProjectRoot,
		"text_document_encoding": meta.TextDocumentEncoding,
	}
	for k, v := range entries {
		if _, err := stmt.Exec(k, v); err != nil {
			return err
		}
	}
	return nil
}
