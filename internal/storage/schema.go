package storage

import (
	"database/sql"
)

// currentSchemaVersion is bumped whenever the table set changes. There are
// six logical tables: metadata, index_state, documents, symbols,
// occurrences, relationships.
const currentSchemaVersion = 1

// initializeSchema creates all tables for a new database.
func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}
		if err := createMetadataTable(tx); err != nil {
			return err
		}
		if err := createIndexStateTable(tx); err != nil {
			return err
		}
		if err := createDocumentsTable(tx); err != nil {
			return err
		}
		if err := createSymbolsTable(tx); err != nil {
			return err
		}
		if err := createOccurrencesTable(tx); err != nil {
			return err
		}
		if err := createRelationshipsTable(tx); err != nil {
			return err
		}
		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("index database schema initialized", map[string]interface{}{
			"version": currentSchemaVersion,
		})
		return nil
	})
}

// runMigrations upgrades an existing database to currentSchemaVersion.
// There is only one schema version today; this is the hook future versions
// attach to, following the same shape as initializeSchema.
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}
	if version == currentSchemaVersion {
		db.logger.Debug("index database schema is up to date", map[string]interface{}{"version": version})
		return nil
	}
	// No migrations defined yet beyond v1.
	return db.WithTx(func(tx *sql.Tx) error {
		return setSchemaVersion(tx, currentSchemaVersion)
	})
}

func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'`).Scan(&tableName)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return version, err
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	_, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	return err
}

func createMetadataTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	return err
}

// index_state is a singleton table: at most one row ever exists.
func createIndexStateTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS index_state (
			id          INTEGER PRIMARY KEY CHECK (id = 1),
			commit_hash TEXT NOT NULL,
			indexed_at  INTEGER NOT NULL,
			files_json  TEXT NOT NULL
		)
	`)
	return err
}

func createDocumentsTable(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			rel_path    TEXT NOT NULL UNIQUE,
			language    TEXT NOT NULL,
			indexed_at  INTEGER NOT NULL
		)
	`); err != nil {
		return err
	}
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_documents_rel_path ON documents(rel_path)`)
	return err
}

func createSymbolsTable(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS symbols (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol_id  TEXT NOT NULL,
			kind       TEXT NOT NULL,
			module     TEXT,
			doc_json   TEXT NOT NULL DEFAULT '[]',
			file_id    INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE
		)
	`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_symbols_symbol_id ON symbols(symbol_id)`); err != nil {
		return err
	}
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_symbols_file_id ON symbols(file_id)`)
	return err
}

func createOccurrencesTable(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS occurrences (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol_id   TEXT NOT NULL,
			file_id     INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			start_line  INTEGER NOT NULL,
			start_col   INTEGER NOT NULL,
			end_line    INTEGER NOT NULL,
			end_col     INTEGER NOT NULL,
			roles       INTEGER NOT NULL,
			enclosing   TEXT,
			snippet     TEXT
		)
	`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_occurrences_symbol_id ON occurrences(symbol_id)`); err != nil {
		return err
	}
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_occurrences_file_id ON occurrences(file_id)`)
	return err
}

func createRelationshipsTable(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS relationships (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol_id         TEXT NOT NULL,
			target_symbol_id  TEXT NOT NULL,
			kind              TEXT NOT NULL
		)
	`); err != nil {
		return err
	}
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_relationships_symbol_id ON relationships(symbol_id)`)
	return err
}
