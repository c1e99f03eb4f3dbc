package storage

import (
	"database/sql"
)

// Schema version tracking
const currentSchemaVersion = 1

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}

		if err := createModulesTable(tx); err != nil {
			return err
		}
		if err := createDefinitionsTable(tx); err != nil {
			return err
		}
		if err := createRelationshipsTable(tx); err != nil {
			return err
		}
		if err := createModuleImportsTable(tx); err != nil {
			return err
		}
		if err := createImportedSymbolsTable(tx); err != nil {
			return err
		}
		if err := createInteractionsTable(tx); err != nil {
			return err
		}

		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("Database schema initialized", map[string]interface{}{
			"version": currentSchemaVersion,
		})

		return nil
	})
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", map[string]interface{}{
			"version": version,
		})
		return nil
	}

	db.logger.Info("Running database migrations", map[string]interface{}{
		"from_version": version,
		"to_version":   currentSchemaVersion,
	})

	// Run migrations sequentially as the schema evolves
	return nil
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion sets the schema version
func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createModulesTable creates the module tree table.
// full_path is the dot-join of ancestor slugs; the single root has depth 0.
func createModulesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS modules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			parent_id INTEGER REFERENCES modules(id),
			name TEXT NOT NULL,
			full_path TEXT NOT NULL UNIQUE,
			depth INTEGER NOT NULL DEFAULT 0,
			description TEXT,
			is_test INTEGER NOT NULL DEFAULT 0
		)
	`)
	return err
}

// createDefinitionsTable creates the parsed-symbol table.
// module_id is NULL until the definition is assigned to a module.
func createDefinitionsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS definitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			module_id INTEGER REFERENCES modules(id),
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			file_path TEXT NOT NULL,
			start_line INTEGER NOT NULL DEFAULT 0,
			end_line INTEGER NOT NULL DEFAULT 0,
			is_exported INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_definitions_module ON definitions(module_id)`)
	return err
}

// createRelationshipsTable creates the definition-level dependency table
// produced by the parser (calls, uses, extends, ...).
func createRelationshipsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS relationships (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			from_definition_id INTEGER NOT NULL REFERENCES definitions(id),
			to_definition_id INTEGER NOT NULL REFERENCES definitions(id),
			kind TEXT NOT NULL DEFAULT 'calls',
			count INTEGER NOT NULL DEFAULT 1
		)
	`)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_definition_id)`)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_definition_id)`)
	return err
}

// createModuleImportsTable creates the file-level import aggregate table.
func createModuleImportsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS module_imports (
			from_module_id INTEGER NOT NULL REFERENCES modules(id),
			to_module_id INTEGER NOT NULL REFERENCES modules(id),
			import_count INTEGER NOT NULL DEFAULT 1,
			is_type_only INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (from_module_id, to_module_id)
		)
	`)
	return err
}

// createImportedSymbolsTable creates the symbol-level import table.
// A module_imports row without matching rows here means symbol-level
// resolution failed for that edge.
func createImportedSymbolsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS imported_symbols (
			from_module_id INTEGER NOT NULL REFERENCES modules(id),
			to_module_id INTEGER NOT NULL REFERENCES modules(id),
			symbol_name TEXT NOT NULL,
			is_type INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (from_module_id, to_module_id, symbol_name)
		)
	`)
	return err
}

// createInteractionsTable creates the persisted module-interaction table.
// The unique index enforces at most one row per ordered (from,to) pair;
// the CHECK enforces no self-loops.
func createInteractionsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS interactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			from_module_id INTEGER NOT NULL REFERENCES modules(id),
			to_module_id INTEGER NOT NULL REFERENCES modules(id),
			pattern TEXT,
			weight INTEGER NOT NULL DEFAULT 0,
			symbols TEXT,
			semantic TEXT,
			direction TEXT NOT NULL DEFAULT 'uni',
			source TEXT NOT NULL,
			confidence TEXT,
			created_at TEXT NOT NULL,

			CHECK (from_module_id != to_module_id),
			UNIQUE (from_module_id, to_module_id)
		)
	`)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_interactions_to ON interactions(to_module_id)`)
	return err
}
