package storage

import (
	"fmt"
)

// SeedStore provides the insert contracts the upstream indexer uses to
// populate modules, definitions, relationships, and imports. Tests use it
// to build fixtures.
type SeedStore struct {
	db *DB
}

// NewSeedStore creates a new seed store
func NewSeedStore(db *DB) *SeedStore {
	return &SeedStore{db: db}
}

// InsertModule inserts a module and returns its id
func (s *SeedStore) InsertModule(m Module) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO modules (parent_id, name, full_path, depth, description, is_test)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ParentID, m.Name, m.FullPath, m.Depth, nullIfEmpty(m.Description), boolToInt(m.IsTest))
	if err != nil {
		return 0, fmt.Errorf("failed to insert module %q: %w", m.FullPath, err)
	}
	return res.LastInsertId()
}

// InsertDefinition inserts a definition and returns its id
func (s *SeedStore) InsertDefinition(d Definition) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO definitions (module_id, name, kind, file_path, start_line, end_line, is_exported)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.ModuleID, d.Name, d.Kind, d.FilePath, d.StartLine, d.EndLine, boolToInt(d.IsExported))
	if err != nil {
		return 0, fmt.Errorf("failed to insert definition %q: %w", d.Name, err)
	}
	return res.LastInsertId()
}

// InsertRelationship inserts a definition-level relationship
func (s *SeedStore) InsertRelationship(r Relationship) error {
	count := r.Count
	if count <= 0 {
		count = 1
	}
	kind := r.Kind
	if kind == "" {
		kind = "calls"
	}
	_, err := s.db.Exec(`
		INSERT INTO relationships (from_definition_id, to_definition_id, kind, count)
		VALUES (?, ?, ?, ?)
	`, r.FromDefinitionID, r.ToDefinitionID, kind, count)
	if err != nil {
		return fmt.Errorf("failed to insert relationship: %w", err)
	}
	return nil
}

// InsertModuleImport inserts a file-level import aggregate
func (s *SeedStore) InsertModuleImport(imp ModuleImport) error {
	count := imp.ImportCount
	if count <= 0 {
		count = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO module_imports (from_module_id, to_module_id, import_count, is_type_only)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (from_module_id, to_module_id) DO UPDATE SET
			import_count = excluded.import_count,
			is_type_only = excluded.is_type_only
	`, imp.FromModuleID, imp.ToModuleID, count, boolToInt(imp.IsTypeOnly))
	if err != nil {
		return fmt.Errorf("failed to insert module import: %w", err)
	}
	return nil
}

// InsertImportedSymbol inserts a symbol-level import fact
func (s *SeedStore) InsertImportedSymbol(sym ImportedSymbol) error {
	_, err := s.db.Exec(`
		INSERT INTO imported_symbols (from_module_id, to_module_id, symbol_name, is_type)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (from_module_id, to_module_id, symbol_name) DO NOTHING
	`, sym.FromModuleID, sym.ToModuleID, sym.SymbolName, boolToInt(sym.IsType))
	if err != nil {
		return fmt.Errorf("failed to insert imported symbol: %w", err)
	}
	return nil
}

// SetModuleDescription updates a module's description by full path
func (s *SeedStore) SetModuleDescription(fullPath, description string) error {
	_, err := s.db.Exec(`UPDATE modules SET description = ? WHERE full_path = ?`, description, fullPath)
	return err
}

// SetModuleTestFlag marks or unmarks a module as a test module by full path
func (s *SeedStore) SetModuleTestFlag(fullPath string, isTest bool) error {
	_, err := s.db.Exec(`UPDATE modules SET is_test = ? WHERE full_path = ?`, boolToInt(isTest), fullPath)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
