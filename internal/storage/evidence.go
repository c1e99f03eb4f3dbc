package storage

import (
	"database/sql"
	"fmt"
	"regexp"
	"sort"
)

// utilityModulePattern matches module paths whose call edges are plumbing
// rather than business behavior.
var utilityModulePattern = regexp.MustCompile(`(?i)(^|\.)(utils?|helpers?|common|shared|lib|logging|errors?|types|constants|tools)($|\.)`)

// EvidenceStore provides the read contracts over static analysis facts
// consumed by the interaction engine.
type EvidenceStore struct {
	db *DB
}

// NewEvidenceStore creates a new evidence store
func NewEvidenceStore(db *DB) *EvidenceStore {
	return &EvidenceStore{db: db}
}

// GetAllModules returns every module ordered by full path
func (s *EvidenceStore) GetAllModules() ([]Module, error) {
	rows, err := s.db.Query(`
		SELECT id, parent_id, name, full_path, depth, COALESCE(description, ''), is_test
		FROM modules
		ORDER BY full_path
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query modules: %w", err)
	}
	defer rows.Close()

	var modules []Module
	for rows.Next() {
		var m Module
		var parentID sql.NullInt64
		var isTest int
		if err := rows.Scan(&m.ID, &parentID, &m.Name, &m.FullPath, &m.Depth, &m.Description, &isTest); err != nil {
			return nil, err
		}
		if parentID.Valid {
			m.ParentID = &parentID.Int64
		}
		m.IsTest = isTest != 0
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// GetModuleByPath resolves a dotted full path to a module, or nil if absent
func (s *EvidenceStore) GetModuleByPath(fullPath string) (*Module, error) {
	var m Module
	var parentID sql.NullInt64
	var isTest int
	err := s.db.QueryRow(`
		SELECT id, parent_id, name, full_path, depth, COALESCE(description, ''), is_test
		FROM modules WHERE full_path = ?
	`, fullPath).Scan(&m.ID, &parentID, &m.Name, &m.FullPath, &m.Depth, &m.Description, &isTest)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		m.ParentID = &parentID.Int64
	}
	m.IsTest = isTest != 0
	return &m, nil
}

// GetModuleWithMembers returns a module and its assigned definitions
func (s *EvidenceStore) GetModuleWithMembers(moduleID int64) (*ModuleWithMembers, error) {
	var m Module
	var parentID sql.NullInt64
	var isTest int
	err := s.db.QueryRow(`
		SELECT id, parent_id, name, full_path, depth, COALESCE(description, ''), is_test
		FROM modules WHERE id = ?
	`, moduleID).Scan(&m.ID, &parentID, &m.Name, &m.FullPath, &m.Depth, &m.Description, &isTest)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		m.ParentID = &parentID.Int64
	}
	m.IsTest = isTest != 0

	rows, err := s.db.Query(`
		SELECT id, module_id, name, kind, file_path, start_line, end_line, is_exported
		FROM definitions WHERE module_id = ?
		ORDER BY name
	`, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &ModuleWithMembers{Module: m}
	for rows.Next() {
		var d Definition
		var defModuleID sql.NullInt64
		var isExported int
		if err := rows.Scan(&d.ID, &defModuleID, &d.Name, &d.Kind, &d.FilePath, &d.StartLine, &d.EndLine, &isExported); err != nil {
			return nil, err
		}
		if defModuleID.Valid {
			d.ModuleID = &defModuleID.Int64
		}
		d.IsExported = isExported != 0
		result.Members = append(result.Members, d)
	}
	return result, rows.Err()
}

// GetTestModuleIDs returns the set of modules flagged as test modules
func (s *EvidenceStore) GetTestModuleIDs() (map[int64]bool, error) {
	rows, err := s.db.Query(`SELECT id FROM modules WHERE is_test = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// IsTypeOnlyModule reports whether every definition in the module is a
// type-shaped kind (interface, type, enum). Modules with no definitions
// are not type-only.
func (s *EvidenceStore) IsTypeOnlyModule(moduleID int64) (bool, error) {
	var total, typeOnly int
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       SUM(CASE WHEN kind IN ('interface', 'type', 'enum') THEN 1 ELSE 0 END)
		FROM definitions WHERE module_id = ?
	`, moduleID).Scan(&total, &typeOnly)
	if err != nil {
		return false, err
	}
	return total > 0 && typeOnly == total, nil
}

// GetModuleCallGraph returns the distinct cross-module call edges
func (s *EvidenceStore) GetModuleCallGraph() ([]CallGraphEdge, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT fd.module_id, td.module_id
		FROM relationships r
		JOIN definitions fd ON fd.id = r.from_definition_id
		JOIN definitions td ON td.id = r.to_definition_id
		WHERE r.kind = 'calls'
		  AND fd.module_id IS NOT NULL
		  AND td.module_id IS NOT NULL
		  AND fd.module_id != td.module_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []CallGraphEdge
	for rows.Next() {
		var e CallGraphEdge
		if err := rows.Scan(&e.FromModuleID, &e.ToModuleID); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// GetEnrichedModuleCallGraph aggregates cross-module call relationships
// into edges carrying weight, called-symbol detail, and a utility/business
// classification.
func (s *EvidenceStore) GetEnrichedModuleCallGraph() ([]EnrichedCallEdge, error) {
	rows, err := s.db.Query(`
		SELECT fd.module_id, td.module_id, fm.full_path, tm.full_path,
		       td.name, td.kind, SUM(r.count)
		FROM relationships r
		JOIN definitions fd ON fd.id = r.from_definition_id
		JOIN definitions td ON td.id = r.to_definition_id
		JOIN modules fm ON fm.id = fd.module_id
		JOIN modules tm ON tm.id = td.module_id
		WHERE r.kind = 'calls'
		  AND fd.module_id != td.module_id
		GROUP BY fd.module_id, td.module_id, td.name, td.kind
		ORDER BY fm.full_path, tm.full_path, td.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type edgeKey struct{ from, to int64 }
	edgeMap := make(map[edgeKey]*EnrichedCallEdge)
	var order []edgeKey

	for rows.Next() {
		var fromID, toID int64
		var fromPath, toPath string
		var sym CalledSymbol
		if err := rows.Scan(&fromID, &toID, &fromPath, &toPath, &sym.Name, &sym.Kind, &sym.Count); err != nil {
			return nil, err
		}
		key := edgeKey{fromID, toID}
		edge, ok := edgeMap[key]
		if !ok {
			edge = &EnrichedCallEdge{
				FromModuleID:   fromID,
				ToModuleID:     toID,
				FromModulePath: fromPath,
				ToModulePath:   toPath,
			}
			edgeMap[key] = edge
			order = append(order, key)
		}
		edge.CalledSymbols = append(edge.CalledSymbols, sym)
		edge.Weight += sym.Count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	edges := make([]EnrichedCallEdge, 0, len(order))
	for _, key := range order {
		edge := edgeMap[key]
		edge.EdgePattern = classifyEdgePattern(edge)
		// Heaviest symbols first so prompt truncation keeps the signal
		sort.SliceStable(edge.CalledSymbols, func(i, j int) bool {
			return edge.CalledSymbols[i].Count > edge.CalledSymbols[j].Count
		})
		edges = append(edges, *edge)
	}
	return edges, nil
}

// classifyEdgePattern labels an edge utility when the callee module reads
// as shared plumbing, business otherwise.
func classifyEdgePattern(edge *EnrichedCallEdge) string {
	if utilityModulePattern.MatchString(edge.ToModulePath) {
		return PatternUtility
	}
	return PatternBusiness
}

// HasModuleImportPath reports whether a file-level import edge exists
func (s *EvidenceStore) HasModuleImportPath(fromID, toID int64) (bool, error) {
	var one int
	err := s.db.QueryRow(`
		SELECT 1 FROM module_imports
		WHERE from_module_id = ? AND to_module_id = ?
	`, fromID, toID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetModuleImports returns all file-level import edges
func (s *EvidenceStore) GetModuleImports() ([]ModuleImport, error) {
	rows, err := s.db.Query(`
		SELECT from_module_id, to_module_id, import_count, is_type_only
		FROM module_imports
		ORDER BY from_module_id, to_module_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var imports []ModuleImport
	for rows.Next() {
		var imp ModuleImport
		var isTypeOnly int
		if err := rows.Scan(&imp.FromModuleID, &imp.ToModuleID, &imp.ImportCount, &isTypeOnly); err != nil {
			return nil, err
		}
		imp.IsTypeOnly = isTypeOnly != 0
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

// GetModuleImportedSymbols returns the symbol-level imports for one edge
func (s *EvidenceStore) GetModuleImportedSymbols(fromID, toID int64) ([]ImportedSymbol, error) {
	rows, err := s.db.Query(`
		SELECT from_module_id, to_module_id, symbol_name, is_type
		FROM imported_symbols
		WHERE from_module_id = ? AND to_module_id = ?
		ORDER BY symbol_name
	`, fromID, toID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []ImportedSymbol
	for rows.Next() {
		var s ImportedSymbol
		var isType int
		if err := rows.Scan(&s.FromModuleID, &s.ToModuleID, &s.SymbolName, &isType); err != nil {
			return nil, err
		}
		s.IsType = isType != 0
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// ImportOnlyPair is a module pair with symbol-level imports but no call edge
type ImportOnlyPair struct {
	FromModuleID int64
	ToModuleID   int64
	Symbols      []ImportedSymbol
	TypeOnly     bool
}

// GetImportOnlyPairs returns module pairs that import each other's symbols
// but have no traced call edge between them.
func (s *EvidenceStore) GetImportOnlyPairs() ([]ImportOnlyPair, error) {
	rows, err := s.db.Query(`
		SELECT i.from_module_id, i.to_module_id, i.symbol_name, i.is_type
		FROM imported_symbols i
		WHERE NOT EXISTS (
			SELECT 1 FROM relationships r
			JOIN definitions fd ON fd.id = r.from_definition_id
			JOIN definitions td ON td.id = r.to_definition_id
			WHERE r.kind = 'calls'
			  AND fd.module_id = i.from_module_id
			  AND td.module_id = i.to_module_id
		)
		ORDER BY i.from_module_id, i.to_module_id, i.symbol_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type pairKey struct{ from, to int64 }
	pairMap := make(map[pairKey]*ImportOnlyPair)
	var order []pairKey

	for rows.Next() {
		var sym ImportedSymbol
		var isType int
		if err := rows.Scan(&sym.FromModuleID, &sym.ToModuleID, &sym.SymbolName, &isType); err != nil {
			return nil, err
		}
		sym.IsType = isType != 0
		key := pairKey{sym.FromModuleID, sym.ToModuleID}
		pair, ok := pairMap[key]
		if !ok {
			pair = &ImportOnlyPair{
				FromModuleID: sym.FromModuleID,
				ToModuleID:   sym.ToModuleID,
				TypeOnly:     true,
			}
			pairMap[key] = pair
			order = append(order, key)
		}
		pair.Symbols = append(pair.Symbols, sym)
		if !sym.IsType {
			pair.TypeOnly = false
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pairs := make([]ImportOnlyPair, 0, len(order))
	for _, key := range order {
		pairs = append(pairs, *pairMap[key])
	}
	return pairs, nil
}

// GetUnresolvedImportEdges returns file-level import edges where
// symbol-level resolution produced nothing and no call edge exists.
func (s *EvidenceStore) GetUnresolvedImportEdges() ([]ModuleImport, error) {
	rows, err := s.db.Query(`
		SELECT m.from_module_id, m.to_module_id, m.import_count, m.is_type_only
		FROM module_imports m
		WHERE NOT EXISTS (
			SELECT 1 FROM imported_symbols i
			WHERE i.from_module_id = m.from_module_id
			  AND i.to_module_id = m.to_module_id
		)
		AND NOT EXISTS (
			SELECT 1 FROM relationships r
			JOIN definitions fd ON fd.id = r.from_definition_id
			JOIN definitions td ON td.id = r.to_definition_id
			WHERE r.kind = 'calls'
			  AND fd.module_id = m.from_module_id
			  AND td.module_id = m.to_module_id
		)
		ORDER BY m.from_module_id, m.to_module_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var imports []ModuleImport
	for rows.Next() {
		var imp ModuleImport
		var isTypeOnly int
		if err := rows.Scan(&imp.FromModuleID, &imp.ToModuleID, &imp.ImportCount, &isTypeOnly); err != nil {
			return nil, err
		}
		imp.IsTypeOnly = isTypeOnly != 0
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

// GetRelationshipSymbolSamples returns up to limit sampled (from, to)
// symbol-name pairs for a cross-module relationship pair.
func (s *EvidenceStore) GetRelationshipSymbolSamples(fromID, toID int64, limit int) ([]SymbolPair, error) {
	rows, err := s.db.Query(`
		SELECT fd.name, td.name
		FROM relationships r
		JOIN definitions fd ON fd.id = r.from_definition_id
		JOIN definitions td ON td.id = r.to_definition_id
		WHERE fd.module_id = ? AND td.module_id = ?
		ORDER BY r.count DESC, fd.name, td.name
		LIMIT ?
	`, fromID, toID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []SymbolPair
	for rows.Next() {
		var p SymbolPair
		if err := rows.Scan(&p.FromName, &p.ToName); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}
