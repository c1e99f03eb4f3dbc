package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// UpsertResult reports what an interaction write actually did
type UpsertResult int

const (
	// Inserted means a new interaction row was written
	Inserted UpsertResult = iota
	// AlreadyExists means the ordered (from, to) pair was already present
	// and the write was a no-op
	AlreadyExists
)

// InteractionStore provides read/write access to the interactions table
type InteractionStore struct {
	db *DB
}

// NewInteractionStore creates a new interaction store
func NewInteractionStore(db *DB) *InteractionStore {
	return &InteractionStore{db: db}
}

// InteractionFields carries the writable attributes of an interaction
type InteractionFields struct {
	Pattern    string
	Weight     int
	Symbols    []string
	Semantic   string
	Direction  string
	Source     string
	Confidence string
}

// Upsert writes an interaction for the ordered (from, to) pair. A second
// write to an existing pair returns AlreadyExists without modifying the row.
func (s *InteractionStore) Upsert(fromID, toID int64, fields InteractionFields) (UpsertResult, error) {
	if fromID == toID {
		return AlreadyExists, fmt.Errorf("self-loop interaction %d -> %d", fromID, toID)
	}

	direction := fields.Direction
	if direction == "" {
		direction = DirectionUni
	}

	var symbolsJSON sql.NullString
	if len(fields.Symbols) > 0 {
		data, err := json.Marshal(fields.Symbols)
		if err != nil {
			return AlreadyExists, fmt.Errorf("failed to encode symbols: %w", err)
		}
		symbolsJSON = sql.NullString{String: string(data), Valid: true}
	}

	res, err := s.db.Exec(`
		INSERT INTO interactions (
			from_module_id, to_module_id, pattern, weight, symbols,
			semantic, direction, source, confidence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (from_module_id, to_module_id) DO NOTHING
	`,
		fromID,
		toID,
		nullIfEmpty(fields.Pattern),
		fields.Weight,
		symbolsJSON,
		nullIfEmpty(fields.Semantic),
		direction,
		fields.Source,
		nullIfEmpty(fields.Confidence),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return AlreadyExists, fmt.Errorf("failed to upsert interaction: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return AlreadyExists, err
	}
	if affected == 0 {
		return AlreadyExists, nil
	}
	return Inserted, nil
}

// GetAll returns every interaction ordered by (from, to)
func (s *InteractionStore) GetAll() ([]Interaction, error) {
	rows, err := s.db.Query(`
		SELECT id, from_module_id, to_module_id, COALESCE(pattern, ''), weight,
		       symbols, COALESCE(semantic, ''), direction, source,
		       COALESCE(confidence, ''), created_at
		FROM interactions
		ORDER BY from_module_id, to_module_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var interactions []Interaction
	for rows.Next() {
		ia, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		interactions = append(interactions, *ia)
	}
	return interactions, rows.Err()
}

// GetByModules returns the interaction for an ordered pair, or nil
func (s *InteractionStore) GetByModules(fromID, toID int64) (*Interaction, error) {
	rows, err := s.db.Query(`
		SELECT id, from_module_id, to_module_id, COALESCE(pattern, ''), weight,
		       symbols, COALESCE(semantic, ''), direction, source,
		       COALESCE(confidence, ''), created_at
		FROM interactions
		WHERE from_module_id = ? AND to_module_id = ?
	`, fromID, toID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanInteraction(rows)
}

// HasReverseASTInteraction reports whether an AST-confirmed interaction
// exists in the opposite direction of (fromID, toID).
func (s *InteractionStore) HasReverseASTInteraction(fromID, toID int64) (bool, error) {
	var one int
	err := s.db.QueryRow(`
		SELECT 1 FROM interactions
		WHERE from_module_id = ? AND to_module_id = ?
		  AND source IN (?, ?)
	`, toID, fromID, SourceAST, SourceASTImport).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RemoveInferredToModule deletes all llm-inferred interactions pointing at
// a module and returns the number removed.
func (s *InteractionStore) RemoveInferredToModule(moduleID int64) (int, error) {
	res, err := s.db.Exec(`
		DELETE FROM interactions
		WHERE to_module_id = ? AND source = ?
	`, moduleID, SourceLLMInferred)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// GetRelationshipCoverage computes the coverage statistic by joining
// definition-level relationships against the current interaction set.
// A cross-module relationship is covered when a forward interaction
// exists for its module pair.
func (s *InteractionStore) GetRelationshipCoverage() (*RelationshipCoverage, error) {
	cov := &RelationshipCoverage{}

	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN fd.module_id IS NOT NULL AND td.module_id IS NOT NULL
		                 AND fd.module_id != td.module_id THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN fd.module_id IS NOT NULL AND fd.module_id = td.module_id THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN fd.module_id IS NULL OR td.module_id IS NULL THEN 1 ELSE 0 END), 0)
		FROM relationships r
		JOIN definitions fd ON fd.id = r.from_definition_id
		JOIN definitions td ON td.id = r.to_definition_id
	`).Scan(&cov.TotalRelationships, &cov.CrossModule, &cov.SameModule, &cov.OrphanedCount)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRow(`
		SELECT COUNT(*)
		FROM relationships r
		JOIN definitions fd ON fd.id = r.from_definition_id
		JOIN definitions td ON td.id = r.to_definition_id
		WHERE fd.module_id IS NOT NULL AND td.module_id IS NOT NULL
		  AND fd.module_id != td.module_id
		  AND EXISTS (
			SELECT 1 FROM interactions ia
			WHERE ia.from_module_id = fd.module_id
			  AND ia.to_module_id = td.module_id
		  )
	`).Scan(&cov.Contributing)
	if err != nil {
		return nil, err
	}

	if cov.CrossModule > 0 {
		cov.CoveragePercent = float64(cov.Contributing) / float64(cov.CrossModule) * 100.0
	} else {
		cov.CoveragePercent = 100.0
	}

	pairs, err := s.GetUncoveredModulePairs()
	if err != nil {
		return nil, err
	}
	cov.UncoveredPairCount = len(pairs)

	return cov, nil
}

// GetUncoveredModulePairs returns the distinct cross-module relationship
// pairs that have no forward interaction.
func (s *InteractionStore) GetUncoveredModulePairs() ([]UncoveredPair, error) {
	rows, err := s.db.Query(`
		SELECT fd.module_id, td.module_id, fm.full_path, tm.full_path, COUNT(*)
		FROM relationships r
		JOIN definitions fd ON fd.id = r.from_definition_id
		JOIN definitions td ON td.id = r.to_definition_id
		JOIN modules fm ON fm.id = fd.module_id
		JOIN modules tm ON tm.id = td.module_id
		WHERE fd.module_id != td.module_id
		  AND NOT EXISTS (
			SELECT 1 FROM interactions ia
			WHERE ia.from_module_id = fd.module_id
			  AND ia.to_module_id = td.module_id
		  )
		GROUP BY fd.module_id, td.module_id
		ORDER BY COUNT(*) DESC, fm.full_path, tm.full_path
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []UncoveredPair
	for rows.Next() {
		var p UncoveredPair
		if err := rows.Scan(&p.FromModuleID, &p.ToModuleID, &p.FromModulePath, &p.ToModulePath, &p.RelationshipCount); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// GetFanInStats returns, per module with at least one inbound llm-inferred
// interaction, the inbound llm-inferred and AST-confirmed edge counts.
func (s *InteractionStore) GetFanInStats() ([]FanInStat, error) {
	rows, err := s.db.Query(`
		SELECT m.id, m.full_path,
		       SUM(CASE WHEN ia.source = ? THEN 1 ELSE 0 END),
		       SUM(CASE WHEN ia.source IN (?, ?) THEN 1 ELSE 0 END)
		FROM interactions ia
		JOIN modules m ON m.id = ia.to_module_id
		GROUP BY m.id
		HAVING SUM(CASE WHEN ia.source = ? THEN 1 ELSE 0 END) > 0
		ORDER BY m.full_path
	`, SourceLLMInferred, SourceAST, SourceASTImport, SourceLLMInferred)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []FanInStat
	for rows.Next() {
		var st FanInStat
		if err := rows.Scan(&st.ModuleID, &st.ModulePath, &st.InferredCount, &st.ASTCount); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// scanInteraction reads one interaction row from either query above
func scanInteraction(rows *sql.Rows) (*Interaction, error) {
	var ia Interaction
	var symbolsJSON sql.NullString
	var createdAt string
	if err := rows.Scan(&ia.ID, &ia.FromModuleID, &ia.ToModuleID, &ia.Pattern, &ia.Weight,
		&symbolsJSON, &ia.Semantic, &ia.Direction, &ia.Source, &ia.Confidence, &createdAt); err != nil {
		return nil, err
	}
	if symbolsJSON.Valid && symbolsJSON.String != "" {
		if err := json.Unmarshal([]byte(symbolsJSON.String), &ia.Symbols); err != nil {
			return nil, fmt.Errorf("failed to decode symbols: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		ia.CreatedAt = t
	}
	return &ia, nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
