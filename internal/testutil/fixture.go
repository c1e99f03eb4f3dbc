// Package testutil provides database fixture helpers for tests.
package testutil

import (
	"io"
	"testing"

	"weave/internal/logging"
	"weave/internal/storage"
)

// NewTestLogger returns a logger that discards everything below error
func NewTestLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{
		Level:  logging.ErrorLevel,
		Format: logging.JSONFormat,
		Output: io.Discard,
	})
}

// OpenTestDB opens an in-memory database with the full schema,
// failing the test on error.
func OpenTestDB(t *testing.T) *storage.DB {
	t.Helper()

	db, err := storage.OpenPath(":memory:", NewTestLogger())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// Fixture bundles the stores used to build test graphs
type Fixture struct {
	DB           *storage.DB
	Seed         *storage.SeedStore
	Evidence     *storage.EvidenceStore
	Interactions *storage.InteractionStore
}

// NewFixture opens an in-memory database and wraps it with stores
func NewFixture(t *testing.T) *Fixture {
	t.Helper()

	db := OpenTestDB(t)
	return &Fixture{
		DB:           db,
		Seed:         storage.NewSeedStore(db),
		Evidence:     storage.NewEvidenceStore(db),
		Interactions: storage.NewInteractionStore(db),
	}
}

// AddModule inserts a module with the given path, failing the test on error
func (f *Fixture) AddModule(t *testing.T, fullPath string, opts ...func(*storage.Module)) int64 {
	t.Helper()

	m := storage.Module{
		Name:     lastSegment(fullPath),
		FullPath: fullPath,
	}
	for _, opt := range opts {
		opt(&m)
	}

	id, err := f.Seed.InsertModule(m)
	if err != nil {
		t.Fatalf("Failed to insert module %q: %v", fullPath, err)
	}
	return id
}

// AsTest marks a fixture module as a test module
func AsTest() func(*storage.Module) {
	return func(m *storage.Module) { m.IsTest = true }
}

// WithDescription sets a fixture module description
func WithDescription(desc string) func(*storage.Module) {
	return func(m *storage.Module) { m.Description = desc }
}

// AddDefinition inserts a definition assigned to a module
func (f *Fixture) AddDefinition(t *testing.T, moduleID int64, name, kind string) int64 {
	t.Helper()

	id, err := f.Seed.InsertDefinition(storage.Definition{
		ModuleID:   &moduleID,
		Name:       name,
		Kind:       kind,
		FilePath:   "src/" + name + ".x",
		IsExported: true,
	})
	if err != nil {
		t.Fatalf("Failed to insert definition %q: %v", name, err)
	}
	return id
}

// AddCall inserts a 'calls' relationship between two definitions
func (f *Fixture) AddCall(t *testing.T, fromDef, toDef int64, count int) {
	t.Helper()

	if err := f.Seed.InsertRelationship(storage.Relationship{
		FromDefinitionID: fromDef,
		ToDefinitionID:   toDef,
		Kind:             "calls",
		Count:            count,
	}); err != nil {
		t.Fatalf("Failed to insert relationship: %v", err)
	}
}

// AddImport inserts a file-level import edge between two modules
func (f *Fixture) AddImport(t *testing.T, fromModule, toModule int64, count int, typeOnly bool) {
	t.Helper()

	if err := f.Seed.InsertModuleImport(storage.ModuleImport{
		FromModuleID: fromModule,
		ToModuleID:   toModule,
		ImportCount:  count,
		IsTypeOnly:   typeOnly,
	}); err != nil {
		t.Fatalf("Failed to insert module import: %v", err)
	}
}

// AddImportedSymbol inserts a symbol-level import fact
func (f *Fixture) AddImportedSymbol(t *testing.T, fromModule, toModule int64, name string, isType bool) {
	t.Helper()

	if err := f.Seed.InsertImportedSymbol(storage.ImportedSymbol{
		FromModuleID: fromModule,
		ToModuleID:   toModule,
		SymbolName:   name,
		IsType:       isType,
	}); err != nil {
		t.Fatalf("Failed to insert imported symbol: %v", err)
	}
}

func lastSegment(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
	}
	return path
}
