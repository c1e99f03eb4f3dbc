package storage

import (
	"io"
	"testing"

	"weave/internal/logging"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	logger := logging.NewLogger(logging.Config{
		Level:  logging.ErrorLevel,
		Format: logging.JSONFormat,
		Output: io.Discard,
	})
	db, err := OpenPath(":memory:", logger)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustModule(t *testing.T, seed *SeedStore, fullPath string) int64 {
	t.Helper()

	id, err := seed.InsertModule(Module{Name: fullPath, FullPath: fullPath})
	if err != nil {
		t.Fatalf("Failed to insert module %q: %v", fullPath, err)
	}
	return id
}

func mustDefinition(t *testing.T, seed *SeedStore, moduleID int64, name, kind string) int64 {
	t.Helper()

	id, err := seed.InsertDefinition(Definition{
		ModuleID: &moduleID,
		Name:     name,
		Kind:     kind,
		FilePath: "src/" + name + ".x",
	})
	if err != nil {
		t.Fatalf("Failed to insert definition %q: %v", name, err)
	}
	return id
}

func mustCall(t *testing.T, seed *SeedStore, from, to int64, count int) {
	t.Helper()

	if err := seed.InsertRelationship(Relationship{
		FromDefinitionID: from,
		ToDefinitionID:   to,
		Count:            count,
	}); err != nil {
		t.Fatalf("Failed to insert relationship: %v", err)
	}
}

func TestUpsertInteraction(t *testing.T) {
	db := openTestDB(t)
	seed := NewSeedStore(db)
	store := NewInteractionStore(db)

	a := mustModule(t, seed, "app.a")
	b := mustModule(t, seed, "app.b")

	t.Run("first write inserts", func(t *testing.T) {
		result, err := store.Upsert(a, b, InteractionFields{
			Pattern:  PatternBusiness,
			Weight:   3,
			Symbols:  []string{"save", "load"},
			Semantic: "Persists data",
			Source:   SourceAST,
		})
		if err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		if result != Inserted {
			t.Errorf("Expected Inserted, got %v", result)
		}
	})

	t.Run("second write is a no-op", func(t *testing.T) {
		result, err := store.Upsert(a, b, InteractionFields{
			Semantic: "A different semantic",
			Source:   SourceLLMInferred,
		})
		if err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		if result != AlreadyExists {
			t.Errorf("Expected AlreadyExists, got %v", result)
		}

		ia, err := store.GetByModules(a, b)
		if err != nil {
			t.Fatalf("GetByModules failed: %v", err)
		}
		if ia == nil {
			t.Fatal("Interaction not found")
		}
		if ia.Semantic != "Persists data" {
			t.Errorf("Original row was modified: semantic = %q", ia.Semantic)
		}
		if ia.Source != SourceAST {
			t.Errorf("Original row was modified: source = %q", ia.Source)
		}
	})

	t.Run("reverse direction is a distinct pair", func(t *testing.T) {
		result, err := store.Upsert(b, a, InteractionFields{Source: SourceAST})
		if err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		if result != Inserted {
			t.Errorf("Expected Inserted for reverse pair, got %v", result)
		}
	})

	t.Run("self-loop is rejected", func(t *testing.T) {
		if _, err := store.Upsert(a, a, InteractionFields{Source: SourceAST}); err == nil {
			t.Error("Expected error for self-loop interaction")
		}
	})
}

func TestUpsertInteraction_DefaultsAndSymbols(t *testing.T) {
	db := openTestDB(t)
	seed := NewSeedStore(db)
	store := NewInteractionStore(db)

	a := mustModule(t, seed, "app.a")
	b := mustModule(t, seed, "app.b")

	if _, err := store.Upsert(a, b, InteractionFields{Source: SourceLLMInferred}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	ia, err := store.GetByModules(a, b)
	if err != nil {
		t.Fatalf("GetByModules failed: %v", err)
	}
	if ia.Direction != DirectionUni {
		t.Errorf("Expected default direction %q, got %q", DirectionUni, ia.Direction)
	}
	if len(ia.Symbols) != 0 {
		t.Errorf("Expected no symbols, got %v", ia.Symbols)
	}
	if ia.CreatedAt.IsZero() {
		t.Error("Expected created_at to be set")
	}
}

func TestHasReverseASTInteraction(t *testing.T) {
	db := openTestDB(t)
	seed := NewSeedStore(db)
	store := NewInteractionStore(db)

	a := mustModule(t, seed, "app.a")
	b := mustModule(t, seed, "app.b")
	c := mustModule(t, seed, "app.c")

	if _, err := store.Upsert(b, a, InteractionFields{Source: SourceASTImport}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, err := store.Upsert(c, a, InteractionFields{Source: SourceLLMInferred}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	tests := []struct {
		name     string
		from, to int64
		want     bool
	}{
		{"ast-import reverse edge", a, b, true},
		{"no reverse edge", b, a, false},
		{"inferred reverse edge does not count", a, c, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.HasReverseASTInteraction(tt.from, tt.to)
			if err != nil {
				t.Fatalf("HasReverseASTInteraction failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGetRelationshipCoverage(t *testing.T) {
	db := openTestDB(t)
	seed := NewSeedStore(db)
	store := NewInteractionStore(db)

	a := mustModule(t, seed, "app.a")
	b := mustModule(t, seed, "app.b")
	c := mustModule(t, seed, "app.c")

	fa := mustDefinition(t, seed, a, "fa", KindFunction)
	fa2 := mustDefinition(t, seed, a, "fa2", KindFunction)
	fb := mustDefinition(t, seed, b, "fb", KindFunction)
	fc := mustDefinition(t, seed, c, "fc", KindFunction)

	mustCall(t, seed, fa, fb, 1)  // cross-module, will be covered
	mustCall(t, seed, fa, fc, 1)  // cross-module, uncovered
	mustCall(t, seed, fa, fa2, 1) // same-module

	if _, err := store.Upsert(a, b, InteractionFields{Source: SourceAST}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	cov, err := store.GetRelationshipCoverage()
	if err != nil {
		t.Fatalf("GetRelationshipCoverage failed: %v", err)
	}

	if cov.TotalRelationships != 3 {
		t.Errorf("Expected 3 total relationships, got %d", cov.TotalRelationships)
	}
	if cov.CrossModule != 2 {
		t.Errorf("Expected 2 cross-module, got %d", cov.CrossModule)
	}
	if cov.SameModule != 1 {
		t.Errorf("Expected 1 same-module, got %d", cov.SameModule)
	}
	if cov.Contributing != 1 {
		t.Errorf("Expected 1 contributing, got %d", cov.Contributing)
	}
	if cov.CoveragePercent != 50.0 {
		t.Errorf("Expected 50%% coverage, got %.1f", cov.CoveragePercent)
	}
	if cov.UncoveredPairCount != 1 {
		t.Errorf("Expected 1 uncovered pair, got %d", cov.UncoveredPairCount)
	}
}

func TestGetRelationshipCoverage_NoCrossModuleIsFullCoverage(t *testing.T) {
	db := openTestDB(t)
	store := NewInteractionStore(db)

	cov, err := store.GetRelationshipCoverage()
	if err != nil {
		t.Fatalf("GetRelationshipCoverage failed: %v", err)
	}
	if cov.CoveragePercent != 100.0 {
		t.Errorf("Expected 100%% coverage with no cross-module relationships, got %.1f", cov.CoveragePercent)
	}
}

func TestGetUncoveredModulePairs(t *testing.T) {
	db := openTestDB(t)
	seed := NewSeedStore(db)
	store := NewInteractionStore(db)

	a := mustModule(t, seed, "app.a")
	b := mustModule(t, seed, "app.b")
	c := mustModule(t, seed, "app.c")

	fa := mustDefinition(t, seed, a, "fa", KindFunction)
	fb := mustDefinition(t, seed, b, "fb", KindFunction)
	fc1 := mustDefinition(t, seed, c, "fc1", KindFunction)
	fc2 := mustDefinition(t, seed, c, "fc2", KindFunction)

	mustCall(t, seed, fa, fb, 1)
	mustCall(t, seed, fa, fc1, 1)
	mustCall(t, seed, fa, fc2, 1)

	pairs, err := store.GetUncoveredModulePairs()
	if err != nil {
		t.Fatalf("GetUncoveredModulePairs failed: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("Expected 2 uncovered pairs, got %d", len(pairs))
	}

	// Heaviest pair first
	if pairs[0].ToModulePath != "app.c" || pairs[0].RelationshipCount != 2 {
		t.Errorf("Expected a->c with 2 relationships first, got %+v", pairs[0])
	}

	// Covering a pair removes it
	if _, err := store.Upsert(a, c, InteractionFields{Source: SourceAST}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	pairs, err = store.GetUncoveredModulePairs()
	if err != nil {
		t.Fatalf("GetUncoveredModulePairs failed: %v", err)
	}
	if len(pairs) != 1 || pairs[0].ToModulePath != "app.b" {
		t.Errorf("Expected only a->b uncovered, got %+v", pairs)
	}
}

func TestGetFanInStats(t *testing.T) {
	db := openTestDB(t)
	seed := NewSeedStore(db)
	store := NewInteractionStore(db)

	hub := mustModule(t, seed, "app.hub")
	quiet := mustModule(t, seed, "app.quiet")
	s1 := mustModule(t, seed, "app.s1")
	s2 := mustModule(t, seed, "app.s2")
	s3 := mustModule(t, seed, "app.s3")

	for _, src := range []int64{s1, s2} {
		if _, err := store.Upsert(src, hub, InteractionFields{Source: SourceLLMInferred}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}
	if _, err := store.Upsert(s3, hub, InteractionFields{Source: SourceAST}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	// Target with only AST edges never appears in the stats
	if _, err := store.Upsert(s1, quiet, InteractionFields{Source: SourceAST}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	stats, err := store.GetFanInStats()
	if err != nil {
		t.Fatalf("GetFanInStats failed: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("Expected 1 fan-in stat, got %d", len(stats))
	}
	st := stats[0]
	if st.ModulePath != "app.hub" {
		t.Errorf("Expected app.hub, got %q", st.ModulePath)
	}
	if st.InferredCount != 2 || st.ASTCount != 1 {
		t.Errorf("Expected inferred=2 ast=1, got inferred=%d ast=%d", st.InferredCount, st.ASTCount)
	}
}

func TestRemoveInferredToModule(t *testing.T) {
	db := openTestDB(t)
	seed := NewSeedStore(db)
	store := NewInteractionStore(db)

	hub := mustModule(t, seed, "app.hub")
	s1 := mustModule(t, seed, "app.s1")
	s2 := mustModule(t, seed, "app.s2")

	if _, err := store.Upsert(s1, hub, InteractionFields{Source: SourceLLMInferred}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, err := store.Upsert(s2, hub, InteractionFields{Source: SourceAST}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, err := store.Upsert(hub, s1, InteractionFields{Source: SourceLLMInferred}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	removed, err := store.RemoveInferredToModule(hub)
	if err != nil {
		t.Fatalf("RemoveInferredToModule failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed, got %d", removed)
	}

	all, err := store.GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 surviving interactions, got %d", len(all))
	}
}
