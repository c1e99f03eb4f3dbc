package interactions

import (
	"context"
	"fmt"
	"strings"

	"weave/internal/storage"
)

// Fixed semantics for file-level import edges where symbol resolution failed
const (
	semanticTypeOnlyImport   = "Type-only import dependency (no runtime calls traced)"
	semanticUnresolvedImport = "Imports symbols (symbol-level resolution unavailable)"
)

// SyncStaticInteractions converts the three static evidence sources into
// interactions without speculative LLM involvement: call-graph edges (with
// batch-generated semantics), import-only pairs, and the file-level import
// fallback. Writes are idempotent; duplicate pairs are counted and skipped.
func (e *Engine) SyncStaticInteractions(ctx context.Context, state *RunState) error {
	testModules, err := e.evidence.GetTestModuleIDs()
	if err != nil {
		return fmt.Errorf("failed to load test modules: %w", err)
	}

	if err := e.syncCallGraphEdges(ctx, state, testModules); err != nil {
		return err
	}
	if err := e.syncImportOnlyPairs(state, testModules); err != nil {
		return err
	}
	if err := e.syncUnresolvedImports(state, testModules); err != nil {
		return err
	}

	e.logger.Info("Static interaction sync complete", map[string]interface{}{
		"run_id":   state.RunID,
		"ast":      state.Report.ASTInteractions,
		"imports":  state.Report.ImportInteractions,
		"fallback": state.Report.FallbackInteractions,
		"skipped":  state.Report.SkippedDuplicates,
	})
	return nil
}

func (e *Engine) syncCallGraphEdges(ctx context.Context, state *RunState, testModules map[int64]bool) error {
	edges, err := e.evidence.GetEnrichedModuleCallGraph()
	if err != nil {
		return fmt.Errorf("failed to load call graph: %w", err)
	}
	if len(edges) == 0 {
		return nil
	}

	semantics, defaults, err := e.GenerateBatchSemantics(ctx, edges)
	if err != nil {
		return err
	}
	state.Report.SemanticDefaults += defaults

	for _, edge := range edges {
		pattern := edge.EdgePattern
		if testModules[edge.FromModuleID] || testModules[edge.ToModuleID] {
			pattern = storage.PatternTestInternal
		}

		symbols := make([]string, 0, len(edge.CalledSymbols))
		for _, s := range edge.CalledSymbols {
			symbols = append(symbols, s.Name)
		}

		result, err := e.store.Upsert(edge.FromModuleID, edge.ToModuleID, storage.InteractionFields{
			Pattern:  pattern,
			Weight:   edge.Weight,
			Symbols:  symbols,
			Semantic: semantics[PairKey{From: edge.FromModuleID, To: edge.ToModuleID}],
			Source:   storage.SourceAST,
		})
		if err != nil {
			return err
		}
		if result == storage.Inserted {
			state.Report.ASTInteractions++
		} else {
			state.Report.SkippedDuplicates++
		}
		state.Existing.Add(edge.FromModuleID, edge.ToModuleID)
	}
	return nil
}

func (e *Engine) syncImportOnlyPairs(state *RunState, testModules map[int64]bool) error {
	pairs, err := e.evidence.GetImportOnlyPairs()
	if err != nil {
		return fmt.Errorf("failed to load import-only pairs: %w", err)
	}

	for _, pair := range pairs {
		symbols := make([]string, 0, len(pair.Symbols))
		for _, s := range pair.Symbols {
			symbols = append(symbols, s.SymbolName)
		}

		var pattern string
		if testModules[pair.FromModuleID] || testModules[pair.ToModuleID] {
			pattern = storage.PatternTestInternal
		}

		result, err := e.store.Upsert(pair.FromModuleID, pair.ToModuleID, storage.InteractionFields{
			Pattern:  pattern,
			Weight:   len(pair.Symbols),
			Symbols:  symbols,
			Semantic: importOnlySemantic(pair),
			Source:   storage.SourceASTImport,
		})
		if err != nil {
			return err
		}
		if result == storage.Inserted {
			state.Report.ImportInteractions++
		} else {
			state.Report.SkippedDuplicates++
		}
		state.Existing.Add(pair.FromModuleID, pair.ToModuleID)
	}
	return nil
}

func (e *Engine) syncUnresolvedImports(state *RunState, testModules map[int64]bool) error {
	imports, err := e.evidence.GetUnresolvedImportEdges()
	if err != nil {
		return fmt.Errorf("failed to load unresolved imports: %w", err)
	}

	for _, imp := range imports {
		semantic := semanticUnresolvedImport
		if imp.IsTypeOnly {
			semantic = semanticTypeOnlyImport
		}

		var pattern string
		if testModules[imp.FromModuleID] || testModules[imp.ToModuleID] {
			pattern = storage.PatternTestInternal
		}

		result, err := e.store.Upsert(imp.FromModuleID, imp.ToModuleID, storage.InteractionFields{
			Pattern:  pattern,
			Weight:   imp.ImportCount,
			Semantic: semantic,
			Source:   storage.SourceASTImport,
		})
		if err != nil {
			return err
		}
		if result == storage.Inserted {
			state.Report.FallbackInteractions++
		} else {
			state.Report.SkippedDuplicates++
		}
		state.Existing.Add(imp.FromModuleID, imp.ToModuleID)
	}
	return nil
}

// importOnlySemantic templates the description of an import-only pair:
// type-only imports get a dependency note, value imports list the first
// three symbols plus a count suffix.
func importOnlySemantic(pair storage.ImportOnlyPair) string {
	if pair.TypeOnly {
		return fmt.Sprintf("Type/interface dependency (%d types)", len(pair.Symbols))
	}

	names := make([]string, 0, 3)
	for _, s := range pair.Symbols {
		if len(names) == 3 {
			break
		}
		names = append(names, s.SymbolName)
	}
	semantic := "Imports " + strings.Join(names, ", ")
	if extra := len(pair.Symbols) - len(names); extra > 0 {
		semantic += fmt.Sprintf(" (+%d more)", extra)
	}
	return semantic
}
