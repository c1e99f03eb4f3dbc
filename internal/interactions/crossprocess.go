package interactions

import (
	"context"
	"fmt"
	"regexp"

	"weave/internal/llm"
	"weave/internal/storage"
)

// boundaryNamePattern marks modules likely to sit on an API/service
// boundary. Tested against module path, module name, and member names.
var boundaryNamePattern = regexp.MustCompile(`(?i)(router|controller|handler|hook|client|endpoint|api|gateway|service|provider|adapter|facade|proxy|middleware)`)

// isBoundaryModule reports whether a module looks like a process boundary
func isBoundaryModule(m storage.Module, members []storage.Definition) bool {
	if boundaryNamePattern.MatchString(m.FullPath) || boundaryNamePattern.MatchString(m.Name) {
		return true
	}
	for _, d := range members {
		if boundaryNamePattern.MatchString(d.Name) {
			return true
		}
	}
	return false
}

// InferCrossProcess prompts the model, per pair of process groups, for
// directed runtime connections between modules with no static
// connectivity. Every proposal passes through the structural gate before
// persistence. Single-group codebases skip this stage entirely.
func (e *Engine) InferCrossProcess(ctx context.Context, state *RunState) error {
	if state.Groups.GroupCount < 2 {
		e.logger.Info("Single process group, no cross-process inference needed", map[string]interface{}{
			"run_id": state.RunID,
		})
		return nil
	}

	modules, err := e.evidence.GetAllModules()
	if err != nil {
		return err
	}

	members := make(map[int64][]storage.Definition, len(modules))
	for _, m := range modules {
		mm, err := e.evidence.GetModuleWithMembers(m.ID)
		if err != nil {
			return err
		}
		if mm != nil {
			members[m.ID] = mm.Members
		}
	}

	callEdges, err := e.evidence.GetModuleCallGraph()
	if err != nil {
		return err
	}
	pathByID := make(map[int64]string, len(modules))
	for _, m := range modules {
		pathByID[m.ID] = m.FullPath
	}

	for _, pair := range CrossProcessGroupPairs(state.Groups) {
		response, err := e.client.Complete(ctx, llm.Request{
			SystemPrompt: crossProcessSystemPrompt,
			UserPrompt:   buildCrossProcessPrompt(pair, members, pairASTEdges(pair, callEdges, pathByID)),
			Temperature:  0,
			MaxTokens:    e.maxTokens,
		})
		if err != nil {
			// No fallback is defined for inference: the pair yields an
			// empty result set, never a partial merge.
			e.logger.Warn("Cross-process inference failed for group pair", map[string]interface{}{
				"run_id": state.RunID,
				"error":  err.Error(),
			})
			continue
		}

		for _, row := range parseCrossProcessRows(response) {
			state.Report.CrossProcessProposed++

			if row.Confidence == storage.ConfidenceLow {
				state.Report.CrossProcessRejected++
				continue
			}

			from := e.resolveModulePath(row.FromPath, modules)
			to := e.resolveModulePath(row.ToPath, modules)
			if from == nil || to == nil {
				// Path that doesn't resolve to a known module: drop the row
				state.Report.CrossProcessRejected++
				continue
			}

			accepted, err := e.persistInferred(state, *from, *to, row.Reason, row.Confidence, nil)
			if err != nil {
				return err
			}
			if accepted {
				state.Report.CrossProcessAccepted++
			} else {
				state.Report.CrossProcessRejected++
			}
		}
	}

	e.logger.Info("Cross-process inference complete", map[string]interface{}{
		"run_id":   state.RunID,
		"proposed": state.Report.CrossProcessProposed,
		"accepted": state.Report.CrossProcessAccepted,
		"rejected": state.Report.CrossProcessRejected,
	})
	return nil
}

// persistInferred gates an LLM proposal and writes it when it passes.
// Accepted pairs are added to the run's pair set so a later row in the
// same run cannot re-propose the edge.
func (e *Engine) persistInferred(state *RunState, from, to storage.Module, reason, confidence string, symbols []string) (bool, error) {
	result, err := StructuralGate(from, to, state.Existing, e.evidence, e.store)
	if err != nil {
		return false, err
	}
	if !result.Pass {
		e.logger.Debug("Structural gate rejected proposal", map[string]interface{}{
			"run_id": state.RunID,
			"from":   from.FullPath,
			"to":     to.FullPath,
			"reason": result.Reason,
		})
		return false, nil
	}

	if confidence != storage.ConfidenceHigh {
		confidence = storage.ConfidenceMedium
	}

	upsert, err := e.store.Upsert(from.ID, to.ID, storage.InteractionFields{
		Semantic:   reason,
		Symbols:    symbols,
		Source:     storage.SourceLLMInferred,
		Confidence: confidence,
	})
	if err != nil {
		return false, err
	}
	state.Existing.Add(from.ID, to.ID)

	return upsert == storage.Inserted, nil
}

// pairASTEdges renders the AST-detected call edges spanning exactly this
// group pair, in either direction. Edges between other groups are not
// grounding evidence for this pair and must not appear in its prompt.
func pairASTEdges(pair GroupPair, edges []storage.CallGraphEdge, pathByID map[int64]string) []string {
	inA := make(map[int64]bool, len(pair.A))
	for _, m := range pair.A {
		inA[m.ID] = true
	}
	inB := make(map[int64]bool, len(pair.B))
	for _, m := range pair.B {
		inB[m.ID] = true
	}

	var rendered []string
	for _, edge := range edges {
		spans := (inA[edge.FromModuleID] && inB[edge.ToModuleID]) ||
			(inB[edge.FromModuleID] && inA[edge.ToModuleID])
		if spans {
			rendered = append(rendered, fmt.Sprintf("%s -> %s", pathByID[edge.FromModuleID], pathByID[edge.ToModuleID]))
		}
	}
	return rendered
}
