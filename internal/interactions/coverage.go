package interactions

import (
	"context"
	"fmt"

	"weave/internal/llm"
	"weave/internal/storage"
)

// Auto-skip reasons used when static evidence already settles a pair
const (
	skipDirectionConfusion = "direction confusion"
	skipNoStaticEvidence   = "no static evidence"
)

// RunCoverageGate drives relationship coverage toward the configured
// target. Each attempt re-measures coverage, pre-filters uncovered pairs
// into auto-skip and needs-LLM buckets using import-path evidence, sends
// the remainder through the stricter confirm/skip pass, and gates every
// confirmation again before persisting. The loop stops on: target reached,
// no uncovered pairs, empty LLM bucket, a pass that confirms nothing, or
// the retry cap.
func (e *Engine) RunCoverageGate(ctx context.Context, state *RunState) error {
	maxRetries := e.cfg.MaxGateRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	target := e.cfg.CoverageTarget

	for attempt := 0; attempt < maxRetries; attempt++ {
		state.Report.GateAttempts++

		cov, err := e.store.GetRelationshipCoverage()
		if err != nil {
			return err
		}
		e.logger.Info("Coverage gate measurement", map[string]interface{}{
			"run_id":          state.RunID,
			"attempt":         attempt,
			"coverage":        fmt.Sprintf("%.1f%%", cov.CoveragePercent),
			"uncovered_pairs": cov.UncoveredPairCount,
		})

		if cov.CoveragePercent >= target || cov.UncoveredPairCount == 0 {
			return nil
		}

		pairs, err := e.store.GetUncoveredModulePairs()
		if err != nil {
			return err
		}
		if len(pairs) == 0 {
			return nil
		}

		candidates, err := e.bucketUncoveredPairs(state, pairs)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return nil
		}

		confirmed, err := e.runTargetedPass(ctx, state, candidates)
		if err != nil {
			return err
		}
		if confirmed == 0 {
			// Zero progress: further attempts have no new signal
			e.logger.Info("Targeted pass confirmed nothing, stopping gate loop", map[string]interface{}{
				"run_id":  state.RunID,
				"attempt": attempt,
			})
			return nil
		}
	}
	return nil
}

// bucketUncoveredPairs pre-filters uncovered pairs: cross-process pairs and
// same-process pairs with forward imports go to the LLM; pairs whose
// evidence points the other way (reverse AST edge or reverse import) or
// nowhere are auto-skipped.
func (e *Engine) bucketUncoveredPairs(state *RunState, pairs []storage.UncoveredPair) ([]TargetedCandidate, error) {
	byID, err := e.modulesByID()
	if err != nil {
		return nil, err
	}

	var candidates []TargetedCandidate
	for _, pair := range pairs {
		from, okFrom := byID[pair.FromModuleID]
		to, okTo := byID[pair.ToModuleID]
		if !okFrom || !okTo {
			continue
		}

		crossProcess := !SameProcess(state.Groups, pair.FromModuleID, pair.ToModuleID)

		forwardImport, err := e.evidence.HasModuleImportPath(pair.FromModuleID, pair.ToModuleID)
		if err != nil {
			return nil, err
		}
		reverseImport, err := e.evidence.HasModuleImportPath(pair.ToModuleID, pair.FromModuleID)
		if err != nil {
			return nil, err
		}
		reverseAST, err := e.store.HasReverseASTInteraction(pair.FromModuleID, pair.ToModuleID)
		if err != nil {
			return nil, err
		}

		// Cross-process pairs always go to the LLM: static import analysis
		// cannot see runtime-only connections. Same-process pairs need a
		// forward import to be worth asking about.
		if !crossProcess && !forwardImport {
			reason := skipNoStaticEvidence
			if reverseAST || reverseImport {
				reason = skipDirectionConfusion
			}
			state.Report.TargetedSkipped++
			e.logger.Debug("Auto-skipped uncovered pair", map[string]interface{}{
				"run_id": state.RunID,
				"from":   pair.FromModulePath,
				"to":     pair.ToModulePath,
				"reason": reason,
			})
			continue
		}

		samples, err := e.evidence.GetRelationshipSymbolSamples(pair.FromModuleID, pair.ToModuleID, maxSymbolSamples)
		if err != nil {
			return nil, err
		}

		candidates = append(candidates, TargetedCandidate{
			Pair:          pair,
			FromModule:    from,
			ToModule:      to,
			CrossProcess:  crossProcess,
			ForwardImport: forwardImport,
			ReverseImport: reverseImport,
			ReverseAST:    reverseAST,
			SymbolSamples: samples,
		})
	}
	return candidates, nil
}

// runTargetedPass sends candidates through the stricter confirm/skip
// prompt and persists gated confirmations. Returns the number of new
// interactions written.
func (e *Engine) runTargetedPass(ctx context.Context, state *RunState, candidates []TargetedCandidate) (int, error) {
	response, err := e.client.Complete(ctx, llm.Request{
		SystemPrompt: targetedSystemPrompt,
		UserPrompt:   buildTargetedPrompt(candidates),
		Temperature:  0,
		MaxTokens:    e.maxTokens,
	})
	if err != nil {
		// The pass yields an empty result set; the caller's zero-progress
		// rule ends the loop.
		e.logger.Warn("Targeted inference pass failed", map[string]interface{}{
			"run_id": state.RunID,
			"error":  err.Error(),
		})
		return 0, nil
	}

	byPaths := make(map[[2]string]TargetedCandidate, len(candidates))
	for _, c := range candidates {
		byPaths[[2]string{c.Pair.FromModulePath, c.Pair.ToModulePath}] = c
	}

	confirmed := 0
	for _, row := range parseTargetedRows(response) {
		candidate, ok := e.matchTargetedRow(row, candidates, byPaths)
		if !ok {
			continue
		}

		if row.Action != ActionConfirm {
			state.Report.TargetedSkipped++
			continue
		}

		symbols, err := e.resolveConfirmedSymbols(candidate)
		if err != nil {
			return confirmed, err
		}

		accepted, err := e.persistInferred(state, candidate.FromModule, candidate.ToModule, row.Reason, "", symbols)
		if err != nil {
			return confirmed, err
		}
		if accepted {
			confirmed++
			state.Report.TargetedConfirmed++
		}
	}
	return confirmed, nil
}

// matchTargetedRow maps a response row back to its candidate: exact path
// pair first, then suffix match on both ends.
func (e *Engine) matchTargetedRow(row TargetedRow, candidates []TargetedCandidate, byPaths map[[2]string]TargetedCandidate) (TargetedCandidate, bool) {
	if c, ok := byPaths[[2]string{row.FromPath, row.ToPath}]; ok {
		return c, true
	}
	for _, c := range candidates {
		if pathEndsWith(c.Pair.FromModulePath, row.FromPath) && pathEndsWith(c.Pair.ToModulePath, row.ToPath) {
			return c, true
		}
	}
	return TargetedCandidate{}, false
}

// resolveConfirmedSymbols prefers actual imported symbol names for a
// confirmed pair, falling back to the relationship annotation names.
func (e *Engine) resolveConfirmedSymbols(candidate TargetedCandidate) ([]string, error) {
	imported, err := e.evidence.GetModuleImportedSymbols(candidate.Pair.FromModuleID, candidate.Pair.ToModuleID)
	if err != nil {
		return nil, err
	}
	if len(imported) > 0 {
		names := make([]string, 0, len(imported))
		for _, s := range imported {
			names = append(names, s.SymbolName)
		}
		return names, nil
	}

	names := make([]string, 0, len(candidate.SymbolSamples))
	for _, s := range candidate.SymbolSamples {
		names = append(names, s.ToName)
	}
	return names, nil
}
