package interactions

import (
	"weave/internal/storage"
)

// CleanupFanIn removes hallucinated convergence: when a module's inbound
// llm-inferred edge count is anomalously high relative to its inbound
// AST-confirmed edges, every llm-inferred interaction pointing at it is
// deleted. This is the enforced backstop for the advisory "do not connect
// everything to one target" prompt instruction.
//
// A module is anomalous when inferred >= fanInMinInferred AND
// inferred > fanInRatio * max(astCount, 1).
func (e *Engine) CleanupFanIn(state *RunState) error {
	stats, err := e.store.GetFanInStats()
	if err != nil {
		return err
	}

	minInferred := e.cfg.FanInMinInferred
	if minInferred <= 0 {
		minInferred = 4
	}
	ratio := e.cfg.FanInRatio
	if ratio <= 0 {
		ratio = 3.0
	}

	for _, st := range stats {
		if !isFanInAnomaly(st, minInferred, ratio) {
			continue
		}

		removed, err := e.store.RemoveInferredToModule(st.ModuleID)
		if err != nil {
			return err
		}

		state.Report.FanInModulesFlagged++
		state.Report.FanInRemoved += removed

		// Deleted pairs stay in the run's pair set: an edge removed as a
		// hallucination must not be re-proposed later in the same run.
		e.logger.Warn("Fan-in anomaly, removed inferred interactions", map[string]interface{}{
			"run_id":   state.RunID,
			"module":   st.ModulePath,
			"inferred": st.InferredCount,
			"ast":      st.ASTCount,
			"removed":  removed,
		})
	}
	return nil
}

// isFanInAnomaly applies the configurable fan-in threshold to one module
func isFanInAnomaly(st storage.FanInStat, minInferred int, ratio float64) bool {
	if st.InferredCount < minInferred {
		return false
	}
	astBase := st.ASTCount
	if astBase < 1 {
		astBase = 1
	}
	return float64(st.InferredCount) > ratio*float64(astBase)
}
