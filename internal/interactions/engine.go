// Package interactions builds module-level interactions from call-graph
// edges, import graphs, and LLM-inferred cross-process connections, gating
// every LLM proposal against static evidence before persistence.
package interactions

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"weave/internal/config"
	"weave/internal/llm"
	"weave/internal/logging"
	"weave/internal/storage"
)

// Engine drives the interaction inference pipeline. All stages run
// strictly in sequence: later batches depend on the accumulated pair set
// built by earlier ones.
type Engine struct {
	evidence  *storage.EvidenceStore
	store     *storage.InteractionStore
	client    llm.Client
	logger    *logging.Logger
	cfg       config.InferenceConfig
	maxTokens int
}

// NewEngine creates an interaction engine
func NewEngine(db *storage.DB, client llm.Client, logger *logging.Logger, cfg *config.Config) *Engine {
	return &Engine{
		evidence:  storage.NewEvidenceStore(db),
		store:     storage.NewInteractionStore(db),
		client:    client,
		logger:    logger,
		cfg:       cfg.Inference,
		maxTokens: cfg.LLM.MaxTokens,
	}
}

// Report summarizes one inference run
type Report struct {
	RunID string `json:"runId"`

	Modules       int `json:"modules"`
	ProcessGroups int `json:"processGroups"`

	ASTInteractions      int `json:"astInteractions"`
	ImportInteractions   int `json:"importInteractions"`
	FallbackInteractions int `json:"fallbackInteractions"`
	SkippedDuplicates    int `json:"skippedDuplicates"`
	SemanticDefaults     int `json:"semanticDefaults"`

	CrossProcessProposed int `json:"crossProcessProposed"`
	CrossProcessAccepted int `json:"crossProcessAccepted"`
	CrossProcessRejected int `json:"crossProcessRejected"`

	GateAttempts      int `json:"gateAttempts"`
	TargetedConfirmed int `json:"targetedConfirmed"`
	TargetedSkipped   int `json:"targetedSkipped"`

	FanInModulesFlagged int `json:"fanInModulesFlagged"`
	FanInRemoved        int `json:"fanInRemoved"`

	FinalCoveragePercent float64 `json:"finalCoveragePercent"`
	UncoveredPairs       int     `json:"uncoveredPairs"`
}

// RunState is the mutable state threaded through one inference run. It is
// owned by the orchestrator and passed by reference; nothing here is
// package-level.
type RunState struct {
	RunID    string
	Groups   *ProcessGroups
	Existing PairSet
	Report   Report
}

// newRunState loads the current interaction set and computes process groups
func (e *Engine) newRunState() (*RunState, error) {
	modules, err := e.evidence.GetAllModules()
	if err != nil {
		return nil, fmt.Errorf("failed to load modules: %w", err)
	}
	imports, err := e.evidence.GetModuleImports()
	if err != nil {
		return nil, fmt.Errorf("failed to load module imports: %w", err)
	}
	existing, err := e.store.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}

	state := &RunState{
		RunID:    uuid.NewString(),
		Groups:   ComputeProcessGroups(modules, imports),
		Existing: NewPairSet(existing),
	}
	state.Report.RunID = state.RunID
	state.Report.Modules = len(modules)
	state.Report.ProcessGroups = state.Groups.GroupCount
	return state, nil
}

// Run executes the full pipeline: deterministic sync, cross-process
// inference, fan-in cleanup, then the coverage gate loop.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	state, err := e.newRunState()
	if err != nil {
		return nil, err
	}

	e.logger.Info("Starting interaction inference", map[string]interface{}{
		"run_id":         state.RunID,
		"modules":        state.Report.Modules,
		"process_groups": state.Report.ProcessGroups,
	})

	if err := e.SyncStaticInteractions(ctx, state); err != nil {
		return nil, err
	}

	if err := e.InferCrossProcess(ctx, state); err != nil {
		return nil, err
	}

	if err := e.CleanupFanIn(state); err != nil {
		return nil, err
	}

	if err := e.RunCoverageGate(ctx, state); err != nil {
		return nil, err
	}

	cov, err := e.store.GetRelationshipCoverage()
	if err != nil {
		return nil, err
	}
	state.Report.FinalCoveragePercent = cov.CoveragePercent
	state.Report.UncoveredPairs = cov.UncoveredPairCount

	e.logger.Info("Interaction inference complete", map[string]interface{}{
		"run_id":   state.RunID,
		"coverage": fmt.Sprintf("%.1f%%", cov.CoveragePercent),
	})

	return &state.Report, nil
}

// moduleDescriptions returns the description per module id
func (e *Engine) moduleDescriptions() (map[int64]string, error) {
	modules, err := e.evidence.GetAllModules()
	if err != nil {
		return nil, err
	}
	descs := make(map[int64]string, len(modules))
	for _, m := range modules {
		descs[m.ID] = m.Description
	}
	return descs, nil
}

// modulesByID returns all modules keyed by id
func (e *Engine) modulesByID() (map[int64]storage.Module, error) {
	modules, err := e.evidence.GetAllModules()
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]storage.Module, len(modules))
	for _, m := range modules {
		byID[m.ID] = m
	}
	return byID, nil
}

// resolveModulePath resolves a module path from LLM output: exact match
// first, then unique suffix match to tolerate truncated paths.
func (e *Engine) resolveModulePath(path string, modules []storage.Module) *storage.Module {
	for i := range modules {
		if modules[i].FullPath == path {
			return &modules[i]
		}
	}
	var match *storage.Module
	for i := range modules {
		if pathEndsWith(modules[i].FullPath, path) {
			if match != nil {
				return nil // ambiguous suffix
			}
			match = &modules[i]
		}
	}
	return match
}

// pathEndsWith reports whether full ends with suffix on a dotted-segment
// boundary.
func pathEndsWith(full, suffix string) bool {
	if suffix == "" || len(suffix) > len(full) {
		return false
	}
	if full == suffix {
		return true
	}
	idx := len(full) - len(suffix)
	return full[idx:] == suffix && full[idx-1] == '.'
}
