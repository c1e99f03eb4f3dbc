package interactions

import (
	"weave/internal/storage"
)

// Gate rejection reasons, in rule order
const (
	GateRejectDuplicate  = "duplicate"
	GateRejectSelfLoop   = "self-loop"
	GateRejectReverseAST = "reverse-of-ast"
	GateRejectTypeOnly   = "type-only-initiator"
)

// GateResult is the outcome of the structural gate
type GateResult struct {
	Pass   bool
	Reason string
}

// PairKey identifies an ordered (from, to) module pair
type PairKey struct {
	From int64
	To   int64
}

// PairSet tracks the ordered pairs already holding an interaction within a
// run. It is append-only; later batches see pairs accepted by earlier ones.
type PairSet map[PairKey]bool

// NewPairSet builds a pair set from the currently persisted interactions
func NewPairSet(interactions []storage.Interaction) PairSet {
	set := make(PairSet, len(interactions))
	for _, ia := range interactions {
		set[PairKey{From: ia.FromModuleID, To: ia.ToModuleID}] = true
	}
	return set
}

// Add marks an ordered pair as existing
func (s PairSet) Add(from, to int64) {
	s[PairKey{From: from, To: to}] = true
}

// Has reports whether an ordered pair exists
func (s PairSet) Has(from, to int64) bool {
	return s[PairKey{From: from, To: to}]
}

// StructuralGate applies the deterministic accept/reject rules to every
// LLM-proposed interaction before persistence. Rules run in order and the
// first failure wins:
//
//  1. duplicate            — the ordered pair already has an interaction
//  2. self-loop            — from and to are the same module
//  3. reverse-of-ast       — static evidence confirms the opposite direction
//  4. type-only-initiator  — a pure-type module cannot initiate a runtime call
//
// A rejection is expected filtering, not an error.
func StructuralGate(from, to storage.Module, existing PairSet, evidence *storage.EvidenceStore, store *storage.InteractionStore) (GateResult, error) {
	if existing.Has(from.ID, to.ID) {
		return GateResult{Pass: false, Reason: GateRejectDuplicate}, nil
	}

	if from.ID == to.ID {
		return GateResult{Pass: false, Reason: GateRejectSelfLoop}, nil
	}

	reverse, err := store.HasReverseASTInteraction(from.ID, to.ID)
	if err != nil {
		return GateResult{}, err
	}
	if reverse {
		return GateResult{Pass: false, Reason: GateRejectReverseAST}, nil
	}

	typeOnly, err := evidence.IsTypeOnlyModule(from.ID)
	if err != nil {
		return GateResult{}, err
	}
	if typeOnly {
		return GateResult{Pass: false, Reason: GateRejectTypeOnly}, nil
	}

	return GateResult{Pass: true}, nil
}
