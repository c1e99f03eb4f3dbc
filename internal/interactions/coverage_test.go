package interactions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weave/internal/llm"
	"weave/internal/storage"
	"weave/internal/testutil"
)

// uncoveredPairFixture builds a cross-module call relationship with no
// interaction row, leaving one uncovered pair. The modules share no import
// edge, so they land in different process groups.
func uncoveredPairFixture(t *testing.T, f *testutil.Fixture) (fromID, toID int64) {
	t.Helper()

	fromID = f.AddModule(t, "web.client")
	toID = f.AddModule(t, "api.server")
	caller := f.AddDefinition(t, fromID, "fetchOrders", storage.KindFunction)
	callee := f.AddDefinition(t, toID, "ordersHandler", storage.KindFunction)
	f.AddCall(t, caller, callee, 2)

	return fromID, toID
}

func TestRunCoverageGate_AlreadyCovered(t *testing.T) {
	f := testutil.NewFixture(t)
	fromID, toID := uncoveredPairFixture(t, f)

	_, err := f.Interactions.Upsert(fromID, toID, storage.InteractionFields{Source: storage.SourceAST})
	require.NoError(t, err)

	client := &llm.ScriptedClient{}
	e := newTestEngine(f, client)
	state := newTestRunState(t, e)

	require.NoError(t, e.RunCoverageGate(context.Background(), state))

	assert.Equal(t, 1, state.Report.GateAttempts, "one measurement, no retry")
	assert.Empty(t, client.Calls)
}

func TestRunCoverageGate_ConfirmsCrossProcessPair(t *testing.T) {
	f := testutil.NewFixture(t)
	fromID, toID := uncoveredPairFixture(t, f)

	client := &llm.ScriptedClient{Responses: []string{
		"```csv\n" +
			"from_module_path,to_module_path,action,reason\n" +
			"web.client,api.server,CONFIRM,fetches orders from the handler\n" +
			"```",
	}}
	e := newTestEngine(f, client)
	state := newTestRunState(t, e)

	require.NoError(t, e.RunCoverageGate(context.Background(), state))

	assert.Equal(t, 1, state.Report.TargetedConfirmed)
	assert.True(t, state.Existing.Has(fromID, toID))

	ia, err := f.Interactions.GetByModules(fromID, toID)
	require.NoError(t, err)
	require.NotNil(t, ia)
	assert.Equal(t, storage.SourceLLMInferred, ia.Source)
	assert.Equal(t, storage.ConfidenceMedium, ia.Confidence,
		"confirmations without an explicit level persist as medium")
	assert.Equal(t, "fetches orders from the handler", ia.Semantic)
	assert.Equal(t, []string{"ordersHandler"}, ia.Symbols,
		"symbols fall back to relationship annotation names")

	// The confirmation covers the pair; the loop ends on the next measure
	cov, err := f.Interactions.GetRelationshipCoverage()
	require.NoError(t, err)
	assert.Equal(t, 100.0, cov.CoveragePercent)
	assert.Equal(t, 2, state.Report.GateAttempts)
}

func TestRunCoverageGate_StopsWhenNothingConfirmed(t *testing.T) {
	f := testutil.NewFixture(t)
	uncoveredPairFixture(t, f)

	client := &llm.ScriptedClient{Responses: []string{
		"web.client,api.server,SKIP,no evidence of a runtime call",
		"web.client,api.server,SKIP,still nothing",
	}}
	e := newTestEngine(f, client)
	state := newTestRunState(t, e)

	require.NoError(t, e.RunCoverageGate(context.Background(), state))

	assert.Len(t, client.Calls, 1, "zero confirmations end the loop early")
	assert.Equal(t, 1, state.Report.GateAttempts)
	assert.Equal(t, 1, state.Report.TargetedSkipped)
}

func TestRunCoverageGate_RespectsRetryCap(t *testing.T) {
	f := testutil.NewFixture(t)

	// Two uncovered cross-process pairs; the model confirms one per pass
	webID := f.AddModule(t, "web.client")
	apiID := f.AddModule(t, "api.server")
	jobsID := f.AddModule(t, "worker.jobs")
	caller := f.AddDefinition(t, webID, "fetchOrders", storage.KindFunction)
	handler := f.AddDefinition(t, apiID, "ordersHandler", storage.KindFunction)
	runner := f.AddDefinition(t, jobsID, "runExport", storage.KindFunction)
	f.AddCall(t, caller, handler, 1)
	f.AddCall(t, caller, runner, 1)

	client := &llm.ScriptedClient{Responses: []string{
		"web.client,api.server,CONFIRM,fetches orders\nweb.client,worker.jobs,SKIP,unclear",
		"web.client,worker.jobs,SKIP,still unclear",
		"web.client,worker.jobs,SKIP,would exceed the cap",
	}}
	e := newTestEngine(f, client)
	state := newTestRunState(t, e)

	require.NoError(t, e.RunCoverageGate(context.Background(), state))

	// Default cap is 2 attempts; the third scripted response is never used
	assert.Equal(t, 2, state.Report.GateAttempts)
	assert.Len(t, client.Calls, 2)
	assert.Equal(t, 1, state.Report.TargetedConfirmed)
}

func TestRunCoverageGate_AutoSkipsNoStaticEvidence(t *testing.T) {
	f := testutil.NewFixture(t)

	// Same process, uncovered pair, but the import points the wrong way
	// for one case and nowhere for the base case
	aID := f.AddModule(t, "app.a")
	bID := f.AddModule(t, "app.b")
	caller := f.AddDefinition(t, aID, "run", storage.KindFunction)
	callee := f.AddDefinition(t, bID, "helper", storage.KindFunction)
	f.AddCall(t, caller, callee, 1)
	f.AddImport(t, bID, aID, 1, false) // joins the groups, reverse direction

	client := &llm.ScriptedClient{}
	e := newTestEngine(f, client)
	state := newTestRunState(t, e)

	require.NoError(t, e.RunCoverageGate(context.Background(), state))

	assert.Empty(t, client.Calls, "auto-skipped pairs never reach the model")
	assert.Equal(t, 1, state.Report.TargetedSkipped)
	assert.Equal(t, 0, state.Report.TargetedConfirmed)
}

func TestRunCoverageGate_LLMFailureEndsLoop(t *testing.T) {
	f := testutil.NewFixture(t)
	uncoveredPairFixture(t, f)

	// Exhausted script: the targeted pass errors and confirms nothing
	e := newTestEngine(f, &llm.ScriptedClient{})
	state := newTestRunState(t, e)

	require.NoError(t, e.RunCoverageGate(context.Background(), state))

	assert.Equal(t, 1, state.Report.GateAttempts)
	assert.Equal(t, 0, state.Report.TargetedConfirmed)
}

func TestRunCoverageGate_ZeroRetriesDisablesLoop(t *testing.T) {
	f := testutil.NewFixture(t)
	uncoveredPairFixture(t, f)

	client := &llm.ScriptedClient{}
	e := newTestEngine(f, client)
	e.cfg.MaxGateRetries = 0
	state := newTestRunState(t, e)

	require.NoError(t, e.RunCoverageGate(context.Background(), state))

	assert.Equal(t, 0, state.Report.GateAttempts)
	assert.Empty(t, client.Calls)
}
