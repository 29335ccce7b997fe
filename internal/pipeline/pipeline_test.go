package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/event-scout/internal/budget"
	"github.com/sells-group/event-scout/internal/cache"
	"github.com/sells-group/event-scout/internal/gate"
	"github.com/sells-group/event-scout/internal/model"
)

// pipelineFixture wires a full pipeline over mock collaborators.
type pipelineFixture struct {
	strategy *mockStrategySource
	leads    *mockLeadSource
	evidence *mockEvidenceSource
	scores   *mockScoreSource
	store    *mockStore
	tracker  *budget.Tracker
	cache    *cache.Cache
	pipeline *Pipeline
}

func newPipelineFixture(maxCycles int, ceiling float64, shared *cache.Cache) *pipelineFixture {
	f := &pipelineFixture{
		strategy: new(mockStrategySource),
		leads:    new(mockLeadSource),
		evidence: new(mockEvidenceSource),
		scores:   new(mockScoreSource),
		store:    new(mockStore),
		tracker:  budget.NewTracker(ceiling),
		cache:    shared,
	}
	if f.cache == nil {
		f.cache = newTestCache()
	}
	cfg := Config{MaxCycles: maxCycles, Gate: gate.DefaultConfig()}
	f.pipeline = New(cfg, f.store, f.tracker,
		NewPlanner(f.strategy, f.cache, f.tracker),
		NewProspector(f.leads, f.cache, f.tracker, 0),
		NewVerifier(f.evidence, f.cache, f.tracker, nil),
		NewCurator(f.scores, f.cache, f.tracker, nil, 0, 0),
	)
	return f
}

func (f *pipelineFixture) expectHappyStore() {
	f.store.On("CreateRun", mock.Anything, mock.Anything).
		Return(&model.Run{ID: "run-001", Status: model.RunStatusQueued}, nil)
	f.store.On("UpdateRunStatus", mock.Anything, "run-001", model.RunStatusRunning).Return(nil)
	f.store.On("CompleteRun", mock.Anything, "run-001", mock.AnythingOfType("*model.RunResult")).Return(nil)
	f.store.On("SaveEvents", mock.Anything, "run-001", mock.Anything).Return(nil).Maybe()
}

func TestPipeline_AcceptsFirstCycle(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(3, 0.50, nil)
	f.expectHappyStore()

	f.strategy.On("GenerateStrategy", mock.Anything, mock.Anything, (*model.Feedback)(nil)).
		Return(testStrategy(), 0.01, nil).Once()
	f.leads.On("GenerateLeads", mock.Anything, mock.Anything).
		Return(testLeads(), 0.005, nil).Once()
	f.evidence.On("GatherEvidence", mock.Anything, mock.Anything).
		Return(testBundles()[0], 0.001, nil)
	f.scores.On("ScoreEvents", mock.Anything, mock.Anything, mock.Anything).
		Return(viableEvents(6, 85), 0.02, nil).Once()

	state, err := f.pipeline.Run(ctx, testRequest())

	require.NoError(t, err)
	require.NotNil(t, state)
	require.NotNil(t, state.Decision)
	assert.Equal(t, model.VerdictAccept, state.Decision.Verdict)
	assert.Contains(t, state.Decision.Notes, "viable")
	assert.Equal(t, 1, state.Cycle)
	assert.Len(t, state.Curated, 6)
	assert.Empty(t, state.Errors)
	assert.InDelta(t, 0.037, state.TotalCost, 1e-9)
	assert.InDelta(t, 0.037, f.tracker.Spent(), 1e-9)

	f.store.AssertCalled(t, "SaveEvents", mock.Anything, "run-001", mock.Anything)
	f.store.AssertExpectations(t)
}

func TestPipeline_RetryThenForcedAcceptAtCeiling(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(2, 0.50, nil)
	f.expectHappyStore()

	strat1 := testStrategy()
	strat2 := testStrategy()
	strat2.Guidance = "Cast a wider net beyond downtown"

	f.strategy.On("GenerateStrategy", mock.Anything, mock.Anything, (*model.Feedback)(nil)).
		Return(strat1, 0.01, nil).Once()
	f.strategy.On("GenerateStrategy", mock.Anything, mock.Anything, mock.MatchedBy(func(fb *model.Feedback) bool {
		return fb != nil && fb.ViableCount == 2 && fb.TopScore == 75 &&
			len(fb.RejectedTitles) == 1 && fb.RejectedTitles[0] == "Parking Lot Ribbon Cutting"
	})).Return(strat2, 0.01, nil).Once()

	leads2 := []model.Lead{{
		Description: "Lakefront kite festival",
		EventType:   "festival",
		Keywords:    []string{"kite", "lakefront"},
	}}
	f.leads.On("GenerateLeads", mock.Anything, mock.MatchedBy(func(s model.Strategy) bool {
		return s.Guidance == strat1.Guidance
	})).Return(testLeads(), 0.005, nil).Once()
	f.leads.On("GenerateLeads", mock.Anything, mock.MatchedBy(func(s model.Strategy) bool {
		return s.Guidance == strat2.Guidance
	})).Return(leads2, 0.005, nil).Once()

	f.evidence.On("GatherEvidence", mock.Anything, mock.Anything).
		Return(testBundles()[0], 0.001, nil)

	cycle1Scores := []model.ScoredEvent{
		{Title: "May Day Labor March", Date: "2026-05-01", Score: 75},
		{Title: "Harbor Lantern Festival", Date: "2026-05-02", Score: 72},
		{Title: "Parking Lot Ribbon Cutting", Date: "2026-05-03", Score: 40},
	}
	cycle2Scores := []model.ScoredEvent{
		{Title: "Lakefront Kite Festival", Date: "2026-05-04", Score: 75},
	}
	f.scores.On("ScoreEvents", mock.Anything, mock.Anything, mock.Anything).
		Return(cycle1Scores, 0.02, nil).Once()
	f.scores.On("ScoreEvents", mock.Anything, mock.Anything, mock.Anything).
		Return(cycle2Scores, 0.02, nil).Once()

	state, err := f.pipeline.Run(ctx, testRequest())

	require.NoError(t, err)
	require.NotNil(t, state.Decision)
	assert.Equal(t, model.VerdictAccept, state.Decision.Verdict)
	assert.Equal(t, "max cycles reached", state.Decision.Notes)
	assert.Equal(t, 2, state.Cycle)
	require.Len(t, state.Curated, 1)
	assert.Equal(t, "Lakefront Kite Festival", state.Curated[0].Title)

	f.strategy.AssertExpectations(t)
	f.leads.AssertExpectations(t)
	f.scores.AssertExpectations(t)
}

func TestPipeline_NeverExceedsCycleCeiling(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(3, 0.50, nil)
	f.expectHappyStore()

	// Every cycle comes back empty; the run must still terminate in
	// exactly three passes with a forced accept, never a retry.
	f.strategy.On("GenerateStrategy", mock.Anything, mock.Anything, mock.Anything).
		Return(testStrategy(), 0.01, nil)
	f.leads.On("GenerateLeads", mock.Anything, mock.Anything).
		Return([]model.Lead{}, 0.005, nil)

	state, err := f.pipeline.Run(ctx, testRequest())

	require.NoError(t, err)
	require.NotNil(t, state.Decision)
	assert.Equal(t, model.VerdictAccept, state.Decision.Verdict)
	assert.Equal(t, "max cycles reached", state.Decision.Notes)
	assert.Equal(t, 3, state.Cycle)
	assert.Empty(t, state.Curated)

	f.strategy.AssertNumberOfCalls(t, "GenerateStrategy", 3)
	f.evidence.AssertNotCalled(t, "GatherEvidence", mock.Anything, mock.Anything)
	f.scores.AssertNotCalled(t, "ScoreEvents", mock.Anything, mock.Anything, mock.Anything)
	f.store.AssertNotCalled(t, "SaveEvents", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_BudgetShortCircuitsToGate(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(3, 0.01, nil)
	f.expectHappyStore()

	f.strategy.On("GenerateStrategy", mock.Anything, mock.Anything, mock.Anything).
		Return(testStrategy(), 0.02, nil).Once()

	state, err := f.pipeline.Run(ctx, testRequest())

	require.NoError(t, err)
	require.NotNil(t, state.Decision)
	assert.Equal(t, model.VerdictAccept, state.Decision.Verdict)
	assert.Equal(t, "budget ceiling reached", state.Decision.Notes)
	assert.Equal(t, 1, state.Cycle)

	// Planning blew the ceiling, so nothing downstream may spend.
	f.leads.AssertNotCalled(t, "GenerateLeads", mock.Anything, mock.Anything)

	var budgetErr *model.StageError
	for i := range state.Errors {
		if state.Errors[i].Kind == model.ErrorKindBudget {
			budgetErr = &state.Errors[i]
		}
	}
	require.NotNil(t, budgetErr)
	assert.Equal(t, StagePlanner, budgetErr.Stage)
}

func TestPipeline_DeadEvidenceBackendStillTerminates(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(3, 0.50, nil)
	f.expectHappyStore()

	f.strategy.On("GenerateStrategy", mock.Anything, mock.Anything, mock.Anything).
		Return(testStrategy(), 0.01, nil)
	f.leads.On("GenerateLeads", mock.Anything, mock.Anything).
		Return(testLeads(), 0.005, nil)
	f.evidence.On("GatherEvidence", mock.Anything, mock.Anything).
		Return(model.EvidenceBundle{}, 0.0, errors.New("search backend down"))
	f.scores.On("ScoreEvents", mock.Anything, mock.Anything, mock.Anything).
		Return([]model.ScoredEvent{}, 0.02, nil)

	done := make(chan struct{})
	var state *model.PipelineState
	var err error
	go func() {
		state, err = f.pipeline.Run(ctx, testRequest())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("run did not terminate with a failing evidence backend")
	}

	require.NoError(t, err)
	require.NotNil(t, state.Decision)
	assert.Equal(t, model.VerdictAccept, state.Decision.Verdict)
	assert.Empty(t, state.Curated)
	assert.NotEmpty(t, state.Errors)
	for _, e := range state.Errors {
		assert.Equal(t, model.ErrorKindCollaborator, e.Kind)
	}
}

func TestPipeline_SecondRunOverSharedCacheIsFree(t *testing.T) {
	ctx := context.Background()
	shared := newTestCache()

	first := newPipelineFixture(3, 0.50, shared)
	first.expectHappyStore()
	first.strategy.On("GenerateStrategy", mock.Anything, mock.Anything, mock.Anything).
		Return(testStrategy(), 0.01, nil)
	first.leads.On("GenerateLeads", mock.Anything, mock.Anything).
		Return(testLeads(), 0.005, nil)
	first.evidence.On("GatherEvidence", mock.Anything, mock.Anything).
		Return(testBundles()[0], 0.001, nil)
	first.scores.On("ScoreEvents", mock.Anything, mock.Anything, mock.Anything).
		Return(viableEvents(6, 85), 0.02, nil)

	state1, err := first.pipeline.Run(ctx, testRequest())
	require.NoError(t, err)
	require.Equal(t, model.VerdictAccept, state1.Decision.Verdict)
	require.Positive(t, state1.TotalCost)

	// Same request against the same cache: no collaborator mocks are
	// configured at all, so any external call would fail the test.
	second := newPipelineFixture(3, 0.50, shared)
	second.expectHappyStore()

	state2, err := second.pipeline.Run(ctx, testRequest())

	require.NoError(t, err)
	assert.Equal(t, model.VerdictAccept, state2.Decision.Verdict)
	assert.Zero(t, state2.TotalCost)
	assert.Zero(t, second.tracker.Spent())
	require.Len(t, state2.Curated, len(state1.Curated))
	assert.Equal(t, state1.Curated[0].Title, state2.Curated[0].Title)
}

func TestPipeline_FatalStageEndsWithErrorVerdict(t *testing.T) {
	ctx := context.Background()
	st := new(mockStore)
	st.On("CreateRun", mock.Anything, mock.Anything).
		Return(&model.Run{ID: "run-001"}, nil)
	st.On("UpdateRunStatus", mock.Anything, "run-001", model.RunStatusRunning).Return(nil)
	st.On("CompleteRun", mock.Anything, "run-001", mock.MatchedBy(func(r *model.RunResult) bool {
		return r.Verdict == model.VerdictError
	})).Return(nil)

	broken := &stubStage{name: StagePlanner, process: func(_ context.Context, s *model.PipelineState) *model.PipelineState {
		out := s.Clone()
		out.RecordError(StagePlanner, model.ErrorKindFatal, errors.New("no strategy from source and no default"))
		return out
	}}
	reached := false
	next := &stubStage{name: StageProspector, process: func(_ context.Context, s *model.PipelineState) *model.PipelineState {
		reached = true
		return s
	}}

	p := New(Config{MaxCycles: 3, Gate: gate.DefaultConfig()}, st, budget.NewTracker(0.50), broken, next)
	state, err := p.Run(ctx, testRequest())

	require.NoError(t, err)
	require.NotNil(t, state.Decision)
	assert.Equal(t, model.VerdictError, state.Decision.Verdict)
	assert.Contains(t, state.Decision.Notes, "fatal error in planner")
	assert.False(t, reached, "no stage runs after a fatal error")
	st.AssertExpectations(t)
}

func TestPipeline_CreateRunFailure(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(3, 0.50, nil)
	f.store.On("CreateRun", mock.Anything, mock.Anything).
		Return(nil, errors.New("disk full"))

	state, err := f.pipeline.Run(ctx, testRequest())

	require.Error(t, err)
	assert.Nil(t, state)
	assert.Contains(t, err.Error(), "pipeline: create run")
	f.strategy.AssertNotCalled(t, "GenerateStrategy", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_StoreWriteFailuresDoNotAbort(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(1, 0.50, nil)
	f.store.On("CreateRun", mock.Anything, mock.Anything).
		Return(&model.Run{ID: "run-001"}, nil)
	f.store.On("UpdateRunStatus", mock.Anything, "run-001", mock.Anything).
		Return(errors.New("connection reset"))
	f.store.On("CompleteRun", mock.Anything, "run-001", mock.Anything).
		Return(errors.New("connection reset"))
	f.store.On("SaveEvents", mock.Anything, "run-001", mock.Anything).
		Return(errors.New("connection reset"))

	f.strategy.On("GenerateStrategy", mock.Anything, mock.Anything, mock.Anything).
		Return(testStrategy(), 0.01, nil)
	f.leads.On("GenerateLeads", mock.Anything, mock.Anything).
		Return(testLeads(), 0.005, nil)
	f.evidence.On("GatherEvidence", mock.Anything, mock.Anything).
		Return(testBundles()[0], 0.001, nil)
	f.scores.On("ScoreEvents", mock.Anything, mock.Anything, mock.Anything).
		Return(viableEvents(6, 85), 0.02, nil)

	state, err := f.pipeline.Run(ctx, testRequest())

	require.NoError(t, err, "history writes are advisory, the run result is not")
	require.NotNil(t, state.Decision)
	assert.Equal(t, model.VerdictAccept, state.Decision.Verdict)
}

func TestPipeline_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newPipelineFixture(3, 0.50, nil)
	f.expectHappyStore()

	state, err := f.pipeline.Run(ctx, testRequest())

	require.NoError(t, err)
	require.NotNil(t, state.Decision)
	assert.Equal(t, model.VerdictError, state.Decision.Verdict)
	assert.Equal(t, "run cancelled", state.Decision.Notes)
	f.strategy.AssertNotCalled(t, "GenerateStrategy", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_MaxCyclesFloorOfOne(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(0, 0.50, nil)
	f.expectHappyStore()

	f.strategy.On("GenerateStrategy", mock.Anything, mock.Anything, mock.Anything).
		Return(testStrategy(), 0.01, nil)
	f.leads.On("GenerateLeads", mock.Anything, mock.Anything).
		Return([]model.Lead{}, 0.005, nil)

	state, err := f.pipeline.Run(ctx, testRequest())

	require.NoError(t, err)
	assert.Equal(t, 1, state.Cycle)
	assert.Equal(t, model.VerdictAccept, state.Decision.Verdict)
	assert.Equal(t, "max cycles reached", state.Decision.Notes)
}

// --- Feedback ---

func TestFeedbackFromDecision(t *testing.T) {
	d := model.Decision{Verdict: model.VerdictRetry, Notes: "2 viable events, need 5 at score >= 70", ViableCount: 2, TopScore: 75}
	curated := []model.ScoredEvent{
		{Title: "Keeper A", Score: 75},
		{Title: "Keeper B", Score: 72},
		{Title: "Reject 1", Score: 60},
		{Title: "Reject 2", Score: 55},
		{Title: "Reject 3", Score: 50},
		{Title: "Reject 4", Score: 45},
		{Title: "Reject 5", Score: 40},
		{Title: "Reject 6", Score: 35},
	}

	fb := feedbackFromDecision(d, curated, gate.DefaultConfig())

	assert.Equal(t, d.Notes, fb.Notes)
	assert.Equal(t, 2, fb.ViableCount)
	assert.Equal(t, 75, fb.TopScore)
	require.Len(t, fb.RejectedTitles, maxRejectedTitles)
	assert.Equal(t, "Reject 1", fb.RejectedTitles[0])
	assert.NotContains(t, fb.RejectedTitles, "Keeper A")
	assert.NotContains(t, fb.RejectedTitles, "Reject 6")
}

func TestBuildRunResult_NoDecision(t *testing.T) {
	state := testState()
	state.TotalCost = 0.05

	result := buildRunResult(state, 1500*time.Millisecond)

	assert.Empty(t, result.Verdict)
	assert.Equal(t, int64(1500), result.DurationMS)
	assert.InDelta(t, 0.05, result.TotalCost, 1e-9)
}
