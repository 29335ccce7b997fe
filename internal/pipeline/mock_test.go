package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/event-scout/internal/model"
	"github.com/sells-group/event-scout/internal/store"
)

// --- Strategy Source Mock ---

type mockStrategySource struct {
	mock.Mock
}

func (m *mockStrategySource) GenerateStrategy(ctx context.Context, req model.DiscoveryRequest, prior *model.Feedback) (*model.Strategy, float64, error) {
	args := m.Called(ctx, req, prior)
	var strat *model.Strategy
	if args.Get(0) != nil {
		strat = args.Get(0).(*model.Strategy)
	}
	return strat, args.Get(1).(float64), args.Error(2)
}

// --- Lead Source Mock ---

type mockLeadSource struct {
	mock.Mock
}

func (m *mockLeadSource) GenerateLeads(ctx context.Context, strat model.Strategy) ([]model.Lead, float64, error) {
	args := m.Called(ctx, strat)
	var leads []model.Lead
	if args.Get(0) != nil {
		leads = args.Get(0).([]model.Lead)
	}
	return leads, args.Get(1).(float64), args.Error(2)
}

// --- Evidence Source Mock ---

type mockEvidenceSource struct {
	mock.Mock
}

func (m *mockEvidenceSource) GatherEvidence(ctx context.Context, lead model.Lead) (model.EvidenceBundle, float64, error) {
	args := m.Called(ctx, lead)
	var bundle model.EvidenceBundle
	if args.Get(0) != nil {
		bundle = args.Get(0).(model.EvidenceBundle)
	}
	return bundle, args.Get(1).(float64), args.Error(2)
}

// --- Score Source Mock ---

type mockScoreSource struct {
	mock.Mock
}

func (m *mockScoreSource) ScoreEvents(ctx context.Context, evidence []model.EvidenceBundle, strat model.Strategy) ([]model.ScoredEvent, float64, error) {
	args := m.Called(ctx, evidence, strat)
	var events []model.ScoredEvent
	if args.Get(0) != nil {
		events = args.Get(0).([]model.ScoredEvent)
	}
	return events, args.Get(1).(float64), args.Error(2)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateRun(ctx context.Context, req model.DiscoveryRequest) (*model.Run, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	args := m.Called(ctx, runID, status)
	return args.Error(0)
}

func (m *mockStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	args := m.Called(ctx, runID, result)
	return args.Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) SaveEvents(ctx context.Context, runID string, events []model.ScoredEvent) error {
	args := m.Called(ctx, runID, events)
	return args.Error(0)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Stub Stage ---

// stubStage lets orchestrator tests script a stage's behavior directly.
type stubStage struct {
	name    string
	process func(ctx context.Context, state *model.PipelineState) *model.PipelineState
}

func (s *stubStage) Name() string { return s.name }

func (s *stubStage) Process(ctx context.Context, state *model.PipelineState) *model.PipelineState {
	if s.process == nil {
		return state
	}
	return s.process(ctx, state)
}

func (s *stubStage) Validate(*model.PipelineState) bool { return true }

// --- Interface Compliance ---

var (
	_ StrategySource = (*mockStrategySource)(nil)
	_ LeadSource     = (*mockLeadSource)(nil)
	_ EvidenceSource = (*mockEvidenceSource)(nil)
	_ ScoreSource    = (*mockScoreSource)(nil)
	_ store.Store    = (*mockStore)(nil)
	_ Stage          = (*stubStage)(nil)
	_ Stage          = (*Planner)(nil)
	_ Stage          = (*Prospector)(nil)
	_ Stage          = (*Verifier)(nil)
	_ Stage          = (*Curator)(nil)
)
