package model

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipelineState(t *testing.T) {
	t.Parallel()

	req := DiscoveryRequest{Query: "protests this weekend", Location: "Chicago, IL"}
	state := NewPipelineState("run-1", req)

	assert.Equal(t, "run-1", state.RunID)
	assert.Equal(t, req, state.Request)
	assert.Zero(t, state.Cycle)
	assert.Zero(t, state.TotalCost)
	assert.False(t, state.StartedAt.IsZero())
}

func TestPipelineStateClone(t *testing.T) {
	t.Parallel()

	state := NewPipelineState("run-1", DiscoveryRequest{Query: "q"})
	state.Leads = []Lead{{Description: "march downtown"}}
	state.Curated = []ScoredEvent{{Title: "May Day March", Score: 80}}
	state.Logs = []string{"first"}

	clone := state.Clone()
	clone.Leads[0].Description = "changed"
	clone.Curated = append(clone.Curated, ScoredEvent{Title: "added"})
	clone.Logs = append(clone.Logs, "second")

	assert.Equal(t, "march downtown", state.Leads[0].Description)
	assert.Len(t, state.Curated, 1)
	assert.Equal(t, []string{"first"}, state.Logs)
}

func TestPipelineStateAddCost(t *testing.T) {
	t.Parallel()

	state := NewPipelineState("run-1", DiscoveryRequest{Query: "q"})
	state.AddCost(0.01)
	state.AddCost(0.02)
	assert.InDelta(t, 0.03, state.TotalCost, 1e-9)

	// Negative and zero amounts never shrink the total.
	state.AddCost(-5)
	state.AddCost(0)
	assert.InDelta(t, 0.03, state.TotalCost, 1e-9)
}

func TestPipelineStateRecordError(t *testing.T) {
	t.Parallel()

	state := NewPipelineState("run-1", DiscoveryRequest{Query: "q"})
	state.Cycle = 2

	state.RecordError("verifying", ErrorKindCollaborator, eris.New("search down"))
	state.RecordError("verifying", ErrorKindCollaborator, nil)

	require.Len(t, state.Errors, 1)
	e := state.Errors[0]
	assert.Equal(t, "verifying", e.Stage)
	assert.Equal(t, ErrorKindCollaborator, e.Kind)
	assert.Equal(t, "search down", e.Message)
	assert.Equal(t, 2, e.Cycle)
	assert.False(t, e.At.IsZero())
}

func TestPipelineStateFatalError(t *testing.T) {
	t.Parallel()

	state := NewPipelineState("run-1", DiscoveryRequest{Query: "q"})
	assert.Nil(t, state.FatalError())

	state.RecordError("planning", ErrorKindCollaborator, eris.New("degraded"))
	assert.Nil(t, state.FatalError())

	state.RecordError("planning", ErrorKindFatal, eris.New("no strategy"))
	fatal := state.FatalError()
	require.NotNil(t, fatal)
	assert.Equal(t, "no strategy", fatal.Message)
}

func TestPipelineStateLogf(t *testing.T) {
	t.Parallel()

	state := NewPipelineState("run-1", DiscoveryRequest{Query: "q"})
	state.Logf("cycle %d: %d leads", 1, 25)

	require.Len(t, state.Logs, 1)
	assert.Contains(t, state.Logs[0], "cycle 1: 25 leads")
	assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2}T`, state.Logs[0])
}
