package model

import (
	"fmt"
	"time"
)

// ErrorKind classifies a recorded pipeline error.
type ErrorKind string

const (
	ErrorKindCollaborator ErrorKind = "collaborator" // external service failed, stage degraded
	ErrorKindCache        ErrorKind = "cache"        // cache unavailable, treated as miss
	ErrorKindBudget       ErrorKind = "budget"       // spend crossed the ceiling
	ErrorKindFatal        ErrorKind = "fatal"        // unrecoverable, run ends with error verdict
)

// StageError is one recorded failure. Errors accumulate across cycles and
// are never removed; a run can finish accepted with a non-empty error list.
type StageError struct {
	Stage   string    `json:"stage"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Cycle   int       `json:"cycle"`
	At      time.Time `json:"at"`
}

// PipelineState is the single unit of data flowing through the pipeline.
// Request is immutable after construction. Strategy, Leads, Evidence and
// Curated are each owned by exactly one stage and replaced wholesale per
// cycle. Cycle and TotalCost only ever increase. Errors and Logs only
// ever grow.
type PipelineState struct {
	RunID     string           `json:"run_id"`
	Request   DiscoveryRequest `json:"request"`
	Strategy  *Strategy        `json:"strategy,omitempty"`
	Leads     []Lead           `json:"leads,omitempty"`
	Evidence  []EvidenceBundle `json:"evidence,omitempty"`
	Curated   []ScoredEvent    `json:"curated,omitempty"`
	Decision  *Decision        `json:"decision,omitempty"`
	Feedback  *Feedback        `json:"feedback,omitempty"`
	Cycle     int              `json:"cycle"`
	TotalCost float64          `json:"total_cost"`
	Errors    []StageError     `json:"errors,omitempty"`
	Logs      []string         `json:"logs,omitempty"`
	StartedAt time.Time        `json:"started_at"`
}

// NewPipelineState builds the initial state for a run.
func NewPipelineState(runID string, req DiscoveryRequest) *PipelineState {
	return &PipelineState{
		RunID:     runID,
		Request:   req,
		StartedAt: time.Now().UTC(),
	}
}

// Clone returns a copy whose slices are detached from the receiver, so a
// stage can replace its own field and append diagnostics without aliasing
// the input state.
func (s *PipelineState) Clone() *PipelineState {
	out := *s
	out.Leads = append([]Lead(nil), s.Leads...)
	out.Evidence = append([]EvidenceBundle(nil), s.Evidence...)
	out.Curated = append([]ScoredEvent(nil), s.Curated...)
	out.Errors = append([]StageError(nil), s.Errors...)
	out.Logs = append([]string(nil), s.Logs...)
	return &out
}

// AddCost accumulates spend. Negative amounts are ignored so TotalCost
// stays monotone no matter what a collaborator reports.
func (s *PipelineState) AddCost(amount float64) {
	if amount > 0 {
		s.TotalCost += amount
	}
}

// RecordError appends a classified error without interrupting the run.
func (s *PipelineState) RecordError(stage string, kind ErrorKind, err error) {
	if err == nil {
		return
	}
	s.Errors = append(s.Errors, StageError{
		Stage:   stage,
		Kind:    kind,
		Message: err.Error(),
		Cycle:   s.Cycle,
		At:      time.Now().UTC(),
	})
}

// Logf appends one timestamped line to the run log.
func (s *PipelineState) Logf(format string, args ...any) {
	line := fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
	s.Logs = append(s.Logs, line)
}

// FatalError reports whether any recorded error was fatal.
func (s *PipelineState) FatalError() *StageError {
	for i := range s.Errors {
		if s.Errors[i].Kind == ErrorKindFatal {
			return &s.Errors[i]
		}
	}
	return nil
}

// RunStatus represents the current state of a discovery run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one discovery request tracked in the history store.
type Run struct {
	ID        string           `json:"id"`
	Request   DiscoveryRequest `json:"request"`
	Status    RunStatus        `json:"status"`
	Result    *RunResult       `json:"result,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Verdict    Verdict       `json:"verdict"`
	Notes      string        `json:"notes"`
	Events     []ScoredEvent `json:"events"`
	Cycles     int           `json:"cycles"`
	TotalCost  float64       `json:"total_cost"`
	Errors     []StageError  `json:"errors,omitempty"`
	DurationMS int64         `json:"duration_ms"`
}
