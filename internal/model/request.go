package model

// DiscoveryRequest describes what the caller wants discovered. It is set
// once at run start and never mutated by the pipeline.
type DiscoveryRequest struct {
	Query     string   `json:"query"`
	Location  string   `json:"location,omitempty"`
	TimeFrame string   `json:"time_frame,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

// Strategy is the planner's output for one cycle: where to look, when,
// and what to prioritize.
type Strategy struct {
	Location  string   `json:"location"`
	TimeFrame string   `json:"time_frame"`
	Interests []string `json:"interests"`
	Guidance  string   `json:"guidance"`
	Iteration int      `json:"iteration"`
	Fallback  bool     `json:"fallback,omitempty"` // defaults substituted after a failed generation
}

// Feedback carries the previous cycle's gate outcome back into planning
// so a retry strategy can correct course instead of repeating itself.
type Feedback struct {
	Notes          string   `json:"notes"`
	ViableCount    int      `json:"viable_count"`
	TopScore       int      `json:"top_score"`
	RejectedTitles []string `json:"rejected_titles,omitempty"`
}
