package models

import "time"

// ErrorKind is the semantic category of a recorded data-level error
type ErrorKind string

const (
	ErrInvalidInput       ErrorKind = "INVALID_INPUT"
	ErrToleranceExhausted ErrorKind = "TOLERANCE_EXHAUSTED"
	ErrGraphIsolated      ErrorKind = "GRAPH_ISOLATED"
	ErrCapacity           ErrorKind = "CAPACITY"
	ErrCancelled          ErrorKind = "CANCELLED"
)

// maxSampleIDs caps how many offending record ids are kept per error kind
const maxSampleIDs = 20

// PassCounters records what a single preprocessing pass did
type PassCounters struct {
	Pass            int `json:"pass"`
	Flattened       int `json:"flattened"`
	Invalid         int `json:"invalid"`
	SelfIntersected int `json:"self_intersected"`
	Empty           int `json:"empty"`
	TooShort        int `json:"too_short"`
	WrongType       int `json:"wrong_type"`
	Duplicates      int `json:"duplicates"`
	Introduced      int `json:"introduced"`
}

// NetChange reports how many records the pass introduced minus removed
func (p PassCounters) NetChange() int {
	removed := p.Flattened + p.Invalid + p.SelfIntersected + p.Empty + p.TooShort + p.WrongType + p.Duplicates
	return p.Introduced - removed
}

// StageTiming records wall-clock duration of one pipeline stage
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// RunSummary aggregates data-level errors, timings and per-pattern counts for
// a single pipeline run. Data-level failures never abort the run; they land
// here and are surfaced to the caller alongside the outputs.
type RunSummary struct {
	Region    string    `json:"region"`
	StartedAt time.Time `json:"started_at"`

	ErrorCounts map[ErrorKind]int      `json:"error_counts"`
	SampleIDs   map[ErrorKind][]string `json:"sample_ids"`

	Passes       []PassCounters `json:"passes,omitempty"`
	StageTimings []StageTiming  `json:"stage_timings"`

	TrailsIn     int `json:"trails_in"`
	TrailsClean  int `json:"trails_clean"`
	Segments     int `json:"segments"`
	Vertices     int `json:"vertices"`
	Edges        int `json:"edges"`
	Components   int `json:"components"`
	DroppedEdges int `json:"dropped_edges"`

	RoutesPerPattern map[string]int `json:"routes_per_pattern"`

	Cancelled bool `json:"cancelled"`
}

// NewRunSummary creates an empty summary for a region
func NewRunSummary(region string) *RunSummary {
	return &RunSummary{
		Region:           region,
		StartedAt:        time.Now().UTC(),
		ErrorCounts:      make(map[ErrorKind]int),
		SampleIDs:        make(map[ErrorKind][]string),
		RoutesPerPattern: make(map[string]int),
	}
}

// Record counts one data-level error, keeping at most 20 sample ids per kind
func (s *RunSummary) Record(kind ErrorKind, id string) {
	s.ErrorCounts[kind]++
	if id != "" && len(s.SampleIDs[kind]) < maxSampleIDs {
		s.SampleIDs[kind] = append(s.SampleIDs[kind], id)
	}
}

// Timing appends a stage timing entry
func (s *RunSummary) Timing(stage string, d time.Duration) {
	s.StageTimings = append(s.StageTimings, StageTiming{Stage: stage, Duration: d})
}
