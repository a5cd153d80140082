package models

import (
	"time"

	"github.com/google/uuid"
)

// Stage identifies where in the pipeline a URL's processing ended.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageExtract  Stage = "extract"
	StageValidate Stage = "validate"
	StagePersist  Stage = "persist"
)

// Failure records one non-success outcome with stage attribution. The order
// of failures in a report reflects completion order across workers and is
// not stable between runs.
type Failure struct {
	URL    BookURL `json:"url"`
	Stage  Stage   `json:"stage"`
	Reason string  `json:"reason"`
}

// RunReport aggregates the outcome of one pipeline run. It is mutated only
// by the runner's accumulator and is read-only once returned.
type RunReport struct {
	RunID     string    `json:"run_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	Discovered      int `json:"discovered"`
	FetchFailed     int `json:"fetch_failed"`
	ExtractedOK     int `json:"extracted_ok"`
	ExtractedFailed int `json:"extracted_failed"`
	ValidatedOK     int `json:"validated_ok"`
	ValidatedFailed int `json:"validated_failed"`
	PersistedOK     int `json:"persisted_ok"`
	PersistedFailed int `json:"persisted_failed"`

	Warnings []string  `json:"warnings,omitempty"`
	Failures []Failure `json:"failures,omitempty"`
}

// NewRunReport creates a report with a fresh run id.
func NewRunReport() *RunReport {
	return &RunReport{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}
}

// TotalFailed sums failures across all stages.
func (r *RunReport) TotalFailed() int {
	return r.FetchFailed + r.ExtractedFailed + r.ValidatedFailed + r.PersistedFailed
}

// AddFailure appends a failure and bumps the matching stage counter.
func (r *RunReport) AddFailure(url BookURL, stage Stage, reason string) {
	switch stage {
	case StageFetch:
		r.FetchFailed++
	case StageExtract:
		r.ExtractedFailed++
	case StageValidate:
		r.ValidatedFailed++
	case StagePersist:
		r.PersistedFailed++
	}
	r.Failures = append(r.Failures, Failure{URL: url, Stage: stage, Reason: reason})
}
