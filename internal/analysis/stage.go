package analysis

import (
	"context"
	"time"
)

// Stage is one bounded analysis step. Run never returns a hard error for
// collaborator failures; those are recorded in StageResult.Err and the
// pipeline continues (soft-error policy).
type Stage interface {
	Name() string
	Run(ctx context.Context, sc StageContext) StageResult
}

// StageContext carries upstream outputs into a dependent stage. The three
// fields are always non-nil when handed to the synthesis stage, even when the
// upstream stages failed; an all-error run still yields well-formed empty
// results.
type StageContext struct {
	Market     *StageResult
	Competitor *StageResult
	Trend      *StageResult
}

// StageResult summarizes one stage execution
type StageResult struct {
	Stage     string
	Persisted int
	Skipped   int
	// Digest is the stage's structured summary text, consumed by synthesis
	Digest      string
	KeyInsights []string
	Duration    time.Duration
	// Err is the soft error that degraded this stage, nil on success
	Err error
}

// Succeeded reports whether the stage produced a usable result
func (r *StageResult) Succeeded() bool {
	return r.Err == nil
}

// emptyResult builds a well-formed zero-item result for a stage that has not
// run or whose execution failed before producing output
func emptyResult(stage string, err error) StageResult {
	return StageResult{Stage: stage, Err: err}
}
