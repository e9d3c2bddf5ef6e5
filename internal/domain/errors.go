package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying pipeline failures. Only ErrConfig aborts a
// run; everything else is contained at its stage.
var (
	ErrConfig     = errors.New("configuration error")
	ErrFetch      = errors.New("fetch error")
	ErrStoreRead  = errors.New("store read error")
	ErrStoreWrite = errors.New("store write error")
	ErrPublish    = errors.New("publish error")
)

// Stage identifies a pipeline phase for error attribution and logging.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageFetching    Stage = "fetching"
	StageNormalizing Stage = "normalizing"
	StageDeduping    Stage = "deduping"
	StagePersisting  Stage = "persisting"
	StagePublishing  Stage = "publishing"
	StageReporting   Stage = "reporting"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// StageError attributes an underlying error to the stage it occurred in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with its originating stage.
func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
