package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDocuments is returned when the documents root holds no loadable
	// document.
	ErrNoDocuments = errors.New("no documents found")

	// ErrEmptyCorpus is returned when the loaded documents produce no chunks.
	ErrEmptyCorpus = errors.New("documents are empty after splitting")

	// ErrRunning is returned when Run is called while a run is in progress.
	ErrRunning = errors.New("ingestion already running")
)

// StepError reports the step an ingestion run failed in.
type StepError struct {
	State State
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("ingestion failed while %s: %v", e.State, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
