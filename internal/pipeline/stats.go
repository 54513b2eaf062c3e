package pipeline

import (
	"fmt"
	"time"

	"docsmith/internal/injector"
)

// FileError records a file whose processing failed.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

func (e FileError) Unwrap() error { return e.Err }

// Stats reports the outcome of a run.
type Stats struct {
	RunID    string
	DryRun   bool
	Duration time.Duration

	FilesScanned   int
	FilesUnchanged int
	FilesProcessed int
	FilesModified  int
	ParseFailures  int

	ChunksTotal        int
	ChunksInjected     int
	ChunksSkipped      int
	AnnotationFailures int
	ChunksIndexed      int

	// IndexDisabled is set when the embedder could not be reached at start.
	IndexDisabled bool

	Failures []FileError
	// Previews holds the per-file results that would have been written in a
	// dry run.
	Previews []injector.Result
}

func (s *Stats) addResult(r injector.Result) {
	s.ChunksInjected += r.Injected
	s.ChunksSkipped += r.Skipped()
	if r.Written {
		s.FilesModified++
	}
}
