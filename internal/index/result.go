package index

import (
	"time"
)

// State is the phase of a synchronization run.
type State int

const (
	StateScanning State = iota
	StateDiffing
	StateApplying
	StatePersisting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateDiffing:
		return "diffing"
	case StateApplying:
		return "applying"
	case StatePersisting:
		return "persisting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Mode selects incremental or full synchronization.
type Mode int

const (
	ModeUpdate Mode = iota
	ModeRebuild
)

func (m Mode) String() string {
	if m == ModeRebuild {
		return "rebuild"
	}
	return "update"
}

// Failure is a document whose apply step failed. Its manifest entry keeps
// the previous digest, or stays absent, so the next run retries it.
type Failure struct {
	Path string
	Err  error
}

// Result summarizes a run.
type Result struct {
	Mode  Mode
	State State

	Added     []string
	Updated   []string
	Removed   []string
	Unchanged []string

	// Skipped are manifest paths left untouched because they could not be read.
	Skipped []string

	Failed     []Failure
	ReadErrors []error

	// Chunks is the number of chunks written to the store.
	Chunks int

	// EmbedCalls counts requests made to the embedder.
	EmbedCalls int

	// Mutations counts store write and delete calls.
	Mutations int

	// ManifestSaved is false when the manifest was already up to date.
	ManifestSaved bool

	Duration time.Duration
}

// OK reports whether the run finished and every document was applied.
func (r *Result) OK() bool {
	return r.State == StateDone && len(r.Failed) == 0
}

// Event is a progress notification. Current and Total count documents within
// the current State.
type Event struct {
	State   State
	Current int
	Total   int
	Path    string
	Err     error
}
