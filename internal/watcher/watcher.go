package watcher

import (
	"time"
)

// Operation is the kind of change observed for a path.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	OpRename
	// OpRescan asks the consumer to re-scan everything. Emitted by the
	// polling fallback and when a new directory appears.
	OpRescan
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	case OpRescan:
		return "RESCAN"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is a change to a path relative to the watched root.
type FileEvent struct {
	Path      string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Filter decides which paths are relevant. Dir is consulted for directories
// before they are watched, File for file events. Nil funcs accept everything.
type Filter struct {
	File func(rel string) bool
	Dir  func(rel string) bool
}

func (f Filter) file(rel string) bool { return f.File == nil || f.File(rel) }
func (f Filter) dir(rel string) bool  { return f.Dir == nil || f.Dir(rel) }

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the watcher waits after the last event before
	// emitting a batch.
	Debounce time.Duration

	// PollInterval is the tick period of the polling fallback.
	PollInterval time.Duration

	// BufferSize is the capacity of the batch channel.
	BufferSize int

	Filter Filter
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		Debounce:     500 * time.Millisecond,
		PollInterval: 5 * time.Second,
		BufferSize:   16,
	}
}

// WithDefaults fills zero values from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.Debounce <= 0 {
		o.Debounce = d.Debounce
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.BufferSize <= 0 {
		o.BufferSize = d.BufferSize
	}
	return o
}
