package ui

import (
	"sync"
	"time"
)

// etaSmoothing weights a new ETA sample against the previous estimate.
const etaSmoothing = 0.3

// stageProgress is the part of the tracker that SetStage resets.
type stageProgress struct {
	stage   Stage
	done    int
	total   int
	file    string
	started time.Time
	eta     time.Duration
}

// ProgressTracker holds the state shown by the TUI. It is safe for
// concurrent use.
type ProgressTracker struct {
	mu     sync.Mutex
	now    func() time.Time
	begin  time.Time
	cur    stageProgress
	issues []ErrorEvent
}

// ProgressStats is a snapshot of a ProgressTracker.
type ProgressStats struct {
	Stage       Stage
	Current     int
	Total       int
	Progress    float64
	Rate        float64
	ETA         time.Duration
	Elapsed     time.Duration
	CurrentFile string
	ErrorCount  int
	WarnCount   int
}

// NewProgressTracker creates a tracker in the scanning stage.
func NewProgressTracker() *ProgressTracker {
	return newProgressTracker(time.Now)
}

func newProgressTracker(now func() time.Time) *ProgressTracker {
	t := now()
	return &ProgressTracker{
		now:   now,
		begin: t,
		cur:   stageProgress{stage: StageScanning, started: t},
	}
}

// SetStage moves to stage and resets the per-stage counters.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	p.cur = stageProgress{stage: stage, total: total, started: p.now()}
	p.mu.Unlock()
}

// Update records progress within the current stage. A zero total keeps the
// previous one.
func (p *ProgressTracker) Update(current, total int, file string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cur.done = current
	if total > 0 {
		p.cur.total = total
	}
	if file != "" {
		p.cur.file = file
	}
}

// AddError records an error, or a warning when event.IsWarn is set.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	p.issues = append(p.issues, event)
	p.mu.Unlock()
}

// Stage returns the current stage.
func (p *ProgressTracker) Stage() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur.stage
}

// Errors returns the recorded errors, warnings excluded.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []ErrorEvent
	for _, e := range p.issues {
		if !e.IsWarn {
			out = append(out, e)
		}
	}
	return out
}

// Stats returns a snapshot. The ETA is smoothed across calls.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	c := &p.cur
	s := ProgressStats{
		Stage:       c.stage,
		Current:     c.done,
		Total:       c.total,
		Elapsed:     now.Sub(p.begin),
		CurrentFile: c.file,
	}
	for _, e := range p.issues {
		if e.IsWarn {
			s.WarnCount++
		} else {
			s.ErrorCount++
		}
	}

	if c.total > 0 {
		s.Progress = min(float64(c.done)/float64(c.total), 1.0)
	}
	inStage := now.Sub(c.started)
	if inStage > 0 && c.done > 0 {
		s.Rate = float64(c.done) / inStage.Seconds()
	}
	if s.Progress > 0 && s.Progress < 1 {
		if remaining := time.Duration(float64(inStage)/s.Progress) - inStage; remaining > 0 {
			c.eta = smooth(c.eta, remaining)
			s.ETA = c.eta
		}
	}
	return s
}

func smooth(prev, sample time.Duration) time.Duration {
	if prev == 0 {
		return sample
	}
	return time.Duration(etaSmoothing*float64(sample) + (1-etaSmoothing)*float64(prev))
}
