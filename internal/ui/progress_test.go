package ui

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestProgressTracker_ProgressRateETA(t *testing.T) {
	// Given: applying 10 documents
	clock := &fakeClock{t: time.Unix(1000, 0)}
	p := newProgressTracker(clock.now)
	p.SetStage(StageApplying, 10)

	// When: 5 are done after 10 seconds
	clock.advance(10 * time.Second)
	p.Update(5, 0, "b.md")
	s := p.Stats()

	// Then: half done at 0.5 docs/s with about 10s left
	assert.Equal(t, StageApplying, s.Stage)
	assert.InDelta(t, 0.5, s.Progress, 0.001)
	assert.InDelta(t, 0.5, s.Rate, 0.001)
	assert.Equal(t, 10*time.Second, s.ETA)
	assert.Equal(t, "b.md", s.CurrentFile)
}

func TestProgressTracker_ETASmoothed(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	p := newProgressTracker(clock.now)
	p.SetStage(StageApplying, 10)

	clock.advance(10 * time.Second)
	p.Update(5, 0, "")
	first := p.Stats().ETA

	// A sudden speed-up moves the estimate only part of the way
	p.Update(9, 0, "")
	second := p.Stats().ETA
	elapsed := 10 * time.Second
	raw := time.Duration(float64(elapsed)/0.9) - elapsed
	assert.Less(t, second, first)
	assert.Greater(t, second, raw)
}

func TestProgressTracker_ClampsAndResets(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageApplying, 2)
	p.Update(5, 0, "x")
	assert.Equal(t, 1.0, p.Stats().Progress)
	assert.Zero(t, p.Stats().ETA)

	p.SetStage(StagePersisting, 0)
	s := p.Stats()
	assert.Zero(t, s.Progress)
	assert.Empty(t, s.CurrentFile)
}

func TestProgressTracker_ErrorsAndWarnings(t *testing.T) {
	p := NewProgressTracker()
	p.AddError(ErrorEvent{File: "a", Err: errors.New("x")})
	p.AddError(ErrorEvent{File: "b", Err: errors.New("y"), IsWarn: true})

	s := p.Stats()
	assert.Equal(t, 1, s.ErrorCount)
	assert.Equal(t, 1, s.WarnCount)
	assert.Len(t, p.Errors(), 1)
}

func TestProgressTracker_Concurrent(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageApplying, 100)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				p.Update(i*j%100, 0, "f")
				_ = p.Stats()
			}
		}()
	}
	wg.Wait()
}
