package ui

import (
	"sync"
	"time"
)

// ProgressTracker keeps progress state across stages.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu         sync.RWMutex
	stage      Stage
	current    int
	total      int
	entry      string
	startTime  time.Time
	stageStart time.Time
	errors     int
	warnings   int

	lastETA time.Duration
}

// ProgressStats is a snapshot of current progress.
type ProgressStats struct {
	Stage      Stage
	Current    int
	Total      int
	Progress   float64
	ETA        time.Duration
	Elapsed    time.Duration
	Entry      string
	ErrorCount int
	WarnCount  int
}

// NewProgressTracker creates a tracker positioned at StageParsing.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:      StageParsing,
		startTime:  now,
		stageStart: now,
	}
}

// SetStage transitions to a new stage and resets the counters.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
	p.total = total
	p.current = 0
	p.entry = ""
	p.stageStart = time.Now()
	p.lastETA = 0
}

// Update records progress within the current stage.
func (p *ProgressTracker) Update(current int, entry string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if entry != "" {
		p.entry = entry
	}
}

// AddError counts an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings++
	} else {
		p.errors++
	}
}

// Stats returns a snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := ProgressStats{
		Stage:      p.stage,
		Current:    p.current,
		Total:      p.total,
		Entry:      p.entry,
		Elapsed:    time.Since(p.startTime),
		ErrorCount: p.errors,
		WarnCount:  p.warnings,
	}
	if p.total > 0 {
		stats.Progress = float64(p.current) / float64(p.total)
		if stats.Progress > 1 {
			stats.Progress = 1
		}
	}
	stats.ETA = p.etaLocked()
	return stats
}

// etaLocked extrapolates the stage rate, smoothed so the estimate does not jump
// around between updates. Caller holds p.mu.
func (p *ProgressTracker) etaLocked() time.Duration {
	if p.total == 0 || p.current == 0 || p.current >= p.total {
		return 0
	}
	elapsed := time.Since(p.stageStart)
	perItem := elapsed / time.Duration(p.current)
	raw := perItem * time.Duration(p.total-p.current)

	if p.lastETA == 0 {
		p.lastETA = raw
		return raw
	}
	smoothed := time.Duration(0.3*float64(raw) + 0.7*float64(p.lastETA))
	p.lastETA = smoothed
	return smoothed
}
