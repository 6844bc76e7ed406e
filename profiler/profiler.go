// Package profiler - wall-clock timing for pipeline stages.
package profiler

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// TimeTracker tracks timing statistics for one stage.
type TimeTracker struct {
	name      string
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// Name returns the stage name.
func (t *TimeTracker) Name() string { return t.name }

// Count returns how many samples were recorded.
func (t *TimeTracker) Count() int64 { return t.count }

// Total returns the accumulated duration across all samples.
func (t *TimeTracker) Total() time.Duration { return t.totalTime }

// Min returns the shortest recorded sample.
func (t *TimeTracker) Min() time.Duration { return t.minTime }

// Max returns the longest recorded sample.
func (t *TimeTracker) Max() time.Duration { return t.maxTime }

// Average returns the mean sample duration.
func (t *TimeTracker) Average() time.Duration {
	if t.count == 0 {
		return 0
	}
	return t.totalTime / time.Duration(t.count)
}

// StageProfiler accumulates per-stage wall-clock timings.
//
// It is safe for concurrent use and cheap enough to leave attached in
// production; stages are reported in the order they were first
// recorded.
type StageProfiler struct {
	mu     sync.Mutex
	stages map[string]*TimeTracker
	order  []string
}

// NewStageProfiler creates an empty stage profiler.
func NewStageProfiler() *StageProfiler {
	return &StageProfiler{
		stages: make(map[string]*TimeTracker),
	}
}

// Record adds one timing sample for the named stage.
//
// Arguments:
// - stage: Stage identifier, e.g. "nms".
// - d: Wall-clock duration of this invocation of the stage.
func (p *StageProfiler) Record(stage string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, ok := p.stages[stage]
	if !ok {
		tracker = &TimeTracker{name: stage, minTime: d, maxTime: d}
		p.stages[stage] = tracker
		p.order = append(p.order, stage)
	}

	tracker.totalTime += d
	tracker.count++
	if d < tracker.minTime {
		tracker.minTime = d
	}
	if d > tracker.maxTime {
		tracker.maxTime = d
	}
}

// Stages returns the trackers in first-recorded order.
func (p *StageProfiler) Stages() []*TimeTracker {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*TimeTracker, 0, len(p.order))
	for _, name := range p.order {
		copied := *p.stages[name]
		out = append(out, &copied)
	}
	return out
}

// Reset discards all recorded samples.
func (p *StageProfiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stages = make(map[string]*TimeTracker)
	p.order = nil
}

// String renders a one-line-per-stage timing report.
func (p *StageProfiler) String() string {
	var b strings.Builder
	for _, t := range p.Stages() {
		fmt.Fprintf(&b, "%-16s count=%-6d total=%-12s avg=%-12s min=%-12s max=%s\n",
			t.Name(), t.Count(), t.Total(), t.Average(), t.Min(), t.Max())
	}
	return b.String()
}
