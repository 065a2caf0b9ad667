package pfpbuilder

import (
	"context"
	"runtime"
	"time"
)

// ProgressState is a snapshot of a running batch.
type ProgressState struct {
	Current   int
	Total     int
	Elapsed   time.Duration
	Remaining time.Duration
}

// ProgressFunc receives progress after every batch. Current never
// decreases and never exceeds Total.
type ProgressFunc func(ProgressState)

// Yielder is the point where the orchestrator hands control back to its
// host between batches. A non-nil error stops the run.
type Yielder interface {
	Yield(ctx context.Context) error
}

// YieldFunc adapts a function to Yielder.
type YieldFunc func(ctx context.Context) error

func (f YieldFunc) Yield(ctx context.Context) error { return f(ctx) }

// GoschedYielder lets other goroutines run and reports cancellation.
type GoschedYielder struct{}

func (GoschedYielder) Yield(ctx context.Context) error {
	runtime.Gosched()
	return ctx.Err()
}

type progressTracker struct {
	total   int
	current int
	start   time.Time
	now     func() time.Time
	report  ProgressFunc
}

func newProgressTracker(total int, now func() time.Time, report ProgressFunc) *progressTracker {
	return &progressTracker{total: total, start: now(), now: now, report: report}
}

// advance moves the counter to done and reports it. Calls that would not
// move forward are dropped.
func (p *progressTracker) advance(done int) {
	done = min(done, p.total)
	if done <= p.current {
		return
	}
	p.current = done
	if p.report == nil {
		return
	}
	p.report(p.snapshot())
}

func (p *progressTracker) snapshot() ProgressState {
	elapsed := p.now().Sub(p.start)
	var remaining time.Duration
	if p.current > 0 {
		per := elapsed / time.Duration(p.current)
		remaining = per * time.Duration(p.total-p.current)
	}
	return ProgressState{
		Current:   p.current,
		Total:     p.total,
		Elapsed:   elapsed,
		Remaining: remaining,
	}
}
