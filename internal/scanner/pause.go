package scanner

import (
	"context"
	"sync"
	"time"
)

// Pauser is a cooperative pause/resume gate checked by the executor before
// every probe. When paused, Wait blocks until resumed or until its context
// ends. When not paused, Wait costs one mutex round trip.
type Pauser struct {
	mu          sync.Mutex
	cond        *sync.Cond
	paused      bool
	pausedSince time.Time
	totalPaused time.Duration
}

// NewPauser creates a Pauser in the running (unpaused) state.
func NewPauser() *Pauser {
	p := &Pauser{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Wait blocks the calling goroutine while the scan is paused. It returns
// ctx.Err() if the context ends first.
func (p *Pauser) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return ctx.Err()
	}

	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer stop()

	for p.paused && ctx.Err() == nil {
		p.cond.Wait()
	}
	return ctx.Err()
}

// Toggle flips between paused and running states.
// Returns the new paused state (true = now paused).
func (p *Pauser) Toggle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		p.totalPaused += time.Since(p.pausedSince)
		p.paused = false
		p.cond.Broadcast()
	} else {
		p.paused = true
		p.pausedSince = time.Now()
	}
	return p.paused
}

// Resume releases any waiters. It is a no-op when not paused.
func (p *Pauser) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		p.totalPaused += time.Since(p.pausedSince)
		p.paused = false
		p.cond.Broadcast()
	}
}

// IsPaused returns whether the scan is currently paused.
func (p *Pauser) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// PausedDuration returns the total accumulated time spent paused,
// including any ongoing pause.
func (p *Pauser) PausedDuration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.totalPaused
	if p.paused {
		d += time.Since(p.pausedSince)
	}
	return d
}

// CurrentPauseDuration returns how long the current pause has lasted.
// Returns 0 if not currently paused.
func (p *Pauser) CurrentPauseDuration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return 0
	}
	return time.Since(p.pausedSince)
}
