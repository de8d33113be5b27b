package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Progress tracks and displays scan progress on stderr.
type Progress struct {
	total     int
	completed atomic.Int64
	bypasses  atomic.Int64
	errors    atomic.Int64
	start     time.Time
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	quiet     bool
	out       io.Writer
	paused    func() bool
}

// NewProgress creates a progress tracker for total probes. Call Start to
// begin display updates.
func NewProgress(total int, quiet bool) *Progress {
	return &Progress{
		total: total,
		start: time.Now(),
		done:  make(chan struct{}),
		quiet: quiet,
		out:   os.Stderr,
	}
}

// SetPausedFunc makes the line show a paused marker while fn returns true.
func (p *Progress) SetPausedFunc(fn func() bool) {
	p.paused = fn
}

// Start begins periodically printing progress.
func (p *Progress) Start() {
	if p.quiet {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.print()
			case <-p.done:
				p.print()
				fmt.Fprint(p.out, "\n")
				return
			}
		}
	}()
}

// Increment records a completed probe.
func (p *Progress) Increment() {
	p.completed.Add(1)
}

// IncrementBypasses records a detected bypass.
func (p *Progress) IncrementBypasses() {
	p.bypasses.Add(1)
}

// IncrementErrors records a skipped probe.
func (p *Progress) IncrementErrors() {
	p.errors.Add(1)
}

// Stop ends the progress display and waits for the final line. It is safe
// to call more than once.
func (p *Progress) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}

func (p *Progress) print() {
	fmt.Fprint(p.out, p.line())
}

func (p *Progress) line() string {
	completed := p.completed.Load()
	elapsed := time.Since(p.start).Seconds()
	rate := float64(0)
	if elapsed > 0 {
		rate = float64(completed) / elapsed
	}

	pct := float64(0)
	if p.total > 0 {
		pct = float64(completed) / float64(p.total) * 100
	}

	eta := ""
	if rate > 0 && completed < int64(p.total) {
		remaining := float64(int64(p.total)-completed) / rate
		eta = fmt.Sprintf("ETA: %s", time.Duration(remaining*float64(time.Second)).Round(time.Second))
	}
	if p.paused != nil && p.paused() {
		eta = "PAUSED (press Enter to resume)"
	}

	return fmt.Sprintf("\r\033[K[%3.0f%%] %d/%d | %.1f req/s | Bypasses: %d | Errors: %d | %s",
		pct, completed, p.total, rate,
		p.bypasses.Load(), p.errors.Load(), eta)
}
