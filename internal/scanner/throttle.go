package scanner

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/maxvaer/wafpierce/internal/scanerr"
)

const (
	throttleFloor   = 500 * time.Millisecond
	throttleCeiling = 30 * time.Second
)

// Throttler owns the per-probe delay. With adaptive mode off it always
// returns the configured delay. With it on, a RateLimit error or a 503
// doubles the delay at once; three consecutive network errors do the same.
// Healthy responses halve it back toward the configured value.
type Throttler struct {
	mu           sync.Mutex
	baseDelay    time.Duration
	currentDelay time.Duration
	maxDelay     time.Duration
	consecutive  int // consecutive throttle signals
	enabled      bool
	logger       *zap.Logger
}

// NewThrottler creates a throttler around baseDelay.
func NewThrottler(baseDelay time.Duration, adaptive bool, logger *zap.Logger) *Throttler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Throttler{
		baseDelay:    baseDelay,
		currentDelay: baseDelay,
		maxDelay:     throttleCeiling,
		enabled:      adaptive,
		logger:       logger,
	}
}

// Delay returns the current per-probe delay.
func (t *Throttler) Delay() time.Duration {
	if !t.enabled {
		return t.baseDelay
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentDelay
}

// RecordStatus updates the throttler based on a response status code.
func (t *Throttler) RecordStatus(statusCode int) {
	if !t.enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if statusCode == 429 || statusCode == 503 {
		t.consecutive++
		t.backoffLocked("status", zap.Int("status", statusCode))
		return
	}
	if t.consecutive == 0 {
		return
	}
	t.consecutive = 0
	newDelay := max(t.currentDelay/2, t.baseDelay)
	if newDelay != t.currentDelay {
		t.currentDelay = newDelay
		t.logger.Info("Recovering from throttling", zap.Duration("delay", t.currentDelay))
	}
}

// RecordError flags a failed request. Rate limiting backs off immediately;
// other network errors only after three in a row.
func (t *Throttler) RecordError(err error) {
	if !t.enabled || err == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	kind := scanerr.KindOf(err)
	t.consecutive++
	if kind == scanerr.RateLimit || t.consecutive >= 3 {
		t.backoffLocked("error", zap.Stringer("kind", kind))
	}
}

func (t *Throttler) backoffLocked(signal string, field zap.Field) {
	newDelay := min(max(t.currentDelay*2, throttleFloor), t.maxDelay)
	if newDelay == t.currentDelay {
		return
	}
	t.currentDelay = newDelay
	t.logger.Warn("Target is throttling, backing off",
		zap.String("signal", signal), field,
		zap.Duration("delay", t.currentDelay))
}
