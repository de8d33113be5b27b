package scanner

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/maxvaer/wafpierce/internal/scanerr"
)

func TestThrottlerDisabledKeepsBaseDelay(t *testing.T) {
	th := NewThrottler(200*time.Millisecond, false, nil)
	th.RecordStatus(429)
	th.RecordError(scanerr.New(scanerr.RateLimit, "slow down"))
	assert.Equal(t, 200*time.Millisecond, th.Delay())
}

func TestThrottlerBacksOffOnStatus(t *testing.T) {
	th := NewThrottler(100*time.Millisecond, true, nil)

	th.RecordStatus(503)
	assert.Equal(t, 500*time.Millisecond, th.Delay(), "floor applies on first signal")
	th.RecordStatus(429)
	assert.Equal(t, time.Second, th.Delay())

	th.RecordStatus(200)
	assert.Equal(t, 500*time.Millisecond, th.Delay())
	th.RecordStatus(200)
	assert.Equal(t, 500*time.Millisecond, th.Delay(), "recovery needs a fresh signal")
}

func TestThrottlerCapsDelay(t *testing.T) {
	th := NewThrottler(20*time.Second, true, nil)
	th.RecordStatus(429)
	th.RecordStatus(429)
	assert.Equal(t, 30*time.Second, th.Delay())
}

func TestThrottlerRateLimitErrorBacksOffImmediately(t *testing.T) {
	th := NewThrottler(0, true, nil)
	th.RecordError(scanerr.New(scanerr.RateLimit, "rate limit exceeded"))
	assert.Equal(t, 500*time.Millisecond, th.Delay())
}

func TestThrottlerNetworkErrorsNeedThree(t *testing.T) {
	th := NewThrottler(0, true, nil)
	reset := scanerr.Wrap(scanerr.TargetUnreachable, errors.New("connection reset"), "target unreachable")

	th.RecordError(reset)
	th.RecordError(reset)
	assert.Zero(t, th.Delay())
	th.RecordError(reset)
	assert.Equal(t, 500*time.Millisecond, th.Delay())
}
