package classify

import (
	"fmt"

	"github.com/maxvaer/wafpierce/internal/scanner"
)

// sizeRule fires when the body size moved more than threshold percent away
// from the baseline. An empty baseline body never triggers it.
type sizeRule struct {
	threshold float64 // percent
}

func (sizeRule) Name() string { return "size" }

func (r sizeRule) Match(resp *scanner.Response, base *Baseline) (scanner.Verdict, bool) {
	diff := abs64(resp.ContentLength - base.Size)
	pct := diffPercent(diff, base.Size)
	if pct <= r.threshold {
		return scanner.Verdict{}, false
	}
	return scanner.Verdict{
		Bypass:   true,
		Reason:   fmt.Sprintf("content difference: %d bytes (%.1f%% change)", diff, pct),
		Severity: scanner.SeverityHigh,
	}, true
}

// hashRule fires on different content whose size differs by more than
// minDelta bytes.
type hashRule struct {
	minDelta int64
}

func (hashRule) Name() string { return "hash" }

func (r hashRule) Match(resp *scanner.Response, base *Baseline) (scanner.Verdict, bool) {
	if resp.BodyHash == base.Hash || abs64(resp.ContentLength-base.Size) <= r.minDelta {
		return scanner.Verdict{}, false
	}
	return scanner.Verdict{
		Bypass:   true,
		Reason:   "different content returned (hash mismatch)",
		Severity: scanner.SeverityHigh,
	}, true
}

func diffPercent(diff, base int64) float64 {
	if base <= 0 {
		return 0
	}
	return float64(diff) / float64(base) * 100
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
