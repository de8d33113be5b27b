package classify

import (
	"context"
	"encoding/hex"
	"errors"

	"go.uber.org/zap"

	"github.com/maxvaer/wafpierce/internal/retry"
	"github.com/maxvaer/wafpierce/internal/scanerr"
	"github.com/maxvaer/wafpierce/internal/scanner"
)

// Baseline is the reference response every probe is compared against. It is
// captured once per scan and read-only afterwards.
type Baseline struct {
	StatusCode int               `json:"status"`
	Size       int64             `json:"size"`
	Hash       [16]byte          `json:"-"`
	Headers    map[string]string `json:"headers"` // lower-cased names
}

// HashHex returns the body hash as lower-case hex.
func (b *Baseline) HashHex() string {
	return hex.EncodeToString(b.Hash[:])
}

// FromResponse builds a baseline from an already fetched response.
func FromResponse(resp *scanner.Response) *Baseline {
	return &Baseline{
		StatusCode: resp.StatusCode,
		Size:       resp.ContentLength,
		Hash:       resp.BodyHash,
		Headers:    scanner.LowerHeaders(resp.Header),
	}
}

// Establish fetches the target root without any mutation and returns it as
// the baseline. Network failures and 429s are retried per cfg. A target
// that still answers 429 once attempts run out is rate-limiting the clean
// request, and that last response becomes the baseline. Any other final
// failure is returned as a BaselineFailed error wrapping the last cause.
func Establish(ctx context.Context, req scanner.Doer, cfg retry.Config, logger *zap.Logger) (*Baseline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	resp, err := retry.DoValue(ctx, cfg, func() (*scanner.Response, error) {
		return req.Do(ctx, scanner.ProbeSpec{Method: "GET", Path: "/", Technique: "baseline"})
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var statusErr *scanner.StatusError
		if !errors.As(err, &statusErr) || !errors.Is(err, scanerr.RateLimit) {
			return nil, scanerr.Wrap(scanerr.BaselineFailed, err, "failed to establish baseline")
		}
		logger.Warn("Baseline request is rate limited, using the 429 response as baseline",
			zap.Error(err))
		resp = statusErr.Response
	}

	b := FromResponse(resp)
	logger.Info("Baseline established",
		zap.Int("status", b.StatusCode),
		zap.Int64("size", b.Size),
		zap.String("hash", b.HashHex()))
	return b, nil
}
