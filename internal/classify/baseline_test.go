package classify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/maxvaer/wafpierce/internal/config"
	"github.com/maxvaer/wafpierce/internal/retry"
	"github.com/maxvaer/wafpierce/internal/scanerr"
	"github.com/maxvaer/wafpierce/internal/scanner"
	"github.com/maxvaer/wafpierce/internal/target"
)

type failingDoer struct {
	calls atomic.Int32
	err   error
}

func (f *failingDoer) Do(context.Context, scanner.ProbeSpec) (*scanner.Response, error) {
	f.calls.Add(1)
	return nil, f.err
}

func TestEstablish(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.RequestURI)
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, "Access denied")
	}))
	defer srv.Close()

	tgt, err := target.Validate(srv.URL)
	require.NoError(t, err)
	opts := config.Defaults()
	req, err := scanner.NewRequester(tgt, &opts, nil)
	require.NoError(t, err)
	defer req.Close()

	base, err := Establish(context.Background(), req, retry.DefaultConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 403, base.StatusCode)
	assert.EqualValues(t, len("Access denied"), base.Size)
	assert.Equal(t, "cloudflare", base.Headers["server"])
	assert.Len(t, base.HashHex(), 32)
}

func TestEstablishFailsAfterRetries(t *testing.T) {
	doer := &failingDoer{err: scanerr.New(scanerr.TargetUnreachable, "connection refused")}
	cfg := retry.Config{MaxAttempts: 3, BackoffFactor: time.Millisecond}

	_, err := Establish(context.Background(), doer, cfg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, scanerr.BaselineFailed)
	assert.ErrorIs(t, err, scanerr.TargetUnreachable, "cause is kept")
	assert.EqualValues(t, 3, doer.calls.Load())
}

func TestEstablishCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	doer := &failingDoer{err: scanerr.New(scanerr.Timeout, "timeout")}

	_, err := Establish(ctx, doer, retry.DefaultConfig(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEstablishRateLimitedBaseline(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, "slow down")
	}))
	defer srv.Close()

	tgt, err := target.Validate(srv.URL)
	require.NoError(t, err)
	opts := config.Defaults()
	req, err := scanner.NewRequester(tgt, &opts, nil)
	require.NoError(t, err)
	defer req.Close()

	cfg := retry.Config{MaxAttempts: 3, BackoffFactor: time.Millisecond}
	base, err := Establish(context.Background(), req, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load(), "429 is still retried")
	assert.Equal(t, http.StatusTooManyRequests, base.StatusCode)
	assert.EqualValues(t, len("slow down"), base.Size)
	assert.Equal(t, "cloudflare", base.Headers["server"])
}

func TestEstablishRateLimitRecovers(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, "home")
	}))
	defer srv.Close()

	tgt, err := target.Validate(srv.URL)
	require.NoError(t, err)
	opts := config.Defaults()
	req, err := scanner.NewRequester(tgt, &opts, nil)
	require.NoError(t, err)
	defer req.Close()

	cfg := retry.Config{MaxAttempts: 3, BackoffFactor: time.Millisecond}
	base, err := Establish(context.Background(), req, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, base.StatusCode)
	assert.EqualValues(t, 2, calls.Load())
}
