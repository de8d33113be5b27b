// Package runner wires validation, baseline capture, the technique catalog,
// the probe executor, the classifier and the output writers into one scan.
package runner

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/maxvaer/wafpierce/internal/classify"
	"github.com/maxvaer/wafpierce/internal/config"
	"github.com/maxvaer/wafpierce/internal/hook"
	"github.com/maxvaer/wafpierce/internal/observability"
	"github.com/maxvaer/wafpierce/internal/output"
	"github.com/maxvaer/wafpierce/internal/reqparse"
	"github.com/maxvaer/wafpierce/internal/retry"
	"github.com/maxvaer/wafpierce/internal/scanerr"
	"github.com/maxvaer/wafpierce/internal/scanner"
	"github.com/maxvaer/wafpierce/internal/target"
	"github.com/maxvaer/wafpierce/internal/technique"
	"github.com/maxvaer/wafpierce/pkg/version"
)

// Session is one validated scan against one target. Create it with New,
// run it once with Scan.
type Session struct {
	ID      uuid.UUID
	Target  target.Target
	Options config.Options

	baseline *classify.Baseline
	out      output.Writer
	pauser   *scanner.Pauser
	abort    atomic.Bool
	errors   atomic.Int64
	logger   *zap.Logger
}

// New validates opts and returns a session ready to scan. It performs no
// network I/O. A raw request file, when set, supplies the target URL if
// none was given and its headers sit under any explicit ones.
func New(opts config.Options) (*Session, error) {
	if opts.RequestFile != "" {
		parsed, err := reqparse.ParseFile(opts.RequestFile)
		if err != nil {
			return nil, scanerr.Wrap(scanerr.InvalidTarget, err, "parsing request file")
		}
		if opts.URL == "" {
			opts.URL = parsed.URL
		}
		opts.Headers = parsed.MergeHeaders(opts.Headers)
	}

	tgt, err := target.Validate(opts.URL)
	if err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if _, err := technique.Build(tgt, opts.Techniques); err != nil {
		return nil, err
	}

	id := uuid.New()
	return &Session{
		ID:      id,
		Target:  tgt,
		Options: opts,
		pauser:  scanner.NewPauser(),
		logger:  observability.GetLogger().With(zap.String("scan_id", id.String())),
	}, nil
}

// SetOutput replaces the writers Scan would build from the options.
func (s *Session) SetOutput(w output.Writer) {
	s.out = w
}

// Stop asks a running scan to finish early. Probes already in flight
// complete; no new probes start. A paused scan is released so it can wind
// down. Safe to call from any goroutine, more than once.
func (s *Session) Stop() {
	if s.abort.CompareAndSwap(false, true) {
		s.logger.Info("Stop requested, waiting for in-flight probes")
	}
	s.pauser.Resume()
}

// Stopped reports whether Stop has been called.
func (s *Session) Stopped() bool { return s.abort.Load() }

// ErrorCount returns the number of probes skipped after a failure.
func (s *Session) ErrorCount() int64 { return s.errors.Load() }

// Baseline returns the baseline captured by Scan, or nil before it.
func (s *Session) Baseline() *classify.Baseline { return s.baseline }

// Pauser exposes the session's pause gate.
func (s *Session) Pauser() *scanner.Pauser { return s.pauser }

// Scan establishes the baseline, runs every selected technique and returns
// the bypass-positive results. A failed baseline is fatal. A stop or
// cancellation returns the partial results with a nil error, or with a
// ScanInterrupted error when Options.SurfaceInterrupt is set.
func (s *Session) Scan(ctx context.Context) ([]scanner.ProbeResult, error) {
	opts := &s.Options
	started := time.Now()

	req, err := scanner.NewRequester(s.Target, opts, s.logger)
	if err != nil {
		return nil, fmt.Errorf("creating requester: %w", err)
	}
	defer req.Close()

	// TLS and redirect-loop failures will not fix themselves on retry.
	retryCfg := retry.Config{
		MaxAttempts:   opts.Retries,
		BackoffFactor: opts.RetryBackoff,
		Retryable: retry.OnKinds(scanerr.TargetUnreachable, scanerr.Timeout,
			scanerr.DNSResolution, scanerr.ProxyError, scanerr.RateLimit),
		Logger: s.logger,
	}

	s.logger.Info("Establishing baseline", zap.String("target", s.Target.Base))
	base, err := classify.Establish(ctx, req, retryCfg, s.logger)
	if err != nil {
		if ctx.Err() != nil {
			return nil, s.interruptErr(0)
		}
		return nil, err
	}
	s.baseline = base

	techniques, err := technique.Build(s.Target, opts.Techniques)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, t := range techniques {
		total += len(t.Probes)
	}

	out, err := s.writer()
	if err != nil {
		return nil, err
	}
	defer out.Close()

	if err := out.WriteHeader(output.Meta{
		ScanID:    s.ID.String(),
		Target:    s.Target.Base,
		StartedAt: started,
		Baseline: output.BaselineInfo{
			Status: base.StatusCode,
			Size:   base.Size,
			Hash:   base.HashHex(),
		},
	}); err != nil {
		return nil, err
	}

	if !opts.Quiet && opts.OutputFormat == "text" {
		printBanner(opts, s.Target.Base, len(techniques), total)
	}

	var hookRunner *hook.Runner
	if opts.OnBypassCmd != "" {
		hookRunner = hook.NewRunner(opts.OnBypassCmd, s.ID.String(), s.Target.Base, s.logger)
	}

	var limiter *rate.Limiter
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}

	progress := output.NewProgress(total, opts.Quiet)
	progress.SetPausedFunc(s.pauser.IsPaused)
	progress.Start()

	var (
		writeMu  sync.Mutex
		writeErr error
	)
	onProbe := func(o scanner.Outcome) {
		progress.Increment()
		if o.Skipped() {
			progress.IncrementErrors()
			return
		}
		if !o.Result.Bypass {
			return
		}
		progress.IncrementBypasses()

		writeMu.Lock()
		if err := out.WriteResult(&o.Result); err != nil && writeErr == nil {
			writeErr = err
		}
		writeMu.Unlock()

		if hookRunner != nil {
			hookRunner.Run(ctx, &o.Result)
		}
	}

	summary := scanner.Execute(ctx, req, techniques, classify.For(base), scanner.ExecConfig{
		Threads:   opts.Threads,
		Retry:     retryCfg,
		Throttler: scanner.NewThrottler(opts.Delay, opts.AdaptiveThrottle, s.logger),
		Pauser:    s.pauser,
		Limiter:   limiter,
		Abort:     &s.abort,
		Collector: scanner.NewCollector(),
		OnProbe:   onProbe,
		Logger:    s.logger,
	})
	progress.Stop()
	s.errors.Store(summary.Errors)

	duration := time.Since(started)
	s.logger.Info("Scan finished",
		zap.Int64("probes", summary.Probes),
		zap.Int("bypasses", summary.Bypasses()),
		zap.Int64("errors", summary.Errors),
		zap.Duration("duration", duration),
		zap.Duration("paused", s.pauser.PausedDuration()),
		zap.Bool("interrupted", summary.Interrupted))

	if err := out.WriteFooter(output.Stats{
		Probes:      summary.Probes,
		Errors:      summary.Errors,
		ErrorKinds:  summary.ErrorKinds,
		Duration:    duration,
		Interrupted: summary.Interrupted,
	}); err != nil && writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		return summary.Results, fmt.Errorf("writing results: %w", writeErr)
	}

	if summary.Interrupted {
		return summary.Results, s.interruptErr(summary.Probes)
	}
	return summary.Results, nil
}

// interruptErr returns nil unless the caller asked to see interruptions.
func (s *Session) interruptErr(probes int64) error {
	if !s.Options.SurfaceInterrupt {
		return nil
	}
	return scanerr.New(scanerr.ScanInterrupted, "scan interrupted after %d probes", probes)
}

// writer returns the configured writer: the stdout format plus a JSON
// report when an output file is set.
func (s *Session) writer() (output.Writer, error) {
	if s.out != nil {
		return s.out, nil
	}
	opts := &s.Options
	stdout, err := output.New(opts.OutputFormat, "", opts.NoColor, opts.Quiet)
	if err != nil {
		return nil, fmt.Errorf("creating output writer: %w", err)
	}
	if opts.OutputFile == "" {
		return stdout, nil
	}
	report, err := output.NewJSONWriter(opts.OutputFile)
	if err != nil {
		_ = stdout.Close()
		return nil, err
	}
	return output.MultiWriter{stdout, report}, nil
}

func printBanner(opts *config.Options, base string, techniques, probes int) {
	const (
		cyan   = "\033[36m"
		white  = "\033[97m"
		dim    = "\033[2m"
		yellow = "\033[33m"
		reset  = "\033[0m"
	)

	c, w, d, y, rs := cyan, white, dim, yellow, reset
	if opts.NoColor {
		c, w, d, y, rs = "", "", "", "", ""
	}

	fmt.Fprintf(os.Stderr, "\n%s  wafpierce %s%sv%s%s\n%s    WAF bypass detection%s\n",
		c, rs, d, version.Version, rs, w, rs)

	fmt.Fprintf(os.Stderr, "%s  ──────────────────────────────────────%s\n", d, rs)
	fmt.Fprintf(os.Stderr, "  %sTarget:%s       %s%s%s\n", d, rs, w, base, rs)
	fmt.Fprintf(os.Stderr, "  %sThreads:%s      %s%d%s\n", d, rs, y, opts.Threads, rs)
	fmt.Fprintf(os.Stderr, "  %sTechniques:%s   %s%d (%d probes)%s\n", d, rs, w, techniques, probes, rs)
	if len(opts.Techniques) > 0 {
		fmt.Fprintf(os.Stderr, "  %sSelected:%s     %s%s%s\n", d, rs, w, strings.Join(opts.Techniques, ", "), rs)
	}
	if opts.Rate > 0 {
		fmt.Fprintf(os.Stderr, "  %sRate:%s         %s%g req/s%s\n", d, rs, y, opts.Rate, rs)
	}
	if opts.Proxy != "" {
		fmt.Fprintf(os.Stderr, "  %sProxy:%s        %s%s%s\n", d, rs, w, opts.Proxy, rs)
	}
	fmt.Fprintf(os.Stderr, "%s  ──────────────────────────────────────%s\n\n", d, rs)
}
