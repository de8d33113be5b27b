package scanner

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/maxvaer/wafpierce/internal/retry"
	"github.com/maxvaer/wafpierce/internal/scanerr"
)

// Doer sends one probe. *Requester implements it.
type Doer interface {
	Do(ctx context.Context, spec ProbeSpec) (*Response, error)
}

// ClassifierFunc decides whether a response is a bypass.
type ClassifierFunc func(*Response) Verdict

// ExecConfig holds everything Execute needs besides the work itself. Only
// Threads is required; nil fields are replaced with inert defaults.
type ExecConfig struct {
	Threads   int
	Retry     retry.Config
	Throttler *Throttler    // per-probe delay, nil means none
	Pauser    *Pauser       // pause gate, nil means never paused
	Limiter   *rate.Limiter // global request cap, nil means unlimited
	Abort     *atomic.Bool  // cooperative stop flag
	Collector *Collector
	// OnProbe is called after every probe, from the task goroutine.
	OnProbe func(Outcome)
	Logger  *zap.Logger
}

// Summary describes a finished (or stopped) execution.
type Summary struct {
	Results     []ProbeResult
	Probes      int64 // probes attempted, skipped ones included
	Errors      int64 // probes skipped after a failure
	ErrorKinds  scanerr.Summary
	Interrupted bool // work was left undone because of Abort or ctx
}

// Bypasses returns the number of collected bypasses.
func (s Summary) Bypasses() int { return len(s.Results) }

// executor carries the per-run state shared by all tasks.
type executor struct {
	req      Doer
	classify ClassifierFunc
	cfg      ExecConfig
	logger   *zap.Logger

	probes      atomic.Int64
	errors      atomic.Int64
	interrupted atomic.Bool

	kindsMu sync.Mutex
	kinds   scanerr.Summary
}

// Execute runs every technique's probes against req. Each technique is one
// task; at most cfg.Threads tasks run at once and the probes inside a task
// run in order. Setting cfg.Abort or cancelling ctx stops new tasks from
// starting and running tasks from issuing further probes; requests already
// in flight complete. Execute always waits for running tasks before
// returning.
func Execute(ctx context.Context, req Doer, techniques []Technique, classify ClassifierFunc, cfg ExecConfig) Summary {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Abort == nil {
		cfg.Abort = &atomic.Bool{}
	}
	if cfg.Collector == nil {
		cfg.Collector = NewCollector()
	}
	if cfg.Throttler == nil {
		cfg.Throttler = NewThrottler(0, false, cfg.Logger)
	}
	if cfg.Pauser == nil {
		cfg.Pauser = NewPauser()
	}

	e := &executor{
		req:      req,
		classify: classify,
		cfg:      cfg,
		logger:   cfg.Logger,
		kinds:    scanerr.Summary{},
	}

	var g errgroup.Group
	g.SetLimit(max(cfg.Threads, 1))

	for _, tech := range techniques {
		if e.stopped(ctx) {
			break
		}
		g.Go(func() error {
			e.runTechnique(ctx, tech)
			return nil
		})
	}
	_ = g.Wait()

	return Summary{
		Results:     cfg.Collector.Results(),
		Probes:      e.probes.Load(),
		Errors:      e.errors.Load(),
		ErrorKinds:  e.kinds,
		Interrupted: e.interrupted.Load(),
	}
}

// stopped reports whether no further work should start, and records that
// work was cut short.
func (e *executor) stopped(ctx context.Context) bool {
	if e.cfg.Abort.Load() || ctx.Err() != nil {
		e.interrupted.Store(true)
		return true
	}
	return false
}

func (e *executor) runTechnique(ctx context.Context, tech Technique) {
	for _, spec := range tech.Probes {
		if e.stopped(ctx) {
			return
		}
		if err := e.cfg.Pauser.Wait(ctx); err != nil {
			e.interrupted.Store(true)
			return
		}
		// A stop issued during a pause takes effect on resume.
		if e.stopped(ctx) {
			return
		}
		if spec.Technique == "" {
			spec.Technique = tech.Name
		}

		out := e.runProbe(ctx, spec)
		if out.Skipped() && ctx.Err() != nil {
			// Cancelled mid-request: not a target failure.
			e.interrupted.Store(true)
			return
		}
		e.probes.Add(1)
		if out.Skipped() {
			e.recordSkip(spec, out.Skip)
		} else if e.cfg.Collector.Add(out.Result) {
			e.logger.Info("Bypass detected",
				zap.String("technique", out.Result.Technique),
				zap.Int("status", out.Result.Status),
				zap.Stringer("severity", out.Result.Severity),
				zap.String("reason", out.Result.Reason))
		}
		if e.cfg.OnProbe != nil {
			e.cfg.OnProbe(out)
		}

		if e.cfg.Abort.Load() {
			continue
		}
		if d := e.cfg.Throttler.Delay(); d > 0 {
			if sleepContext(ctx, d) != nil {
				e.interrupted.Store(true)
				return
			}
		}
	}
}

// runProbe sends spec through the retry layer and classifies the response.
func (e *executor) runProbe(ctx context.Context, spec ProbeSpec) Outcome {
	resp, err := retry.DoValue(ctx, e.cfg.Retry, func() (*Response, error) {
		if e.cfg.Limiter != nil {
			if err := e.cfg.Limiter.Wait(ctx); err != nil {
				return nil, retry.Stop(err)
			}
		}
		resp, err := e.req.Do(ctx, spec)
		if err != nil {
			e.cfg.Throttler.RecordError(err)
			return nil, err
		}
		e.cfg.Throttler.RecordStatus(resp.StatusCode)
		return resp, nil
	})
	if err != nil {
		return Outcome{Skip: err}
	}

	v := e.classify(resp)
	return Outcome{Result: ProbeResult{
		Bypass:    v.Bypass,
		Status:    resp.StatusCode,
		Headers:   maps.Clone(spec.Headers),
		Method:    spec.method(),
		Path:      spec.path(),
		Size:      resp.ContentLength,
		Technique: spec.Technique,
		Reason:    v.Reason,
		Severity:  v.Severity,
	}}
}

func (e *executor) recordSkip(spec ProbeSpec, err error) {
	e.errors.Add(1)
	e.kindsMu.Lock()
	e.kinds.Add(err)
	e.kindsMu.Unlock()
	e.logger.Debug("Probe skipped",
		zap.String("technique", spec.Technique),
		zap.Stringer("kind", scanerr.KindOf(err)),
		zap.Error(err))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
