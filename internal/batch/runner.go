// Package batch drives a Resolver over an ordered list of company records.
package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/portal-cli/internal/cache"
	"github.com/sells-group/portal-cli/internal/metrics"
	"github.com/sells-group/portal-cli/internal/model"
)

// Resolver decides one company.
type Resolver interface {
	Resolve(ctx context.Context, company string) (model.Decision, error)
}

// Config tunes a Runner.
type Config struct {
	// Flavor labels log lines and metrics.
	Flavor string
	// Concurrency bounds in-flight resolutions. 1 is strictly sequential.
	Concurrency int
	// Delay is the minimum spacing between dispatched rows across all
	// workers. Zero disables the limit.
	Delay time.Duration
	// FlushEvery flushes the caches after this many completed rows.
	FlushEvery int
	// OnlyYes drops negative decisions from the report rows.
	OnlyYes bool
}

// DefaultConfig returns the sequential defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency: 1,
		Delay:       1500 * time.Millisecond,
		FlushEvery:  20,
	}
}

// Report is the outcome of one run.
type Report struct {
	RunID string
	// Rows holds completed rows in input order, after the OnlyYes filter.
	Rows        []model.EnrichedRecord
	Processed   int
	Positive    int
	Errors      int
	Interrupted bool
	Duration    time.Duration
}

// Runner resolves records and persists the caches it was given.
type Runner struct {
	resolver Resolver
	caches   []cache.Flusher
	cfg      Config
	metrics  *metrics.Metrics
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics tracks in-flight and completed rows.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// New creates a Runner. Invalid tunables fall back to the defaults.
func New(resolver Resolver, cfg Config, caches []cache.Flusher, opts ...Option) *Runner {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = def.FlushEvery
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}

	r := &Runner{resolver: resolver, caches: caches, cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run resolves records until done or until ctx is cancelled. On cancellation
// no new rows are dispatched, in-flight rows finish, the caches are flushed
// and the completed rows are returned with Interrupted set. The error is
// reserved for future fatal conditions and is nil today.
func (r *Runner) Run(ctx context.Context, records []model.CompanyRecord) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := zap.L().With(
		zap.String("run_id", runID),
		zap.String("flavor", r.cfg.Flavor),
	)
	log.Info("batch: starting",
		zap.Int("rows", len(records)),
		zap.Int("concurrency", r.cfg.Concurrency),
		zap.Duration("delay", r.cfg.Delay),
	)

	limit := rate.Inf
	if r.cfg.Delay > 0 {
		limit = rate.Every(r.cfg.Delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	// In-flight work must outlive an interrupt so that a started row is
	// always completed and cached.
	work := context.WithoutCancel(ctx)

	done := make([]*model.EnrichedRecord, len(records))
	var (
		completed atomic.Int64
		errCount  atomic.Int64
		flushMu   sync.Mutex
	)
	flush := func() {
		flushMu.Lock()
		defer flushMu.Unlock()
		if failed := cache.FlushAll(work, r.caches...); failed > 0 {
			log.Warn("batch: cache flush incomplete", zap.Int("failed", failed))
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Concurrency)

	for i, rec := range records {
		if ctx.Err() != nil {
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		g.Go(func() error {
			// The slot may have been granted after the interrupt.
			if ctx.Err() != nil {
				return nil
			}
			r.metrics.RowStarted()
			defer r.metrics.RowDone(r.cfg.Flavor)

			d, err := r.resolver.Resolve(work, rec.CompanyName)
			if err != nil {
				errCount.Add(1)
				log.Warn("batch: resolution failed",
					zap.String("rank", rec.Rank),
					zap.String("company", rec.CompanyName),
					zap.Error(err),
				)
				d = model.NoDecision(0, model.ReasonError)
			}
			done[i] = &model.EnrichedRecord{CompanyRecord: rec, Decision: d}

			n := completed.Add(1)
			log.Info("batch: row done",
				zap.Int64("n", n),
				zap.Int("of", len(records)),
				zap.String("rank", rec.Rank),
				zap.String("company", rec.CompanyName),
				zap.String("offers", string(d.Offers)),
				zap.String("link", d.Link),
			)
			if n%int64(r.cfg.FlushEvery) == 0 {
				flush()
			}
			return nil
		})
	}

	_ = g.Wait()
	flush()

	report := &Report{
		RunID:       runID,
		Processed:   int(completed.Load()),
		Errors:      int(errCount.Load()),
		Interrupted: int(completed.Load()) < len(records),
		Duration:    time.Since(start),
	}
	for _, row := range done {
		if row == nil {
			continue
		}
		if row.Decision.IsYes() {
			report.Positive++
		} else if r.cfg.OnlyYes {
			continue
		}
		report.Rows = append(report.Rows, *row)
	}

	fields := []zap.Field{
		zap.Int("processed", report.Processed),
		zap.Int("positive", report.Positive),
		zap.Int("errors", report.Errors),
		zap.Duration("elapsed", report.Duration),
	}
	if report.Interrupted {
		log.Warn("batch: interrupted, partial results kept", fields...)
	} else {
		log.Info("batch: complete", fields...)
	}
	return report, nil
}
