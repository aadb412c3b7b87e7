package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/portal-cli/internal/batch"
	"github.com/sells-group/portal-cli/internal/metrics"
	"github.com/sells-group/portal-cli/internal/model"
	"github.com/sells-group/portal-cli/internal/records"
)

// resolveFlags are shared by the careers and education commands.
type resolveFlags struct {
	input       string
	format      string
	onlyYes     bool
	concurrency int
	delayMs     int
	metricsAddr string
}

func (f *resolveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.input, "input", "", "ranked company list (default output/<year>/fortune500_<year>.csv)")
	cmd.Flags().StringVar(&f.format, "format", "csv", "output format: csv, json or xlsx")
	cmd.Flags().BoolVar(&f.onlyYes, "only-yes", false, "write only positive rows")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "parallel resolutions (default from batch.concurrency)")
	cmd.Flags().IntVar(&f.delayMs, "delay-ms", -1, "minimum spacing between rows in ms (default from batch.delay_ms)")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address during the run")
}

// apply lets explicitly set flags override the loaded config.
func (f *resolveFlags) apply() {
	if f.concurrency > 0 {
		cfg.Batch.Concurrency = f.concurrency
	}
	if f.delayMs >= 0 {
		cfg.Batch.DelayMs = f.delayMs
	}
	if f.metricsAddr != "" {
		cfg.Metrics.Addr = f.metricsAddr
	}
}

// notifyContext cancels on the first SIGINT/SIGTERM and restores default
// signal handling afterward, so a second interrupt kills the process.
func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}

// serveMetrics runs the metrics endpoint until the returned stop func is
// called. It stays up after ctx is interrupted so the drain can be watched.
func serveMetrics(ctx context.Context, m *metrics.Metrics, addr string, health metrics.HealthFunc) (stop func()) {
	if addr == "" {
		return func() {}
	}

	srvCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := m.Serve(srvCtx, addr, health); err != nil {
			zap.L().Warn("metrics endpoint stopped", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// runResolve resolves every company of the year's list with one flavor and
// writes the output file, also after an interrupt.
func runResolve(cmd *cobra.Command, flavorName string, flags *resolveFlags) error {
	ctx, stop := notifyContext(cmd.Context())
	defer stop()

	flags.apply()
	format, err := records.ParseFormat(flags.format)
	if err != nil {
		return err
	}

	l := layout()
	input := flags.input
	if input == "" {
		input = l.FortuneCSV()
	}
	companies, err := records.ReadCompanies(ctx, input)
	if err != nil {
		return eris.Wrap(err, "load companies")
	}

	// Setup uses a detached context so that an early interrupt does not leave
	// the store half-open.
	env, err := initResolveEnv(context.WithoutCancel(ctx), cfg, l, flavorName)
	if err != nil {
		return err
	}
	defer env.Close()

	stopMetrics := serveMetrics(ctx, env.Metrics, cfg.Metrics.Addr, env.health)

	runner := batch.New(env.Resolver, batch.Config{
		Flavor:      flavorName,
		Concurrency: cfg.Batch.Concurrency,
		Delay:       cfg.Batch.Delay(),
		FlushEvery:  cfg.Batch.FlushEvery,
		OnlyYes:     flags.onlyYes,
	}, env.Caches(), batch.WithMetrics(env.Metrics))

	report, err := runner.Run(ctx, companies)
	stopMetrics()
	if err != nil {
		return eris.Wrap(err, "run batch")
	}

	out, table := outputFor(flavorName, l, format, report.Rows)
	if err := records.Write(out, format, table); err != nil {
		return err
	}

	zap.L().Info("saved results",
		zap.String("path", out),
		zap.String("run_id", report.RunID),
		zap.Int("rows", len(report.Rows)),
		zap.Int("positive", report.Positive),
		zap.Bool("interrupted", report.Interrupted),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d rows -> %s\n", len(report.Rows), out)
	if report.Interrupted {
		fmt.Fprintf(cmd.OutOrStdout(), "Interrupted after %d of %d companies; rerun to resume from cache.\n",
			report.Processed, len(companies))
	}
	return nil
}

func outputFor(flavorName string, l records.Layout, f records.Format, rows []model.EnrichedRecord) (string, records.Table) {
	if flavorName == "education" {
		return l.EducationOut(f), records.EducationTable(rows)
	}
	return l.CareersOut(f), records.CareersTable(rows)
}
