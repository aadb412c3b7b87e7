package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/portal-cli/internal/records"
	"github.com/sells-group/portal-cli/internal/selector"
)

var selectorsCmd = &cobra.Command{
	Use:   "selectors",
	Short: "Guess the job title CSS selector on each careers portal",
	Long:  "Renders every careers link of fortune500_<year>_with_careers.csv in headless Chrome and writes fortune500_fully_enriched.csv with a jobTitleSelector column.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := notifyContext(cmd.Context())
		defer stop()

		if err := cfg.Validate("selectors"); err != nil {
			return err
		}

		l := layout()
		rows, err := selector.ReadCareers(ctx, l.CareersOut(records.FormatCSV))
		if err != nil {
			return eris.Wrap(err, "load careers links")
		}

		renderer := selector.NewChromeRenderer(
			time.Duration(cfg.Selector.TimeoutSecs)*time.Second,
			time.Duration(cfg.Selector.SettleSecs)*time.Second,
		)
		defer renderer.Close()

		enricher := selector.NewEnricher(renderer, time.Duration(cfg.Selector.DelayMs)*time.Millisecond)
		out, interrupted := enricher.Enrich(ctx, rows)
		if err := records.Write(l.EnrichedCSV(), records.FormatCSV, selector.Table(out)); err != nil {
			return err
		}

		zap.L().Info("selectors: saved",
			zap.String("path", l.EnrichedCSV()),
			zap.Int("rows", len(out)),
			zap.Bool("interrupted", interrupted),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows -> %s\n", len(out), l.EnrichedCSV())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(selectorsCmd)
}
