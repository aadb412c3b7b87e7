package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/portal-cli/internal/fortune"
	"github.com/sells-group/portal-cli/internal/resilience"
)

var fortuneForce bool

var fortuneCmd = &cobra.Command{
	Use:   "fortune",
	Short: "Scrape the Fortune India 500 ranking for the target year",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("fortune"); err != nil {
			return err
		}

		l := layout()
		zap.L().Info("fortune: trigger",
			zap.Time("now", time.Now().UTC()),
			zap.Int("target_year", l.Year),
		)
		if fortune.AlreadyProcessed(l) && !fortuneForce {
			fmt.Fprintf(cmd.OutOrStdout(), "SKIP: output already exists at %s\n", l.FortuneJSON())
			return nil
		}

		s := fortune.NewScraper(
			fortune.WithBaseURL(cfg.Fortune.BaseURL),
			fortune.WithRetry(resilience.PolicyFrom(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs)),
		)
		companies, err := s.Scrape(ctx, l.Year)
		if err != nil {
			return err
		}
		if err := fortune.Save(l, companies); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Saved %d companies for %d:\n  JSON -> %s\n  CSV  -> %s\n",
			len(companies), l.Year, l.FortuneJSON(), l.FortuneCSV())
		return nil
	},
}

func init() {
	fortuneCmd.Flags().BoolVar(&fortuneForce, "force", false, "scrape even if the year's output exists")
	rootCmd.AddCommand(fortuneCmd)
}
