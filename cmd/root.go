package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/portal-cli/internal/config"
	"github.com/sells-group/portal-cli/internal/records"
)

var (
	cfg      *config.Config
	yearFlag int
)

var rootCmd = &cobra.Command{
	Use:   "portal-cli",
	Short: "Company careers portal and learning program resolver",
	Long:  "Scrapes the yearly Fortune India 500 list, finds each company's careers portal and learning programs through web search and heuristic scoring, and guesses job title selectors on the portals.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().IntVar(&yearFlag, "year", 0, "ranking year to process (default: last year in UTC)")
}

// targetYear is --year, or the previous UTC year.
func targetYear() int {
	if yearFlag > 0 {
		return yearFlag
	}
	return records.TargetYear(time.Now())
}

// layout is the output tree for the target year.
func layout() records.Layout {
	return records.NewLayout(cfg.Output.Dir, targetYear())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
