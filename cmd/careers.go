package main

import "github.com/spf13/cobra"

var careersFlags resolveFlags

var careersCmd = &cobra.Command{
	Use:   "careers",
	Short: "Find the careers portal of every ranked company",
	Long:  "Reads output/<year>/fortune500_<year>.csv and writes fortune500_<year>_with_careers.csv, caching decisions in ddg_cache.json.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runResolve(cmd, "careers", &careersFlags)
	},
}

func init() {
	careersFlags.register(careersCmd)
	rootCmd.AddCommand(careersCmd)
}
