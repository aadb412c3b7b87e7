package main

import "github.com/spf13/cobra"

var educationFlags resolveFlags

var educationCmd = &cobra.Command{
	Use:   "education",
	Short: "Detect learning and training programs of every ranked company",
	Long:  "Reads output/<year>/fortune500_<year>.csv and writes fortune500_<year>_education.csv, caching decisions in edu_cache.json and page text in content_cache.json.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runResolve(cmd, "education", &educationFlags)
	},
}

func init() {
	educationFlags.register(educationCmd)
	rootCmd.AddCommand(educationCmd)
}
