package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "featrun",
	Short: "Readable API tests in Gherkin, run in parallel.",
	Long: `featrun executes API test suites written as Gherkin feature files.
Scenarios describe HTTP calls and assertions in plain text; featrun runs
them in parallel, evaluates match expressions against the responses, and
produces console, JUnit, Cucumber JSON and HTML reports.`,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitUsageError)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}
