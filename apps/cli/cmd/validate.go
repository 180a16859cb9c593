package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/featlabs/featrun/packages/gherkin"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>",
	Short: "Validate feature files for syntax errors",
	Long: `Validate feature files for syntax errors without executing them.

Examples:
  featrun validate features/users.feature
  featrun validate features/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFeatureFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .feature files found")
	}

	hasErrors := false
	for _, file := range files {
		if _, err := gherkin.ParseFile(file); err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
		}
	}
	if hasErrors {
		return fmt.Errorf("validation failed")
	}
	return nil
}
