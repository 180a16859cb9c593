package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/featlabs/featrun/packages/core/config"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove generated report output",
	Long: `Remove the output directory holding generated reports and the
history database.

Examples:
  featrun clean
  featrun clean -o build/reports`,
	RunE: cleanCommand,
}

var cleanOutputDirFlag string

func init() {
	cleanCmd.Flags().StringVarP(&cleanOutputDirFlag, "output-dir", "o", "", "Directory to remove (default: from config, or target)")
}

func cleanCommand(cmd *cobra.Command, args []string) error {
	dir := cleanOutputDirFlag
	if dir == "" {
		cfg, err := config.Load("")
		if err != nil {
			return err
		}
		dir = cfg.Output.Dir
	}
	if dir == "" {
		dir = "target"
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing %s: %w", dir, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", dir)
	return nil
}
