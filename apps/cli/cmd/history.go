package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/featlabs/featrun/packages/core/config"
	"github.com/featlabs/featrun/packages/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past runs from the history database",
	Long: `Show results recorded with run --history.

Examples:
  featrun history
  featrun history --limit 20
  featrun history --flaky`,
	RunE: historyCommand,
}

var (
	historyLimitFlag int
	historyFlakyFlag bool
)

func init() {
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 10, "Number of runs to show")
	historyCmd.Flags().BoolVar(&historyFlakyFlag, "flaky", false, "List scenarios that flip between pass and fail")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	path := historyDBPath(cfg)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no history database at %s, run with --history first", path)
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if historyFlakyFlag {
		flaky, err := store.FlakyScenarios(ctx, historyLimitFlag)
		if err != nil {
			return err
		}
		if len(flaky) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No flaky scenarios found")
			return nil
		}
		for _, f := range flaky {
			fmt.Fprintf(cmd.OutOrStdout(), "%s [%s]: failed %d of %d runs\n",
				f.FeaturePath, f.Name, f.Failures, f.Total)
		}
		return nil
	}

	runs, err := store.Recent(ctx, historyLimitFlag)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet")
		return nil
	}
	for _, r := range runs {
		env := r.Env
		if env == "" {
			env = "-"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "#%d  %s  env=%s  features=%d  passed=%d  failed=%d  %s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), env,
			r.FeaturesTotal, r.ScenariosPassed, r.ScenariosFailed, r.Duration)
	}
	return nil
}
