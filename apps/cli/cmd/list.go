package cmd

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/featlabs/featrun/packages/gherkin"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>",
	Short: "List scenarios in feature files",
	Long: `List the scenarios and outlines defined in .feature files.

Examples:
  featrun list features/users.feature
  featrun list features/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFeatureFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .feature files found")
	}

	for _, file := range files {
		f, err := gherkin.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Error parsing %s: %v\n", file, err)
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", file)
		for _, section := range f.Sections {
			if section.IsOutline() {
				o := section.Outline
				rows := 0
				for _, e := range o.Examples {
					if e.Table != nil {
						rows += e.Table.RowCount()
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s (outline, %d examples)\n", o.Name, rows)
				printTags(cmd, o.Tags)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", section.Scenario.Name)
			printTags(cmd, section.Scenario.Tags)
		}
	}
	return nil
}

func printTags(cmd *cobra.Command, tags []gherkin.Tag) {
	if len(tags) == 0 {
		return
	}
	texts := make([]string, len(tags))
	for i, t := range tags {
		texts[i] = "@" + t.Text()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "    tags: %s\n", strings.Join(texts, " "))
}

func collectFeatureFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		err := filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ".feature") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
