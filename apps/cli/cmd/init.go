package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/featlabs/featrun/packages/core/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new featrun project",
	Long: `Initialize a new featrun project in the current directory.

This creates:
  - featrun.config.json  - Run configuration
  - features/example.feature - Example feature file

Examples:
  featrun init
  featrun init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleFeature = `Feature: example API

Background:
  * url 'https://httpbin.org'

Scenario: get returns our params
  Given path 'get'
  And param greeting = 'hello'
  When method get
  Then status 200
  And match response.args == { greeting: 'hello' }

@smoke
Scenario Outline: status codes
  Given path 'status', '<code>'
  When method get
  Then status <code>

  Examples:
    | code |
    | 200  |
    | 204  |
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, "featrun.config.json")
	featureFile := filepath.Join(cwd, "features", "example.feature")

	if !forceInit {
		for _, f := range []string{configFile, featureFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	cfg := config.Default()
	cfg.Paths = []string{"features"}
	cfg.Threads = 4
	cfg.Output.JUnitXML = true
	if err := cfg.Save(configFile); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(featureFile), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(featureFile, []byte(exampleFeature), 0o644); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", configFile)
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", featureFile)
	fmt.Fprintf(cmd.OutOrStdout(), "\nRun the example with:\n  featrun run features/\n")
	return nil
}
