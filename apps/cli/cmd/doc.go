// Package cmd implements the featrun CLI commands using Cobra.
//
// Available commands:
//   - run: execute feature files against a live system
//   - validate: check feature file syntax without executing
//   - list: display the scenarios defined in feature files
//   - init: create a new featrun project with example files
//   - history: show past runs and flaky scenarios
//   - clean: remove generated report output
//   - version: show featrun version information
//
// The run command supports tag selection, parallel execution, report
// generation, and watch mode for development workflows.
package cmd
