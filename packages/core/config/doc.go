// Package config loads the external run configuration file that feeds the
// suite: feature paths, tag selectors, environment, parallelism and report
// toggles. JSON and YAML files are supported; JSON files are validated
// against a schema before use so malformed configuration fails before any
// scenario executes.
package config
