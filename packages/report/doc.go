// Package report renders suite results for humans and CI systems.
//
// Supported output formats:
//   - Console: human-readable colored terminal output
//   - JUnit: JUnit XML for CI integration
//   - Cucumber: Cucumber-compatible JSON
//   - HTML: a self-contained summary page
//   - JSONL: a line-per-event stream emitted while the suite runs
//
// The file-based reporters accumulate results and write on Flush; the
// JSONL reporter is a live RunListener.
package report
