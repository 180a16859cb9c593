// Package gherkin provides parsing for .feature files.
//
// It produces Feature/Scenario/Step structures from Gherkin-style text,
// including:
//   - Background steps shared by every scenario
//   - Scenario Outlines with one or more Examples tables
//   - Type-hinted example columns (trailing "!" on the column name)
//   - Dynamic Examples tables (a single header cell holding an expression)
//   - Tags with optional values (@id=1,2)
//   - Docstring and data-table step arguments
package gherkin
