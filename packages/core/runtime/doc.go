// Package runtime implements the execution orchestrator: it decides when,
// how often, and under what concurrency each scenario runs.
//
// The moving parts:
//   - Suite owns the worker pool, listener registries and the hook chain,
//     and fans out feature executions
//   - FeatureRuntime expands outlines (static tables, dynamic lists and
//     generator functions) and drives scenario execution
//   - ScenarioRuntime executes one scenario's steps in order, with
//     continue-on-failure semantics, @fail inversion and retry-until polling
//   - CallSingleCache memoizes execute-at-most-once calls across the pool
//   - TagSelector evaluates the tag selection DSL
package runtime
