// Package eval provides the small expression engine used to resolve step
// arguments, tag selector expressions, retry conditions and dynamic outline
// data.
//
// The language is a JSON superset with:
//   - literals: numbers, strings, booleans, null, objects, arrays
//   - variable references, member access, indexing, function calls
//   - operators: ! - * / % + - < <= > >= == != && || ?:
//   - single-parameter lambdas: x => expr
//
// Values are nil, bool, float64, string, []any, map[string]any or Callable.
package eval
