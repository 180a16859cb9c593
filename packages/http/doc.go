// Package http provides the HTTP client used by step execution.
//
// It wraps the standard library's http package with:
//   - Configurable timeouts and redirect handling
//   - A request builder filled in by url/path/param/header/request steps
//   - A response wrapper exposing status, headers, parsed JSON body and
//     collected cookies
package http
