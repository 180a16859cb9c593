// Package match implements the structural matcher behind `match` steps:
// deep equality over JSON-like values with fuzzy markers (#string, #uuid,
// #regex ...) and contains semantics for partial matching.
package match

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

type Op int

const (
	Equals Op = iota
	NotEquals
	Contains
	NotContains
)

func (op Op) String() string {
	switch op {
	case NotEquals:
		return "!="
	case Contains:
		return "contains"
	case NotContains:
		return "!contains"
	default:
		return "=="
	}
}

type Result struct {
	Passed  bool
	Message string
}

func pass() *Result {
	return &Result{Passed: true}
}

func failAt(path, format string, args ...any) *Result {
	return &Result{Message: path + ": " + fmt.Sprintf(format, args...)}
}

// Match compares actual against expected under the given operator.
func Match(actual any, op Op, expected any) *Result {
	switch op {
	case Equals:
		return equals("$", actual, expected)
	case NotEquals:
		if r := equals("$", actual, expected); r.Passed {
			return failAt("$", "expected values to differ, both were %v", render(actual))
		}
		return pass()
	case Contains:
		return contains("$", actual, expected)
	case NotContains:
		if r := contains("$", actual, expected); r.Passed {
			return failAt("$", "expected %v to not contain %v", render(actual), render(expected))
		}
		return pass()
	}
	return failAt("$", "unknown match operator")
}

const (
	markerIgnore     = "#ignore"
	markerNull       = "#null"
	markerNotNull    = "#notnull"
	markerPresent    = "#present"
	markerNotPresent = "#notpresent"
	markerString     = "#string"
	markerNumber     = "#number"
	markerBoolean    = "#boolean"
	markerArray      = "#array"
	markerObject     = "#object"
	markerUUID       = "#uuid"
	markerRegex      = "#regex"
)

func isMarker(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, "#") {
		return "", false
	}
	return s, true
}

func matchMarker(path string, actual any, marker string) *Result {
	switch {
	case marker == markerIgnore, marker == markerPresent:
		return pass()
	case marker == markerNull:
		if actual != nil {
			return failAt(path, "expected null, got %v", render(actual))
		}
		return pass()
	case marker == markerNotNull:
		if actual == nil {
			return failAt(path, "expected not-null, got null")
		}
		return pass()
	case marker == markerString:
		if _, ok := actual.(string); !ok {
			return failAt(path, "expected string, got %v", render(actual))
		}
		return pass()
	case marker == markerNumber:
		switch actual.(type) {
		case float64, int, int64:
			return pass()
		}
		return failAt(path, "expected number, got %v", render(actual))
	case marker == markerBoolean:
		if _, ok := actual.(bool); !ok {
			return failAt(path, "expected boolean, got %v", render(actual))
		}
		return pass()
	case marker == markerArray:
		if _, ok := actual.([]any); !ok {
			return failAt(path, "expected array, got %v", render(actual))
		}
		return pass()
	case marker == markerObject:
		if _, ok := actual.(map[string]any); !ok {
			return failAt(path, "expected object, got %v", render(actual))
		}
		return pass()
	case marker == markerUUID:
		s, ok := actual.(string)
		if !ok {
			return failAt(path, "expected uuid string, got %v", render(actual))
		}
		if _, err := uuid.Parse(s); err != nil {
			return failAt(path, "expected uuid, got %q", s)
		}
		return pass()
	case strings.HasPrefix(marker, markerRegex):
		pattern := strings.TrimSpace(strings.TrimPrefix(marker, markerRegex))
		s, ok := actual.(string)
		if !ok {
			return failAt(path, "expected string for regex match, got %v", render(actual))
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return failAt(path, "invalid regex %q: %v", pattern, err)
		}
		if !re.MatchString(s) {
			return failAt(path, "regex %q did not match %q", pattern, s)
		}
		return pass()
	}
	return failAt(path, "unknown marker %q", marker)
}

func equals(path string, actual, expected any) *Result {
	if marker, ok := isMarker(expected); ok {
		if marker == markerNotPresent {
			return failAt(path, "#notpresent only applies to object keys")
		}
		return matchMarker(path, actual, marker)
	}

	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return failAt(path, "expected object %v, got %v", render(expected), render(actual))
		}
		for _, key := range sortedKeys(exp) {
			expVal := exp[key]
			actVal, present := act[key]
			if marker, ok := isMarker(expVal); ok && marker == markerNotPresent {
				if present {
					return failAt(childPath(path, key), "expected key to be absent")
				}
				continue
			}
			if !present {
				return failAt(childPath(path, key), "key missing, expected %v", render(expVal))
			}
			if r := equals(childPath(path, key), actVal, expVal); !r.Passed {
				return r
			}
		}
		for _, key := range sortedKeys(act) {
			if _, declared := exp[key]; !declared {
				return failAt(childPath(path, key), "unexpected key with value %v", render(act[key]))
			}
		}
		return pass()

	case []any:
		act, ok := actual.([]any)
		if !ok {
			return failAt(path, "expected array %v, got %v", render(expected), render(actual))
		}
		if len(act) != len(exp) {
			return failAt(path, "array length %d, expected %d", len(act), len(exp))
		}
		for i := range exp {
			if r := equals(fmt.Sprintf("%s[%d]", path, i), act[i], exp[i]); !r.Passed {
				return r
			}
		}
		return pass()
	}

	if !scalarEquals(actual, expected) {
		return failAt(path, "expected %v, got %v", render(expected), render(actual))
	}
	return pass()
}

// contains checks partial structure: for objects, the expected keys are a
// subset; for arrays, each expected element equals some actual element.
func contains(path string, actual, expected any) *Result {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return failAt(path, "expected object, got %v", render(actual))
		}
		for _, key := range sortedKeys(exp) {
			expVal := exp[key]
			actVal, present := act[key]
			if marker, ok := isMarker(expVal); ok && marker == markerNotPresent {
				if present {
					return failAt(childPath(path, key), "expected key to be absent")
				}
				continue
			}
			if !present {
				return failAt(childPath(path, key), "key missing, expected %v", render(expVal))
			}
			if r := equals(childPath(path, key), actVal, expVal); !r.Passed {
				return r
			}
		}
		return pass()

	case []any:
		act, ok := actual.([]any)
		if !ok {
			return failAt(path, "expected array, got %v", render(actual))
		}
		for i, want := range exp {
			found := false
			for _, have := range act {
				if equals("$", have, want).Passed {
					found = true
					break
				}
			}
			if !found {
				return failAt(fmt.Sprintf("%s[%d]", path, i), "no element matching %v", render(want))
			}
		}
		return pass()
	}

	// scalar contains: substring for strings, equality otherwise
	if actStr, ok := actual.(string); ok {
		if expStr, ok := expected.(string); ok {
			if strings.Contains(actStr, expStr) {
				return pass()
			}
			return failAt(path, "%q does not contain %q", actStr, expStr)
		}
	}
	return equals(path, actual, expected)
}

func scalarEquals(a, b any) bool {
	if an, ok := asNumber(a); ok {
		bn, ok := asNumber(b)
		return ok && an == bn
	}
	return a == b
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func childPath(path, key string) string {
	return path + "." + key
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func render(v any) string {
	if v == nil {
		return "null"
	}
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", v)
}
