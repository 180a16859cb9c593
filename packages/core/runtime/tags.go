package runtime

import (
	"fmt"
	"strings"

	"github.com/featlabs/featrun/packages/eval"
	"github.com/featlabs/featrun/packages/gherkin"
)

// TagSelector evaluates a tag-selection expression against the effective
// tags of a scenario. Selector expressions use the functions anyOf, allOf,
// not and valuesFor, bound over the scenario's tag set.
type TagSelector struct {
	texts  map[string]bool
	values map[string][]string
}

// NewTagSelector builds a selector context from the effective tags of a
// scenario (feature tags plus scenario tags plus examples-table tags).
func NewTagSelector(tags []gherkin.Tag) *TagSelector {
	ts := &TagSelector{
		texts:  make(map[string]bool),
		values: make(map[string][]string),
	}
	for _, t := range tags {
		ts.texts["@"+t.Text()] = true
		ts.texts["@"+t.Name] = true
		if len(t.Values) > 0 {
			ts.values[t.Name] = t.Values
		}
	}
	return ts
}

func (ts *TagSelector) contains(names ...any) bool {
	for _, n := range names {
		s, ok := n.(string)
		if !ok {
			continue
		}
		if !strings.HasPrefix(s, "@") {
			s = "@" + s
		}
		if ts.texts[s] {
			return true
		}
	}
	return false
}

func (ts *TagSelector) containsAll(names ...any) bool {
	for _, n := range names {
		s, ok := n.(string)
		if !ok {
			return false
		}
		if !strings.HasPrefix(s, "@") {
			s = "@" + s
		}
		if !ts.texts[s] {
			return false
		}
	}
	return true
}

// Evaluate runs the selector expression. An empty selector selects
// everything not implicitly excluded. The env rules run first: @ignore and
// @setup always exclude, @env= requires an env match when env is set,
// @envnot= excludes on a match.
func (ts *TagSelector) Evaluate(selector, env string) (bool, error) {
	if ts.texts["@"+gherkin.TagIgnore] || ts.texts["@"+gherkin.TagSetup] {
		return false, nil
	}
	if envs, ok := ts.values[gherkin.TagEnv]; ok {
		if env == "" || !containsString(envs, env) {
			return false, nil
		}
	}
	if envs, ok := ts.values[gherkin.TagEnvNot]; ok {
		if env != "" && containsString(envs, env) {
			return false, nil
		}
	}
	if selector == "" {
		return true, nil
	}
	engine := eval.NewEngine()
	ts.bind(engine)
	v, err := engine.Eval(selector)
	if err != nil {
		return false, fmt.Errorf("tag selector: %w", err)
	}
	return eval.IsTruthy(v), nil
}

func (ts *TagSelector) bind(engine *eval.Engine) {
	engine.SetHidden("anyOf", eval.Callable(func(args ...any) (any, error) {
		return ts.contains(args...), nil
	}))
	engine.SetHidden("allOf", eval.Callable(func(args ...any) (any, error) {
		return ts.containsAll(args...), nil
	}))
	engine.SetHidden("not", eval.Callable(func(args ...any) (any, error) {
		return !ts.contains(args...), nil
	}))
	engine.SetHidden("valuesFor", eval.Callable(func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("valuesFor expects one tag name")
		}
		name, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("valuesFor expects a string, got %T", args[0])
		}
		name = strings.TrimPrefix(name, "@")
		values, present := ts.values[name]
		return valuesView(values, present), nil
	}))
}

// valuesView exposes the values of one tag with membership predicates.
// On an absent tag every predicate returns false.
func valuesView(values []string, present bool) map[string]any {
	return map[string]any{
		"isPresent": present,
		"isOnly": eval.Callable(func(args ...any) (any, error) {
			// Set equality: every argument is present and nothing else is.
			if !present || len(args) != len(values) {
				return false, nil
			}
			for _, a := range args {
				if !containsString(values, eval.Stringify(a)) {
					return false, nil
				}
			}
			return true, nil
		}),
		"isAnyOf": eval.Callable(func(args ...any) (any, error) {
			if !present {
				return false, nil
			}
			for _, a := range args {
				if containsString(values, eval.Stringify(a)) {
					return true, nil
				}
			}
			return false, nil
		}),
		"isAllOf": eval.Callable(func(args ...any) (any, error) {
			if !present {
				return false, nil
			}
			for _, a := range args {
				if !containsString(values, eval.Stringify(a)) {
					return false, nil
				}
			}
			return true, nil
		}),
		"isEach": eval.Callable(func(args ...any) (any, error) {
			if !present {
				return false, nil
			}
			if len(args) != 1 {
				return nil, fmt.Errorf("isEach expects one predicate")
			}
			pred, ok := args[0].(eval.Callable)
			if !ok {
				return nil, fmt.Errorf("isEach expects a function, got %T", args[0])
			}
			for _, v := range values {
				r, err := pred(v)
				if err != nil {
					return nil, err
				}
				if !eval.IsTruthy(r) {
					return false, nil
				}
			}
			return true, nil
		}),
	}
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// TranslateTagSelector converts the shorthand comma-delimited form used on
// the command line into a selector expression. A value already containing a
// function call passes through untouched. Within one argument, commas mean
// OR; separate arguments are ANDed.
func TranslateTagSelector(args []string) string {
	var clauses []string
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		if strings.Contains(arg, "(") {
			clauses = append(clauses, arg)
			continue
		}
		var include, exclude []string
		for _, tag := range strings.Split(arg, ",") {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			if strings.HasPrefix(tag, "~") {
				exclude = append(exclude, quoteTag(strings.TrimPrefix(tag, "~")))
			} else {
				include = append(include, quoteTag(tag))
			}
		}
		if len(exclude) > 0 {
			clauses = append(clauses, "not("+strings.Join(exclude, ",")+")")
		}
		if len(include) > 0 {
			clauses = append(clauses, "anyOf("+strings.Join(include, ",")+")")
		}
	}
	return strings.Join(clauses, " && ")
}

func quoteTag(tag string) string {
	if !strings.HasPrefix(tag, "@") {
		tag = "@" + tag
	}
	return "'" + tag + "'"
}

// ValidateTagSelector parses and probes the selector once so syntax errors
// fail before any scenario runs.
func ValidateTagSelector(selector string) error {
	if selector == "" {
		return nil
	}
	_, err := NewTagSelector(nil).Evaluate(selector, "")
	return err
}
