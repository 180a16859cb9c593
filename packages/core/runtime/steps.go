package runtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/featlabs/featrun/packages/eval"
	"github.com/featlabs/featrun/packages/gherkin"
	slimhttp "github.com/featlabs/featrun/packages/http"
	"github.com/featlabs/featrun/packages/match"
)

// executeStep dispatches on the step's leading keyword. Anything that is
// not a recognized action is evaluated as a bare expression.
func executeStep(sr *ScenarioRuntime, step *gherkin.Step) error {
	text := strings.TrimSpace(step.Text)
	action, rest := splitAction(text)
	switch action {
	case "def":
		return stepDef(sr, rest, step)
	case "text":
		return stepText(sr, rest, step)
	case "assert":
		return stepAssert(sr, rest)
	case "match":
		return stepMatch(sr, rest, step)
	case "print":
		return stepPrint(sr, rest)
	case "url":
		return stepURL(sr, rest)
	case "path":
		return stepPath(sr, rest)
	case "param":
		return stepParam(sr, rest)
	case "header":
		return stepHeader(sr, rest)
	case "cookie":
		return stepCookie(sr, rest)
	case "request":
		return stepRequest(sr, rest, step)
	case "method":
		return stepMethod(sr, rest)
	case "status":
		return stepStatus(sr, rest)
	case "call":
		_, err := stepCall(sr, rest, true)
		return err
	case "callonce":
		return stepCallonce(sr, rest)
	case "configure":
		return stepConfigure(sr, rest)
	case "retry":
		return stepRetry(sr, rest)
	case "eval":
		_, err := sr.engine.Eval(rest)
		return err
	default:
		_, err := sr.engine.Eval(text)
		return err
	}
}

func splitAction(text string) (string, string) {
	i := strings.IndexByte(text, ' ')
	if i < 0 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i+1:])
}

// rhsValue resolves the right-hand side of an assignment step: docstring
// (parsed as JSON when valid), data table (list of row maps), or an
// expression.
func rhsValue(sr *ScenarioRuntime, expr string, step *gherkin.Step) (any, error) {
	if step.Docstring != "" {
		return docstringValue(step.Docstring), nil
	}
	if step.Table != nil {
		return tableRows(step.Table), nil
	}
	if strings.HasPrefix(expr, "call ") {
		return stepCall(sr, strings.TrimSpace(strings.TrimPrefix(expr, "call ")), false)
	}
	return sr.engine.Eval(expr)
}

func docstringValue(doc string) any {
	trimmed := strings.TrimSpace(doc)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return doc
}

// tableRows turns a step data table into a list of row maps, applying the
// type-hint rule used by Examples tables.
func tableRows(table *gherkin.Table) []any {
	rows := make([]any, 0, table.RowCount())
	for r := 0; r < table.RowCount(); r++ {
		row := make(map[string]any, len(table.Header))
		for c := range table.Header {
			cell := table.Cell(r, c)
			if !table.TypeHinted(c) {
				row[table.ColumnName(c)] = cell
				continue
			}
			if cell == "" {
				row[table.ColumnName(c)] = nil
				continue
			}
			if v, err := eval.NewEngine().Eval(cell); err == nil {
				row[table.ColumnName(c)] = v
			} else {
				row[table.ColumnName(c)] = cell
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func splitAssignment(text string) (string, string, error) {
	i := strings.Index(text, "=")
	if i < 0 {
		return "", "", fmt.Errorf("expected 'name = value', got %q", text)
	}
	name := strings.TrimSpace(text[:i])
	if name == "" {
		return "", "", fmt.Errorf("missing name in assignment %q", text)
	}
	return name, strings.TrimSpace(text[i+1:]), nil
}

func stepDef(sr *ScenarioRuntime, text string, step *gherkin.Step) error {
	name, expr, err := splitAssignment(text)
	if err != nil {
		return err
	}
	v, err := rhsValue(sr, expr, step)
	if err != nil {
		return err
	}
	sr.engine.Set(name, v)
	return nil
}

// stepText assigns the docstring verbatim, never parsing it as JSON.
func stepText(sr *ScenarioRuntime, text string, step *gherkin.Step) error {
	name, _, err := splitAssignment(text)
	if err != nil {
		return err
	}
	if step.Docstring == "" {
		return fmt.Errorf("text %s needs a docstring", name)
	}
	sr.engine.Set(name, step.Docstring)
	return nil
}

func stepAssert(sr *ScenarioRuntime, expr string) error {
	v, err := sr.engine.Eval(expr)
	if err != nil {
		return err
	}
	if !eval.IsTruthy(v) {
		return fmt.Errorf("assert failed: %s", expr)
	}
	return nil
}

// matchOperators in scan priority: "!contains" must be found before
// "contains", "!=" before falling through to "==".
var matchOperators = []struct {
	text string
	op   match.Op
}{
	{" !contains ", match.NotContains},
	{" contains ", match.Contains},
	{" != ", match.NotEquals},
	{" == ", match.Equals},
}

func stepMatch(sr *ScenarioRuntime, text string, step *gherkin.Step) error {
	opIndex := -1
	var op match.Op
	var opLen int
	for _, cand := range matchOperators {
		if i := strings.Index(text, cand.text); i >= 0 && (opIndex < 0 || i < opIndex) {
			opIndex = i
			op = cand.op
			opLen = len(cand.text)
		}
	}
	if opIndex < 0 {
		return fmt.Errorf("match needs an operator (==, !=, contains, !contains): %s", text)
	}
	lhs := strings.TrimSpace(text[:opIndex])
	rhs := strings.TrimSpace(text[opIndex+opLen:])

	actual, err := sr.engine.Eval(lhs)
	if err != nil {
		return err
	}
	var expected any
	if rhs == "" && step.Docstring != "" {
		expected = docstringValue(step.Docstring)
	} else {
		expected, err = sr.engine.Eval(rhs)
		if err != nil {
			return err
		}
	}
	result := match.Match(normalizeJSON(actual), op, normalizeJSON(expected))
	if !result.Passed {
		return fmt.Errorf("match failed: %s %s", text, result.Message)
	}
	return nil
}

// normalizeJSON converts a JSON-looking string into its parsed value so
// matches compare structures, not serialized text.
func normalizeJSON(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return v
	}
	if !gjson.Valid(trimmed) {
		return v
	}
	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return v
	}
	return parsed
}

func stepPrint(sr *ScenarioRuntime, text string) error {
	parts := splitTopLevel(text, ',')
	rendered := make([]string, 0, len(parts))
	for _, part := range parts {
		v, err := sr.engine.Eval(strings.TrimSpace(part))
		if err != nil {
			rendered = append(rendered, strings.TrimSpace(part))
			continue
		}
		rendered = append(rendered, printValue(v))
	}
	sr.pendingLog = append(sr.pendingLog, strings.Join(rendered, " "))
	return nil
}

func printValue(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		if data, err := json.MarshalIndent(v, "", "  "); err == nil {
			return string(data)
		}
	}
	return eval.Stringify(v)
}

func stepURL(sr *ScenarioRuntime, expr string) error {
	v, err := sr.engine.Eval(expr)
	if err != nil {
		return err
	}
	sr.req.BaseURL = eval.Stringify(v)
	return nil
}

func stepPath(sr *ScenarioRuntime, text string) error {
	for _, part := range splitTopLevel(text, ',') {
		v, err := sr.engine.Eval(strings.TrimSpace(part))
		if err != nil {
			return err
		}
		sr.req.Paths = append(sr.req.Paths, eval.Stringify(v))
	}
	return nil
}

func stepParam(sr *ScenarioRuntime, text string) error {
	name, expr, err := splitAssignment(text)
	if err != nil {
		return err
	}
	v, err := sr.engine.Eval(expr)
	if err != nil {
		return err
	}
	sr.req.Params.Add(name, eval.Stringify(v))
	return nil
}

func stepHeader(sr *ScenarioRuntime, text string) error {
	name, expr, err := splitAssignment(text)
	if err != nil {
		return err
	}
	v, err := sr.engine.Eval(expr)
	if err != nil {
		return err
	}
	sr.req.Headers[name] = eval.Stringify(v)
	return nil
}

func stepCookie(sr *ScenarioRuntime, text string) error {
	name, expr, err := splitAssignment(text)
	if err != nil {
		return err
	}
	v, err := sr.engine.Eval(expr)
	if err != nil {
		return err
	}
	sr.cookies[name] = eval.Stringify(v)
	return nil
}

func stepRequest(sr *ScenarioRuntime, expr string, step *gherkin.Step) error {
	v, err := rhsValue(sr, expr, step)
	if err != nil {
		return err
	}
	switch body := v.(type) {
	case string:
		sr.req.Body = []byte(body)
	case nil:
		sr.req.Body = nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("request body: %w", err)
		}
		sr.req.Body = data
	}
	return nil
}

func stepMethod(sr *ScenarioRuntime, verb string) error {
	verb = strings.TrimSpace(verb)
	if verb == "" {
		return fmt.Errorf("method needs an http verb")
	}
	sr.req.Method = strings.ToUpper(verb)
	return invokeHTTP(sr)
}

// invokeHTTP executes the pending request. With retry armed it re-sends
// the same request, re-evaluating the condition after each attempt and
// sleeping the configured interval between them; exhausting every attempt
// fails the step with the last observed state intact.
func invokeHTTP(sr *ScenarioRuntime) error {
	base := sr.req
	condition := sr.retryCondition
	attempts := 1
	interval := time.Duration(0)
	if sr.retryArmed {
		attempts = sr.config.RetryCount
		interval = sr.config.RetryInterval
	}
	sr.retryArmed = false
	sr.retryCondition = ""
	defer sr.resetRequest(base.BaseURL)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(interval)
		}
		req := base.Copy()
		for k, v := range sr.config.Headers {
			if _, exists := req.Headers[k]; !exists {
				req.Headers[k] = v
			}
		}
		for k, v := range sr.cookies {
			if _, exists := req.Cookies[k]; !exists {
				req.Cookies[k] = v
			}
		}
		resp, err := sr.fr.suite.client.Do(req)
		if err != nil {
			lastErr = err
			if condition == "" {
				return err
			}
			continue
		}
		sr.bindResponse(resp)
		lastErr = nil
		if condition == "" {
			return nil
		}
		v, err := sr.engine.Eval(condition)
		if err == nil && eval.IsTruthy(v) {
			return nil
		}
	}
	if lastErr != nil {
		return fmt.Errorf("retry failed after %d attempts: %w", attempts, lastErr)
	}
	return fmt.Errorf("retry failed after %d attempts: %s", attempts, condition)
}

func (sr *ScenarioRuntime) bindResponse(resp *slimhttp.Response) {
	sr.response = resp
	sr.engine.Set("response", resp.BodyValue())
	sr.engine.Set("responseStatus", float64(resp.StatusCode))
	headers := make(map[string]any, len(resp.Headers))
	for k, v := range resp.Headers {
		headers[k] = v
	}
	sr.engine.Set("responseHeaders", headers)
	sr.engine.Set("responseTime", float64(resp.DurationMs()))
	for _, c := range resp.Cookies {
		sr.cookies[c.Name] = c.Value
	}
}

// resetRequest clears per-request builder state, keeping the base URL and
// cookie jar for the rest of the scenario.
func (sr *ScenarioRuntime) resetRequest(baseURL string) {
	sr.req = slimhttp.NewRequest()
	sr.req.BaseURL = baseURL
}

func stepStatus(sr *ScenarioRuntime, text string) error {
	want, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return fmt.Errorf("status expects a number, got %q", text)
	}
	if sr.response == nil {
		return fmt.Errorf("status %d: no response, use a method step first", want)
	}
	if sr.response.StatusCode != want {
		return fmt.Errorf("status expected %d but was %d, response: %s", want, sr.response.StatusCode, sr.response.BodyString())
	}
	return nil
}

// stepCall parses `call <target> [arg]` where target is read('x.feature'),
// a quoted path, or any expression yielding a feature reference. A bare
// call step runs shared-scope; `def x = call ...` runs isolated.
func stepCall(sr *ScenarioRuntime, text string, sharedScope bool) (any, error) {
	targetExpr, argExpr := splitCallText(text)
	target, err := sr.engine.Eval(targetExpr)
	if err != nil {
		return nil, err
	}
	var arg any
	if argExpr != "" {
		arg, err = sr.engine.Eval(argExpr)
		if err != nil {
			return nil, err
		}
	}
	switch t := target.(type) {
	case featureRef:
		path := t.path
		if t.tag != "" {
			path += "@" + t.tag
		}
		return sr.callFeature(path, arg, sharedScope)
	case string:
		return sr.callFeature(t, arg, sharedScope)
	case eval.Callable:
		return t(arg)
	default:
		return nil, fmt.Errorf("call target must be a feature or function, got %T", target)
	}
}

func stepCallonce(sr *ScenarioRuntime, text string) error {
	fr := sr.fr
	fr.callonceMu.Lock()
	defer fr.callonceMu.Unlock()
	if e, ok := fr.callonce[text]; ok {
		if e.err != nil {
			return e.err
		}
		merged, _ := eval.DeepCopy(e.vars).(map[string]any)
		sr.engine.SetAll(merged)
		for _, c := range e.cookies {
			sr.cookies[eval.Stringify(c["name"])] = eval.Stringify(c["value"])
		}
		return nil
	}
	before := sr.engine.Vars()
	beforeCookies := make(map[string]string, len(sr.cookies))
	for name, value := range sr.cookies {
		beforeCookies[name] = value
	}
	_, err := stepCall(sr, text, true)
	e := &callOnceEntry{err: err}
	if err == nil {
		// Cache only what the call produced. Variables the caller already
		// held must not replay into later scenarios' scopes.
		delta := make(map[string]any)
		for k, v := range sr.engine.Vars() {
			if prev, ok := before[k]; !ok || !eval.Equals(prev, v) {
				delta[k] = v
			}
		}
		e.vars = delta
		for name, value := range sr.cookies {
			if prev, ok := beforeCookies[name]; !ok || prev != value {
				e.cookies = append(e.cookies, map[string]any{"name": name, "value": value})
			}
		}
	}
	fr.callonce[text] = e
	return err
}

func stepConfigure(sr *ScenarioRuntime, text string) error {
	key, expr, err := splitAssignment(text)
	if err != nil {
		return err
	}
	v, err := sr.engine.Eval(expr)
	if err != nil {
		return err
	}
	if err := sr.config.Set(key, v); err != nil {
		return err
	}
	// turning continuation off with a failure pending converts the
	// deferred failure into a hard stop right here
	if key == "continueOnStepFailure" && !sr.config.ContinueOnStepFailure && sr.hasIgnoredFailure {
		return sr.firstIgnoredError
	}
	return nil
}

func stepRetry(sr *ScenarioRuntime, text string) error {
	condition := strings.TrimSpace(strings.TrimPrefix(text, "until"))
	if condition == "" {
		return fmt.Errorf("retry needs a condition: retry until <expression>")
	}
	sr.retryArmed = true
	sr.retryCondition = condition
	return nil
}

// splitCallText splits a call step into the target expression and the
// optional argument expression that follows it.
func splitCallText(text string) (string, string) {
	text = strings.TrimSpace(text)
	depth := 0
	inString := byte(0)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString != 0 {
			if c == inString {
				inString = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			inString = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ' ':
			if depth == 0 {
				return text[:i], strings.TrimSpace(text[i:])
			}
		}
	}
	return text, ""
}

// splitTopLevel splits on sep outside strings, parens and brackets.
func splitTopLevel(text string, sep byte) []string {
	var parts []string
	depth := 0
	inString := byte(0)
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString != 0 {
			if c == inString {
				inString = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			inString = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		default:
			if c == sep && depth == 0 {
				parts = append(parts, text[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, text[start:])
	return parts
}
