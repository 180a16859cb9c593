package runtime

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featlabs/featrun/packages/gherkin"
)

func writeFeature(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runSuite(t *testing.T, opts Options) *SuiteResult {
	t.Helper()
	suite, err := NewSuite(opts)
	require.NoError(t, err)
	return suite.Run()
}

func runOneFeature(t *testing.T, content string) *FeatureResult {
	t.Helper()
	dir := t.TempDir()
	path := writeFeature(t, dir, "one.feature", content)
	result := runSuite(t, Options{Paths: []string{path}})
	require.Len(t, result.FeatureResults, 1)
	return result.FeatureResults[0]
}

func TestSuite_BackgroundSharedAcrossScenarios(t *testing.T) {
	fr := runOneFeature(t, `
Feature: background sharing

Background:
  * def shared = 'from-background'

Scenario: first
  * assert shared == 'from-background'

Scenario: second
  * assert shared == 'from-background'
`)
	assert.Equal(t, 2, fr.PassedCount())
	assert.Equal(t, 0, fr.FailedCount())
}

func TestSuite_FailingStepStopsScenario(t *testing.T) {
	fr := runOneFeature(t, `
Feature: stop on failure

Scenario: fails midway
  * def a = 1
  * assert a == 2
  * def never = 'unreached'
`)
	assert.Equal(t, 1, fr.FailedCount())

	sr := fr.ScenarioResults[0]
	require.Len(t, sr.StepResults, 3)
	assert.Equal(t, StepPassed, sr.StepResults[0].Status)
	assert.Equal(t, StepFailed, sr.StepResults[1].Status)
	assert.Equal(t, StepSkipped, sr.StepResults[2].Status)
	assert.Contains(t, sr.FailureMessage(), "a == 2")
	assert.NotContains(t, sr.Variables, "never")
}

func TestSuite_OutlineStaticRows(t *testing.T) {
	fr := runOneFeature(t, `
Feature: static outlines

Scenario Outline: add <a> and <b>
  * assert <a> + <b> == <total>

  Examples:
    | a! | b! | total! |
    | 1  | 2  | 3      |
    | 2  | 2  | 5      |
`)
	require.Len(t, fr.ScenarioResults, 2)
	assert.Equal(t, 1, fr.PassedCount())
	assert.Equal(t, 1, fr.FailedCount())
	assert.Equal(t, "add 1 and 2", fr.ScenarioResults[0].Scenario.Name)
	assert.Equal(t, "add 2 and 2", fr.ScenarioResults[1].Scenario.Name)
}

func TestSuite_OutlineRowVariables(t *testing.T) {
	fr := runOneFeature(t, `
Feature: row bindings

Scenario Outline: row <name>
  * assert name == '<name>'
  * assert __row.name == name
  * assert __num >= 0

  Examples:
    | name  |
    | alice |
    | bob   |
`)
	assert.Equal(t, 2, fr.PassedCount())
	assert.Equal(t, 0, fr.FailedCount())
}

func TestSuite_OutlineDynamicList(t *testing.T) {
	fr := runOneFeature(t, `
Feature: dynamic list

Scenario Outline: element <n>
  * assert <n> > 0

  Examples:
    | [{ n: 1 }, { n: 2 }, { n: 3 }] |
`)
	assert.Equal(t, 3, fr.PassedCount())
}

func TestSuite_OutlineGeneratorStopsAtSentinel(t *testing.T) {
	fr := runOneFeature(t, `
Feature: generator

@setup
Scenario: produce generator
  * def gen = i => i == 3 ? null : { n: i }

Scenario Outline: generated <n>
  * assert <n> >= 0

  Examples:
    | karate.setup().gen |
`)
	assert.Equal(t, 3, fr.PassedCount())
	assert.Equal(t, 0, fr.FailedCount())
}

func TestSuite_MissingSetupIsFeatureError(t *testing.T) {
	fr := runOneFeature(t, `
Feature: no setup here

Scenario Outline: wanted <n>
  * assert <n> > 0

  Examples:
    | karate.setup().data |
`)
	require.NotEmpty(t, fr.Errors)
	assert.Contains(t, fr.Errors[0], "no scenario tagged @setup")
	assert.True(t, fr.Failed())
	// the outline contributed no scenarios, but the run completed
	assert.Empty(t, fr.ScenarioResults)
}

func TestSuite_SetupOnceSharedAcrossOutlines(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	fr := runOneFeature(t, fmt.Sprintf(`
Feature: setupOnce caching

@setup
Scenario: produce rows
  * url '%s'
  * method get
  * def data = [{ n: 'a' }, { n: 'b' }]

Scenario Outline: first <n>
  * assert '<n>' != ''

  Examples:
    | karate.setupOnce().data |

Scenario Outline: second <n>
  * assert '<n>' != ''

  Examples:
    | karate.setupOnce().data |
`, server.URL))
	assert.Equal(t, 4, fr.PassedCount())
	assert.Equal(t, int64(1), hits.Load())
}

func TestSuite_SetupReinvokedPerUse(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	fr := runOneFeature(t, fmt.Sprintf(`
Feature: setup without caching

@setup
Scenario: produce rows
  * url '%s'
  * method get
  * def data = [{ n: 'a' }]

Scenario Outline: first <n>
  * assert '<n>' == 'a'

  Examples:
    | karate.setup().data |

Scenario Outline: second <n>
  * assert '<n>' == 'a'

  Examples:
    | karate.setup().data |
`, server.URL))
	assert.Equal(t, 2, fr.PassedCount())
	assert.Equal(t, int64(2), hits.Load())
}

func TestSuite_TagSelection(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "tagged.feature", `
Feature: tagged

@smoke
Scenario: smoke test
  * assert true

@slow
Scenario: slow test
  * assert true
`)

	result := runSuite(t, Options{Paths: []string{dir}, Tags: []string{"@smoke"}})
	require.Len(t, result.FeatureResults, 1)
	fr := result.FeatureResults[0]
	require.Len(t, fr.ScenarioResults, 1)
	assert.Equal(t, "smoke test", fr.ScenarioResults[0].Scenario.Name)

	result = runSuite(t, Options{Paths: []string{dir}, Tags: []string{"~@slow"}})
	fr = result.FeatureResults[0]
	require.Len(t, fr.ScenarioResults, 1)
	assert.Equal(t, "smoke test", fr.ScenarioResults[0].Scenario.Name)
}

func TestSuite_IgnoreAndSetupNeverSelected(t *testing.T) {
	fr := runOneFeature(t, `
Feature: exclusions

@ignore
Scenario: ignored
  * assert false

@setup
Scenario: setup data
  * def data = []

Scenario: normal
  * assert true
`)
	require.Len(t, fr.ScenarioResults, 1)
	assert.Equal(t, "normal", fr.ScenarioResults[0].Scenario.Name)
}

func TestSuite_EnvTags(t *testing.T) {
	content := `
Feature: env gated

@env=dev
Scenario: dev only
  * assert true

@envnot=prod
Scenario: not in prod
  * assert true
`
	dir := t.TempDir()
	path := writeFeature(t, dir, "env.feature", content)

	result := runSuite(t, Options{Paths: []string{path}, Env: "dev"})
	assert.Equal(t, 2, result.ScenariosPassed())

	result = runSuite(t, Options{Paths: []string{path}, Env: "prod"})
	assert.Equal(t, 0, result.ScenariosPassed())
}

func TestSuite_FailTagInversion(t *testing.T) {
	fr := runOneFeature(t, `
Feature: expected failures

@fail
Scenario: fails as expected
  * assert 1 == 2

@fail
Scenario: passes unexpectedly
  * assert 1 == 1
`)
	assert.Equal(t, 1, fr.PassedCount())
	assert.Equal(t, 1, fr.FailedCount())

	inverted := fr.ScenarioResults[0]
	assert.False(t, inverted.Failed())
	for _, step := range inverted.StepResults {
		assert.Equal(t, StepPassed, step.Status)
	}

	unexpected := fr.ScenarioResults[1]
	assert.Contains(t, unexpected.FailureMessage(), "expected to fail")
}

func TestSuite_ContinueOnStepFailure(t *testing.T) {
	fr := runOneFeature(t, `
Feature: continue

Scenario: keeps going
  * configure continueOnStepFailure = true
  * assert 1 == 2
  * def after = 'ran'
  * assert 2 == 3
  * assert after == 'ran'
`)
	sr := fr.ScenarioResults[0]
	require.Len(t, sr.StepResults, 5)
	assert.Equal(t, StepFailed, sr.StepResults[1].Status)
	assert.Equal(t, StepPassed, sr.StepResults[2].Status)
	assert.Equal(t, StepFailed, sr.StepResults[3].Status)
	assert.Equal(t, StepPassed, sr.StepResults[4].Status)

	// the scenario still fails, reporting the first deferred failure
	assert.True(t, sr.Failed())
	assert.Contains(t, sr.FailureMessage(), "1 == 2")
}

func TestSuite_ContinueOnStepFailureFlipBack(t *testing.T) {
	fr := runOneFeature(t, `
Feature: flip back

Scenario: stops at the flip
  * configure continueOnStepFailure = true
  * assert 1 == 2
  * configure continueOnStepFailure = false
  * def never = 'unreached'
`)
	sr := fr.ScenarioResults[0]
	require.Len(t, sr.StepResults, 4)
	assert.Equal(t, StepFailed, sr.StepResults[2].Status)
	assert.Equal(t, StepSkipped, sr.StepResults[3].Status)
	assert.True(t, sr.Failed())
	assert.NotContains(t, sr.Variables, "never")
}

func TestSuite_HTTPFlow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/widgets", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("verbose"))
		assert.Equal(t, "k1", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 7, "name": "widget"}`))
	}))
	defer server.Close()

	fr := runOneFeature(t, fmt.Sprintf(`
Feature: widget api

Scenario: create a widget
  * url '%s'
  * path 'widgets'
  * param verbose = 'true'
  * header X-Api-Key = 'k1'
  * request { name: 'widget', size: 2 }
  * method post
  * status 201
  * match response == { id: '#number', name: 'widget' }
  * def createdId = response.id
  * assert createdId == 7
`, server.URL))
	require.Empty(t, fr.Errors)
	assert.Equal(t, 1, fr.PassedCount())
	assert.Equal(t, 0, fr.FailedCount())
}

func TestSuite_StatusMismatchIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "missing field"}`))
	}))
	defer server.Close()

	fr := runOneFeature(t, fmt.Sprintf(`
Feature: status check

Scenario: expects created
  * url '%s'
  * method get
  * status 201
`, server.URL))
	sr := fr.ScenarioResults[0]
	assert.True(t, sr.Failed())
	assert.Contains(t, sr.FailureMessage(), "expected 201 but was 400")
	assert.Contains(t, sr.FailureMessage(), "missing field")
}

func TestSuite_RetryUntilConverges(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.Write([]byte(`{"status": "pending"}`))
			return
		}
		w.Write([]byte(`{"status": "ready"}`))
	}))
	defer server.Close()

	fr := runOneFeature(t, fmt.Sprintf(`
Feature: polling

Scenario: waits for readiness
  * configure retry = { count: 5, interval: 10 }
  * url '%s'
  * retry until response.status == 'ready'
  * method get
  * status 200
  * match response == { status: 'ready' }
`, server.URL))
	require.Empty(t, fr.Errors)
	assert.Equal(t, 1, fr.PassedCount(), fr.ScenarioResults[0].FailureMessage())
	assert.Equal(t, int64(3), hits.Load())
}

func TestSuite_RetryExhaustionFailsWithLastState(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"status": "pending"}`))
	}))
	defer server.Close()

	fr := runOneFeature(t, fmt.Sprintf(`
Feature: polling forever

Scenario: gives up
  * configure retry = { count: 2, interval: 10 }
  * url '%s'
  * retry until response.status == 'ready'
  * method get
`, server.URL))
	sr := fr.ScenarioResults[0]
	assert.True(t, sr.Failed())
	assert.Contains(t, sr.FailureMessage(), "retry failed after 2 attempts")
	assert.Equal(t, int64(2), hits.Load())
	// the last response stays bound for inspection
	assert.Equal(t, map[string]any{"status": "pending"}, sr.Variables["response"])
}

func TestSuite_RetryOnlyArmsNextMethod(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	fr := runOneFeature(t, fmt.Sprintf(`
Feature: retry scope

Scenario: second call is plain
  * configure retry = { count: 5, interval: 10 }
  * url '%s'
  * retry until response.ok == true
  * method get
  * method get
`, server.URL))
	assert.Equal(t, 1, fr.PassedCount())
	assert.Equal(t, int64(2), hits.Load())
}

func TestSuite_CallSharedScope(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "auth.feature", `
@ignore
Feature: auth helper

Scenario: issue token
  * def token = 'secret'
`)
	path := writeFeature(t, dir, "main.feature", `
Feature: caller

Scenario: bare call shares scope
  * call read('auth.feature')
  * assert token == 'secret'
`)

	result := runSuite(t, Options{Paths: []string{path}})
	assert.Equal(t, 1, result.ScenariosPassed())
	assert.Equal(t, 0, result.ScenariosFailed())
}

func TestSuite_CallIsolatedScope(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "auth.feature", `
@ignore
Feature: auth helper

Scenario: issue token
  * def token = 'secret'
`)
	path := writeFeature(t, dir, "main.feature", `
Feature: caller

Scenario: assigned call stays isolated
  * def result = call read('auth.feature')
  * assert result.token == 'secret'
  * assert karate.get('token') == null
`)

	result := runSuite(t, Options{Paths: []string{path}})
	assert.Equal(t, 1, result.ScenariosPassed())
	assert.Equal(t, 0, result.ScenariosFailed())
}

func TestSuite_CallWithArgument(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "greet.feature", `
@ignore
Feature: greeter

Scenario: build greeting
  * def greeting = 'hello ' + who
`)
	path := writeFeature(t, dir, "main.feature", `
Feature: caller

Scenario: passes an argument
  * def result = call read('greet.feature') { who: 'alice' }
  * assert result.greeting == 'hello alice'
`)

	result := runSuite(t, Options{Paths: []string{path}})
	assert.Equal(t, 1, result.ScenariosPassed())
	assert.Equal(t, 0, result.ScenariosFailed())
}

func TestSuite_CallLoopOverList(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "greet.feature", `
@ignore
Feature: greeter

Scenario: build greeting
  * def greeting = 'hello ' + who
`)
	path := writeFeature(t, dir, "main.feature", `
Feature: caller

Scenario: loops over the argument list
  * def results = call read('greet.feature') [{ who: 'a' }, { who: 'b' }]
  * assert karate.sizeOf(results) == 2
  * assert results[0].greeting == 'hello a'
  * assert results[1].greeting == 'hello b'
`)

	result := runSuite(t, Options{Paths: []string{path}})
	assert.Equal(t, 1, result.ScenariosPassed())
	assert.Equal(t, 0, result.ScenariosFailed())
}

func TestSuite_CallTaggedScenarioInSameFeature(t *testing.T) {
	fr := runOneFeature(t, `
Feature: self call

@helper
Scenario: helper
  * def helped = true

Scenario: uses helper
  * call read('@helper')
  * assert helped == true
`)
	// the @helper scenario also runs on its own; both pass
	assert.Equal(t, 2, fr.PassedCount())
	assert.Equal(t, 0, fr.FailedCount())
}

func TestSuite_CallonceRunsOncePerFeature(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"token": "secret"}`))
	}))
	defer server.Close()

	dir := t.TempDir()
	writeFeature(t, dir, "auth.feature", fmt.Sprintf(`
@ignore
Feature: auth helper

Scenario: fetch token
  * url '%s'
  * method get
  * def token = response.token
`, server.URL))
	path := writeFeature(t, dir, "main.feature", `
Feature: callonce caching

Background:
  * callonce read('auth.feature')

Scenario: first
  * assert token == 'secret'

Scenario: second
  * assert token == 'secret'

Scenario: third
  * assert token == 'secret'
`)

	result := runSuite(t, Options{Paths: []string{path}})
	assert.Equal(t, 3, result.ScenariosPassed())
	assert.Equal(t, 0, result.ScenariosFailed())
	assert.Equal(t, int64(1), hits.Load())
}

func TestSuite_CallonceReplaysOnlyCalledFeatureOutput(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "auth.feature", `
@ignore
Feature: auth helper

Scenario: fixed token
  * def token = 'secret'
`)
	// "private" is defined by the first scenario before its callonce step;
	// the cached entry must not carry it into the second scenario.
	path := writeFeature(t, dir, "main.feature", `
Feature: callonce scope

Scenario: first caller
  * def private = 'mine'
  * callonce read('auth.feature')
  * assert token == 'secret'
  * assert private == 'mine'

Scenario: second caller
  * callonce read('auth.feature')
  * assert token == 'secret'
  * assert karate.get('private') == null
`)

	result := runSuite(t, Options{Paths: []string{path}})
	assert.Equal(t, 2, result.ScenariosPassed())
	assert.Equal(t, 0, result.ScenariosFailed())
}

func TestSuite_CallSingleSharedAcrossFeatures(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"token": "secret"}`))
	}))
	defer server.Close()

	dir := t.TempDir()
	writeFeature(t, dir, "auth.feature", fmt.Sprintf(`
@ignore
Feature: auth helper

Scenario: fetch token
  * url '%s'
  * method get
  * def token = response.token
`, server.URL))
	for _, name := range []string{"a.feature", "b.feature", "c.feature"} {
		writeFeature(t, dir, name, `
Feature: shared auth

Scenario: uses shared token
  * def auth = karate.callSingle('auth.feature')
  * assert auth.token == 'secret'
`)
	}

	result := runSuite(t, Options{Paths: []string{dir}, ThreadCount: 3})
	assert.Equal(t, 3, result.ScenariosPassed())
	assert.Equal(t, 0, result.ScenariosFailed())
	assert.Equal(t, int64(1), hits.Load())
}

func TestSuite_CallSingleIgnoresArgumentsInKey(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	dir := t.TempDir()
	writeFeature(t, dir, "calc.feature", fmt.Sprintf(`
@ignore
Feature: calc helper

Scenario: record input
  * url '%s'
  * method get
  * def got = a
`, server.URL))
	// Same path, different arguments: the second caller must observe the
	// first caller's cached result, not a fresh run with a = 2.
	writeFeature(t, dir, "first.feature", `
Feature: first caller

Scenario: runs the helper
  * def r = karate.callSingle('calc.feature', { a: 1 })
  * assert r.got == 1
`)
	writeFeature(t, dir, "second.feature", `
Feature: second caller

Scenario: sees the first result
  * def r = karate.callSingle('calc.feature', { a: 2 })
  * assert r.got == 1
`)

	result := runSuite(t, Options{Paths: []string{dir}, ThreadCount: 1})
	assert.Equal(t, 2, result.ScenariosPassed())
	assert.Equal(t, 0, result.ScenariosFailed())
	assert.Equal(t, int64(1), hits.Load())
}

func TestSuite_DryRunExecutesNothing(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	dir := t.TempDir()
	path := writeFeature(t, dir, "dry.feature", fmt.Sprintf(`
Feature: dry run

Scenario: would fail for real
  * url '%s'
  * method get
  * assert 1 == 2
`, server.URL))

	result := runSuite(t, Options{Paths: []string{path}, DryRun: true})
	assert.Equal(t, 1, result.ScenariosPassed())
	assert.Equal(t, 0, result.ScenariosFailed())
	assert.Equal(t, int64(0), hits.Load())

	for _, step := range result.FeatureResults[0].ScenarioResults[0].StepResults {
		assert.Equal(t, StepPassed, step.Status)
	}
}

func TestSuite_ScenarioNameFilter(t *testing.T) {
	dir := t.TempDir()
	path := writeFeature(t, dir, "names.feature", `
Feature: names

Scenario: create user
  * assert true

Scenario: delete user
  * assert true
`)

	result := runSuite(t, Options{Paths: []string{path}, ScenarioName: "delete"})
	fr := result.FeatureResults[0]
	require.Len(t, fr.ScenarioResults, 1)
	assert.Equal(t, "delete user", fr.ScenarioResults[0].Scenario.Name)
}

func TestSuite_KarateAbort(t *testing.T) {
	fr := runOneFeature(t, `
Feature: abort

Scenario: stops early without failing
  * def a = 1
  * eval karate.abort()
  * assert false
`)
	sr := fr.ScenarioResults[0]
	assert.False(t, sr.Failed())
	require.Len(t, sr.StepResults, 3)
	assert.Equal(t, StepSkipped, sr.StepResults[2].Status)
}

func TestSuite_ParseErrorBecomesFeatureError(t *testing.T) {
	dir := t.TempDir()
	path := writeFeature(t, dir, "broken.feature", `
Feature: broken

Scenario: unterminated docstring
  * request
    """
    { "a": 1 }
`)

	result := runSuite(t, Options{Paths: []string{path}})
	require.Len(t, result.FeatureResults, 1)
	assert.NotEmpty(t, result.FeatureResults[0].Errors)
	assert.True(t, result.Failed())
	assert.Equal(t, 1, result.FeaturesFailed())

	msgs := result.ErrorMessages()
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[0], "broken.feature")
}

func TestSuite_ConfigFaultsFailConstruction(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "ok.feature", "Feature: ok\n\nScenario: s\n  * assert true\n")

	_, err := NewSuite(Options{Paths: []string{filepath.Join(dir, "nope")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path not found")

	_, err = NewSuite(Options{Paths: []string{dir}, Tags: []string{"anyOf("}})
	require.Error(t, err)

	_, err = NewSuite(Options{Paths: []string{t.TempDir()}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no feature files found")
}

type vetoScenarioHook struct {
	HookAdapter
	name string
}

func (h *vetoScenarioHook) BeforeScenario(sr *ScenarioRuntime) bool {
	return sr.Scenario().Name != h.name
}

func TestSuite_HookVetoExcludesScenario(t *testing.T) {
	dir := t.TempDir()
	path := writeFeature(t, dir, "veto.feature", `
Feature: veto

Scenario: first
  * assert true

Scenario: second
  * assert true
`)

	result := runSuite(t, Options{
		Paths: []string{path},
		Hooks: []RuntimeHook{&vetoScenarioHook{name: "second"}},
	})
	fr := result.FeatureResults[0]
	require.Len(t, fr.ScenarioResults, 2)
	assert.Equal(t, 1, fr.PassedCount())
	assert.Equal(t, 0, fr.FailedCount())
	assert.True(t, fr.ScenarioResults[1].Excluded)
	assert.Empty(t, fr.ScenarioResults[1].StepResults)
}

func TestSuite_ListenerVetoExcludesScenario(t *testing.T) {
	dir := t.TempDir()
	path := writeFeature(t, dir, "veto.feature", `
Feature: veto

Scenario: first
  * assert true

Scenario: second
  * assert true
`)

	veto := RunListenerFunc(func(e RunEvent) bool {
		return !(e.Type == ScenarioEnter && e.ScenarioName == "second")
	})
	result := runSuite(t, Options{Paths: []string{path}, Listeners: []RunListener{veto}})
	fr := result.FeatureResults[0]
	assert.Equal(t, 1, fr.PassedCount())
	assert.True(t, fr.ScenarioResults[1].Excluded)
}

type recordingListener struct {
	mu    sync.Mutex
	types []RunEventType
}

func (l *recordingListener) OnEvent(e RunEvent) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.types = append(l.types, e.Type)
	return true
}

func TestSuite_EventSequence(t *testing.T) {
	dir := t.TempDir()
	path := writeFeature(t, dir, "seq.feature", `
Feature: sequence

Scenario: one step
  * assert true
`)

	rec := &recordingListener{}
	runSuite(t, Options{Paths: []string{path}, Listeners: []RunListener{rec}})

	assert.Equal(t, []RunEventType{
		SuiteEnter,
		FeatureEnter,
		ScenarioEnter,
		StepEnter,
		StepExit,
		ScenarioExit,
		FeatureExit,
		ProgressEvent,
		SuiteExit,
	}, rec.types)
}

type countingFactory struct {
	creates atomic.Int64
}

func (f *countingFactory) Create() RunListener {
	f.creates.Add(1)
	return &recordingListener{}
}

func TestSuite_WorkerListenerFactories(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 4; i++ {
		writeFeature(t, dir, fmt.Sprintf("f%d.feature", i), fmt.Sprintf(`
Feature: parallel %d

Scenario: runs
  * assert true
`, i))
	}

	factory := &countingFactory{}
	result := runSuite(t, Options{
		Paths:             []string{dir},
		ThreadCount:       2,
		ListenerFactories: []RunListenerFactory{factory},
	})
	assert.Equal(t, 4, result.ScenariosPassed())
	assert.Equal(t, int64(2), factory.creates.Load())
	// results come back in path order regardless of which worker ran them
	require.Len(t, result.FeatureResults, 4)
	for i, fr := range result.FeatureResults {
		assert.Equal(t, fmt.Sprintf("parallel %d", i), fr.Feature.Name)
	}
}

func TestSuite_IgnoredFeatureSkipsEntirely(t *testing.T) {
	rec := &recordingListener{}
	dir := t.TempDir()
	path := writeFeature(t, dir, "ignored.feature", `
@ignore
Feature: ignored

Scenario: never runs
  * assert false
`)

	result := runSuite(t, Options{Paths: []string{path}, Listeners: []RunListener{rec}})
	assert.Equal(t, 0, result.ScenariosPassed())
	assert.Equal(t, 0, result.ScenariosFailed())
	assert.False(t, result.Failed())
	assert.NotContains(t, rec.types, FeatureEnter)
}

func TestSuite_ReadJSONFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payload.json"), []byte(`{"name": "widget"}`), 0o644))
	path := writeFeature(t, dir, "read.feature", `
Feature: reading files

Scenario: json file
  * def payload = read('payload.json')
  * assert payload.name == 'widget'
`)

	result := runSuite(t, Options{Paths: []string{path}})
	assert.Equal(t, 1, result.ScenariosPassed())
	assert.Equal(t, 0, result.ScenariosFailed())
}

func TestSuite_PreParsedFeatures(t *testing.T) {
	f, err := gherkin.Parse(`
Feature: in memory

Scenario: runs
  * assert true
`, "memory.feature")
	require.NoError(t, err)

	result := runSuite(t, Options{Features: []*gherkin.Feature{f}})
	assert.Equal(t, 1, result.ScenariosPassed())
}
