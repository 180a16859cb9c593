package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featlabs/featrun/packages/core/runtime"
	"github.com/featlabs/featrun/packages/gherkin"
)

func sampleResult() *runtime.SuiteResult {
	feature := &gherkin.Feature{
		Name: "user api",
		Path: "features/users.feature",
		Tags: []gherkin.Tag{{Name: "api", Line: 1}},
	}
	passStep := &gherkin.Step{Keyword: "*", Text: "assert true", Line: 5}
	failStep := &gherkin.Step{Keyword: "*", Text: "status 200", Line: 9}

	passed := &runtime.ScenarioResult{
		Scenario: &gherkin.Scenario{Name: "create user", Line: 4},
		StepResults: []*runtime.StepResult{
			{Step: passStep, Status: runtime.StepPassed, Duration: 12 * time.Millisecond},
		},
		Start: time.Now().Add(-time.Second),
		End:   time.Now(),
	}
	failed := &runtime.ScenarioResult{
		Scenario: &gherkin.Scenario{Name: "delete user", Line: 8},
		Error:    errors.New("status expected 200 but was 404"),
		StepResults: []*runtime.StepResult{
			{Step: failStep, Status: runtime.StepFailed, Error: errors.New("status expected 200 but was 404")},
		},
	}
	excluded := &runtime.ScenarioResult{
		Scenario: &gherkin.Scenario{Name: "admin only", Line: 12},
		Excluded: true,
	}

	fr := &runtime.FeatureResult{Feature: feature}
	fr.AddScenario(passed)
	fr.AddScenario(failed)
	fr.AddScenario(excluded)

	broken := &runtime.FeatureResult{Feature: &gherkin.Feature{Path: "features/broken.feature"}}
	broken.AddError("broken.feature:6: unterminated docstring")

	result := &runtime.SuiteResult{}
	result.AddFeature(fr)
	result.AddFeature(broken)
	return result
}

func TestWriteJUnit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJUnit(&buf, sampleResult()))
	out := buf.String()

	assert.Contains(t, out, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, out, `tests="4"`)
	assert.Contains(t, out, `failures="1"`)
	assert.Contains(t, out, `errors="1"`)
	assert.Contains(t, out, `skipped="1"`)
	assert.Contains(t, out, `name="create user"`)
	assert.Contains(t, out, `classname="features/users.feature"`)
	assert.Contains(t, out, `status expected 200 but was 404`)
	assert.Contains(t, out, `<skipped message="excluded"`)
	assert.Contains(t, out, `unterminated docstring`)
}

func TestWriteCucumber(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCucumber(&buf, sampleResult()))

	var features []CucumberFeature
	require.NoError(t, json.Unmarshal(buf.Bytes(), &features))
	require.Len(t, features, 2)

	f := features[0]
	assert.Equal(t, "features/users.feature", f.URI)
	assert.Equal(t, "user-api", f.ID)
	require.Len(t, f.Tags, 1)
	assert.Equal(t, "@api", f.Tags[0].Name)

	// excluded scenarios are omitted
	require.Len(t, f.Elements, 2)
	assert.Equal(t, "create user", f.Elements[0].Name)
	assert.Equal(t, "scenario", f.Elements[0].Type)

	step := f.Elements[0].Steps[0]
	assert.Equal(t, "passed", step.Result.Status)
	assert.Equal(t, (12 * time.Millisecond).Nanoseconds(), step.Result.Duration)

	failedStep := f.Elements[1].Steps[0]
	assert.Equal(t, "failed", failedStep.Result.Status)
	assert.Contains(t, failedStep.Result.ErrorMessage, "404")
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, sampleResult()))
	out := buf.String()

	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "create user")
	assert.Contains(t, out, "delete user")
	assert.Contains(t, out, "status expected 200 but was 404")
}

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(WithWriter(&buf), WithNoColor(true))

	result := sampleResult()
	for _, fr := range result.FeatureResults {
		r.PrintFeature(fr)
	}
	r.PrintSummary(result)
	out := buf.String()

	assert.Contains(t, out, "Feature: user api")
	assert.Contains(t, out, "✓ create user")
	assert.Contains(t, out, "✗ delete user")
	assert.Contains(t, out, "- admin only")
	assert.Contains(t, out, "1 passed")
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "unterminated docstring")
}

func TestConsoleReporterVerbose(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))

	result := sampleResult()
	r.PrintFeature(result.FeatureResults[0])

	assert.Contains(t, buf.String(), "assert true")
}

func TestJSONLWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf)

	w.OnEvent(runtime.RunEvent{Type: runtime.SuiteEnter, Timestamp: time.Now()})
	w.OnEvent(runtime.RunEvent{
		Type:         runtime.ScenarioEnter,
		Timestamp:    time.Now(),
		FeatureName:  "user api",
		ScenarioName: "create user",
	})
	w.OnEvent(runtime.RunEvent{
		Type:      runtime.ProgressEvent,
		Timestamp: time.Now(),
		Completed: 1,
		Total:     4,
		Percent:   25,
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "SUITE_ENTER", first["type"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "SCENARIO_ENTER", second["type"])
	assert.Equal(t, "create user", second["scenario"])

	var third map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &third))
	assert.Equal(t, "PROGRESS", third["type"])
	assert.Equal(t, float64(25), third["percent"])
}
