package perf

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featlabs/featrun/packages/core/runtime"
)

func stepExit(d time.Duration, status runtime.StepStatus) runtime.RunEvent {
	return runtime.RunEvent{
		Type: runtime.StepExit,
		Step: &runtime.StepResult{Status: status, Duration: d},
	}
}

func scenarioExit(d time.Duration) runtime.RunEvent {
	start := time.Now()
	return runtime.RunEvent{
		Type:     runtime.ScenarioExit,
		Scenario: &runtime.ScenarioResult{Start: start, End: start.Add(d)},
	}
}

func TestCollector_StepSummary(t *testing.T) {
	c := NewCollector()
	for _, ms := range []int64{10, 20, 30, 40} {
		ok := c.OnEvent(stepExit(time.Duration(ms)*time.Millisecond, runtime.StepPassed))
		assert.True(t, ok, "collector must never veto")
	}

	s := c.StepSummary()
	require.EqualValues(t, 4, s.Count)
	// Values are recorded in microseconds at 3 significant digits; allow
	// for histogram bucketing slack.
	assert.InDelta(t, 25_000, s.Mean, 500)
	assert.InDelta(t, 20_000, float64(s.P50), 100)
	assert.InDelta(t, 40_000, float64(s.P99), 200)
	assert.InDelta(t, 40_000, float64(s.Max), 200)
}

func TestCollector_ScenarioSummary(t *testing.T) {
	c := NewCollector()
	c.OnEvent(scenarioExit(100 * time.Millisecond))
	c.OnEvent(scenarioExit(300 * time.Millisecond))

	s := c.ScenarioSummary()
	require.EqualValues(t, 2, s.Count)
	assert.InDelta(t, 300_000, float64(s.Max), 1_000)

	// Steps histogram stays empty.
	assert.EqualValues(t, 0, c.StepSummary().Count)
}

func TestCollector_IgnoresOtherEvents(t *testing.T) {
	c := NewCollector()
	assert.True(t, c.OnEvent(runtime.RunEvent{Type: runtime.SuiteEnter}))
	assert.True(t, c.OnEvent(runtime.RunEvent{Type: runtime.StepExit})) // nil Step
	assert.True(t, c.OnEvent(runtime.RunEvent{Type: runtime.ScenarioExit}))

	assert.EqualValues(t, 0, c.StepSummary().Count)
	assert.EqualValues(t, 0, c.ScenarioSummary().Count)
}

func TestCollector_ClampsOutOfRangeDurations(t *testing.T) {
	c := NewCollector()
	c.OnEvent(stepExit(0, runtime.StepPassed))
	c.OnEvent(stepExit(2*time.Minute, runtime.StepPassed))

	s := c.StepSummary()
	require.EqualValues(t, 2, s.Count)
	assert.InDelta(t, 60_000_000, float64(s.Max), 60_000)
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.OnEvent(stepExit(time.Millisecond, runtime.StepPassed))
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 800, c.StepSummary().Count)
}

func TestCollector_Report(t *testing.T) {
	c := NewCollector()
	c.OnEvent(stepExit(5*time.Millisecond, runtime.StepPassed))
	c.OnEvent(stepExit(15*time.Millisecond, runtime.StepFailed))
	c.OnEvent(scenarioExit(20 * time.Millisecond))

	var buf strings.Builder
	c.Report(&buf)
	out := buf.String()

	assert.Contains(t, out, "latency (steps):     n=2")
	assert.Contains(t, out, "latency (scenarios): n=1")
	assert.Contains(t, out, "failed steps:        1 of 2")
}

func TestCollector_ReportOmitsFailuresWhenNoneFailed(t *testing.T) {
	c := NewCollector()
	c.OnEvent(stepExit(time.Millisecond, runtime.StepPassed))

	var buf strings.Builder
	c.Report(&buf)
	assert.NotContains(t, buf.String(), "failed steps")
}
