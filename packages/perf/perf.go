// Package perf collects step-level latency metrics during a suite run.
// It plugs into the runtime as a RunListener and aggregates durations in
// an HDR histogram for accurate tail percentiles.
package perf

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/featlabs/featrun/packages/core/runtime"
)

// Collector records scenario and step latencies. Safe for concurrent use
// by multiple workers.
type Collector struct {
	mu sync.Mutex

	// Histograms: 1us to 60s range, 3 significant digits
	stepHistogram     *hdrhistogram.Histogram
	scenarioHistogram *hdrhistogram.Histogram

	stepCount     atomic.Int64
	scenarioCount atomic.Int64
	failedSteps   atomic.Int64
}

func NewCollector() *Collector {
	return &Collector{
		stepHistogram:     hdrhistogram.New(1, 60_000_000, 3),
		scenarioHistogram: hdrhistogram.New(1, 60_000_000, 3),
	}
}

// OnEvent records STEP_EXIT and SCENARIO_EXIT durations; it never vetoes.
func (c *Collector) OnEvent(e runtime.RunEvent) bool {
	switch e.Type {
	case runtime.StepExit:
		if e.Step == nil {
			return true
		}
		c.stepCount.Add(1)
		if e.Step.Failed() {
			c.failedSteps.Add(1)
		}
		c.record(c.stepHistogram, e.Step.Duration)
	case runtime.ScenarioExit:
		if e.Scenario == nil {
			return true
		}
		c.scenarioCount.Add(1)
		c.record(c.scenarioHistogram, e.Scenario.Duration())
	}
	return true
}

func (c *Collector) record(h *hdrhistogram.Histogram, d time.Duration) {
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	if us > 60_000_000 {
		us = 60_000_000
	}
	c.mu.Lock()
	_ = h.RecordValue(us)
	c.mu.Unlock()
}

// Summary holds latency percentiles in microseconds.
type Summary struct {
	Count int64
	Mean  float64
	P50   int64
	P95   int64
	P99   int64
	Max   int64
}

func (c *Collector) StepSummary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return summarize(c.stepHistogram)
}

func (c *Collector) ScenarioSummary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return summarize(c.scenarioHistogram)
}

func summarize(h *hdrhistogram.Histogram) Summary {
	return Summary{
		Count: h.TotalCount(),
		Mean:  h.Mean(),
		P50:   h.ValueAtQuantile(50),
		P95:   h.ValueAtQuantile(95),
		P99:   h.ValueAtQuantile(99),
		Max:   h.Max(),
	}
}

// Report writes a compact latency report.
func (c *Collector) Report(w io.Writer) {
	steps := c.StepSummary()
	scenarios := c.ScenarioSummary()
	fmt.Fprintf(w, "latency (steps):     n=%d p50=%s p95=%s p99=%s max=%s\n",
		steps.Count, us(steps.P50), us(steps.P95), us(steps.P99), us(steps.Max))
	fmt.Fprintf(w, "latency (scenarios): n=%d p50=%s p95=%s p99=%s max=%s\n",
		scenarios.Count, us(scenarios.P50), us(scenarios.P95), us(scenarios.P99), us(scenarios.Max))
	if failed := c.failedSteps.Load(); failed > 0 {
		fmt.Fprintf(w, "failed steps:        %d of %d\n", failed, c.stepCount.Load())
	}
}

func us(v int64) string {
	return (time.Duration(v) * time.Microsecond).String()
}
