package runtime

import (
	"fmt"
	"time"

	"github.com/featlabs/featrun/packages/eval"
)

const (
	DefaultRetryCount    = 3
	DefaultRetryInterval = 3000 * time.Millisecond
)

// ScenarioConfig holds the per-scenario settings mutated by `configure`
// steps. Each scenario starts from a copy, so configuration never leaks
// between scenarios.
type ScenarioConfig struct {
	RetryCount            int
	RetryInterval         time.Duration
	ContinueOnStepFailure bool
	Headers               map[string]string
	CallSingleCacheDir    string
	CallSingleCacheTTL    time.Duration
	AfterScenario         eval.Callable
	AfterFeature          eval.Callable
}

func NewScenarioConfig() *ScenarioConfig {
	return &ScenarioConfig{
		RetryCount:    DefaultRetryCount,
		RetryInterval: DefaultRetryInterval,
	}
}

func (c *ScenarioConfig) Copy() *ScenarioConfig {
	dup := *c
	if c.Headers != nil {
		dup.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			dup.Headers[k] = v
		}
	}
	return &dup
}

// Set applies one `configure` key. Unknown keys are errors so typos fail
// the step instead of being silently ignored.
func (c *ScenarioConfig) Set(key string, value any) error {
	switch key {
	case "retry":
		m, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("configure retry expects an object like { count: 3, interval: 1000 }, got %T", value)
		}
		if count, ok := m["count"]; ok {
			n, ok := count.(float64)
			if !ok || n < 1 {
				return fmt.Errorf("configure retry count must be a positive number")
			}
			c.RetryCount = int(n)
		}
		if interval, ok := m["interval"]; ok {
			n, ok := interval.(float64)
			if !ok || n < 0 {
				return fmt.Errorf("configure retry interval must be a non-negative number of millis")
			}
			c.RetryInterval = time.Duration(n) * time.Millisecond
		}
	case "continueOnStepFailure":
		c.ContinueOnStepFailure = eval.IsTruthy(value)
	case "headers":
		m, ok := value.(map[string]any)
		if !ok && value != nil {
			return fmt.Errorf("configure headers expects an object, got %T", value)
		}
		headers := make(map[string]string, len(m))
		for k, v := range m {
			headers[k] = eval.Stringify(v)
		}
		c.Headers = headers
	case "callSingleCache":
		m, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("configure callSingleCache expects an object like { dir: '...', minutes: 15 }, got %T", value)
		}
		if dir, ok := m["dir"].(string); ok {
			c.CallSingleCacheDir = dir
		}
		if minutes, ok := m["minutes"].(float64); ok {
			c.CallSingleCacheTTL = time.Duration(minutes) * time.Minute
		}
	case "afterScenario":
		fn, ok := value.(eval.Callable)
		if !ok {
			return fmt.Errorf("configure afterScenario expects a function, got %T", value)
		}
		c.AfterScenario = fn
	case "afterFeature":
		fn, ok := value.(eval.Callable)
		if !ok {
			return fmt.Errorf("configure afterFeature expects a function, got %T", value)
		}
		c.AfterFeature = fn
	default:
		return fmt.Errorf("unknown configure key: %s", key)
	}
	return nil
}
