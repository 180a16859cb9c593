package runtime

import "time"

type RunEventType int

const (
	SuiteEnter RunEventType = iota
	SuiteExit
	FeatureEnter
	FeatureExit
	ScenarioEnter
	ScenarioExit
	StepEnter
	StepExit
	ErrorEvent
	ProgressEvent
)

func (t RunEventType) String() string {
	switch t {
	case SuiteEnter:
		return "SUITE_ENTER"
	case SuiteExit:
		return "SUITE_EXIT"
	case FeatureEnter:
		return "FEATURE_ENTER"
	case FeatureExit:
		return "FEATURE_EXIT"
	case ScenarioEnter:
		return "SCENARIO_ENTER"
	case ScenarioExit:
		return "SCENARIO_EXIT"
	case StepEnter:
		return "STEP_ENTER"
	case StepExit:
		return "STEP_EXIT"
	case ErrorEvent:
		return "ERROR"
	case ProgressEvent:
		return "PROGRESS"
	default:
		return "UNKNOWN"
	}
}

// RunEvent is fired at every lifecycle transition. Events are immutable
// after dispatch; payload fields are populated per variant.
type RunEvent struct {
	Type         RunEventType
	Timestamp    time.Time
	FeatureName  string
	FeaturePath  string
	ScenarioName string
	StepText     string

	// EXIT variants
	Scenario *ScenarioResult
	Step     *StepResult
	Feature  *FeatureResult

	// ERROR variant
	Message   string
	ErrorType string

	// PROGRESS variant
	Completed int
	Total     int
	Percent   float64
}

// ToMap serializes the event for the JSON Lines stream.
func (e RunEvent) ToMap() map[string]any {
	m := map[string]any{
		"type": e.Type.String(),
		"ts":   e.Timestamp.UnixMilli(),
	}
	if e.FeatureName != "" {
		m["feature"] = e.FeatureName
	}
	if e.FeaturePath != "" {
		m["path"] = e.FeaturePath
	}
	if e.ScenarioName != "" {
		m["scenario"] = e.ScenarioName
	}
	if e.StepText != "" {
		m["step"] = e.StepText
	}
	if e.Scenario != nil {
		m["failed"] = e.Scenario.Failed()
	}
	if e.Step != nil {
		m["status"] = e.Step.Status.String()
		m["durationMs"] = e.Step.Duration.Milliseconds()
	}
	if e.Type == ErrorEvent {
		m["message"] = e.Message
		m["errorType"] = e.ErrorType
	}
	if e.Type == ProgressEvent {
		m["completed"] = e.Completed
		m["total"] = e.Total
		m["percent"] = e.Percent
	}
	return m
}

// RunListener observes lifecycle events. Returning false from an ENTER
// event suppresses execution of that unit.
type RunListener interface {
	OnEvent(RunEvent) bool
}

type RunListenerFunc func(RunEvent) bool

func (f RunListenerFunc) OnEvent(e RunEvent) bool {
	return f(e)
}

// RunListenerFactory constructs one listener per worker slot when the pool
// is provisioned; the listener is discarded when the worker drains.
type RunListenerFactory interface {
	Create() RunListener
}

type RunListenerFactoryFunc func() RunListener

func (f RunListenerFactoryFunc) Create() RunListener {
	return f()
}
