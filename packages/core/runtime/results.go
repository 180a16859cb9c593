package runtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/featlabs/featrun/packages/gherkin"
)

type StepStatus int

const (
	StepPassed StepStatus = iota
	StepFailed
	StepSkipped
)

func (s StepStatus) String() string {
	switch s {
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

type StepResult struct {
	Step     *gherkin.Step
	Status   StepStatus
	Error    error
	Log      string
	Duration time.Duration
}

func (r *StepResult) Failed() bool {
	return r.Status == StepFailed
}

// failExpectedMessage is the synthetic failure recorded when a scenario
// tagged @fail passes when it was expected to fail.
const failExpectedMessage = "scenario passed but was expected to fail"

type ScenarioResult struct {
	Scenario    *gherkin.Scenario
	FeaturePath string
	StepResults []*StepResult
	Start       time.Time
	End         time.Time
	Error       error
	Variables   map[string]any
	ThreadName  string

	// Excluded marks a scenario vetoed by a listener or hook; it is
	// reported to neither pass nor fail counts.
	Excluded bool
}

func (r *ScenarioResult) Failed() bool {
	return r.Error != nil
}

func (r *ScenarioResult) FailureMessage() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Error()
}

func (r *ScenarioResult) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// InvertForFailTag flips the verdict of a scenario tagged @fail: a failure
// becomes a pass and a pass becomes a failure with a fixed message.
func (r *ScenarioResult) InvertForFailTag() {
	if r.Error != nil {
		r.Error = nil
		for _, sr := range r.StepResults {
			if sr.Status == StepFailed {
				sr.Status = StepPassed
			}
		}
		return
	}
	r.Error = fmt.Errorf(failExpectedMessage)
}

type FeatureResult struct {
	Feature         *gherkin.Feature
	ScenarioResults []*ScenarioResult
	Errors          []string
	Start           time.Time
	End             time.Time

	mu sync.Mutex
}

func (r *FeatureResult) AddScenario(sr *ScenarioResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ScenarioResults = append(r.ScenarioResults, sr)
}

// AddError records a feature-level data problem, such as a missing @setup
// scenario. These surface in the suite's error list, not as a panic.
func (r *FeatureResult) AddError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, msg)
}

func (r *FeatureResult) PassedCount() int {
	n := 0
	for _, sr := range r.ScenarioResults {
		if !sr.Excluded && !sr.Failed() {
			n++
		}
	}
	return n
}

func (r *FeatureResult) FailedCount() int {
	n := 0
	for _, sr := range r.ScenarioResults {
		if !sr.Excluded && sr.Failed() {
			n++
		}
	}
	return n
}

func (r *FeatureResult) Failed() bool {
	return r.FailedCount() > 0 || len(r.Errors) > 0
}

func (r *FeatureResult) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

type SuiteResult struct {
	FeatureResults []*FeatureResult
	Start          time.Time
	End            time.Time

	mu sync.Mutex
}

func (r *SuiteResult) AddFeature(fr *FeatureResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FeatureResults = append(r.FeatureResults, fr)
}

func (r *SuiteResult) ScenariosPassed() int {
	n := 0
	for _, fr := range r.FeatureResults {
		n += fr.PassedCount()
	}
	return n
}

func (r *SuiteResult) ScenariosFailed() int {
	n := 0
	for _, fr := range r.FeatureResults {
		n += fr.FailedCount()
	}
	return n
}

func (r *SuiteResult) FeaturesPassed() int {
	n := 0
	for _, fr := range r.FeatureResults {
		if !fr.Failed() {
			n++
		}
	}
	return n
}

func (r *SuiteResult) FeaturesFailed() int {
	n := 0
	for _, fr := range r.FeatureResults {
		if fr.Failed() {
			n++
		}
	}
	return n
}

func (r *SuiteResult) Failed() bool {
	return r.ScenariosFailed() > 0 || len(r.ErrorMessages()) > 0
}

// ErrorMessages collects every scenario failure and feature-level error,
// each prefixed with where it happened.
func (r *SuiteResult) ErrorMessages() []string {
	var msgs []string
	for _, fr := range r.FeatureResults {
		for _, e := range fr.Errors {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fr.Feature.Path, e))
		}
		for _, sr := range fr.ScenarioResults {
			if sr.Excluded || !sr.Failed() {
				continue
			}
			msgs = append(msgs, fmt.Sprintf("%s [%s] %s", fr.Feature.Path, sr.Scenario.Name, sr.FailureMessage()))
		}
	}
	return msgs
}

func (r *SuiteResult) Duration() time.Duration {
	return r.End.Sub(r.Start)
}
