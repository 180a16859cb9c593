package runtime

import "github.com/featlabs/featrun/packages/gherkin"

// RuntimeHook intercepts execution at every level. Before* methods
// returning false veto the unit: it is skipped without being counted.
type RuntimeHook interface {
	BeforeSuite(*Suite) bool
	AfterSuite(*Suite)
	BeforeFeature(*FeatureRuntime) bool
	AfterFeature(*FeatureRuntime)
	BeforeScenario(*ScenarioRuntime) bool
	AfterScenario(*ScenarioRuntime)
	BeforeStep(*gherkin.Step, *ScenarioRuntime) bool
	AfterStep(*StepResult, *ScenarioRuntime)
}

// HookAdapter is an embeddable no-op implementation of RuntimeHook.
type HookAdapter struct{}

func (HookAdapter) BeforeSuite(*Suite) bool                        { return true }
func (HookAdapter) AfterSuite(*Suite)                              {}
func (HookAdapter) BeforeFeature(*FeatureRuntime) bool             { return true }
func (HookAdapter) AfterFeature(*FeatureRuntime)                   {}
func (HookAdapter) BeforeScenario(*ScenarioRuntime) bool           { return true }
func (HookAdapter) AfterScenario(*ScenarioRuntime)                 {}
func (HookAdapter) BeforeStep(*gherkin.Step, *ScenarioRuntime) bool { return true }
func (HookAdapter) AfterStep(*StepResult, *ScenarioRuntime)        {}
