package runtime

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/featlabs/featrun/packages/eval"
	"github.com/featlabs/featrun/packages/gherkin"
	slimhttp "github.com/featlabs/featrun/packages/http"
)

// ScenarioRuntime executes one scenario's steps strictly in order. Its
// variable scope is exclusive to the executing worker; sharing happens only
// through callonce and setupOnce.
type ScenarioRuntime struct {
	fr       *FeatureRuntime
	scenario *gherkin.Scenario
	engine   *eval.Engine
	config   *ScenarioConfig
	result   *ScenarioResult

	req      *slimhttp.Request
	response *slimhttp.Response
	cookies  map[string]string

	stopped bool
	aborted bool

	// deferred failure state under continueOnStepFailure
	hasIgnoredFailure bool
	firstIgnoredError error

	// retry until arms the next method step
	retryArmed     bool
	retryCondition string

	// log lines produced while the current step executes
	pendingLog []string

	skipBackground bool
	// silent runtimes (setup scenarios, called features) fire no events
	// and skip hooks
	silent bool
}

func newScenarioRuntime(fr *FeatureRuntime, scenario *gherkin.Scenario, exampleData map[string]any) *ScenarioRuntime {
	sr := &ScenarioRuntime{
		fr:       fr,
		scenario: scenario,
		engine:   eval.NewEngine(),
		config:   NewScenarioConfig(),
		req:      slimhttp.NewRequest(),
		cookies:  make(map[string]string),
		result: &ScenarioResult{
			Scenario:    scenario,
			FeaturePath: fr.feature.Path,
			ThreadName:  fr.threadName,
		},
	}
	if fr.suite.diskCache != nil {
		sr.config.CallSingleCacheDir = fr.suite.diskCache.Dir
		sr.config.CallSingleCacheTTL = fr.suite.diskCache.TTL
	}
	for name, value := range exampleData {
		if name == "__row" || name == "__num" {
			sr.engine.SetHidden(name, value)
			continue
		}
		sr.engine.Set(name, value)
	}
	sr.bindAPI()
	return sr
}

func (sr *ScenarioRuntime) Scenario() *gherkin.Scenario { return sr.scenario }
func (sr *ScenarioRuntime) Feature() *FeatureRuntime    { return sr.fr }
func (sr *ScenarioRuntime) Result() *ScenarioResult     { return sr.result }
func (sr *ScenarioRuntime) Config() *ScenarioConfig     { return sr.config }

// Vars exposes the visible variable scope, usable by after* hooks.
func (sr *ScenarioRuntime) Vars() map[string]any { return sr.engine.Vars() }

// SetVar writes into the scope, usable by before* hooks to inject data.
func (sr *ScenarioRuntime) SetVar(name string, value any) { sr.engine.Set(name, value) }

func (sr *ScenarioRuntime) Run() *ScenarioResult {
	sr.result.Start = time.Now()
	defer func() { sr.result.End = time.Now() }()

	if !sr.silent {
		entered := sr.fr.fireEvent(RunEvent{
			Type:         ScenarioEnter,
			Timestamp:    time.Now(),
			FeatureName:  sr.fr.feature.Name,
			FeaturePath:  sr.fr.feature.Path,
			ScenarioName: sr.scenario.Name,
		})
		if !entered {
			sr.result.Excluded = true
			return sr.result
		}
		for _, h := range sr.fr.suite.hooks {
			if !h.BeforeScenario(sr) {
				sr.result.Excluded = true
				return sr.result
			}
		}
	}

	steps := sr.steps()
	for _, step := range steps {
		if sr.stopped || sr.aborted {
			sr.result.StepResults = append(sr.result.StepResults, &StepResult{Step: step, Status: StepSkipped})
			continue
		}
		sr.runStep(step)
	}

	// a deferred failure under continueOnStepFailure fails the scenario
	// at the end if the flag never flipped back
	if sr.result.Error == nil && sr.hasIgnoredFailure {
		sr.result.Error = sr.firstIgnoredError
	}
	if sr.scenario.IsFail() {
		sr.result.InvertForFailTag()
	}
	sr.result.Variables = sr.engine.Vars()

	if !sr.silent {
		for _, h := range sr.fr.suite.hooks {
			h.AfterScenario(sr)
		}
		sr.runAfterScenario()
		sr.fr.fireEvent(RunEvent{
			Type:         ScenarioExit,
			Timestamp:    time.Now(),
			FeatureName:  sr.fr.feature.Name,
			FeaturePath:  sr.fr.feature.Path,
			ScenarioName: sr.scenario.Name,
			Scenario:     sr.result,
		})
	}
	if sr.config.AfterFeature != nil {
		sr.fr.afterFeature = sr.config.AfterFeature
	}
	return sr.result
}

func (sr *ScenarioRuntime) runAfterScenario() {
	if sr.config.AfterScenario == nil {
		return
	}
	if _, err := sr.config.AfterScenario(); err != nil {
		sr.appendLog(fmt.Sprintf("afterScenario hook failed: %v", err))
	}
}

func (sr *ScenarioRuntime) steps() []*gherkin.Step {
	if sr.skipBackground {
		return sr.scenario.Steps
	}
	steps := make([]*gherkin.Step, 0, len(sr.fr.feature.Background)+len(sr.scenario.Steps))
	steps = append(steps, sr.fr.feature.Background...)
	steps = append(steps, sr.scenario.Steps...)
	return steps
}

func (sr *ScenarioRuntime) runStep(step *gherkin.Step) {
	if !sr.silent {
		for _, h := range sr.fr.suite.hooks {
			if !h.BeforeStep(step, sr) {
				return
			}
		}
		entered := sr.fr.fireEvent(RunEvent{
			Type:         StepEnter,
			Timestamp:    time.Now(),
			FeatureName:  sr.fr.feature.Name,
			ScenarioName: sr.scenario.Name,
			StepText:     step.Keyword + " " + step.Text,
		})
		if !entered {
			return
		}
	}

	start := time.Now()
	var err error
	if sr.fr.suite.dryRun {
		// dry run records every step as passed without executing it
		err = nil
	} else {
		err = executeStep(sr, step)
	}
	stepResult := &StepResult{
		Step:     step,
		Status:   StepPassed,
		Log:      strings.Join(sr.pendingLog, "\n"),
		Duration: time.Since(start),
	}
	sr.pendingLog = nil
	if err != nil {
		stepResult.Status = StepFailed
		stepResult.Error = err
		if sr.config.ContinueOnStepFailure {
			sr.hasIgnoredFailure = true
			if sr.firstIgnoredError == nil {
				sr.firstIgnoredError = err
			}
		} else {
			sr.result.Error = err
			sr.stopped = true
		}
	}
	sr.result.StepResults = append(sr.result.StepResults, stepResult)

	if !sr.silent {
		sr.fr.fireEvent(RunEvent{
			Type:         StepExit,
			Timestamp:    time.Now(),
			FeatureName:  sr.fr.feature.Name,
			ScenarioName: sr.scenario.Name,
			StepText:     step.Keyword + " " + step.Text,
			Step:         stepResult,
		})
		for _, h := range sr.fr.suite.hooks {
			h.AfterStep(stepResult, sr)
		}
	}
}

func (sr *ScenarioRuntime) appendLog(line string) {
	if len(sr.result.StepResults) > 0 {
		last := sr.result.StepResults[len(sr.result.StepResults)-1]
		if last.Log != "" {
			last.Log += "\n"
		}
		last.Log += line
	}
}

func (sr *ScenarioRuntime) featureDir() string {
	return filepath.Dir(sr.fr.feature.Path)
}

// bindAPI installs the runtime API object and the read function into the
// engine's hidden scope.
func (sr *ScenarioRuntime) bindAPI() {
	api := map[string]any{
		"env": sr.fr.suite.env,
		"setup": eval.Callable(func(args ...any) (any, error) {
			return sr.setupVars(sr.fr.runSetup, args)
		}),
		"setupOnce": eval.Callable(func(args ...any) (any, error) {
			return sr.setupVars(sr.fr.runSetupOnce, args)
		}),
		"call": eval.Callable(func(args ...any) (any, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("call expects a feature path")
			}
			path, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("call expects a string path, got %T", args[0])
			}
			var arg any
			if len(args) > 1 {
				arg = args[1]
			}
			return sr.callFeature(path, arg, false)
		}),
		"callSingle": eval.Callable(func(args ...any) (any, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("callSingle expects a feature path")
			}
			path, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("callSingle expects a string path, got %T", args[0])
			}
			var arg any
			if len(args) > 1 {
				arg = args[1]
			}
			return sr.callSingle(path, arg)
		}),
		"abort": eval.Callable(func(args ...any) (any, error) {
			sr.aborted = true
			return nil, nil
		}),
		"get": eval.Callable(func(args ...any) (any, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("get expects a variable name")
			}
			name, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("get expects a string name, got %T", args[0])
			}
			if v, found := sr.engine.Get(name); found {
				return v, nil
			}
			if len(args) > 1 {
				return args[1], nil
			}
			return nil, nil
		}),
		"set": eval.Callable(func(args ...any) (any, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("set expects a name and a value")
			}
			name, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("set expects a string name, got %T", args[0])
			}
			sr.engine.Set(name, args[1])
			return nil, nil
		}),
		"sizeOf": eval.Callable(func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("sizeOf expects one value")
			}
			switch v := args[0].(type) {
			case []any:
				return float64(len(v)), nil
			case map[string]any:
				return float64(len(v)), nil
			case string:
				return float64(len(v)), nil
			case nil:
				return float64(-1), nil
			}
			return nil, fmt.Errorf("sizeOf cannot measure %T", args[0])
		}),
		"info": map[string]any{
			"scenarioName": sr.scenario.Name,
			"featureDir":   sr.featureDir(),
			"env":          sr.fr.suite.env,
			"threadName":   sr.fr.threadName,
		},
	}
	sr.engine.SetHidden("karate", api)
	sr.engine.SetHidden("read", eval.Callable(func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("read expects one file path")
		}
		path, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("read expects a string path, got %T", args[0])
		}
		return sr.readFile(path)
	}))
}

func (sr *ScenarioRuntime) setupVars(runner func(string) (map[string]any, error), args []any) (any, error) {
	name := ""
	if len(args) > 0 {
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("setup name must be a string, got %T", args[0])
		}
		name = s
	}
	vars, err := runner(name)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out, nil
}

// featureRef marks the result of read('some.feature') so call steps can
// distinguish a feature reference from plain file content.
type featureRef struct {
	path string
	tag  string
}

func (sr *ScenarioRuntime) readFile(path string) (any, error) {
	name, tag := splitCallTag(path)
	if name == "" && tag != "" {
		// "@tag" refers to scenarios of the current feature
		return featureRef{tag: tag}, nil
	}
	if strings.HasSuffix(name, ".feature") {
		return featureRef{path: sr.resolvePath(name), tag: tag}, nil
	}
	data, err := os.ReadFile(sr.resolvePath(path))
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".json") {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return v, nil
	}
	return string(data), nil
}

func (sr *ScenarioRuntime) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(sr.featureDir(), path)
}

// splitCallTag splits "file.feature@tag" into path and tag. A leading "@"
// means a tagged scenario in the current feature.
func splitCallTag(path string) (string, string) {
	if strings.HasPrefix(path, "@") {
		return "", strings.TrimPrefix(path, "@")
	}
	if i := strings.LastIndex(path, "@"); i > 0 {
		return path[:i], path[i+1:]
	}
	return path, ""
}

// callFeature executes another feature (or tagged scenarios of the current
// one). With sharedScope the called scenarios operate on a copy of the
// caller's variables which is merged back along with collected cookies;
// without it the caller's scope is untouched and the result map is
// returned.
func (sr *ScenarioRuntime) callFeature(path string, arg any, sharedScope bool) (any, error) {
	name, tag := splitCallTag(path)
	var feature *gherkin.Feature
	if name == "" {
		feature = sr.fr.feature
	} else {
		f, err := gherkin.ParseFile(sr.resolvePath(name))
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", path, err)
		}
		feature = f
	}

	// a list argument loops the call, one result per element
	if list, ok := arg.([]any); ok {
		results := make([]any, len(list))
		for i, elem := range list {
			r, err := sr.callFeatureOnce(feature, tag, elem, sharedScope, i)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}
	return sr.callFeatureOnce(feature, tag, arg, sharedScope, -1)
}

func (sr *ScenarioRuntime) callFeatureOnce(feature *gherkin.Feature, tag string, arg any, sharedScope bool, loopIndex int) (any, error) {
	calledFr := newFeatureRuntime(sr.fr.suite, feature, nil, sr.fr.threadName)
	vars := make(map[string]any)
	for _, section := range feature.Sections {
		if section.IsOutline() {
			continue
		}
		scenario := section.Scenario
		if tag != "" {
			if !hasTagText(scenario.Tags, tag) {
				continue
			}
		} else if scenario.IsSetup() {
			continue
		}

		child := newScenarioRuntime(calledFr, scenario, nil)
		child.silent = true
		child.engine.SetAll(sr.engine.Vars())
		if argMap, ok := arg.(map[string]any); ok {
			child.engine.SetAll(argMap)
			child.engine.SetHidden("__arg", argMap)
		} else if arg != nil {
			child.engine.SetHidden("__arg", arg)
		}
		if loopIndex >= 0 {
			child.engine.SetHidden("__loop", float64(loopIndex))
		}
		for k, v := range sr.cookies {
			child.cookies[k] = v
		}
		result := child.Run()
		if result.Error != nil {
			return nil, fmt.Errorf("called feature %s [%s] failed: %w", feature.Path, scenario.Name, result.Error)
		}
		vars = child.engine.Vars()
		if sharedScope {
			sr.engine.SetAll(vars)
			for k, v := range child.cookies {
				sr.cookies[k] = v
			}
		}
	}
	return vars, nil
}

func hasTagText(tags []gherkin.Tag, text string) bool {
	for _, t := range tags {
		if t.Name == text || t.Text() == text {
			return true
		}
	}
	return false
}

// callSingle memoizes a call suite-wide. The full path including any
// ?suffix or @tag participates in the key; the suffix is stripped before
// execution. Without a suffix, the first caller's argument wins and later
// callers with different arguments share its cached result.
func (sr *ScenarioRuntime) callSingle(path string, arg any) (any, error) {
	key := path
	execPath := path
	if i := strings.Index(execPath, "?"); i >= 0 {
		execPath = execPath[:i]
	}
	return sr.fr.suite.callSingleGet(key, sr.config, func() (any, error) {
		return sr.callFeature(execPath, arg, false)
	})
}
