package runtime

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/featlabs/featrun/packages/eval"
	"github.com/featlabs/featrun/packages/gherkin"
)

// FeatureRuntime drives every scenario and outline of one feature and
// aggregates their results. Feature-scoped state (callonce results,
// setupOnce results) lives here.
type FeatureRuntime struct {
	suite           *Suite
	feature         *gherkin.Feature
	result          *FeatureResult
	workerListeners []RunListener
	threadName      string

	callonceMu sync.Mutex
	callonce   map[string]*callOnceEntry

	setupOnceMu sync.Mutex
	setupOnce   map[string]*callOnceEntry

	// afterFeature is registered via `configure afterFeature`; the last
	// scenario to set it wins, and its runtime provides the call context.
	afterFeature eval.Callable
	lastExecuted *ScenarioRuntime
}

type callOnceEntry struct {
	vars    map[string]any
	value   any
	cookies []map[string]any
	err     error
}

func newFeatureRuntime(s *Suite, f *gherkin.Feature, workerListeners []RunListener, threadName string) *FeatureRuntime {
	return &FeatureRuntime{
		suite:           s,
		feature:         f,
		result:          &FeatureResult{Feature: f, Start: time.Now()},
		workerListeners: workerListeners,
		threadName:      threadName,
		callonce:        make(map[string]*callOnceEntry),
		setupOnce:       make(map[string]*callOnceEntry),
	}
}

func (fr *FeatureRuntime) Feature() *gherkin.Feature { return fr.feature }
func (fr *FeatureRuntime) Result() *FeatureResult    { return fr.result }
func (fr *FeatureRuntime) Suite() *Suite             { return fr.suite }

func (fr *FeatureRuntime) Run() *FeatureResult {
	defer func() { fr.result.End = time.Now() }()

	if fr.feature.IsIgnored() {
		return fr.result
	}
	for _, h := range fr.suite.hooks {
		if !h.BeforeFeature(fr) {
			return fr.result
		}
	}
	fr.fireEvent(RunEvent{
		Type:        FeatureEnter,
		Timestamp:   time.Now(),
		FeatureName: fr.feature.Name,
		FeaturePath: fr.feature.Path,
	})

	for _, unit := range fr.expand() {
		fr.suite.awaitScenarioSlot()
		sr := newScenarioRuntime(fr, unit.scenario, unit.data)
		result := sr.Run()
		fr.result.AddScenario(result)
		fr.lastExecuted = sr
	}

	fr.runAfterFeature()

	fr.fireEvent(RunEvent{
		Type:        FeatureExit,
		Timestamp:   time.Now(),
		FeatureName: fr.feature.Name,
		FeaturePath: fr.feature.Path,
		Feature:     fr.result,
	})
	for _, h := range fr.suite.hooks {
		h.AfterFeature(fr)
	}
	return fr.result
}

func (fr *FeatureRuntime) runAfterFeature() {
	if fr.afterFeature == nil || fr.lastExecuted == nil {
		return
	}
	if _, err := fr.afterFeature(); err != nil {
		fr.result.AddError(fmt.Sprintf("afterFeature hook failed: %v", err))
	}
}

func (fr *FeatureRuntime) fireEvent(e RunEvent) bool {
	return fr.suite.fireEvent(e, fr.workerListeners)
}

// scenarioUnit is one concrete scenario ready to run, with the outline row
// data it was expanded from (nil for plain scenarios).
type scenarioUnit struct {
	scenario *gherkin.Scenario
	data     map[string]any
}

// expand walks the feature's sections in order, expanding outlines into
// concrete scenarios and filtering by tag selection and scenario name.
func (fr *FeatureRuntime) expand() []scenarioUnit {
	var units []scenarioUnit
	for _, section := range fr.feature.Sections {
		if section.IsOutline() {
			units = append(units, fr.expandOutline(section.Outline)...)
			continue
		}
		sc := section.Scenario
		if sc.IsSetup() {
			continue
		}
		if fr.selected(sc.Tags, nil) && fr.nameMatches(sc.Name) {
			units = append(units, scenarioUnit{scenario: sc})
		}
	}
	return units
}

func (fr *FeatureRuntime) nameMatches(name string) bool {
	if fr.suite.scenarioName == "" {
		return true
	}
	return strings.Contains(name, fr.suite.scenarioName)
}

// selected evaluates the suite's tag selector against the effective tags:
// feature tags, scenario tags, plus any examples-table tags.
func (fr *FeatureRuntime) selected(scenarioTags, exampleTags []gherkin.Tag) bool {
	effective := make([]gherkin.Tag, 0, len(fr.feature.Tags)+len(scenarioTags)+len(exampleTags))
	effective = append(effective, fr.feature.Tags...)
	effective = append(effective, scenarioTags...)
	effective = append(effective, exampleTags...)
	ok, err := NewTagSelector(effective).Evaluate(fr.suite.tagSelector, fr.suite.env)
	if err != nil {
		// selector syntax was validated at suite construction; an error
		// here means a tag-value problem, which excludes the scenario
		fr.result.AddError(err.Error())
		return false
	}
	return ok
}

func (fr *FeatureRuntime) expandOutline(outline *gherkin.ScenarioOutline) []scenarioUnit {
	var units []scenarioUnit
	index := 0
	for _, examples := range outline.Examples {
		if !fr.selected(outline.Tags, examples.Tags) {
			continue
		}
		var rows []map[string]any
		if examples.IsDynamic() {
			dynamic, err := fr.evalDynamicRows(examples.Expression)
			if err != nil {
				fr.result.AddError(fmt.Sprintf("dynamic examples for outline [%s]: %v", outline.Name, err))
				continue
			}
			rows = dynamic
		} else {
			rows = fr.staticRows(examples.Table)
		}
		for _, row := range rows {
			unit := fr.rowToUnit(outline, examples, row, index)
			if fr.nameMatches(unit.scenario.Name) {
				units = append(units, unit)
			}
			index++
		}
	}
	return units
}

// staticRows converts an Examples table into row maps. Type-hinted columns
// (`name!`) evaluate the cell as an expression, with empty becoming null;
// plain columns take the cell text as-is, empty included.
func (fr *FeatureRuntime) staticRows(table *gherkin.Table) []map[string]any {
	if table == nil {
		return nil
	}
	rows := make([]map[string]any, 0, table.RowCount())
	for r := 0; r < table.RowCount(); r++ {
		row := make(map[string]any, len(table.Header))
		for c := range table.Header {
			cell := table.Cell(r, c)
			name := table.ColumnName(c)
			if !table.TypeHinted(c) {
				row[name] = cell
				continue
			}
			if cell == "" {
				row[name] = nil
				continue
			}
			v, err := eval.NewEngine().Eval(cell)
			if err != nil {
				// a hinted cell that fails to parse falls back to text
				row[name] = cell
				continue
			}
			row[name] = v
		}
		rows = append(rows, row)
	}
	return rows
}

// evalDynamicRows evaluates a single-cell Examples expression. A list
// result contributes one row per element; a function result is a generator,
// invoked with an increasing index until it returns null, false, or any
// non-map value.
func (fr *FeatureRuntime) evalDynamicRows(expression string) ([]map[string]any, error) {
	probe := newScenarioRuntime(fr, &gherkin.Scenario{Name: "dynamic examples"}, nil)
	probe.skipBackground = true
	v, err := probe.engine.Eval(expression)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case []any:
		rows := make([]map[string]any, 0, len(v))
		for i, elem := range v {
			m, ok := elem.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("list element %d is not an object: %T", i, elem)
			}
			rows = append(rows, m)
		}
		return rows, nil
	case eval.Callable:
		var rows []map[string]any
		for i := 0; ; i++ {
			out, err := v(float64(i))
			if err != nil {
				return nil, err
			}
			m, ok := out.(map[string]any)
			if out == nil || !ok {
				return rows, nil
			}
			rows = append(rows, m)
		}
	default:
		return nil, fmt.Errorf("expression must yield a list or function, got %T", v)
	}
}

func (fr *FeatureRuntime) rowToUnit(outline *gherkin.ScenarioOutline, examples *gherkin.ExamplesTable, row map[string]any, index int) scenarioUnit {
	scenario := outline.ToScenario(index, examples.Tags)
	for name, value := range row {
		scenario.Replace("<"+name+">", eval.Stringify(value))
	}
	data := make(map[string]any, len(row)+2)
	for name, value := range row {
		data[name] = value
	}
	data["__row"] = row
	data["__num"] = float64(index)
	scenario.ExampleData = data
	return scenarioUnit{scenario: scenario, data: data}
}

// runSetup executes the named @setup scenario (empty name means the first
// one) and returns its resulting variables. A missing setup scenario is an
// error the caller reports, never a panic.
func (fr *FeatureRuntime) runSetup(name string) (map[string]any, error) {
	setup := fr.feature.Setup(name)
	if setup == nil {
		if name == "" {
			return nil, fmt.Errorf("no scenario tagged @setup found in %s", fr.feature.Path)
		}
		return nil, fmt.Errorf("no scenario tagged @setup=%s found in %s", name, fr.feature.Path)
	}
	sr := newScenarioRuntime(fr, setup, nil)
	sr.skipBackground = true
	sr.silent = true
	result := sr.Run()
	if result.Error != nil {
		return nil, fmt.Errorf("setup scenario [%s] failed: %w", setup.Name, result.Error)
	}
	return sr.engine.Vars(), nil
}

// runSetupOnce is runSetup memoized for the remainder of this feature's
// execution, shared across every outline that references it.
func (fr *FeatureRuntime) runSetupOnce(name string) (map[string]any, error) {
	fr.setupOnceMu.Lock()
	defer fr.setupOnceMu.Unlock()
	if e, ok := fr.setupOnce[name]; ok {
		if e.err != nil {
			return nil, e.err
		}
		return e.vars, nil
	}
	vars, err := fr.runSetup(name)
	fr.setupOnce[name] = &callOnceEntry{vars: vars, err: err}
	return vars, err
}
