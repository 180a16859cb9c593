package gherkin

import "strings"

const (
	TagIgnore = "ignore"
	TagSetup  = "setup"
	TagFail   = "fail"
	TagEnv    = "env"
	TagEnvNot = "envnot"
)

type Feature struct {
	Name       string
	Path       string
	Tags       []Tag
	Background []*Step
	Sections   []*Section
}

// Section holds either a plain scenario or an outline, in document order.
type Section struct {
	Scenario *Scenario
	Outline  *ScenarioOutline
}

func (s *Section) IsOutline() bool {
	return s.Outline != nil
}

type Scenario struct {
	Name  string
	Tags  []Tag
	Steps []*Step
	Line  int

	// Set when this scenario was expanded from an outline row.
	ExampleIndex int
	ExampleData  map[string]any
}

type ScenarioOutline struct {
	Name     string
	Tags     []Tag
	Steps    []*Step
	Line     int
	Examples []*ExamplesTable
}

// ExamplesTable is either a static data table or, when Expression is
// non-empty, a dynamic table whose rows come from evaluating the expression.
type ExamplesTable struct {
	Tags       []Tag
	Table      *Table
	Expression string
	Line       int
}

func (e *ExamplesTable) IsDynamic() bool {
	return e.Expression != ""
}

type Step struct {
	Keyword   string
	Text      string
	Docstring string
	Table     *Table
	Line      int
}

// Table holds a header row plus data rows. A trailing "!" on a header cell
// marks the column as type-hinted: cell values are expressions, not literals.
type Table struct {
	Header []string
	Rows   [][]string
}

func (t *Table) ColumnName(i int) string {
	return strings.TrimSuffix(t.Header[i], "!")
}

func (t *Table) TypeHinted(i int) bool {
	return strings.HasSuffix(t.Header[i], "!")
}

func (t *Table) RowCount() int {
	return len(t.Rows)
}

// Cell returns the cell at the given data row and column, or "" if the row
// is ragged.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

type Tag struct {
	Name   string
	Values []string
	Line   int
}

// Text returns the tag as written, without the @ prefix.
func (t Tag) Text() string {
	if len(t.Values) == 0 {
		return t.Name
	}
	return t.Name + "=" + strings.Join(t.Values, ",")
}

func HasTag(tags []Tag, name string) bool {
	for _, t := range tags {
		if t.Name == name {
			return true
		}
	}
	return false
}

func (s *Scenario) IsSetup() bool {
	return HasTag(s.Tags, TagSetup)
}

func (s *Scenario) IsFail() bool {
	return HasTag(s.Tags, TagFail)
}

// Setup finds the scenario tagged @setup. With a non-empty name only a
// setup scenario whose name or @setup=name tag value matches is returned.
func (f *Feature) Setup(name string) *Scenario {
	for _, section := range f.Sections {
		if section.Scenario == nil || !section.Scenario.IsSetup() {
			continue
		}
		if name == "" || section.Scenario.Name == name || setupTagValue(section.Scenario.Tags) == name {
			return section.Scenario
		}
	}
	return nil
}

func setupTagValue(tags []Tag) string {
	for _, t := range tags {
		if t.Name == TagSetup && len(t.Values) > 0 {
			return t.Values[0]
		}
	}
	return ""
}

func (f *Feature) IsIgnored() bool {
	return HasTag(f.Tags, TagIgnore)
}

// ToScenario creates a concrete scenario from the outline template with
// deep-copied steps, so placeholder substitution cannot leak between rows.
func (o *ScenarioOutline) ToScenario(exampleIndex int, extraTags []Tag) *Scenario {
	tags := make([]Tag, 0, len(o.Tags)+len(extraTags))
	tags = append(tags, o.Tags...)
	tags = append(tags, extraTags...)
	steps := make([]*Step, len(o.Steps))
	for i, step := range o.Steps {
		steps[i] = step.copy()
	}
	return &Scenario{
		Name:         o.Name,
		Tags:         tags,
		Steps:        steps,
		Line:         o.Line,
		ExampleIndex: exampleIndex,
	}
}

func (s *Step) copy() *Step {
	dup := *s
	if s.Table != nil {
		table := &Table{Header: append([]string(nil), s.Table.Header...)}
		for _, row := range s.Table.Rows {
			table.Rows = append(table.Rows, append([]string(nil), row...))
		}
		dup.Table = table
	}
	return &dup
}

// Replace substitutes token with value in the scenario name, step text,
// docstrings and table cells.
func (s *Scenario) Replace(token, value string) {
	s.Name = strings.ReplaceAll(s.Name, token, value)
	for _, step := range s.Steps {
		step.Text = strings.ReplaceAll(step.Text, token, value)
		step.Docstring = strings.ReplaceAll(step.Docstring, token, value)
		if step.Table != nil {
			for _, row := range step.Table.Rows {
				for i := range row {
					row[i] = strings.ReplaceAll(row[i], token, value)
				}
			}
		}
	}
}
