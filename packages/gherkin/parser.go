package gherkin

import (
	"fmt"
	"os"
	"strings"
)

var stepKeywords = []string{"Given ", "When ", "Then ", "And ", "But ", "* "}

type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

func ParseFile(path string) (*Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading feature file: %w", err)
	}
	return Parse(string(data), path)
}

// Parse parses Gherkin text into a Feature. The path is used only for
// error attribution.
func Parse(text, path string) (*Feature, error) {
	p := &parser{path: path, lines: strings.Split(text, "\n")}
	return p.parse()
}

type parser struct {
	path  string
	lines []string
	pos   int
}

func (p *parser) errorf(line int, format string, args ...any) error {
	return &ParseError{Path: p.path, Line: line, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) parse() (*Feature, error) {
	feature := &Feature{Path: p.path}
	var pendingTags []Tag

	// Current collection targets
	var steps *[]*Step
	var outline *ScenarioOutline
	var lastStep *Step

	flushStep := func() { lastStep = nil }

	for p.pos < len(p.lines) {
		lineNum := p.pos + 1
		raw := p.lines[p.pos]
		line := strings.TrimSpace(raw)
		p.pos++

		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue

		case strings.HasPrefix(line, "@"):
			tags, err := parseTagLine(line, lineNum)
			if err != nil {
				return nil, err
			}
			pendingTags = append(pendingTags, tags...)

		case strings.HasPrefix(line, "Feature:"):
			if feature.Name != "" {
				return nil, p.errorf(lineNum, "duplicate Feature declaration")
			}
			feature.Name = strings.TrimSpace(strings.TrimPrefix(line, "Feature:"))
			if feature.Name == "" {
				feature.Name = p.path
			}
			feature.Tags = pendingTags
			pendingTags = nil

		case strings.HasPrefix(line, "Background:"):
			if len(pendingTags) > 0 {
				return nil, p.errorf(lineNum, "tags are not allowed on Background")
			}
			steps = &feature.Background
			outline = nil
			flushStep()

		case strings.HasPrefix(line, "Scenario Outline:") || strings.HasPrefix(line, "Scenario Template:"):
			name := strings.TrimSpace(line[strings.Index(line, ":")+1:])
			outline = &ScenarioOutline{Name: name, Tags: pendingTags, Line: lineNum}
			pendingTags = nil
			feature.Sections = append(feature.Sections, &Section{Outline: outline})
			steps = &outline.Steps
			flushStep()

		case strings.HasPrefix(line, "Scenario:"):
			name := strings.TrimSpace(strings.TrimPrefix(line, "Scenario:"))
			scenario := &Scenario{Name: name, Tags: pendingTags, Line: lineNum, ExampleIndex: -1}
			pendingTags = nil
			feature.Sections = append(feature.Sections, &Section{Scenario: scenario})
			steps = &scenario.Steps
			outline = nil
			flushStep()

		case strings.HasPrefix(line, "Examples:"):
			if outline == nil {
				return nil, p.errorf(lineNum, "Examples outside a Scenario Outline")
			}
			table, err := p.parseTable()
			if err != nil {
				return nil, err
			}
			examples := &ExamplesTable{Tags: pendingTags, Line: lineNum}
			pendingTags = nil
			if len(table.Header) == 1 && len(table.Rows) == 0 {
				examples.Expression = table.Header[0]
			} else {
				examples.Table = table
			}
			outline.Examples = append(outline.Examples, examples)
			flushStep()

		case strings.HasPrefix(line, "|"):
			if lastStep == nil {
				return nil, p.errorf(lineNum, "table row with no preceding step")
			}
			p.pos-- // re-read as a table
			table, err := p.parseTable()
			if err != nil {
				return nil, err
			}
			lastStep.Table = table

		case strings.HasPrefix(line, `"""`):
			if lastStep == nil {
				return nil, p.errorf(lineNum, "docstring with no preceding step")
			}
			doc, err := p.parseDocstring(raw, lineNum)
			if err != nil {
				return nil, err
			}
			lastStep.Docstring = doc

		default:
			keyword, text, ok := splitStep(line)
			if !ok {
				return nil, p.errorf(lineNum, "unexpected line: %s", line)
			}
			if steps == nil {
				return nil, p.errorf(lineNum, "step outside a scenario: %s", line)
			}
			step := &Step{Keyword: keyword, Text: text, Line: lineNum}
			*steps = append(*steps, step)
			lastStep = step
		}
	}

	if feature.Name == "" && len(feature.Sections) == 0 {
		return nil, p.errorf(1, "no Feature declaration found")
	}
	if len(pendingTags) > 0 {
		return nil, p.errorf(len(p.lines), "dangling tags at end of file")
	}
	return feature, nil
}

// parseTable consumes consecutive pipe-delimited rows. The first row is the
// header, the rest are data rows.
func (p *parser) parseTable() (*Table, error) {
	table := &Table{}
	for p.pos < len(p.lines) {
		line := strings.TrimSpace(p.lines[p.pos])
		if line == "" || strings.HasPrefix(line, "#") {
			p.pos++
			continue
		}
		if !strings.HasPrefix(line, "|") {
			break
		}
		p.pos++
		cells := splitTableRow(line)
		if table.Header == nil {
			table.Header = cells
		} else {
			table.Rows = append(table.Rows, cells)
		}
	}
	if table.Header == nil {
		return nil, p.errorf(p.pos, "expected a table row")
	}
	return table, nil
}

func (p *parser) parseDocstring(openLine string, lineNum int) (string, error) {
	indent := len(openLine) - len(strings.TrimLeft(openLine, " \t"))
	var body []string
	for p.pos < len(p.lines) {
		raw := p.lines[p.pos]
		p.pos++
		if strings.TrimSpace(raw) == `"""` {
			return strings.Join(body, "\n"), nil
		}
		// Strip the indentation of the opening quotes, preserve the rest.
		trimmed := raw
		for i := 0; i < indent && len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\t'); i++ {
			trimmed = trimmed[1:]
		}
		body = append(body, trimmed)
	}
	return "", p.errorf(lineNum, "unterminated docstring")
}

func splitStep(line string) (keyword, text string, ok bool) {
	for _, kw := range stepKeywords {
		if strings.HasPrefix(line, kw) {
			return strings.TrimSpace(kw), strings.TrimSpace(line[len(kw):]), true
		}
	}
	return "", "", false
}

func splitTableRow(line string) []string {
	line = strings.Trim(line, "|")
	parts := strings.Split(line, "|")
	cells := make([]string, len(parts))
	for i, part := range parts {
		cells[i] = strings.TrimSpace(part)
	}
	return cells
}

func parseTagLine(line string, lineNum int) ([]Tag, error) {
	var tags []Tag
	for _, field := range strings.Fields(line) {
		if !strings.HasPrefix(field, "@") {
			return nil, &ParseError{Line: lineNum, Message: fmt.Sprintf("invalid tag: %s", field)}
		}
		tags = append(tags, ParseTag(field, lineNum))
	}
	return tags, nil
}

// ParseTag parses a single @name or @name=v1,v2 tag.
func ParseTag(text string, line int) Tag {
	text = strings.TrimPrefix(text, "@")
	name, values, found := strings.Cut(text, "=")
	tag := Tag{Name: name, Line: line}
	if found {
		for _, v := range strings.Split(values, ",") {
			tag.Values = append(tag.Values, strings.TrimSpace(v))
		}
	}
	return tag
}
