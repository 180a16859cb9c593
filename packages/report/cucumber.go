package report

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/featlabs/featrun/packages/core/runtime"
)

// Cucumber JSON structures, compatible with cucumber-jvm consumers.

type CucumberFeature struct {
	URI      string            `json:"uri"`
	ID       string            `json:"id"`
	Keyword  string            `json:"keyword"`
	Name     string            `json:"name"`
	Elements []CucumberElement `json:"elements"`
	Tags     []CucumberTag     `json:"tags,omitempty"`
}

type CucumberElement struct {
	ID      string         `json:"id"`
	Keyword string         `json:"keyword"`
	Type    string         `json:"type"`
	Name    string         `json:"name"`
	Line    int            `json:"line"`
	Steps   []CucumberStep `json:"steps"`
	Tags    []CucumberTag  `json:"tags,omitempty"`
}

type CucumberStep struct {
	Keyword string          `json:"keyword"`
	Name    string          `json:"name"`
	Line    int             `json:"line"`
	Result  CucumberResult  `json:"result"`
	DocText *CucumberDocStr `json:"doc_string,omitempty"`
}

type CucumberDocStr struct {
	Value string `json:"value"`
	Line  int    `json:"line"`
}

type CucumberResult struct {
	Status       string `json:"status"`
	Duration     int64  `json:"duration"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type CucumberTag struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// WriteCucumber renders the suite result as a Cucumber JSON array.
func WriteCucumber(w io.Writer, result *runtime.SuiteResult) error {
	features := make([]CucumberFeature, 0, len(result.FeatureResults))
	for _, fr := range result.FeatureResults {
		feature := CucumberFeature{
			URI:     fr.Feature.Path,
			ID:      cucumberID(fr.Feature.Name),
			Keyword: "Feature",
			Name:    fr.Feature.Name,
		}
		for _, t := range fr.Feature.Tags {
			feature.Tags = append(feature.Tags, CucumberTag{Name: "@" + t.Text(), Line: t.Line})
		}
		for _, sr := range fr.ScenarioResults {
			if sr.Excluded {
				continue
			}
			element := CucumberElement{
				ID:      feature.ID + ";" + cucumberID(sr.Scenario.Name),
				Keyword: "Scenario",
				Type:    "scenario",
				Name:    sr.Scenario.Name,
				Line:    sr.Scenario.Line,
			}
			for _, t := range sr.Scenario.Tags {
				element.Tags = append(element.Tags, CucumberTag{Name: "@" + t.Text(), Line: t.Line})
			}
			for _, step := range sr.StepResults {
				cs := CucumberStep{
					Keyword: step.Step.Keyword + " ",
					Name:    step.Step.Text,
					Line:    step.Step.Line,
					Result: CucumberResult{
						Status: step.Status.String(),
						// cucumber durations are nanoseconds
						Duration: step.Duration.Nanoseconds(),
					},
				}
				if step.Error != nil {
					cs.Result.ErrorMessage = step.Error.Error()
				}
				if step.Step.Docstring != "" {
					cs.DocText = &CucumberDocStr{Value: step.Step.Docstring, Line: step.Step.Line}
				}
				element.Steps = append(element.Steps, cs)
			}
			feature.Elements = append(feature.Elements, element)
		}
		features = append(features, feature)
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(features)
}

// WriteCucumberFile writes the Cucumber JSON report to path.
func WriteCucumberFile(path string, result *runtime.SuiteResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteCucumber(f, result)
}

func cucumberID(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}
