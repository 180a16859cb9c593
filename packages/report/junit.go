package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/featlabs/featrun/packages/core/runtime"
)

// JUnit XML structures

type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// WriteJUnit renders the suite result as JUnit XML.
func WriteJUnit(w io.Writer, result *runtime.SuiteResult) error {
	suites := JUnitTestSuites{
		Name:      "featrun",
		Time:      result.Duration().Seconds(),
		Timestamp: time.Now().Format(time.RFC3339),
	}
	for _, fr := range result.FeatureResults {
		suite := JUnitTestSuite{
			Name:      fr.Feature.Path,
			Time:      fr.Duration().Seconds(),
			Timestamp: time.Now().Format(time.RFC3339),
		}
		for _, e := range fr.Errors {
			suite.Errors++
			suite.Tests++
			suite.TestCases = append(suite.TestCases, JUnitTestCase{
				Name:      "feature error",
				ClassName: fr.Feature.Path,
				Failure: &JUnitFailure{
					Message: e,
					Type:    "Error",
				},
			})
		}
		for _, sr := range fr.ScenarioResults {
			suite.Tests++
			tc := JUnitTestCase{
				Name:      sr.Scenario.Name,
				ClassName: fr.Feature.Path,
				Time:      sr.Duration().Seconds(),
			}
			if sr.Excluded {
				suite.Skipped++
				tc.Skipped = &JUnitSkipped{Message: "excluded"}
			} else if sr.Failed() {
				suite.Failures++
				tc.Failure = &JUnitFailure{
					Message: sr.FailureMessage(),
					Type:    "AssertionError",
					Content: stepTrace(sr),
				}
			}
			suite.TestCases = append(suite.TestCases, tc)
		}
		suites.Tests += suite.Tests
		suites.Failures += suite.Failures
		suites.Errors += suite.Errors
		suites.Skipped += suite.Skipped
		suites.TestSuites = append(suites.TestSuites, suite)
	}

	fmt.Fprintf(w, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	return encoder.Encode(suites)
}

// WriteJUnitFile writes the JUnit report to path, creating parent
// directories as needed.
func WriteJUnitFile(path string, result *runtime.SuiteResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteJUnit(f, result)
}

func stepTrace(sr *runtime.ScenarioResult) string {
	trace := ""
	for _, step := range sr.StepResults {
		trace += fmt.Sprintf("%s [%s %s]", step.Status, step.Step.Keyword, step.Step.Text)
		if step.Error != nil {
			trace += ": " + step.Error.Error()
		}
		trace += "\n"
	}
	return trace
}
