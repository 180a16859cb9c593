package report

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/featlabs/featrun/packages/core/runtime"
)

type HTMLSummary struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

type HTMLScenario struct {
	Name        string
	Feature     string
	StatusClass string
	Duration    int64
	Error       string
	Steps       []HTMLStep
}

type HTMLStep struct {
	Text        string
	StatusClass string
	Duration    int64
	Error       string
	Log         string
}

type HTMLOutput struct {
	Summary        HTMLSummary
	Scenarios      []HTMLScenario
	Duration       int64
	Time           string
	PassedPercent  float64
	FailedPercent  float64
	SkippedPercent float64
}

// WriteHTML renders the suite result as a standalone HTML page.
func WriteHTML(w io.Writer, result *runtime.SuiteResult) error {
	var out HTMLOutput
	for _, fr := range result.FeatureResults {
		for _, sr := range fr.ScenarioResults {
			scenario := HTMLScenario{
				Name:     sr.Scenario.Name,
				Feature:  fr.Feature.Path,
				Duration: sr.Duration().Milliseconds(),
			}
			switch {
			case sr.Excluded:
				scenario.StatusClass = "skipped"
				out.Summary.Skipped++
			case sr.Failed():
				scenario.StatusClass = "failed"
				scenario.Error = sr.FailureMessage()
				out.Summary.Failed++
			default:
				scenario.StatusClass = "passed"
				out.Summary.Passed++
			}
			for _, step := range sr.StepResults {
				hs := HTMLStep{
					Text:        step.Step.Keyword + " " + step.Step.Text,
					StatusClass: step.Status.String(),
					Duration:    step.Duration.Milliseconds(),
					Log:         step.Log,
				}
				if step.Error != nil {
					hs.Error = step.Error.Error()
				}
				scenario.Steps = append(scenario.Steps, hs)
			}
			out.Scenarios = append(out.Scenarios, scenario)
		}
	}
	out.Summary.Total = len(out.Scenarios)
	if out.Summary.Total > 0 {
		out.PassedPercent = float64(out.Summary.Passed) / float64(out.Summary.Total) * 100
		out.FailedPercent = float64(out.Summary.Failed) / float64(out.Summary.Total) * 100
		out.SkippedPercent = float64(out.Summary.Skipped) / float64(out.Summary.Total) * 100
	}
	out.Duration = result.Duration().Milliseconds()
	out.Time = time.Now().Format("2006-01-02 15:04:05")

	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}
	return tmpl.Execute(w, out)
}

// WriteHTMLFile writes the HTML report to path.
func WriteHTMLFile(path string, result *runtime.SuiteResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteHTML(f, result)
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>featrun report</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; color: #222; }
h1 { font-size: 1.4rem; }
.summary { display: flex; gap: 1.5rem; margin: 1rem 0; }
.summary div { padding: .5rem 1rem; border-radius: 6px; background: #f4f4f4; }
.bar { height: 8px; border-radius: 4px; overflow: hidden; display: flex; margin-bottom: 1.5rem; }
.bar .passed { background: #2da44e; }
.bar .failed { background: #cf222e; }
.bar .skipped { background: #bf8700; }
.scenario { border: 1px solid #ddd; border-radius: 6px; margin-bottom: .75rem; }
.scenario > .head { padding: .5rem .75rem; display: flex; justify-content: space-between; cursor: default; }
.scenario.passed > .head { border-left: 4px solid #2da44e; }
.scenario.failed > .head { border-left: 4px solid #cf222e; }
.scenario.skipped > .head { border-left: 4px solid #bf8700; }
.feature { color: #666; font-size: .85rem; }
.steps { margin: 0; padding: .25rem .75rem .75rem; list-style: none; font-family: monospace; font-size: .85rem; }
.steps li.failed { color: #cf222e; }
.steps li.skipped { color: #999; }
.error { color: #cf222e; padding: 0 .75rem .5rem; font-family: monospace; font-size: .85rem; }
.log { color: #555; white-space: pre-wrap; }
footer { color: #666; font-size: .8rem; margin-top: 2rem; }
</style>
</head>
<body>
<h1>featrun report</h1>
<div class="summary">
<div>{{.Summary.Total}} scenarios</div>
<div>{{.Summary.Passed}} passed</div>
<div>{{.Summary.Failed}} failed</div>
<div>{{.Summary.Skipped}} skipped</div>
<div>{{.Duration}}ms</div>
</div>
<div class="bar">
<div class="passed" style="width:{{printf "%.1f" .PassedPercent}}%"></div>
<div class="failed" style="width:{{printf "%.1f" .FailedPercent}}%"></div>
<div class="skipped" style="width:{{printf "%.1f" .SkippedPercent}}%"></div>
</div>
{{range .Scenarios}}
<div class="scenario {{.StatusClass}}">
<div class="head"><span>{{.Name}} <span class="feature">{{.Feature}}</span></span><span>{{.Duration}}ms</span></div>
{{if .Error}}<div class="error">{{.Error}}</div>{{end}}
<ul class="steps">
{{range .Steps}}<li class="{{.StatusClass}}">{{.Text}}{{if .Error}}: {{.Error}}{{end}}{{if .Log}}<div class="log">{{.Log}}</div>{{end}}</li>
{{end}}
</ul>
</div>
{{end}}
<footer>generated {{.Time}}</footer>
</body>
</html>
`
