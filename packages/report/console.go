package report

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/featlabs/featrun/packages/core/runtime"
)

// ConsoleReporter prints suite results in a human-readable form.
type ConsoleReporter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleReporter)

func NewConsoleReporter(opts ...ConsoleOption) *ConsoleReporter {
	r := &ConsoleReporter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.noColor {
		color.NoColor = true
	}
	return r
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(r *ConsoleReporter) {
		r.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(r *ConsoleReporter) {
		r.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(r *ConsoleReporter) {
		r.noColor = nc
	}
}

func (r *ConsoleReporter) PrintFeature(fr *runtime.FeatureResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(r.writer, "\n%s\n\n", bold("Feature: "+featureLabel(fr)))

	for _, e := range fr.Errors {
		fmt.Fprintf(r.writer, "  %s %s\n", red("!"), e)
	}

	for _, sr := range fr.ScenarioResults {
		if sr.Excluded {
			fmt.Fprintf(r.writer, "  %s %s\n", yellow("-"), sr.Scenario.Name)
			continue
		}
		symbol := green("✓")
		if sr.Failed() {
			symbol = red("✗")
		}
		fmt.Fprintf(r.writer, "  %s %s %s\n", symbol, sr.Scenario.Name,
			cyan(fmt.Sprintf("(%dms)", sr.Duration().Milliseconds())))

		if sr.Failed() {
			fmt.Fprintf(r.writer, "    %s %s\n", red("→"), sr.FailureMessage())
		}
		if r.verbose {
			for _, step := range sr.StepResults {
				fmt.Fprintf(r.writer, "    %s %s %s\n", step.Status, step.Step.Keyword, step.Step.Text)
				if step.Log != "" {
					fmt.Fprintf(r.writer, "      %s\n", step.Log)
				}
			}
		}
	}
}

func (r *ConsoleReporter) PrintSummary(result *runtime.SuiteResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	passed := result.ScenariosPassed()
	failed := result.ScenariosFailed()

	fmt.Fprintf(r.writer, "\nScenarios: ")
	if passed > 0 {
		fmt.Fprintf(r.writer, "%s, ", green(fmt.Sprintf("%d passed", passed)))
	}
	if failed > 0 {
		fmt.Fprintf(r.writer, "%s, ", red(fmt.Sprintf("%d failed", failed)))
	}
	fmt.Fprintf(r.writer, "%d total\n", passed+failed)
	fmt.Fprintf(r.writer, "Features:  %d passed, %d failed, %d total\n",
		result.FeaturesPassed(), result.FeaturesFailed(), len(result.FeatureResults))
	fmt.Fprintf(r.writer, "Time:      %dms\n\n", result.Duration().Milliseconds())

	for _, msg := range result.ErrorMessages() {
		fmt.Fprintf(r.writer, "%s %s\n", red("✗"), msg)
	}
}

func (r *ConsoleReporter) PrintError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(r.writer, "%s %v\n", red("Error:"), err)
}

func featureLabel(fr *runtime.FeatureResult) string {
	if fr.Feature.Name != "" {
		return fr.Feature.Name
	}
	return fr.Feature.Path
}
