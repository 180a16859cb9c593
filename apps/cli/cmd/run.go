package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/featlabs/featrun/packages/core/config"
	"github.com/featlabs/featrun/packages/core/runtime"
	"github.com/featlabs/featrun/packages/history"
	"github.com/featlabs/featrun/packages/perf"
	"github.com/featlabs/featrun/packages/report"
)

var runCmd = &cobra.Command{
	Use:   "run [file|directory...]",
	Short: "Run feature files",
	Long: `Run scenarios from .feature files.

Examples:
  featrun run features/users.feature
  featrun run features/ --env staging --threads 8
  featrun run features/ --tags @smoke
  featrun run features/ --tags "~@slow" --tags @api
  featrun run features/ --name "create user"
  featrun run features/ --junit --cucumber --html -o target`,
	RunE: runCommand,
}

// WatchDebounceDelay is the debounce delay for file watch events
const WatchDebounceDelay = 300 * time.Millisecond

var (
	envFlag          string
	configFlag       string
	tagsFlag         []string
	threadsFlag      int
	nameFlag         string
	dryRunFlag       bool
	cleanFlag        bool
	workingDirFlag   string
	outputDirFlag    string
	htmlFlag         bool
	junitFlag        bool
	cucumberFlag     bool
	jsonlFlag        bool
	perfFlag         bool
	historyFlag      bool
	watchFlag        bool
	verboseFlag      int
	noColorFlag      bool
	rateFlag         float64
	timeoutFlag      string
	cacheDirFlag     string
	cacheMinutesFlag int
)

func init() {
	runCmd.Flags().StringVarP(&envFlag, "env", "e", getEnvString("FEATRUN_ENV", ""), "Environment name, matched against @env tags (env: FEATRUN_ENV)")
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("FEATRUN_CONFIG", ""), "Path to config file (env: FEATRUN_CONFIG)")
	runCmd.Flags().StringArrayVarP(&tagsFlag, "tags", "t", nil, "Tag selector, repeatable; args are ANDed, commas mean OR, ~ negates")
	runCmd.Flags().IntVarP(&threadsFlag, "threads", "T", getEnvInt("FEATRUN_THREADS", 0), "Number of parallel workers (env: FEATRUN_THREADS)")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only scenarios whose name contains this text")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Parse and select scenarios without executing steps")
	runCmd.Flags().BoolVar(&cleanFlag, "clean", false, "Remove the output directory before running")
	runCmd.Flags().StringVar(&workingDirFlag, "working-dir", "", "Base directory for relative feature paths")
	runCmd.Flags().StringVarP(&outputDirFlag, "output-dir", "o", getEnvString("FEATRUN_OUTPUT_DIR", ""), "Directory for generated reports (env: FEATRUN_OUTPUT_DIR)")
	runCmd.Flags().BoolVar(&htmlFlag, "html", getEnvBool("FEATRUN_HTML", false), "Write an HTML report (env: FEATRUN_HTML)")
	runCmd.Flags().BoolVar(&junitFlag, "junit", getEnvBool("FEATRUN_JUNIT", false), "Write a JUnit XML report (env: FEATRUN_JUNIT)")
	runCmd.Flags().BoolVar(&cucumberFlag, "cucumber", getEnvBool("FEATRUN_CUCUMBER", false), "Write a Cucumber JSON report (env: FEATRUN_CUCUMBER)")
	runCmd.Flags().BoolVar(&jsonlFlag, "jsonl", getEnvBool("FEATRUN_JSONL", false), "Stream run events to a JSON Lines file (env: FEATRUN_JSONL)")
	runCmd.Flags().BoolVar(&perfFlag, "perf", getEnvBool("FEATRUN_PERF", false), "Collect and print latency percentiles (env: FEATRUN_PERF)")
	runCmd.Flags().BoolVar(&historyFlag, "history", getEnvBool("FEATRUN_HISTORY", false), "Record results to the local history database (env: FEATRUN_HISTORY)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch feature files for changes and re-run")
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output, print every step")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("FEATRUN_NO_COLOR", false), "Disable colored output (env: FEATRUN_NO_COLOR)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", 0, "Max scenario starts per second, 0 means unlimited")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("FEATRUN_TIMEOUT", ""), "HTTP request timeout, e.g. 30s (env: FEATRUN_TIMEOUT)")
	runCmd.Flags().StringVar(&cacheDirFlag, "cache-dir", getEnvString("FEATRUN_CACHE_DIR", ""), "Directory for the callSingle disk cache (env: FEATRUN_CACHE_DIR)")
	runCmd.Flags().IntVar(&cacheMinutesFlag, "cache-minutes", getEnvInt("FEATRUN_CACHE_MINUTES", 0), "callSingle disk cache TTL in minutes (env: FEATRUN_CACHE_MINUTES)")
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	mergeFlags(cmd, cfg, args)

	if len(cfg.Paths) == 0 {
		return fmt.Errorf("no feature files given: pass paths or set them in the config file")
	}
	if cfg.Clean && cfg.Output.Dir != "" {
		if err := os.RemoveAll(cfg.Output.Dir); err != nil {
			return fmt.Errorf("cleaning output dir: %w", err)
		}
	}

	failed, err := executeSuite(cmd, cfg)
	if err != nil {
		return err
	}
	if !watchFlag {
		if failed {
			os.Exit(ExitTestFailure)
		}
		return nil
	}
	return watchAndRerun(cmd, cfg)
}

// mergeFlags overlays explicitly-set command line flags onto the file
// configuration.
func mergeFlags(cmd *cobra.Command, cfg *config.Config, args []string) {
	if len(args) > 0 {
		cfg.Paths = args
	}
	flags := cmd.Flags()
	if flags.Changed("env") || cfg.Env == "" {
		cfg.Env = envFlag
	}
	if len(tagsFlag) > 0 {
		cfg.Tags = tagsFlag
	}
	if threadsFlag > 0 {
		cfg.Threads = threadsFlag
	}
	if nameFlag != "" {
		cfg.ScenarioName = nameFlag
	}
	if dryRunFlag {
		cfg.DryRun = true
	}
	if cleanFlag {
		cfg.Clean = true
	}
	if workingDirFlag != "" {
		cfg.WorkingDir = workingDirFlag
	}
	if outputDirFlag != "" {
		cfg.Output.Dir = outputDirFlag
	}
	if htmlFlag {
		cfg.Output.HTML = true
	}
	if junitFlag {
		cfg.Output.JUnitXML = true
	}
	if cucumberFlag {
		cfg.Output.CucumberJSON = true
	}
	if jsonlFlag {
		cfg.Output.JSONLines = true
	}
}

func executeSuite(cmd *cobra.Command, cfg *config.Config) (bool, error) {
	console := report.NewConsoleReporter(
		report.WithWriter(cmd.OutOrStdout()),
		report.WithVerbose(verboseFlag > 0),
		report.WithNoColor(noColorFlag),
	)

	opts := runtime.Options{
		Paths:                  cfg.Paths,
		Env:                    cfg.Env,
		Tags:                   cfg.Tags,
		ThreadCount:            cfg.Threads,
		DryRun:                 cfg.DryRun,
		ScenarioName:           cfg.ScenarioName,
		WorkingDir:             cfg.WorkingDir,
		OutputDir:              cfg.Output.Dir,
		CallSingleCacheDir:     cacheDirFlag,
		CallSingleCacheMinutes: cacheMinutesFlag,
		MaxRatePerSecond:       rateFlag,
	}
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return false, fmt.Errorf("invalid timeout %q: %w", timeoutFlag, err)
		}
		opts.HTTPTimeout = d
	}

	var jsonl *report.JSONLWriter
	if cfg.Output.JSONLines {
		w, err := report.NewJSONLFile(filepath.Join(cfg.Output.Dir, "featrun-events.jsonl"))
		if err != nil {
			return false, err
		}
		jsonl = w
		opts.Listeners = append(opts.Listeners, jsonl)
	}
	var collector *perf.Collector
	if perfFlag {
		collector = perf.NewCollector()
		opts.Listeners = append(opts.Listeners, collector)
	}

	suite, err := runtime.NewSuite(opts)
	if err != nil {
		return false, err
	}
	result := suite.Run()
	if jsonl != nil {
		_ = jsonl.Close()
	}

	for _, fr := range result.FeatureResults {
		console.PrintFeature(fr)
	}
	console.PrintSummary(result)
	if collector != nil {
		collector.Report(cmd.OutOrStdout())
	}

	if cfg.Output.JUnitXML {
		if err := report.WriteJUnitFile(filepath.Join(cfg.Output.Dir, "featrun-junit.xml"), result); err != nil {
			return false, fmt.Errorf("writing junit report: %w", err)
		}
	}
	if cfg.Output.CucumberJSON {
		if err := report.WriteCucumberFile(filepath.Join(cfg.Output.Dir, "featrun-cucumber.json"), result); err != nil {
			return false, fmt.Errorf("writing cucumber report: %w", err)
		}
	}
	if cfg.Output.HTML {
		if err := report.WriteHTMLFile(filepath.Join(cfg.Output.Dir, "featrun-report.html"), result); err != nil {
			return false, fmt.Errorf("writing html report: %w", err)
		}
	}
	if historyFlag {
		if err := recordHistory(cfg, result); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: recording history: %v\n", err)
		}
	}
	return result.Failed(), nil
}

func recordHistory(cfg *config.Config, result *runtime.SuiteResult) error {
	store, err := history.Open(historyDBPath(cfg))
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = store.Record(context.Background(), cfg.Env, result)
	return err
}

func historyDBPath(cfg *config.Config) string {
	dir := cfg.Output.Dir
	if dir == "" {
		dir = "target"
	}
	return filepath.Join(dir, "featrun-history.db")
}

// watchAndRerun re-executes the suite whenever a watched feature file
// changes, debouncing rapid events.
func watchAndRerun(cmd *cobra.Command, cfg *config.Config) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]bool)
	for _, p := range cfg.Paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			p = filepath.Dir(p)
		}
		_ = filepath.Walk(p, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() && !watched[path] {
				_ = watcher.Add(path)
				watched[path] = true
			}
			return nil
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var debounceTimer *time.Timer
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) && strings.HasSuffix(event.Name, ".feature") {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "\nFile changed: %s\nRe-running...\n", event.Name)
					if _, err := executeSuite(cmd, cfg); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
					}
				})
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
		}
	}
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
