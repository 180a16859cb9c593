package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/featlabs/featrun/packages/gherkin"
	slimhttp "github.com/featlabs/featrun/packages/http"
)

// Options configures a Suite. Zero values mean defaults: one worker,
// no tag filter, no environment.
type Options struct {
	// Paths are feature files or directories searched recursively.
	Paths []string
	// Features are pre-parsed features, appended after Paths.
	Features []*gherkin.Feature

	Env          string
	Tags         []string
	ThreadCount  int
	DryRun       bool
	ScenarioName string
	WorkingDir   string
	OutputDir    string

	Hooks             []RuntimeHook
	Listeners         []RunListener
	ListenerFactories []RunListenerFactory

	CallSingleCacheDir     string
	CallSingleCacheMinutes int

	// MaxRatePerSecond throttles scenario starts across all workers.
	MaxRatePerSecond float64

	HTTPTimeout time.Duration
}

// Suite runs a set of features in parallel and aggregates their results.
// Data-level problems (parse errors, failing scenarios, missing setup
// scenarios) are recorded in the result; Run itself never fails for them.
type Suite struct {
	env          string
	tagSelector  string
	threadCount  int
	dryRun       bool
	scenarioName string
	workingDir   string
	outputDir    string

	featurePaths []string
	features     []*gherkin.Feature

	hooks     []RuntimeHook
	listeners []RunListener
	factories []RunListenerFactory

	callSingle *CallSingleCache
	diskCache  *DiskCacheConfig
	limiter    *rate.Limiter
	client     *slimhttp.Client

	progressTotal int
	progressDone  atomic.Int64

	result *SuiteResult
}

// NewSuite validates configuration and resolves feature paths. Unresolvable
// paths and malformed tag selectors are configuration faults and fail here;
// everything discovered later is reported through the result instead.
func NewSuite(opts Options) (*Suite, error) {
	threads := opts.ThreadCount
	if threads < 1 {
		threads = 1
	}
	workingDir := opts.WorkingDir
	if workingDir == "" {
		workingDir = "."
	}
	selector := TranslateTagSelector(opts.Tags)
	if err := ValidateTagSelector(selector); err != nil {
		return nil, err
	}
	paths, err := resolveFeaturePaths(opts.Paths)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 && len(opts.Features) == 0 {
		return nil, fmt.Errorf("no feature files found")
	}

	timeout := opts.HTTPTimeout
	if timeout == 0 {
		timeout = slimhttp.DefaultTimeout
	}

	s := &Suite{
		env:          opts.Env,
		tagSelector:  selector,
		threadCount:  threads,
		dryRun:       opts.DryRun,
		scenarioName: opts.ScenarioName,
		workingDir:   workingDir,
		outputDir:    opts.OutputDir,
		featurePaths: paths,
		features:     opts.Features,
		hooks:        opts.Hooks,
		listeners:    opts.Listeners,
		factories:    opts.ListenerFactories,
		callSingle:   NewCallSingleCache(),
		client:       slimhttp.NewClient(slimhttp.WithTimeout(timeout)),
		result:       &SuiteResult{},
	}
	if opts.CallSingleCacheDir != "" {
		s.diskCache = &DiskCacheConfig{
			Dir: opts.CallSingleCacheDir,
			TTL: time.Duration(opts.CallSingleCacheMinutes) * time.Minute,
		}
	}
	if opts.MaxRatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.MaxRatePerSecond), 1)
	}
	return s, nil
}

func resolveFeaturePaths(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("path not found: %s", p)
		}
		if !info.IsDir() {
			if !seen[p] {
				seen[p] = true
				files = append(files, p)
			}
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".feature") {
				return nil
			}
			if !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *Suite) Env() string          { return s.env }
func (s *Suite) DryRun() bool         { return s.dryRun }
func (s *Suite) WorkingDir() string   { return s.workingDir }
func (s *Suite) OutputDir() string    { return s.outputDir }
func (s *Suite) Result() *SuiteResult { return s.result }

// Run executes every feature and returns the aggregated result. It never
// returns an error: anything that goes wrong during execution lands in the
// result's error messages.
func (s *Suite) Run() *SuiteResult {
	s.result.Start = time.Now()
	defer func() { s.result.End = time.Now() }()

	for _, h := range s.hooks {
		if !h.BeforeSuite(s) {
			return s.result
		}
	}
	s.fireEvent(RunEvent{Type: SuiteEnter, Timestamp: time.Now()}, nil)

	jobs := s.loadFeatures()
	s.progressTotal = len(jobs)

	ordered := make([]*FeatureResult, len(jobs))
	jobCh := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < s.threadCount; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			workerListeners := s.createWorkerListeners()
			threadName := fmt.Sprintf("worker-%d", worker+1)
			for idx := range jobCh {
				ordered[idx] = s.runFeature(jobs[idx], workerListeners, threadName)
				done := s.progressDone.Add(1)
				s.fireEvent(RunEvent{
					Type:      ProgressEvent,
					Timestamp: time.Now(),
					Completed: int(done),
					Total:     s.progressTotal,
					Percent:   float64(done) / float64(s.progressTotal) * 100,
				}, workerListeners)
			}
		}(w)
	}
	for idx := range jobs {
		jobCh <- idx
	}
	close(jobCh)
	wg.Wait()

	for _, fr := range ordered {
		if fr != nil {
			s.result.AddFeature(fr)
		}
	}

	s.fireEvent(RunEvent{Type: SuiteExit, Timestamp: time.Now()}, nil)
	for _, h := range s.hooks {
		h.AfterSuite(s)
	}
	return s.result
}

type featureJob struct {
	path    string
	feature *gherkin.Feature
	err     error
}

func (s *Suite) loadFeatures() []featureJob {
	var jobs []featureJob
	for _, path := range s.featurePaths {
		f, err := gherkin.ParseFile(path)
		jobs = append(jobs, featureJob{path: path, feature: f, err: err})
	}
	for _, f := range s.features {
		jobs = append(jobs, featureJob{path: f.Path, feature: f})
	}
	return jobs
}

func (s *Suite) runFeature(job featureJob, workerListeners []RunListener, threadName string) *FeatureResult {
	if job.err != nil {
		fr := &FeatureResult{Feature: &gherkin.Feature{Path: job.path}, Start: time.Now(), End: time.Now()}
		fr.AddError(job.err.Error())
		s.fireEvent(RunEvent{
			Type:      ErrorEvent,
			Timestamp: time.Now(),
			Message:   job.err.Error(),
			ErrorType: "parse",
		}, workerListeners)
		return fr
	}
	frt := newFeatureRuntime(s, job.feature, workerListeners, threadName)
	return frt.Run()
}

func (s *Suite) createWorkerListeners() []RunListener {
	if len(s.factories) == 0 {
		return nil
	}
	listeners := make([]RunListener, 0, len(s.factories))
	for _, f := range s.factories {
		if l := f.Create(); l != nil {
			listeners = append(listeners, l)
		}
	}
	return listeners
}

// fireEvent notifies global listeners first, then the worker's own. The
// event is vetoed unless every listener returns true.
func (s *Suite) fireEvent(e RunEvent, workerListeners []RunListener) bool {
	ok := true
	for _, l := range s.listeners {
		if !l.OnEvent(e) {
			ok = false
		}
	}
	for _, l := range workerListeners {
		if !l.OnEvent(e) {
			ok = false
		}
	}
	return ok
}

// awaitScenarioSlot blocks until the rate limiter admits the next scenario
// start. With no limiter configured it returns immediately.
func (s *Suite) awaitScenarioSlot() {
	if s.limiter == nil {
		return
	}
	_ = s.limiter.Wait(context.Background())
}

func (s *Suite) callSingleGet(key string, cfg *ScenarioConfig, supplier func() (any, error)) (any, error) {
	disk := s.diskCache
	if cfg != nil && cfg.CallSingleCacheDir != "" {
		disk = &DiskCacheConfig{Dir: cfg.CallSingleCacheDir, TTL: cfg.CallSingleCacheTTL}
	}
	return s.callSingle.Get(key, disk, supplier)
}
