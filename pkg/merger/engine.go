package merger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Engine orchestrates a merge run: scan, assemble, then fan the groups out
// over a worker pool. Groups are fully independent, so workers share no
// mutable state and a failing group never interrupts its siblings.
type Engine struct {
	opts        *Options
	logger      *slog.Logger
	hooks       Hooks
	scanner     *Scanner
	merger      *GroupMerger
	writer      *GroupWriter
	aggregator  *reportAggregator
	concurrency int
}

// NewEngine creates and initializes an Engine, validating options and setting
// up dependencies. Configuration errors are fatal here; nothing is scanned yet.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("%w: Logger implementation (slog.Handler) cannot be nil", ErrConfigValidation)
	}
	if opts.EventHooks == nil {
		opts.EventHooks = &NoOpHooks{}
	}
	logger := slog.New(opts.Logger).With(slog.String("component", "engine"))

	if opts.OutputMode == "" {
		opts.OutputMode = DefaultOutputMode
	}
	switch opts.OutputMode {
	case OutputModePersist, OutputModeAccumulate, OutputModeIndexOnly:
	default:
		return nil, fmt.Errorf("%w: unknown output mode %q", ErrConfigValidation, opts.OutputMode)
	}
	if opts.CombinedFile != "" && opts.OutputMode == OutputModeIndexOnly {
		return nil, fmt.Errorf("%w: combinedFile cannot be used with output mode %q", ErrConfigValidation, OutputModeIndexOnly)
	}

	needsOutputDir := opts.OutputMode == OutputModePersist || opts.CombinedFile != ""
	if needsOutputDir {
		if opts.OutputDir == "" {
			return nil, fmt.Errorf("%w: output directory is required for output mode %q", ErrConfigValidation, opts.OutputMode)
		}
		if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
			return nil, fmt.Errorf("%w: cannot create or access output directory %q: %w", ErrConfigValidation, opts.OutputDir, err)
		}
	}

	scanner, err := NewScanner(&opts, opts.Logger)
	if err != nil {
		return nil, err
	}

	loaderFactory := opts.LoaderFactory
	if loaderFactory == nil {
		loaderFactory = NewJSONRecordLoader
		logger.Debug("LoaderFactory not provided, using default JSON loader.")
	}
	loader := loaderFactory(&opts, opts.Logger)

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
		opts.Concurrency = concurrency
		logger.Debug("Concurrency auto-detected", slog.Int("count", concurrency))
	}

	engine := &Engine{
		opts:        &opts,
		logger:      logger,
		hooks:       opts.EventHooks,
		scanner:     scanner,
		merger:      NewGroupMerger(&opts, loader, opts.Logger),
		writer:      NewGroupWriter(opts.OutputDir, opts.Logger),
		aggregator:  newReportAggregator(),
		concurrency: concurrency,
	}
	return engine, nil
}

type indexedGroup struct {
	index int
	group FileGroup
}

// Run executes the merge: discover, gate on completeness, process groups in
// parallel, and aggregate. The returned error is non-nil only for run-level
// failures (scan errors, cancellation); per-group faults are reported through
// the Report counters instead.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	startTime := time.Now()
	e.logger.Info("Starting merge run",
		slog.Int("concurrency", e.concurrency),
		slog.String("outputMode", string(e.opts.OutputMode)))

	index, err := e.scanner.Discover(ctx)
	if err != nil {
		e.logger.Error("Scan failed", slog.String("error", err.Error()))
		return e.aggregator.getReport(e.opts, startTime, 0, 0, e.concurrency), err
	}
	groups, incomplete := Assemble(index, e.opts.Logger)

	for _, g := range groups {
		if hookErr := e.hooks.OnGroupDiscovered(g.Pattern, g.SourceFiles()); hookErr != nil {
			e.logger.Warn("OnGroupDiscovered hook returned an error", slog.String("error", hookErr.Error()))
		}
	}

	workerChan := make(chan indexedGroup)
	resultsChan := make(chan groupResult, e.concurrency)
	var wg sync.WaitGroup

	for i := 0; i < e.concurrency; i++ {
		wg.Add(1)
		go e.mergeGroupsWorker(ctx, &wg, i, workerChan, resultsChan)
	}

	go func() {
		defer close(workerChan)
		for i, g := range groups {
			if e.opts.DispatchWarnAfter > 0 {
				timer := time.NewTimer(e.opts.DispatchWarnAfter)
				select {
				case workerChan <- indexedGroup{index: i, group: g}:
					timer.Stop()
					continue
				case <-timer.C:
					e.logger.Warn("Slow dispatch, all workers busy",
						slog.String("pattern", g.Pattern), slog.Duration("waited", e.opts.DispatchWarnAfter))
				case <-ctx.Done():
					timer.Stop()
					return
				}
			}
			select {
			case workerChan <- indexedGroup{index: i, group: g}:
			case <-ctx.Done():
				return
			}
		}
	}()

	aggregatorDone := make(chan struct{})
	go func() {
		defer close(aggregatorDone)
		for result := range resultsChan {
			e.aggregator.add(result)
		}
	}()

	wg.Wait()
	close(resultsChan)
	<-aggregatorDone

	if e.opts.CombinedFile != "" && ctx.Err() == nil {
		if _, combErr := e.writer.WriteCombined(e.aggregator.mergedGroups(), e.opts.CombinedFile); combErr != nil {
			e.logger.Error("Failed to write combined results", slog.String("error", combErr.Error()))
			e.aggregator.addRunError(combErr)
		}
	}

	report := e.aggregator.getReport(e.opts, startTime, index.Len(), incomplete, e.concurrency)
	e.logger.Info("Merge run finished",
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("patterns", report.Summary.PatternsDiscovered),
		slog.Int("complete", report.Summary.CompleteGroups),
		slog.Int("incomplete", report.Summary.IncompleteGroups),
		slog.Int("merged", report.Summary.MergedCount),
		slog.Int("failed", report.Summary.FailedCount))

	if hookErr := e.hooks.OnRunComplete(report); hookErr != nil {
		e.logger.Warn("OnRunComplete hook returned an error", slog.String("error", hookErr.Error()))
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		e.logger.Info("Merge run cancelled", slog.String("reason", ctxErr.Error()))
		return report, ctxErr
	}
	return report, nil
}

// mergeGroupsWorker is the main loop executed by each worker goroutine. Each
// worker owns its FileGroup end-to-end; within one group, loading and merging
// stay strictly sequential.
func (e *Engine) mergeGroupsWorker(ctx context.Context, wg *sync.WaitGroup, workerID int, workerChan <-chan indexedGroup, resultsChan chan<- groupResult) {
	defer wg.Done()
	wLogger := e.logger.With(slog.Int("workerID", workerID))

	for {
		select {
		case ig, ok := <-workerChan:
			if !ok {
				wLogger.Debug("Worker shutting down (channel closed)")
				return
			}
			resultsChan <- e.processGroup(ctx, wLogger, ig)
		case <-ctx.Done():
			wLogger.Debug("Worker shutting down (context cancelled)")
			return
		}
	}
}

// processGroup merges one group and applies the configured output mode. All
// per-group faults, including panics, are converted into a failed result here;
// this is the isolation boundary the rest of the run relies on.
func (e *Engine) processGroup(ctx context.Context, wLogger *slog.Logger, ig indexedGroup) (result groupResult) {
	start := time.Now()
	result = groupResult{index: ig.index, pattern: ig.group.Pattern}

	defer func() {
		if r := recover(); r != nil {
			wLogger.Error("Panic recovered while processing group",
				slog.String("pattern", ig.group.Pattern), slog.Any("panicValue", r))
			result.status = StatusFailed
			result.err = fmt.Errorf("panic: %v", r)
			result.duration = time.Since(start)
		}
		e.notifyStatus(result)
	}()

	e.notifyStatus(groupResult{index: ig.index, pattern: ig.group.Pattern, status: StatusMerging})

	merged, err := e.merger.Merge(ctx, ig.group, ig.index)
	if err != nil {
		wLogger.Error("Group merge failed",
			slog.String("pattern", ig.group.Pattern), slog.String("error", err.Error()))
		result.status = StatusFailed
		result.err = err
		result.duration = time.Since(start)
		return result
	}
	if merged == nil {
		wLogger.Debug("Group produced no records", slog.String("pattern", ig.group.Pattern))
		result.status = StatusEmpty
		result.duration = time.Since(start)
		return result
	}

	switch e.opts.OutputMode {
	case OutputModePersist:
		path, werr := e.writer.WriteGroup(merged)
		if werr != nil {
			wLogger.Error("Failed to persist merged group",
				slog.String("pattern", ig.group.Pattern), slog.String("error", werr.Error()))
			result.status = StatusFailed
			result.err = werr
			result.duration = time.Since(start)
			return result
		}
		result.written = path
	case OutputModeAccumulate:
		result.merged = merged
	case OutputModeIndexOnly:
		// Only the index travels; records are dropped here to bound memory.
	}
	if e.opts.CombinedFile != "" {
		result.merged = merged
	}

	result.status = StatusSuccess
	result.recordCount = len(merged.Records)
	result.duration = time.Since(start)
	return result
}

func (e *Engine) notifyStatus(r groupResult) {
	msg := ""
	if r.err != nil {
		msg = r.err.Error()
	} else if r.written != "" {
		msg = r.written
	}
	if hookErr := e.hooks.OnGroupStatusUpdate(r.pattern, r.status, msg, r.duration); hookErr != nil {
		e.logger.Warn("OnGroupStatusUpdate hook returned an error", slog.String("error", hookErr.Error()))
	}
}

// --- reportAggregator ---

// reportAggregator collects per-group results during the run (thread-safe).
type reportAggregator struct {
	mu           sync.Mutex
	writtenFiles []string
	groups       []MergedGroup
	indexes      []int
	errors       []GroupError
	mergedCount  int
	emptyCount   int
	failedCount  int
	recordCount  int
}

func newReportAggregator() *reportAggregator {
	return &reportAggregator{}
}

func (a *reportAggregator) add(r groupResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch r.status {
	case StatusSuccess:
		a.mergedCount++
		a.recordCount += r.recordCount
		a.indexes = append(a.indexes, r.index)
		if r.written != "" {
			a.writtenFiles = append(a.writtenFiles, r.written)
		}
		if r.merged != nil {
			a.groups = append(a.groups, *r.merged)
		}
	case StatusEmpty:
		a.emptyCount++
	case StatusFailed:
		a.failedCount++
		msg := "unknown error"
		if r.err != nil {
			msg = r.err.Error()
		}
		a.errors = append(a.errors, GroupError{GroupIndex: r.index, Pattern: r.pattern, Error: msg})
	case StatusMerging, StatusPending:
		// Progress notifications never reach the aggregator.
	}
}

func (a *reportAggregator) addRunError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errors = append(a.errors, GroupError{GroupIndex: -1, Pattern: "", Error: err.Error()})
}

func (a *reportAggregator) mergedGroups() []MergedGroup {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]MergedGroup, len(a.groups))
	copy(out, a.groups)
	sort.Slice(out, func(i, j int) bool { return out[i].GroupIndex < out[j].GroupIndex })
	return out
}

func (a *reportAggregator) getReport(opts *Options, startTime time.Time, patterns, incomplete, concurrency int) Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	report := Report{
		Summary: ReportSummary{
			SourceLocations:    opts.SourceLocations,
			OutputDir:          opts.OutputDir,
			OutputMode:         opts.OutputMode,
			IdentifierField:    identifierFieldOrDefault(opts),
			ProfileUsed:        opts.ProfileName,
			ConfigFilePath:     opts.ConfigFilePath,
			PatternsDiscovered: patterns,
			CompleteGroups:     patterns - incomplete,
			IncompleteGroups:   incomplete,
			MergedCount:        a.mergedCount,
			EmptyCount:         a.emptyCount,
			FailedCount:        a.failedCount,
			RecordCount:        a.recordCount,
			Concurrency:        concurrency,
			DurationSeconds:    time.Since(startTime).Seconds(),
			Timestamp:          time.Now().UTC(),
			AppVersion:         opts.AppVersion,
			SchemaVersion:      ReportSchemaVersion,
		},
		Errors: append([]GroupError(nil), a.errors...),
	}

	// Completion order between workers is unspecified; sort by group index so
	// reports are stable run to run.
	switch opts.OutputMode {
	case OutputModePersist:
		report.WrittenFiles = append([]string(nil), a.writtenFiles...)
		sort.Strings(report.WrittenFiles)
	case OutputModeAccumulate:
		report.Groups = append([]MergedGroup(nil), a.groups...)
		sort.Slice(report.Groups, func(i, j int) bool { return report.Groups[i].GroupIndex < report.Groups[j].GroupIndex })
	case OutputModeIndexOnly:
		report.GroupIndexes = append([]int(nil), a.indexes...)
		sort.Ints(report.GroupIndexes)
	}
	return report
}

func identifierFieldOrDefault(opts *Options) string {
	if opts.IdentifierField != "" {
		return opts.IdentifierField
	}
	return DefaultIdentifierField
}
