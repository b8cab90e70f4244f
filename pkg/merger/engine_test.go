package merger_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/johnsonice/ILA/internal/testutil"
	"github.com/johnsonice/ILA/pkg/merger"
)

// writeGroupFixture lays out the two-location worked example:
//
//	locA: 2020_articles_1_tagX.json = [{"id":"a1","x":1}]
//	locB: 2020_articles_1_tagY.json = [{"id":"a1","y":2},{"id":"a2","y":3}]
func writeGroupFixture(t *testing.T) (locA, locB string) {
	t.Helper()
	locA = t.TempDir()
	locB = t.TempDir()
	testutil.WriteRecordFile(t, filepath.Join(locA, "2020_articles_1_tagX.json"), []map[string]any{
		{"id": "a1", "x": 1},
	})
	testutil.WriteRecordFile(t, filepath.Join(locB, "2020_articles_1_tagY.json"), []map[string]any{
		{"id": "a1", "y": 2},
		{"id": "a2", "y": 3},
	})
	return locA, locB
}

func baseOptions(locations []string, outputDir string) merger.Options {
	return merger.Options{
		SourceLocations: locations,
		OutputDir:       outputDir,
		OutputMode:      merger.OutputModePersist,
		RetryAttempts:   1,
		Logger:          discardHandler(),
	}
}

func TestNewEngineValidation(t *testing.T) {
	t.Run("nil logger rejected", func(t *testing.T) {
		_, err := merger.NewEngine(merger.Options{SourceLocations: []string{t.TempDir()}})
		assert.ErrorIs(t, err, merger.ErrConfigValidation)
	})

	t.Run("unknown output mode rejected", func(t *testing.T) {
		opts := baseOptions([]string{t.TempDir()}, t.TempDir())
		opts.OutputMode = "stream"
		_, err := merger.NewEngine(opts)
		assert.ErrorIs(t, err, merger.ErrConfigValidation)
	})

	t.Run("persist mode requires output dir", func(t *testing.T) {
		opts := baseOptions([]string{t.TempDir()}, "")
		_, err := merger.NewEngine(opts)
		assert.ErrorIs(t, err, merger.ErrConfigValidation)
	})

	t.Run("combined file incompatible with index-only", func(t *testing.T) {
		opts := baseOptions([]string{t.TempDir()}, t.TempDir())
		opts.OutputMode = merger.OutputModeIndexOnly
		opts.CombinedFile = "all.json"
		_, err := merger.NewEngine(opts)
		assert.ErrorIs(t, err, merger.ErrConfigValidation)
	})

	t.Run("index-only needs no output dir", func(t *testing.T) {
		opts := baseOptions([]string{t.TempDir()}, "")
		opts.OutputMode = merger.OutputModeIndexOnly
		_, err := merger.NewEngine(opts)
		assert.NoError(t, err)
	})
}

func TestEngineRunPersist(t *testing.T) {
	locA, locB := writeGroupFixture(t)
	outDir := t.TempDir()

	engine, err := merger.NewEngine(baseOptions([]string{locA, locB}, outDir))
	require.NoError(t, err)

	report, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Summary.PatternsDiscovered)
	assert.Equal(t, 1, report.Summary.CompleteGroups)
	assert.Zero(t, report.Summary.IncompleteGroups)
	assert.Equal(t, 1, report.Summary.MergedCount)
	assert.Equal(t, 2, report.Summary.RecordCount)
	assert.Zero(t, report.Summary.FailedCount)
	assert.Empty(t, report.Errors)

	require.Len(t, report.WrittenFiles, 1)
	// No tracked source filename in the fixture, so the name falls back to the
	// first member file's stem.
	assert.Equal(t, filepath.Join(outDir, "2020_articles_1_tagX.json"), report.WrittenFiles[0])

	records := testutil.ReadRecordFile(t, report.WrittenFiles[0])
	require.Len(t, records, 2)
	assert.Equal(t, map[string]any{"id": "a1", "x": float64(1), "y": float64(2)}, records[0])
	assert.Equal(t, map[string]any{"id": "a2", "y": float64(3)}, records[1])
}

func TestEngineRunAccumulate(t *testing.T) {
	locA, locB := writeGroupFixture(t)

	opts := baseOptions([]string{locA, locB}, "")
	opts.OutputMode = merger.OutputModeAccumulate
	engine, err := merger.NewEngine(opts)
	require.NoError(t, err)

	report, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.WrittenFiles)
	require.Len(t, report.Groups, 1)
	g := report.Groups[0]
	assert.Equal(t, "2020_articles_1_", g.Pattern)
	require.Len(t, g.Records, 2)
	assert.Equal(t, "a1", g.Records[0]["id"])
}

func TestEngineRunIndexOnly(t *testing.T) {
	locA, locB := writeGroupFixture(t)

	opts := baseOptions([]string{locA, locB}, "")
	opts.OutputMode = merger.OutputModeIndexOnly
	engine, err := merger.NewEngine(opts)
	require.NoError(t, err)

	report, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Groups)
	assert.Empty(t, report.WrittenFiles)
	assert.Equal(t, []int{0}, report.GroupIndexes)
	assert.Equal(t, 2, report.Summary.RecordCount)
}

func TestEngineRunCombinedFile(t *testing.T) {
	locA, locB := writeGroupFixture(t)
	outDir := t.TempDir()

	opts := baseOptions([]string{locA, locB}, outDir)
	opts.CombinedFile = "all_years.json"
	engine, err := merger.NewEngine(opts)
	require.NoError(t, err)

	report, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.WrittenFiles, 1)
	assert.FileExists(t, filepath.Join(outDir, "all_years.json"))
}

func TestEngineRunCompletenessGate(t *testing.T) {
	locA, locB := writeGroupFixture(t)
	// A second pattern exists only in locA; it must be gated out, not merged.
	testutil.WriteRecordFile(t, filepath.Join(locA, "2021_articles_1_tagX.json"), []map[string]any{
		{"id": "c1"},
	})

	engine, err := merger.NewEngine(baseOptions([]string{locA, locB}, t.TempDir()))
	require.NoError(t, err)

	report, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Summary.PatternsDiscovered)
	assert.Equal(t, 1, report.Summary.CompleteGroups)
	assert.Equal(t, 1, report.Summary.IncompleteGroups)
	assert.Equal(t, 1, report.Summary.MergedCount)
	assert.Len(t, report.WrittenFiles, 1)
}

func TestEngineRunFaultIsolation(t *testing.T) {
	locA, locB := writeGroupFixture(t)
	// 2021_articles_1_ is complete but carries a record without any identifier,
	// which fails that group alone.
	testutil.WriteRecordFile(t, filepath.Join(locA, "2021_articles_1_tagX.json"), []map[string]any{
		{"text": "no identifier here"},
	})
	testutil.WriteRecordFile(t, filepath.Join(locB, "2021_articles_1_tagY.json"), []map[string]any{
		{"id": "c1"},
	})

	engine, err := merger.NewEngine(baseOptions([]string{locA, locB}, t.TempDir()))
	require.NoError(t, err)

	report, err := engine.Run(context.Background())
	require.NoError(t, err, "per-group faults must not fail the run")

	assert.Equal(t, 1, report.Summary.MergedCount)
	assert.Equal(t, 1, report.Summary.FailedCount)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "2021_articles_1_", report.Errors[0].Pattern)
	assert.Contains(t, report.Errors[0].Error, "identifier")
	assert.Len(t, report.WrittenFiles, 1)
}

func TestEngineRunLoadFailureIsolation(t *testing.T) {
	locA, locB := writeGroupFixture(t)
	// 2021_articles_1_ is complete but one member file is unparseable, so its
	// load exhausts the retry bound and fails that group alone.
	testutil.CreateDummyFile(t, filepath.Join(locA, "2021_articles_1_tagX.json"), `[{"id":`)
	testutil.WriteRecordFile(t, filepath.Join(locB, "2021_articles_1_tagY.json"), []map[string]any{
		{"id": "c1"},
	})

	engine, err := merger.NewEngine(baseOptions([]string{locA, locB}, t.TempDir()))
	require.NoError(t, err)

	report, err := engine.Run(context.Background())
	require.NoError(t, err, "an exhausted load must not fail the run")

	assert.Equal(t, 1, report.Summary.MergedCount)
	assert.Equal(t, 1, report.Summary.FailedCount)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "2021_articles_1_", report.Errors[0].Pattern)
	assert.Contains(t, report.Errors[0].Error, "failed to load")
	require.Len(t, report.WrittenFiles, 1)
	assert.Equal(t, "2020_articles_1_tagX.json", filepath.Base(report.WrittenFiles[0]))
}

func TestEngineRunEmptyGroup(t *testing.T) {
	locA := t.TempDir()
	testutil.WriteRecordFile(t, filepath.Join(locA, "2020_articles_1_tagX.json"), []map[string]any{})

	engine, err := merger.NewEngine(baseOptions([]string{locA}, t.TempDir()))
	require.NoError(t, err)

	report, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.EmptyCount)
	assert.Zero(t, report.Summary.MergedCount)
	assert.Empty(t, report.WrittenFiles)
}

func TestEngineRunScanFailure(t *testing.T) {
	opts := baseOptions([]string{filepath.Join(t.TempDir(), "gone")}, t.TempDir())
	engine, err := merger.NewEngine(opts)
	require.NoError(t, err)

	report, err := engine.Run(context.Background())
	assert.ErrorIs(t, err, merger.ErrLocationNotFound)
	assert.Zero(t, report.Summary.MergedCount)
}

func TestEngineRunCancellation(t *testing.T) {
	locA, locB := writeGroupFixture(t)
	engine, err := merger.NewEngine(baseOptions([]string{locA, locB}, t.TempDir()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineRunHooks(t *testing.T) {
	locA, locB := writeGroupFixture(t)

	hooks := new(testutil.MockHooks)
	hooks.On("OnGroupDiscovered", "2020_articles_1_", mock.Anything).Return(nil).Once()
	hooks.On("OnGroupStatusUpdate", "2020_articles_1_", merger.StatusMerging, mock.Anything, mock.Anything).Return(nil).Once()
	hooks.On("OnGroupStatusUpdate", "2020_articles_1_", merger.StatusSuccess, mock.Anything, mock.Anything).Return(nil).Once()
	hooks.On("OnRunComplete", mock.Anything).Return(nil).Once()

	opts := baseOptions([]string{locA, locB}, t.TempDir())
	opts.EventHooks = hooks
	engine, err := merger.NewEngine(opts)
	require.NoError(t, err)

	_, err = engine.Run(context.Background())
	require.NoError(t, err)
	hooks.AssertExpectations(t)
}

func TestEngineRunManyGroupsParallel(t *testing.T) {
	locA := t.TempDir()
	locB := t.TempDir()
	for year := 2000; year < 2020; year++ {
		testutil.WriteRecordFile(t,
			filepath.Join(locA, fmt.Sprintf("%d_articles_1_tagX.json", year)),
			[]map[string]any{{"id": "a", "x": year}})
		testutil.WriteRecordFile(t,
			filepath.Join(locB, fmt.Sprintf("%d_articles_1_tagY.json", year)),
			[]map[string]any{{"id": "a", "y": year}})
	}

	opts := baseOptions([]string{locA, locB}, "")
	opts.OutputMode = merger.OutputModeAccumulate
	opts.Concurrency = 4
	engine, err := merger.NewEngine(opts)
	require.NoError(t, err)

	report, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, report.Summary.MergedCount)
	require.Len(t, report.Groups, 20)
	// Groups come back sorted by index regardless of worker completion order.
	for i := 1; i < len(report.Groups); i++ {
		assert.Less(t, report.Groups[i-1].GroupIndex, report.Groups[i].GroupIndex)
	}
}
