package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tidemark/internal/core/domain"
	"github.com/custodia-labs/tidemark/internal/core/ports/driving"
)

// --- Mock implementations for pipeline testing ---
// The item store, batch service and prompt store mocks from the
// fetcher, submitter and formatter tests are reused here.

// pipeMockWatermarkStore implements driven.WatermarkStore.
type pipeMockWatermarkStore struct {
	marks   map[string]int64
	saves   int
	saveErr error
}

func (m *pipeMockWatermarkStore) Load() map[string]int64 {
	out := make(map[string]int64, len(m.marks))
	for k, v := range m.marks {
		out[k] = v
	}
	return out
}

func (m *pipeMockWatermarkStore) Save(marks map[string]int64) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.marks = make(map[string]int64, len(marks))
	for k, v := range marks {
		m.marks[k] = v
	}
	return nil
}

// pipeMockJobStore implements driven.JobStore.
type pipeMockJobStore struct {
	jobs  map[string]domain.Job
	saves int
}

func (m *pipeMockJobStore) Load() map[string]domain.Job {
	out := make(map[string]domain.Job, len(m.jobs))
	for k, v := range m.jobs {
		out[k] = v
	}
	return out
}

func (m *pipeMockJobStore) Save(jobs map[string]domain.Job) error {
	m.saves++
	m.jobs = make(map[string]domain.Job, len(jobs))
	for k, v := range jobs {
		m.jobs[k] = v
	}
	return nil
}

// pipeMockLedger implements driven.Ledger.
type pipeMockLedger struct {
	recorded    []domain.Job
	finalised   []domain.Job
	recordErr   error
	finaliseErr error
}

func (m *pipeMockLedger) Record(_ context.Context, job domain.Job) error {
	m.recorded = append(m.recorded, job)
	return m.recordErr
}

func (m *pipeMockLedger) Finalise(_ context.Context, job domain.Job) error {
	m.finalised = append(m.finalised, job)
	return m.finaliseErr
}

// pipeMockArchiver implements driven.Archiver.
type pipeMockArchiver struct {
	stored map[string][]string
	err    error
}

func (m *pipeMockArchiver) Store(_ context.Context, kind, path string) error {
	if m.stored == nil {
		m.stored = make(map[string][]string)
	}
	m.stored[kind] = append(m.stored[kind], path)
	return m.err
}

// pipeFixture wires a pipeline over mocks with deterministic clocks.
type pipeFixture struct {
	store      *fetchMockItemStore
	batch      *submitMockBatchService
	watermarks *pipeMockWatermarkStore
	jobs       *pipeMockJobStore
	ledger     *pipeMockLedger
	archiver   *pipeMockArchiver
	dataDir    string
	pipeline   *Pipeline
}

func newPipeFixture(t *testing.T, store *fetchMockItemStore, batch *submitMockBatchService) *pipeFixture {
	t.Helper()

	dataDir := t.TempDir()
	fixed := func() time.Time { return testNow }

	fetcher := NewFetcher(store)
	fetcher.now = fixed

	formatter := NewFormatter(dataDir, &formatMockPromptStore{})
	formatter.now = fixed

	submitter := NewSubmitter(batch)
	submitter.sleep = func(time.Duration) {}
	submitter.pollEvery = time.Millisecond
	submitter.now = fixed

	f := &pipeFixture{
		store:      store,
		batch:      batch,
		watermarks: &pipeMockWatermarkStore{marks: map[string]int64{}},
		jobs:       &pipeMockJobStore{jobs: map[string]domain.Job{}},
		ledger:     &pipeMockLedger{},
		archiver:   &pipeMockArchiver{stored: map[string][]string{}},
		dataDir:    dataDir,
	}
	f.pipeline = NewPipeline(
		fetcher, formatter, submitter,
		f.watermarks, f.jobs, f.ledger, f.archiver,
		nil, dataDir,
	)
	f.pipeline.now = fixed
	return f
}

func freshItems(ts int64, texts ...string) []map[string]any {
	items := make([]map[string]any, 0, len(texts))
	for i, text := range texts {
		items = append(items, map[string]any{
			"timestamp": ts + int64(i),
			"text":      text,
			"id":        i + 1,
		})
	}
	return items
}

func runOpts(sources ...string) driving.RunOptions {
	return driving.RunOptions{
		Hours:    12,
		ModelKey: "nano",
		Sources:  sources,
		Wait:     true,
	}
}

func TestPipeline_Run_FullCycle(t *testing.T) {
	ts := testNow.Unix() - 100
	store := &fetchMockItemStore{
		pages: map[string]fetchScanPage{"": {items: freshItems(ts, "review one", "review two")}},
	}
	batch := &submitMockBatchService{
		uploadID:         "file-in",
		created:          domain.RemoteJob{ID: "batch_1", Status: domain.JobValidating},
		pollStatuses:     []domain.JobStatus{domain.JobCompleted},
		pollOutputFileID: "file-out",
		fileContent:      []byte(`{"custom_id":"row_1"}` + "\n"),
	}
	f := newPipeFixture(t, store, batch)

	err := f.pipeline.Run(context.Background(), runOpts("DailySourceReviews"))

	require.NoError(t, err)

	job, ok := f.jobs.jobs["batch_1"]
	require.True(t, ok)
	assert.Equal(t, "DailySourceReviews", job.Source)
	assert.Equal(t, "nano", job.Model)
	assert.Equal(t, "file-in", job.InputFileID)
	assert.Equal(t, 2, job.RecordCount)
	assert.Equal(t, string(domain.JobValidating), job.Status)
	assert.Equal(t, string(domain.JobCompleted), job.FinalStatus)
	assert.Equal(t, "file-out", job.OutputFileID)
	assert.True(t, strings.HasPrefix(job.OutputPath, "batch_output_"))

	// Watermark advanced to the newest submitted timestamp.
	assert.Equal(t, ts+1, f.watermarks.marks["DailySourceReviews"])

	// Ledger saw the submission and the outcome.
	require.Len(t, f.ledger.recorded, 1)
	require.Len(t, f.ledger.finalised, 1)
	assert.Equal(t, string(domain.JobCompleted), f.ledger.finalised[0].FinalStatus)

	// Both artefacts archived.
	assert.Len(t, f.archiver.stored[archiveInput], 1)
	assert.Len(t, f.archiver.stored[archiveOutput], 1)

	// Output written under the data dir.
	out, err := os.ReadFile(filepath.Join(f.dataDir, "output", job.OutputPath))
	require.NoError(t, err)
	assert.Equal(t, batch.fileContent, out)
}

func TestPipeline_Run_AsyncSkipsWait(t *testing.T) {
	ts := testNow.Unix() - 100
	store := &fetchMockItemStore{
		pages: map[string]fetchScanPage{"": {items: freshItems(ts, "review")}},
	}
	batch := &submitMockBatchService{
		uploadID: "file-in",
		created:  domain.RemoteJob{ID: "batch_1", Status: domain.JobValidating},
	}
	f := newPipeFixture(t, store, batch)

	opts := runOpts("DailySourceReviews")
	opts.Wait = false
	err := f.pipeline.Run(context.Background(), opts)

	require.NoError(t, err)
	assert.Equal(t, 0, batch.pollCalls)

	job := f.jobs.jobs["batch_1"]
	assert.Equal(t, string(domain.JobValidating), job.Status)
	assert.Empty(t, job.FinalStatus)

	assert.Len(t, f.ledger.recorded, 1)
	assert.Empty(t, f.ledger.finalised)
}

func TestPipeline_Run_TestMode(t *testing.T) {
	ts := testNow.Unix() - 100
	store := &fetchMockItemStore{
		pages: map[string]fetchScanPage{"": {items: freshItems(ts, "review")}},
	}
	batch := &submitMockBatchService{}
	f := newPipeFixture(t, store, batch)

	opts := runOpts("DailySourceReviews")
	opts.TestOnly = true
	err := f.pipeline.Run(context.Background(), opts)

	require.NoError(t, err)
	assert.Equal(t, 0, batch.uploadCalls)
	assert.Equal(t, 0, f.watermarks.saves)
	assert.Empty(t, f.jobs.jobs)

	entries, err := os.ReadDir(filepath.Join(f.dataDir, "jsonl_test"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPipeline_Run_WatermarkFiltersAlreadySent(t *testing.T) {
	ts := testNow.Unix() - 100
	store := &fetchMockItemStore{
		pages: map[string]fetchScanPage{"": {items: []map[string]any{
			{"timestamp": ts, "text": "already sent"},
			{"timestamp": ts + 50, "text": "new row"},
		}}},
	}
	batch := &submitMockBatchService{
		uploadID: "file-in",
		created:  domain.RemoteJob{ID: "batch_1", Status: domain.JobValidating},
	}
	f := newPipeFixture(t, store, batch)
	f.watermarks.marks["DailySourceReviews"] = ts

	opts := runOpts("DailySourceReviews")
	opts.Wait = false
	err := f.pipeline.Run(context.Background(), opts)

	require.NoError(t, err)
	assert.Equal(t, 1, f.jobs.jobs["batch_1"].RecordCount)
	assert.Equal(t, ts+50, f.watermarks.marks["DailySourceReviews"])
}

func TestPipeline_Run_AllRecordsBelowWatermark(t *testing.T) {
	ts := testNow.Unix() - 100
	store := &fetchMockItemStore{
		pages: map[string]fetchScanPage{"": {items: freshItems(ts, "old row")}},
	}
	batch := &submitMockBatchService{}
	f := newPipeFixture(t, store, batch)
	f.watermarks.marks["DailySourceReviews"] = ts + 1000

	err := f.pipeline.Run(context.Background(), runOpts("DailySourceReviews"))

	require.NoError(t, err)
	assert.Equal(t, 0, batch.uploadCalls)
	assert.Equal(t, 0, f.watermarks.saves)
	assert.Empty(t, f.jobs.jobs)
}

func TestPipeline_Run_EmptyFetch(t *testing.T) {
	store := &fetchMockItemStore{}
	batch := &submitMockBatchService{}
	f := newPipeFixture(t, store, batch)

	err := f.pipeline.Run(context.Background(), runOpts("DailySourceReviews"))

	require.NoError(t, err)
	assert.Equal(t, 0, batch.uploadCalls)
	assert.Equal(t, 0, f.watermarks.saves)
}

// TestPipeline_Run_WatermarkAdvancesBeforeUpload pins the no-resend
// property: the watermark moves even when the provider rejects the
// upload, so a follow-up run cannot submit the same rows twice.
func TestPipeline_Run_WatermarkAdvancesBeforeUpload(t *testing.T) {
	ts := testNow.Unix() - 100
	store := &fetchMockItemStore{
		pages: map[string]fetchScanPage{"": {items: freshItems(ts, "review")}},
	}
	batch := &submitMockBatchService{uploadFailures: 3}
	f := newPipeFixture(t, store, batch)

	err := f.pipeline.Run(context.Background(), runOpts("DailySourceReviews"))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUploadFailed)
	assert.Equal(t, ts, f.watermarks.marks["DailySourceReviews"])
}

func TestPipeline_AdvanceWatermark_NeverRegresses(t *testing.T) {
	f := newPipeFixture(t, &fetchMockItemStore{}, &submitMockBatchService{})
	f.watermarks.marks = map[string]int64{"DailySourceReviews": 500}
	marks := f.watermarks.Load()

	older := []domain.Record{{Timestamp: 400, HasTimestamp: true}}
	f.pipeline.advanceWatermark(marks, "DailySourceReviews", older)

	assert.Zero(t, f.watermarks.saves)
	assert.Equal(t, int64(500), f.watermarks.marks["DailySourceReviews"])

	newer := []domain.Record{{Timestamp: 600, HasTimestamp: true}}
	f.pipeline.advanceWatermark(marks, "DailySourceReviews", newer)

	assert.Equal(t, 1, f.watermarks.saves)
	assert.Equal(t, int64(600), f.watermarks.marks["DailySourceReviews"])
}

func TestPipeline_Run_SkipCutoffSourceBypassesWatermark(t *testing.T) {
	store := &fetchMockItemStore{
		pages: map[string]fetchScanPage{"": {items: []map[string]any{
			{"text": "static row, no timestamp"},
		}}},
	}
	batch := &submitMockBatchService{
		uploadID: "file-in",
		created:  domain.RemoteJob{ID: "batch_1", Status: domain.JobValidating},
	}
	f := newPipeFixture(t, store, batch)

	opts := runOpts("GoogleTrendsHistorical")
	opts.Wait = false
	err := f.pipeline.Run(context.Background(), opts)

	require.NoError(t, err)
	assert.Equal(t, 0, f.watermarks.saves)
	assert.Equal(t, 1, f.jobs.jobs["batch_1"].RecordCount)
}

func TestPipeline_Run_ContinuesAcrossFailingSources(t *testing.T) {
	store := &fetchMockItemStore{failFirst: 6}
	batch := &submitMockBatchService{}
	f := newPipeFixture(t, store, batch)

	err := f.pipeline.Run(context.Background(), runOpts("SourceA", "SourceB"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SourceA")
	assert.Contains(t, err.Error(), "SourceB")
	assert.Equal(t, 6, store.scanCalls)
}

func TestPipeline_Run_TerminalFailureIsReportedNotFatal(t *testing.T) {
	ts := testNow.Unix() - 100
	store := &fetchMockItemStore{
		pages: map[string]fetchScanPage{"": {items: freshItems(ts, "review")}},
	}
	batch := &submitMockBatchService{
		uploadID:     "file-in",
		created:      domain.RemoteJob{ID: "batch_1", Status: domain.JobValidating},
		pollStatuses: []domain.JobStatus{domain.JobExpired},
	}
	f := newPipeFixture(t, store, batch)

	err := f.pipeline.Run(context.Background(), runOpts("DailySourceReviews"))

	require.NoError(t, err)

	job := f.jobs.jobs["batch_1"]
	assert.Equal(t, string(domain.JobExpired), job.FinalStatus)
	assert.Empty(t, job.OutputPath)
	assert.Empty(t, f.archiver.stored[archiveOutput])
	require.Len(t, f.ledger.finalised, 1)
}

func TestPipeline_Run_NilLedgerAndArchiver(t *testing.T) {
	ts := testNow.Unix() - 100
	store := &fetchMockItemStore{
		pages: map[string]fetchScanPage{"": {items: freshItems(ts, "review")}},
	}
	batch := &submitMockBatchService{
		uploadID:         "file-in",
		created:          domain.RemoteJob{ID: "batch_1", Status: domain.JobValidating},
		pollStatuses:     []domain.JobStatus{domain.JobCompleted},
		pollOutputFileID: "file-out",
	}
	f := newPipeFixture(t, store, batch)
	f.pipeline.ledger = nil
	f.pipeline.archiver = nil

	err := f.pipeline.Run(context.Background(), runOpts("DailySourceReviews"))

	require.NoError(t, err)
	assert.Equal(t, string(domain.JobCompleted), f.jobs.jobs["batch_1"].FinalStatus)
}

func TestPipeline_Run_LedgerFailuresAreSwallowed(t *testing.T) {
	ts := testNow.Unix() - 100
	store := &fetchMockItemStore{
		pages: map[string]fetchScanPage{"": {items: freshItems(ts, "review")}},
	}
	batch := &submitMockBatchService{
		uploadID:         "file-in",
		created:          domain.RemoteJob{ID: "batch_1", Status: domain.JobValidating},
		pollStatuses:     []domain.JobStatus{domain.JobCompleted},
		pollOutputFileID: "file-out",
	}
	f := newPipeFixture(t, store, batch)
	f.ledger.recordErr = errors.New("table missing")
	f.ledger.finaliseErr = errors.New("table missing")
	f.archiver.err = errors.New("bucket missing")

	err := f.pipeline.Run(context.Background(), runOpts("DailySourceReviews"))

	require.NoError(t, err)
}

func TestPipeline_Resume_CompletedBatch(t *testing.T) {
	store := &fetchMockItemStore{}
	batch := &submitMockBatchService{
		pollStatuses:     []domain.JobStatus{domain.JobCompleted},
		pollOutputFileID: "file-out",
		fileContent:      []byte("results"),
	}
	f := newPipeFixture(t, store, batch)
	f.jobs.jobs["batch_1"] = domain.Job{
		BatchID: "batch_1",
		Status:  string(domain.JobValidating),
		Source:  "DailySourceReviews",
	}

	err := f.pipeline.Resume(context.Background(), "batch_1")

	require.NoError(t, err)

	job := f.jobs.jobs["batch_1"]
	assert.Equal(t, string(domain.JobCompleted), job.FinalStatus)
	assert.Equal(t, "file-out", job.OutputFileID)
	assert.True(t, strings.HasPrefix(job.OutputPath, "batch_output_"))
	assert.Equal(t, "DailySourceReviews", job.Source)
	require.Len(t, f.ledger.finalised, 1)
}

func TestPipeline_Resume_UnknownBatchCreatesEntry(t *testing.T) {
	store := &fetchMockItemStore{}
	batch := &submitMockBatchService{
		pollStatuses: []domain.JobStatus{domain.JobFailed},
	}
	f := newPipeFixture(t, store, batch)

	err := f.pipeline.Resume(context.Background(), "batch_orphan")

	require.NoError(t, err)

	job, ok := f.jobs.jobs["batch_orphan"]
	require.True(t, ok)
	assert.Equal(t, string(domain.JobFailed), job.FinalStatus)
	assert.NotEmpty(t, job.CreatedUTC)
}

func TestPipeline_CheckPending_MixedStates(t *testing.T) {
	store := &fetchMockItemStore{}
	batch := &submitMockBatchService{
		pollStatuses:     []domain.JobStatus{domain.JobCompleted, domain.JobInProgress},
		pollOutputFileID: "file-out",
		fileContent:      []byte("results"),
	}
	f := newPipeFixture(t, store, batch)
	f.jobs.jobs = map[string]domain.Job{
		"batch_a": {BatchID: "batch_a", Status: "validating"},
		"batch_b": {BatchID: "batch_b", Status: "validating"},
		"batch_c": {BatchID: "batch_c", Status: "validating", FinalStatus: "completed"},
	}

	err := f.pipeline.CheckPending(context.Background())

	require.NoError(t, err)
	// Only the two unresolved jobs are probed.
	assert.Equal(t, 2, batch.pollCalls)

	a := f.jobs.jobs["batch_a"]
	assert.Equal(t, string(domain.JobCompleted), a.FinalStatus)
	assert.Equal(t, "file-out", a.OutputFileID)
	assert.True(t, strings.HasPrefix(a.OutputPath, "batch_output_"))

	// Still running: left untouched for the next sweep.
	assert.Empty(t, f.jobs.jobs["batch_b"].FinalStatus)

	require.Len(t, f.ledger.finalised, 1)
	assert.Equal(t, "batch_a", f.ledger.finalised[0].BatchID)
}

func TestPipeline_CheckPending_NothingPending(t *testing.T) {
	store := &fetchMockItemStore{}
	batch := &submitMockBatchService{}
	f := newPipeFixture(t, store, batch)
	f.jobs.jobs = map[string]domain.Job{
		"batch_a": {BatchID: "batch_a", FinalStatus: "completed"},
	}

	err := f.pipeline.CheckPending(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, batch.pollCalls)
}

func TestPipeline_CheckPending_ProbeErrorIsNotFatal(t *testing.T) {
	store := &fetchMockItemStore{}
	batch := &submitMockBatchService{pollErr: errors.New("service unavailable")}
	f := newPipeFixture(t, store, batch)
	f.jobs.jobs = map[string]domain.Job{
		"batch_a": {BatchID: "batch_a", Status: "validating"},
	}

	err := f.pipeline.CheckPending(context.Background())

	require.NoError(t, err)
	assert.Empty(t, f.jobs.jobs["batch_a"].FinalStatus)
}

func TestPipeline_ResolveSource_UsesCatalogue(t *testing.T) {
	store := &fetchMockItemStore{}
	batch := &submitMockBatchService{}
	f := newPipeFixture(t, store, batch)
	f.pipeline.catalogue = map[string]domain.Source{
		"LiveMarketQuotes": {Name: "LiveMarketQuotes", SkipCutoff: true, Prompt: "market-data"},
	}

	source := f.pipeline.resolveSource("LiveMarketQuotes")
	assert.True(t, source.SkipCutoff)
	assert.Equal(t, "market-data", source.Prompt)

	fallback := f.pipeline.resolveSource("UnknownTable")
	assert.False(t, fallback.SkipCutoff)
	assert.Empty(t, fallback.Prompt)
}
