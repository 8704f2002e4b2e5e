package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/tidemark/internal/core/domain"
	"github.com/custodia-labs/tidemark/internal/core/ports/driven"
	"github.com/custodia-labs/tidemark/internal/core/ports/driving"
	"github.com/custodia-labs/tidemark/internal/logger"
)

// outputSubdir is the data-dir subdirectory receiving downloaded batch
// results.
const outputSubdir = "output"

// Artefact kinds handed to the archiver.
const (
	archiveInput  = "input"
	archiveOutput = "output"
)

// Ensure Pipeline implements the interface.
var _ driving.Pipeline = (*Pipeline)(nil)

// Pipeline coordinates one full batch cycle per source: fetch,
// watermark filter, format, submit and (optionally) poll and download.
type Pipeline struct {
	fetcher    *Fetcher
	formatter  *Formatter
	submitter  *Submitter
	watermarks driven.WatermarkStore
	jobs       driven.JobStore
	ledger     driven.Ledger
	archiver   driven.Archiver

	// catalogue maps configured source names to their resolved
	// settings; unknown names get defaults.
	catalogue map[string]domain.Source

	dataDir string

	// now is the clock, overridable in tests.
	now func() time.Time
}

// NewPipeline creates a pipeline over the given services and stores.
// The ledger and archiver are optional; if nil, bookkeeping and
// archiving are disabled.
func NewPipeline(
	fetcher *Fetcher,
	formatter *Formatter,
	submitter *Submitter,
	watermarks driven.WatermarkStore,
	jobs driven.JobStore,
	ledger driven.Ledger,
	archiver driven.Archiver,
	catalogue map[string]domain.Source,
	dataDir string,
) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		formatter:  formatter,
		submitter:  submitter,
		watermarks: watermarks,
		jobs:       jobs,
		ledger:     ledger,
		archiver:   archiver,
		catalogue:  catalogue,
		dataDir:    dataDir,
		now:        time.Now,
	}
}

// Run executes one batch cycle for every requested source. Sources are
// processed sequentially; a failing source does not stop the others.
func (p *Pipeline) Run(ctx context.Context, opts driving.RunOptions) error {
	runID := uuid.NewString()
	logger.Info("Run %s: %d source(s), model=%s", runID, len(opts.Sources), opts.ModelKey)

	var errs []error
	for _, name := range opts.Sources {
		if err := p.runSource(ctx, p.resolveSource(name), opts); err != nil {
			logger.Error("Source %s failed: %v", name, err)
			errs = append(errs, fmt.Errorf("source %s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	logger.Info("Run %s complete", runID)
	return nil
}

// runSource is one fetch-to-submission cycle for a single source.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (p *Pipeline) runSource(ctx context.Context, source domain.Source, opts driving.RunOptions) error {
	// 1. Fetch the look-back window.
	logger.Info("Fetching data from %s (look-back %dh)", source.Name, opts.Hours)

	records, err := p.fetcher.Fetch(ctx, source, opts.Hours)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		logger.Info("No new data for %s: nothing to submit", source.Name)
		return nil
	}

	// 2. Watermark filter: drop rows already sent by an earlier run.
	marks := p.watermarks.Load()
	if !source.SkipCutoff {
		lastTS := marks[source.Name]

		var fresh []domain.Record
		for _, record := range records {
			if record.HasTimestamp && record.Timestamp > lastTS {
				fresh = append(fresh, record)
			}
		}
		if len(fresh) == 0 {
			logger.Info("No new records after watermark filtering (last_ts=%d): skipping %s", lastTS, source.Name)
			return nil
		}
		records = fresh
	}

	// 3. Render the request file.
	path, written, err := p.formatter.WriteJSONL(records, source, opts.ModelKey, opts.TestOnly)
	if err != nil {
		return err
	}
	if written == 0 {
		logger.Info("All fetched records lacked usable text: skipping %s", source.Name)
		return nil
	}
	if opts.TestOnly {
		logger.Info("Test mode: stopping after JSONL generation (%s)", path)
		return nil
	}

	// 4. Advance the watermark before submission so a failed provider
	// call never causes the same rows to be resent.
	if !source.SkipCutoff {
		p.advanceWatermark(marks, source.Name, records)
	}

	// 5. Upload and create the batch.
	fileID, err := p.submitter.Upload(ctx, path)
	if err != nil {
		return err
	}
	p.archive(ctx, archiveInput, path)

	remote, err := p.submitter.Create(ctx, fileID)
	if err != nil {
		return err
	}

	// 6. Persist bookkeeping locally and in the ledger.
	job := domain.Job{
		BatchID:     remote.ID,
		CreatedUTC:  p.now().UTC().Format(time.RFC3339),
		Status:      string(remote.Status),
		Model:       opts.ModelKey,
		InputJSONL:  filepath.Base(path),
		InputFileID: fileID,
		Source:      source.Name,
		RecordCount: written,
	}
	p.saveJob(job)
	p.recordLedger(ctx, job)

	if !opts.Wait {
		logger.Info("Async mode: skipping wait/download for batch %s (status=%s)", remote.ID, remote.Status)
		return nil
	}

	// 7. Monitor until completion, then download results.
	final, err := p.submitter.Await(ctx, remote.ID)
	if err != nil {
		return err
	}

	job.FinalStatus = string(final.Status)
	job.OutputFileID = final.OutputFileID

	if final.Status == domain.JobCompleted {
		outPath, err := p.submitter.Download(ctx, final.OutputFileID, p.outputDir())
		if err != nil {
			return err
		}
		job.OutputPath = filepath.Base(outPath)
		p.archive(ctx, archiveOutput, outPath)
	} else {
		logger.Error("Batch %s finished with status %s", remote.ID, final.Status)
	}

	p.saveJob(job)
	p.finaliseLedger(ctx, job)
	return nil
}

// Resume re-attaches to an already submitted batch, waits for it to
// finish and downloads the output. The local job entry is updated even
// when the batch was submitted by another process.
func (p *Pipeline) Resume(ctx context.Context, batchID string) error {
	logger.Info("Resuming monitoring for batch %s", batchID)

	final, err := p.submitter.Await(ctx, batchID)
	if err != nil {
		return err
	}

	job, known := p.jobs.Load()[batchID]
	if !known {
		job = domain.Job{
			BatchID:    batchID,
			CreatedUTC: p.now().UTC().Format(time.RFC3339),
			Status:     string(final.Status),
		}
	}
	job.FinalStatus = string(final.Status)
	job.OutputFileID = final.OutputFileID

	if final.Status == domain.JobCompleted {
		outPath, err := p.submitter.Download(ctx, final.OutputFileID, p.outputDir())
		if err != nil {
			return err
		}
		job.OutputPath = filepath.Base(outPath)
		p.archive(ctx, archiveOutput, outPath)
	} else {
		logger.Error("Batch %s finished with status %s", batchID, final.Status)
	}

	p.saveJob(job)
	p.finaliseLedger(ctx, job)
	return nil
}

// CheckPending sweeps the job store for unresolved batches and probes
// each exactly once. Completed batches are downloaded and finalised;
// still-running batches are left for the next sweep. Per-batch errors
// are logged, never fatal.
func (p *Pipeline) CheckPending(ctx context.Context) error {
	jobs := p.jobs.Load()

	var pending []string
	for id, job := range jobs {
		if !job.Finished() {
			pending = append(pending, id)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	sort.Strings(pending)

	logger.Info("Found %d pending batch(es): checking status", len(pending))

	for _, id := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.checkOne(ctx, jobs, id); err != nil {
			logger.Warn("Error while checking batch %s: %v", id, err)
		}
	}
	return nil
}

// checkOne probes a single pending batch and finalises it when it has
// reached a terminal state.
func (p *Pipeline) checkOne(ctx context.Context, jobs map[string]domain.Job, id string) error {
	remote, err := p.submitter.Probe(ctx, id)
	if err != nil {
		return err
	}

	logger.Info("Pending batch %s status=%s", id, remote.Status)

	job := jobs[id]
	switch {
	case remote.Status == domain.JobCompleted:
		outPath, err := p.submitter.Download(ctx, remote.OutputFileID, p.outputDir())
		if err != nil {
			return err
		}
		job.FinalStatus = string(domain.JobCompleted)
		job.OutputFileID = remote.OutputFileID
		job.OutputPath = filepath.Base(outPath)
		p.archive(ctx, archiveOutput, outPath)

	case remote.Status.IsTerminal():
		job.FinalStatus = string(remote.Status)

	default:
		// Still running, nothing to record.
		return nil
	}

	jobs[id] = job
	if err := p.jobs.Save(jobs); err != nil {
		logger.Warn("Unable to persist job state for %s: %v", id, err)
	}
	p.finaliseLedger(ctx, job)
	return nil
}

// resolveSource returns the configured settings for name, or defaults
// when the source is not in the catalogue.
func (p *Pipeline) resolveSource(name string) domain.Source {
	if source, ok := p.catalogue[name]; ok {
		return source
	}
	return domain.NewSource(name)
}

// advanceWatermark persists the newest timestamp of the submitted
// candidate set. A smaller value than the stored one is never written.
func (p *Pipeline) advanceWatermark(marks map[string]int64, source string, records []domain.Record) {
	var maxTS int64
	for _, record := range records {
		if record.HasTimestamp && record.Timestamp > maxTS {
			maxTS = record.Timestamp
		}
	}
	if maxTS == 0 || maxTS <= marks[source] {
		return
	}

	marks[source] = maxTS
	if err := p.watermarks.Save(marks); err != nil {
		logger.Warn("Unable to persist watermark for %s: %v", source, err)
	}
}

// saveJob upserts one entry in the local job store.
func (p *Pipeline) saveJob(job domain.Job) {
	jobs := p.jobs.Load()
	jobs[job.BatchID] = job
	if err := p.jobs.Save(jobs); err != nil {
		logger.Warn("Unable to persist job state for %s: %v", job.BatchID, err)
	}
}

// recordLedger writes the submission record, best-effort.
func (p *Pipeline) recordLedger(ctx context.Context, job domain.Job) {
	if p.ledger == nil {
		return
	}
	if err := p.ledger.Record(ctx, job); err != nil {
		logger.Warn("Unable to record batch %s in ledger: %v", job.BatchID, err)
	}
}

// finaliseLedger writes the terminal outcome, best-effort.
func (p *Pipeline) finaliseLedger(ctx context.Context, job domain.Job) {
	if p.ledger == nil {
		return
	}
	if err := p.ledger.Finalise(ctx, job); err != nil {
		logger.Warn("Unable to update ledger for batch %s: %v", job.BatchID, err)
	}
}

// archive copies an artefact to long-term storage, best-effort.
func (p *Pipeline) archive(ctx context.Context, kind, path string) {
	if p.archiver == nil {
		return
	}
	if err := p.archiver.Store(ctx, kind, path); err != nil {
		logger.Warn("Unable to archive %s artefact %s: %v", kind, path, err)
	}
}

func (p *Pipeline) outputDir() string {
	return filepath.Join(p.dataDir, outputSubdir)
}
