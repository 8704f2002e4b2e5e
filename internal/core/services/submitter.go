package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/custodia-labs/tidemark/internal/core/domain"
	"github.com/custodia-labs/tidemark/internal/core/ports/driven"
	"github.com/custodia-labs/tidemark/internal/logger"
)

// submitAttempts bounds the upload and create retries. Backoff between
// attempts grows linearly.
const submitAttempts = 3

// defaultPollInterval is how often Await re-checks a running batch.
const defaultPollInterval = 60 * time.Second

// Submitter drives a batch job through upload, creation, polling and
// result download against the inference provider.
type Submitter struct {
	batch driven.BatchService

	// pollEvery is the Await re-check interval, overridable in tests.
	pollEvery time.Duration

	// sleep and now are indirections for deterministic tests.
	sleep func(time.Duration)
	now   func() time.Time
}

// NewSubmitter creates a submitter over the given batch service.
func NewSubmitter(batch driven.BatchService) *Submitter {
	return &Submitter{
		batch:     batch,
		pollEvery: defaultPollInterval,
		sleep:     time.Sleep,
		now:       time.Now,
	}
}

// Upload pushes the JSONL input file to the provider and returns its
// file ID, retrying transient failures.
func (s *Submitter) Upload(ctx context.Context, path string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= submitAttempts; attempt++ {
		fileID, err := s.batch.UploadFile(ctx, path)
		if err == nil {
			logger.Info("Uploaded JSONL (%s): file_id=%s", path, fileID)
			return fileID, nil
		}
		lastErr = err
		logger.Warn("Upload attempt %d for %s failed: %v", attempt, path, err)
		if ctx.Err() != nil {
			break
		}
		if attempt < submitAttempts {
			s.sleep(time.Duration(1+attempt) * time.Second)
		}
	}
	return "", fmt.Errorf("%w: %s after %d attempts: %w", domain.ErrUploadFailed, path, submitAttempts, lastErr)
}

// Create submits a batch job over a previously uploaded input file,
// retrying transient failures.
func (s *Submitter) Create(ctx context.Context, fileID string) (domain.RemoteJob, error) {
	var lastErr error
	for attempt := 1; attempt <= submitAttempts; attempt++ {
		remote, err := s.batch.CreateBatch(ctx, fileID)
		if err == nil {
			logger.Info("Batch created: id=%s status=%s", remote.ID, remote.Status)
			return remote, nil
		}
		lastErr = err
		logger.Warn("Batch create attempt %d failed: %v", attempt, err)
		if ctx.Err() != nil {
			break
		}
		if attempt < submitAttempts {
			s.sleep(time.Duration(1+attempt) * time.Second)
		}
	}
	return domain.RemoteJob{}, fmt.Errorf("%w: %w", domain.ErrSubmitFailed, lastErr)
}

// Await blocks until the batch reaches a terminal state, polling at the
// configured interval. Poll errors end the wait.
func (s *Submitter) Await(ctx context.Context, batchID string) (domain.RemoteJob, error) {
	for {
		remote, err := s.batch.GetBatch(ctx, batchID)
		if err != nil {
			return domain.RemoteJob{}, fmt.Errorf("poll batch %s: %w", batchID, err)
		}

		logger.Info("Batch %s status = %s", batchID, remote.Status)

		if remote.Status.IsTerminal() {
			return remote, nil
		}

		select {
		case <-ctx.Done():
			return domain.RemoteJob{}, ctx.Err()
		case <-time.After(s.pollEvery):
		}
	}
}

// Probe performs exactly one status check without blocking on the
// outcome.
func (s *Submitter) Probe(ctx context.Context, batchID string) (domain.RemoteJob, error) {
	remote, err := s.batch.GetBatch(ctx, batchID)
	if err != nil {
		return domain.RemoteJob{}, fmt.Errorf("probe batch %s: %w", batchID, err)
	}
	return remote, nil
}

// Download fetches the result file and writes it under dir with a UTC
// second stamp, returning the written path.
func (s *Submitter) Download(ctx context.Context, fileID, dir string) (string, error) {
	content, err := s.batch.DownloadFile(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("download file %s: %w", fileID, err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	stamp := s.now().UTC().Format("20060102_150405")
	path := filepath.Join(dir, "batch_output_"+stamp+".jsonl")

	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	logger.Info("Batch output saved to %s", path)
	return path, nil
}
