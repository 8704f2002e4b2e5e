package driven

import (
	"context"

	"github.com/custodia-labs/tidemark/internal/core/domain"
)

// BatchService talks to the inference provider's file and batch APIs.
// Calls are single attempts; retry policy belongs to the services that
// use the port.
type BatchService interface {
	// UploadFile uploads the JSONL file at path for batch processing
	// and returns the provider-assigned file ID.
	UploadFile(ctx context.Context, path string) (string, error)

	// CreateBatch submits a batch over the uploaded input file and
	// returns the created job.
	CreateBatch(ctx context.Context, inputFileID string) (domain.RemoteJob, error)

	// GetBatch returns the provider's current view of a batch job.
	GetBatch(ctx context.Context, batchID string) (domain.RemoteJob, error)

	// DownloadFile returns the contents of a provider file.
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}
