// Package openai provides a batch inference adapter using the OpenAI API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/custodia-labs/tidemark/internal/core/domain"
	"github.com/custodia-labs/tidemark/internal/core/ports/driven"
	"github.com/custodia-labs/tidemark/internal/logger"
)

// Ensure BatchService implements the interface.
var _ driven.BatchService = (*BatchService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultTimeout = 120 * time.Second
)

const (
	// batchEndpoint is the inference endpoint batched requests run
	// against inside the provider.
	batchEndpoint = "/v1/chat/completions"

	// completionWindow is the provider's processing deadline.
	completionWindow = "24h"
)

// Config holds configuration for the OpenAI batch service.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// BatchService provides batch job operations using the OpenAI API.
type BatchService struct {
	client  *http.Client
	baseURL string
	apiKey  string

	// The batch route differs between deployments: current APIs serve
	// /batches while older gateway builds only expose /beta/batches.
	// The working route is detected once on first use.
	probeOnce sync.Once
	batchPath string
	probeErr  error
}

// batchCreateRequest is the OpenAI batch creation request format.
type batchCreateRequest struct {
	InputFileID      string `json:"input_file_id"`
	Endpoint         string `json:"endpoint"`
	CompletionWindow string `json:"completion_window"`
}

// fileResponse is the OpenAI file object format.
type fileResponse struct {
	ID string `json:"id"`
}

// batchResponse is the OpenAI batch object format.
type batchResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	OutputFileID string `json:"output_file_id"`
}

// apiError is a non-2xx response from the provider.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("openai error (status %d): %s", e.status, e.message)
}

// NewBatchService creates a new OpenAI batch service.
func NewBatchService(cfg Config) (*BatchService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &BatchService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}, nil
}

// UploadFile uploads the JSONL file at path with purpose "batch" and
// returns the provider-assigned file ID.
func (s *BatchService) UploadFile(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("purpose", "batch"); err != nil {
		return "", fmt.Errorf("write purpose field: %w", err)
	}
	part, err := form.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("finalise form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/files", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	body, err := s.do(req)
	if err != nil {
		return "", err
	}

	var fileResp fileResponse
	if err := json.Unmarshal(body, &fileResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if fileResp.ID == "" {
		return "", fmt.Errorf("openai: upload response missing file ID")
	}

	return fileResp.ID, nil
}

// CreateBatch submits a batch over the uploaded input file.
func (s *BatchService) CreateBatch(ctx context.Context, inputFileID string) (domain.RemoteJob, error) {
	batchPath, err := s.resolveBatchPath(ctx)
	if err != nil {
		return domain.RemoteJob{}, err
	}

	jsonBody, err := json.Marshal(batchCreateRequest{
		InputFileID:      inputFileID,
		Endpoint:         batchEndpoint,
		CompletionWindow: completionWindow,
	})
	if err != nil {
		return domain.RemoteJob{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+batchPath, bytes.NewReader(jsonBody))
	if err != nil {
		return domain.RemoteJob{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	body, err := s.do(req)
	if err != nil {
		return domain.RemoteJob{}, err
	}

	var batchResp batchResponse
	if err := json.Unmarshal(body, &batchResp); err != nil {
		return domain.RemoteJob{}, fmt.Errorf("decode response: %w", err)
	}
	if batchResp.ID == "" {
		return domain.RemoteJob{}, fmt.Errorf("openai: batch response missing ID")
	}

	return toRemoteJob(batchResp), nil
}

// GetBatch returns the provider's current view of a batch job.
func (s *BatchService) GetBatch(ctx context.Context, batchID string) (domain.RemoteJob, error) {
	batchPath, err := s.resolveBatchPath(ctx)
	if err != nil {
		return domain.RemoteJob{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+batchPath+"/"+batchID, http.NoBody)
	if err != nil {
		return domain.RemoteJob{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	body, err := s.do(req)
	if err != nil {
		var respErr *apiError
		if errors.As(err, &respErr) && respErr.status == http.StatusNotFound {
			return domain.RemoteJob{}, fmt.Errorf("batch %s: %w", batchID, domain.ErrJobNotFound)
		}
		return domain.RemoteJob{}, err
	}

	var batchResp batchResponse
	if err := json.Unmarshal(body, &batchResp); err != nil {
		return domain.RemoteJob{}, fmt.Errorf("decode response: %w", err)
	}
	if batchResp.ID == "" {
		return domain.RemoteJob{}, fmt.Errorf("openai: batch response missing ID")
	}

	return toRemoteJob(batchResp), nil
}

// DownloadFile returns the raw contents of a provider file.
func (s *BatchService) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/files/"+fileID+"/content", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	return s.do(req)
}

// resolveBatchPath detects which batch route the provider serves. The
// result is cached for the lifetime of the service, including the
// failure case.
func (s *BatchService) resolveBatchPath(ctx context.Context) (string, error) {
	s.probeOnce.Do(func() {
		for _, path := range []string{"/batches", "/beta/batches"} {
			ok, err := s.probePath(ctx, path)
			if err != nil {
				s.probeErr = err
				return
			}
			if ok {
				logger.Debug("Batch API route resolved to %s", path)
				s.batchPath = path
				return
			}
		}
		s.probeErr = domain.ErrBatchUnsupported
	})

	return s.batchPath, s.probeErr
}

// probePath reports whether the provider serves a batch route. A 404
// means the route is absent; any other response, an auth failure
// included, proves the route exists.
func (s *BatchService) probePath(ctx context.Context, path string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path+"?limit=1", http.NoBody)
	if err != nil {
		return false, fmt.Errorf("create probe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode != http.StatusNotFound, nil
}

// do sends the request and returns the response body. The provider's
// error envelope and non-2xx statuses are converted into errors.
func (s *BatchService) do(req *http.Request) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error *struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error"`
		}
		if jsonErr := json.Unmarshal(body, &envelope); jsonErr == nil && envelope.Error != nil {
			return nil, &apiError{status: resp.StatusCode, message: envelope.Error.Message}
		}
		return nil, &apiError{status: resp.StatusCode, message: string(body)}
	}

	return body, nil
}

// toRemoteJob converts the wire format into the domain view.
func toRemoteJob(resp batchResponse) domain.RemoteJob {
	return domain.RemoteJob{
		ID:           resp.ID,
		Status:       domain.JobStatus(resp.Status),
		OutputFileID: resp.OutputFileID,
	}
}
