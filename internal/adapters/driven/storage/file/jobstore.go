package file

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/tidemark/internal/core/domain"
	"github.com/custodia-labs/tidemark/internal/core/ports/driven"
)

// Job state file name within the data directory.
const jobFile = "batch_status.json"

// Ensure JobStore implements the interface.
var _ driven.JobStore = (*JobStore)(nil)

// JobStore persists batch job bookkeeping as a JSON object keyed by
// batch ID. The batch ID lives only in the key; entry bodies carry the
// remaining job fields.
type JobStore struct {
	mu       sync.Mutex
	filePath string
}

// NewJobStore creates a job store rooted at dataDir.
// If dataDir is empty, defaults to ~/.local/share/tidemark.
func NewJobStore(dataDir string) (*JobStore, error) {
	if dataDir == "" {
		var err error
		dataDir, err = DefaultDataDir()
		if err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, err
	}

	return &JobStore{filePath: filepath.Join(dataDir, jobFile)}, nil
}

// Load returns the persisted jobs keyed by batch ID, stamping each
// entry's BatchID from its key. A missing or unreadable file yields an
// empty map.
func (s *JobStore) Load() map[string]domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make(map[string]domain.Job)

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return jobs
	}
	if err := json.Unmarshal(data, &jobs); err != nil {
		return make(map[string]domain.Job)
	}

	for id, job := range jobs {
		job.BatchID = id
		jobs[id] = job
	}
	return jobs
}

// Save persists the jobs atomically.
func (s *JobStore) Save(jobs map[string]domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.filePath, data)
}

// Path returns the job state file path.
func (s *JobStore) Path() string {
	return s.filePath
}
