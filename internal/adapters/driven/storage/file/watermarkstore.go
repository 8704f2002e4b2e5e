package file

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/tidemark/internal/core/ports/driven"
)

// Watermark state file name within the data directory.
const watermarkFile = "batch_watermark.json"

// Ensure WatermarkStore implements the interface.
var _ driven.WatermarkStore = (*WatermarkStore)(nil)

// WatermarkStore persists per-source high-water marks as a JSON object
// mapping source name to the newest epoch second already batched.
type WatermarkStore struct {
	mu       sync.Mutex
	filePath string
}

// NewWatermarkStore creates a watermark store rooted at dataDir.
// If dataDir is empty, defaults to ~/.local/share/tidemark.
func NewWatermarkStore(dataDir string) (*WatermarkStore, error) {
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

	return &WatermarkStore{filePath: filepath.Join(dataDir, watermarkFile)}, nil
}

// Load returns the persisted watermarks. A missing or unreadable file
// yields an empty map so callers fall back to the full look-back window.
func (s *WatermarkStore) Load() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	marks := make(map[string]int64)

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return marks
	}
	if err := json.Unmarshal(data, &marks); err != nil {
		return make(map[string]int64)
	}
	return marks
}

// Save persists the watermarks atomically.
func (s *WatermarkStore) Save(marks map[string]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(marks, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.filePath, data)
}

// Path returns the watermark file path.
func (s *WatermarkStore) Path() string {
	return s.filePath
}
