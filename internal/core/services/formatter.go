package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/custodia-labs/tidemark/internal/core/domain"
	"github.com/custodia-labs/tidemark/internal/core/ports/driven"
	"github.com/custodia-labs/tidemark/internal/logger"
	"github.com/custodia-labs/tidemark/internal/normalisers/recordtext"
)

// Subdirectories of the data dir receiving generated request files.
// Test-mode artefacts are kept apart so they are never submitted.
const (
	jsonlDir     = "jsonl"
	jsonlTestDir = "jsonl_test"
)

// maxTagRunes caps the sanitised source tag embedded in filenames.
const maxTagRunes = 32

// chatMessage is one entry of the request message list.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatBody is the inner request body of one batch line. The user field
// is only present when the source record carries an id attribute.
type chatBody struct {
	Messages []chatMessage `json:"messages"`
	Model    string        `json:"model"`
	User     *string       `json:"user,omitempty"`
}

// requestLine is one line of the generated JSONL input file.
type requestLine struct {
	CustomID string   `json:"custom_id"`
	Method   string   `json:"method"`
	URL      string   `json:"url"`
	Body     chatBody `json:"body"`
}

// Formatter renders fetched records into the provider's batch request
// JSONL format.
type Formatter struct {
	dataDir string
	prompts driven.PromptStore

	// now is the clock, overridable in tests.
	now func() time.Time
}

// NewFormatter creates a formatter writing beneath dataDir, with system
// prompts supplied by the given store.
func NewFormatter(dataDir string, prompts driven.PromptStore) *Formatter {
	return &Formatter{
		dataDir: dataDir,
		prompts: prompts,
		now:     time.Now,
	}
}

// WriteJSONL writes one request line per usable record and returns the
// file path and the written count. Records whose text cannot be
// extracted are counted as skipped. A zero written count means the
// caller must not submit the file.
//
// Filenames are tagged with the sanitised source name and a UTC minute
// stamp; collisions get a numeric suffix rather than overwriting.
func (f *Formatter) WriteJSONL(records []domain.Record, source domain.Source, modelKey string, testMode bool) (string, int, error) {
	model := domain.ResolveModel(modelKey)

	promptName := source.Prompt
	if promptName == "" {
		promptName = driven.PromptAnalyst
	}
	prompt, err := f.prompts.Load(promptName)
	if err != nil {
		return "", 0, fmt.Errorf("load prompt %q: %w", promptName, err)
	}

	dir := filepath.Join(f.dataDir, jsonlDir)
	if testMode {
		dir = filepath.Join(f.dataDir, jsonlTestDir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, fmt.Errorf("create output dir: %w", err)
	}

	path := f.nextPath(dir, sanitiseTag(source.Name))

	out, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	written := 0
	skipped := 0
	for _, record := range records {
		text := record.Text
		if text == "" {
			var ok bool
			text, ok = recordtext.Extract(record.Attrs)
			if !ok {
				skipped++
				continue
			}
		}

		body := chatBody{
			Messages: []chatMessage{
				{Role: "system", Content: prompt},
				{Role: "user", Content: text},
			},
			Model: model,
		}
		if id, ok := record.ID(); ok {
			body.User = &id
		}

		line := requestLine{
			CustomID: fmt.Sprintf("row_%d", written+1),
			Method:   "POST",
			URL:      "/v1/chat/completions",
			Body:     body,
		}
		if err := enc.Encode(line); err != nil {
			return "", 0, fmt.Errorf("write request line: %w", err)
		}
		written++
	}

	logger.Info("JSONL prepared: %s (written=%d, skipped=%d)", path, written, skipped)
	return path, written, nil
}

// nextPath returns the first non-existing target path for the tag and
// the current UTC minute.
func (f *Formatter) nextPath(dir, tag string) string {
	stamp := f.now().UTC().Format("20060102_1504")

	base := "batch_" + stamp
	if tag != "" {
		base = "batch_" + tag + "_" + stamp
	}

	path := filepath.Join(dir, base+".jsonl")
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.jsonl", base, n))
	}
}

// sanitiseTag maps a source name onto the filename-safe alphabet,
// keeping letters, digits, hyphen and underscore and capping the
// length.
func sanitiseTag(tag string) string {
	var b strings.Builder
	count := 0
	for _, r := range tag {
		if count == maxTagRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
		count++
	}
	return b.String()
}
