package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/tidemark/internal/core/domain"
	"github.com/custodia-labs/tidemark/internal/core/ports/driving"
	"github.com/custodia-labs/tidemark/internal/logger"
	"github.com/custodia-labs/tidemark/internal/normalisers/batchout"
)

// maxOutputLine bounds a single batch output line. Model answers can
// run far past bufio's default token size.
const maxOutputLine = 10 * 1024 * 1024

// Ensure Parser implements the interface.
var _ driving.Parser = (*Parser)(nil)

// Parser aggregates batch output artefacts into a single flat JSON
// array of result records.
type Parser struct{}

// NewParser creates a parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads every input (files as given, directories recursively for
// *.jsonl), unpacks each answer line and writes the aggregated records
// to outputPath as an indented JSON array. It returns the record count.
func (p *Parser) Parse(ctx context.Context, inputs []string, outputPath string) (int, error) {
	files, err := collectInputs(inputs)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("%w: no input files found", domain.ErrInvalidInput)
	}

	rows := []map[string]any{}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		fileRows, err := p.parseFile(file)
		if err != nil {
			return 0, err
		}
		rows = append(rows, fileRows...)
	}

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("create output dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal records: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return 0, fmt.Errorf("write %s: %w", outputPath, err)
	}

	logger.Info("Wrote %d records to %s", len(rows), outputPath)
	return len(rows), nil
}

// parseFile unpacks one output artefact line by line. Structurally
// unusable lines are skipped, not fatal.
func (p *Parser) parseFile(path string) ([]map[string]any, error) {
	logger.Info("Parsing %s", path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var rows []map[string]any

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOutputLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		result, err := batchout.Parse(line)
		if errors.Is(err, batchout.ErrNotJSON) {
			logger.Warn("%s:%d not valid JSON: ignored", path, lineNo)
			continue
		}
		if err != nil {
			continue
		}

		if result.RawFallback {
			logger.Warn("Unable to parse inner JSON for %s: keeping raw string", result.CustomID)
		}
		rows = append(rows, result.Rows...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return rows, nil
}

// collectInputs expands the argument list into concrete file paths.
// Directories contribute their *.jsonl files recursively in sorted
// order; plain files are taken as given.
func collectInputs(inputs []string) ([]string, error) {
	var files []string
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", input, err)
		}

		if !info.IsDir() {
			files = append(files, input)
			continue
		}

		var found []string
		err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), ".jsonl") {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", input, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}
