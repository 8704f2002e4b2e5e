package cli

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCmd_Use(t *testing.T) {
	assert.Equal(t, "parse [input]...", parseCmd.Use)
}

func TestParseCmd_OutputFlag(t *testing.T) {
	flag := parseCmd.Flags().Lookup("output")
	require.NotNil(t, flag)
	assert.Equal(t, "o", flag.Shorthand)
	assert.Equal(t, "aggregate.json", flag.DefValue)
}

func TestParseCmd_RequiresParser(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()

	parserService = nil

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"parse", "results.jsonl"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parser not configured")
}

func TestParseCmd_ParsesGivenInputs(t *testing.T) {
	svcs, cleanup := setupTestServices(t)
	defer cleanup()
	defer func() { parseOutput = "aggregate.json" }()

	svcs.parser.count = 7
	outPath := filepath.Join(t.TempDir(), "report.json")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"parse", "a.jsonl", "b.jsonl", "-o", outPath})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, []string{"a.jsonl", "b.jsonl"}, svcs.parser.inputs)
	assert.Equal(t, outPath, svcs.parser.output)
	assert.Contains(t, buf.String(), "Parsed 7 record(s)")
}

func TestParseCmd_DefaultsToDataDirOutput(t *testing.T) {
	svcs, cleanup := setupTestServices(t)
	defer cleanup()
	defer func() { parseOutput = "aggregate.json" }()

	dataDir := t.TempDir()
	require.NoError(t, svcs.config.Set("batch.data_dir", dataDir))

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"parse"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dataDir, "output")}, svcs.parser.inputs)
	assert.Equal(t, "aggregate.json", svcs.parser.output)
}

func TestParseCmd_ParseError(t *testing.T) {
	svcs, cleanup := setupTestServices(t)
	defer cleanup()
	defer func() { parseOutput = "aggregate.json" }()

	svcs.parser.err = errors.New("no JSONL files found")

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"parse", "missing.jsonl"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse failed")
}
