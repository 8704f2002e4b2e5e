package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCmd_Use(t *testing.T) {
	assert.Equal(t, "check", checkCmd.Use)
}

func TestCheckCmd_Short(t *testing.T) {
	assert.Equal(t, "Collect finished batch outputs", checkCmd.Short)
}

func TestCheckCmd_RequiresPipeline(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()

	pipelineService = nil

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"check"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline not configured")
}

func TestCheckCmd_SweepsPending(t *testing.T) {
	svcs, cleanup := setupTestServices(t)
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"check"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, 1, svcs.pipeline.checkCalls)
	assert.Empty(t, svcs.pipeline.runOpts)
	assert.Contains(t, buf.String(), "Pending sweep complete.")
}

func TestCheckCmd_SweepError(t *testing.T) {
	svcs, cleanup := setupTestServices(t)
	defer cleanup()

	svcs.pipeline.checkErr = errors.New("connection refused")

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"check"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pending sweep failed")
}
