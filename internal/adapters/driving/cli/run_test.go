package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tidemark/internal/core/domain"
)

// resetRunFlags restores run flag state between tests.
func resetRunFlags() {
	runHours = defaultLookbackHours
	runModel = domain.DefaultModelKey
	runSources = nil
	runTest = false
	runAsync = false
	runResume = ""
	for _, name := range []string{"hours", "model", "source", "test", "async", "resume"} {
		if f := runCmd.Flags().Lookup(name); f != nil {
			f.Changed = false
		}
	}
}

func TestRunCmd_Use(t *testing.T) {
	assert.Equal(t, "run", runCmd.Use)
}

func TestRunCmd_Short(t *testing.T) {
	assert.Equal(t, "Fetch fresh records and submit a batch", runCmd.Short)
}

func TestRunCmd_FlagDefaults(t *testing.T) {
	hours := runCmd.Flags().Lookup("hours")
	require.NotNil(t, hours)
	assert.Equal(t, "12", hours.DefValue)

	model := runCmd.Flags().Lookup("model")
	require.NotNil(t, model)
	assert.Equal(t, "nano", model.DefValue)

	source := runCmd.Flags().Lookup("source")
	require.NotNil(t, source)
	assert.Equal(t, "s", source.Shorthand)

	for _, name := range []string{"test", "async"} {
		flag := runCmd.Flags().Lookup(name)
		require.NotNil(t, flag)
		assert.Equal(t, "false", flag.DefValue)
	}
}

func TestRunCmd_RequiresPipeline(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()
	defer resetRunFlags()

	pipelineService = nil

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"run"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline not configured")
}

func TestRunCmd_SubmitsWithDefaults(t *testing.T) {
	svcs, cleanup := setupTestServices(t)
	defer cleanup()
	defer resetRunFlags()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"run"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	require.Len(t, svcs.pipeline.runOpts, 1)

	opts := svcs.pipeline.runOpts[0]
	assert.Equal(t, defaultLookbackHours, opts.Hours)
	assert.Equal(t, domain.DefaultModelKey, opts.ModelKey)
	assert.Equal(t, []string{domain.DefaultSourceName}, opts.Sources)
	assert.True(t, opts.Wait)
	assert.False(t, opts.TestOnly)
	assert.Contains(t, buf.String(), "Batch cycle complete.")
}

func TestRunCmd_MultipleSourcesForceAsync(t *testing.T) {
	svcs, cleanup := setupTestServices(t)
	defer cleanup()
	defer resetRunFlags()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"run", "-s", "TableA, TableB", "-s", "TableC"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	require.Len(t, svcs.pipeline.runOpts, 1)

	opts := svcs.pipeline.runOpts[0]
	assert.Equal(t, []string{"TableA", "TableB", "TableC"}, opts.Sources)
	assert.False(t, opts.Wait)
	// The pre-submit sweep belongs to explicit --async runs only.
	assert.Equal(t, 0, svcs.pipeline.checkCalls)
	assert.Contains(t, buf.String(), "Batches submitted")
}

func TestRunCmd_AsyncSweepsPendingFirst(t *testing.T) {
	svcs, cleanup := setupTestServices(t)
	defer cleanup()
	defer resetRunFlags()

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"run", "--async"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, 1, svcs.pipeline.checkCalls)
	require.Len(t, svcs.pipeline.runOpts, 1)
	assert.False(t, svcs.pipeline.runOpts[0].Wait)
}

func TestRunCmd_TestModeNeverSweeps(t *testing.T) {
	svcs, cleanup := setupTestServices(t)
	defer cleanup()
	defer resetRunFlags()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"run", "--test", "--async"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, 0, svcs.pipeline.checkCalls)
	require.Len(t, svcs.pipeline.runOpts, 1)
	assert.True(t, svcs.pipeline.runOpts[0].TestOnly)
	assert.Contains(t, buf.String(), "Test run complete")
}

func TestRunCmd_Resume(t *testing.T) {
	svcs, cleanup := setupTestServices(t)
	defer cleanup()
	defer resetRunFlags()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"run", "--resume", "batch_abc123"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, []string{"batch_abc123"}, svcs.pipeline.resumed)
	assert.Empty(t, svcs.pipeline.runOpts)
	assert.Contains(t, buf.String(), "Resume complete for batch batch_abc123")
}

func TestRunCmd_ResumeError(t *testing.T) {
	svcs, cleanup := setupTestServices(t)
	defer cleanup()
	defer resetRunFlags()

	svcs.pipeline.resumeErr = errors.New("status check failed")

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"run", "--resume", "batch_abc123"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "resume batch_abc123")
}

func TestRunCmd_ConfigHoursApplyWhenFlagAbsent(t *testing.T) {
	svcs, cleanup := setupTestServices(t)
	defer cleanup()
	defer resetRunFlags()

	require.NoError(t, svcs.config.Set("batch.hours", 6))
	require.NoError(t, svcs.config.Set("batch.model", "mini"))

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"run"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	require.Len(t, svcs.pipeline.runOpts, 1)
	assert.Equal(t, 6, svcs.pipeline.runOpts[0].Hours)
	assert.Equal(t, "mini", svcs.pipeline.runOpts[0].ModelKey)
}

func TestRunCmd_FlagOverridesConfig(t *testing.T) {
	svcs, cleanup := setupTestServices(t)
	defer cleanup()
	defer resetRunFlags()

	require.NoError(t, svcs.config.Set("batch.hours", 6))
	require.NoError(t, svcs.config.Set("batch.model", "mini"))

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"run", "--hours", "3", "--model", "full"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	require.Len(t, svcs.pipeline.runOpts, 1)
	assert.Equal(t, 3, svcs.pipeline.runOpts[0].Hours)
	assert.Equal(t, "full", svcs.pipeline.runOpts[0].ModelKey)
}

func TestRunCmd_ConfiguredSourcesApply(t *testing.T) {
	svcs, cleanup := setupTestServices(t)
	defer cleanup()
	defer resetRunFlags()

	require.NoError(t, svcs.config.Set("sources.enabled", []string{"TableA", "TableB"}))

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"run", "--async"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	require.Len(t, svcs.pipeline.runOpts, 1)
	assert.Equal(t, []string{"TableA", "TableB"}, svcs.pipeline.runOpts[0].Sources)
}

func TestRunCmd_RunError(t *testing.T) {
	svcs, cleanup := setupTestServices(t)
	defer cleanup()
	defer resetRunFlags()

	svcs.pipeline.runErr = errors.New("scan failed")

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"run"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "run failed")
}

func TestSplitSources(t *testing.T) {
	assert.Equal(t, []string{"A", "B", "C"}, splitSources([]string{"A,B", " C "}))
	assert.Equal(t, []string{"A"}, splitSources([]string{"A,,  ,"}))
	assert.Empty(t, splitSources(nil))
}
