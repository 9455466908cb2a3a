package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageEssaysDataset(t *testing.T, dataDir string) {
	t.Helper()

	essaysDir := filepath.Join(dataDir, "train_essays")
	require.NoError(t, os.MkdirAll(essaysDir, 0750))

	content := strings.Join([]string{
		"id,prompt_id,text,generated",
		`1,0,"Cars shaped the American suburb more than any zoning law.",0`,
		`2,0,"This response was produced by a large language model.",1`,
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(essaysDir, "train_essays.csv"), []byte(content), 0600))
}

func setRunEnv(t *testing.T, dataDir, outDir, statePath string) {
	t.Helper()
	t.Setenv("CORPUSFORGE_DATA_DIR", dataDir)
	t.Setenv("CORPUSFORGE_OUTPUT_DIR", outDir)
	t.Setenv("CORPUSFORGE_STATE_PATH", statePath)
	t.Setenv("CORPUSFORGE_SCHEMAS_FILE", "")
	t.Setenv("CORPUSFORGE_GCS_BUCKET", "")
}

func TestRunCommand_Execute(t *testing.T) {
	dataDir := t.TempDir()
	outDir := t.TempDir()
	statePath := filepath.Join(t.TempDir(), "state.db")
	stageEssaysDataset(t, dataDir)
	setRunEnv(t, dataDir, outDir, statePath)

	cmd := NewRunCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--skip-validation", "--format", "csv"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "Found 1 datasets")
	assert.Contains(t, output, "train_essays")
	assert.Contains(t, output, "merged")
	assert.Contains(t, output, "Unified 1 datasets into 2 rows")
	assert.Contains(t, output, "Completed in")

	// Artifact pair lands in the output directory
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	var csvs, sidecars int
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".csv":
			csvs++
		case ".json":
			sidecars++
		}
	}
	assert.Equal(t, 1, csvs, "one dataset file expected")
	assert.Equal(t, 1, sidecars, "one metadata sidecar expected")

	// The run is in the history afterwards
	runsCmd := NewRunsCommand()
	runsBuf := new(bytes.Buffer)
	runsCmd.SetOut(runsBuf)
	runsCmd.SetErr(runsBuf)
	runsCmd.SetArgs([]string{})
	require.NoError(t, runsCmd.Execute())
	assert.Contains(t, runsBuf.String(), "completed")
}

func TestRunCommand_ExcludesInvalidDataset(t *testing.T) {
	dataDir := t.TempDir()
	outDir := t.TempDir()
	statePath := filepath.Join(t.TempDir(), "state.db")

	// Two rows cannot satisfy the competition schema's row minimum, so with
	// validation on the only dataset is excluded and the run fails.
	stageEssaysDataset(t, dataDir)
	setRunEnv(t, dataDir, outDir, statePath)

	cmd := NewRunCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run failed")
	assert.Contains(t, err.Error(), "no valid datasets")

	output := buf.String()
	assert.Contains(t, output, "excluded")
	assert.Contains(t, output, "Insufficient rows")
}

func TestRunCommand_PublishRequiresBucket(t *testing.T) {
	dataDir := t.TempDir()
	outDir := t.TempDir()
	statePath := filepath.Join(t.TempDir(), "state.db")
	setRunEnv(t, dataDir, outDir, statePath)

	cmd := NewRunCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--publish"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gcs_bucket")
}
