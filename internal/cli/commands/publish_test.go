package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishCommand_MissingFile(t *testing.T) {
	cmd := NewPublishCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope.parquet")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}

func TestPublishCommand_RequiresBucket(t *testing.T) {
	t.Setenv("CORPUSFORGE_GCS_BUCKET", "")

	artifact := filepath.Join(t.TempDir(), "unified_dataset_v20240101_000000.parquet")
	require.NoError(t, os.WriteFile(artifact, []byte("x"), 0600))

	cmd := NewPublishCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{artifact})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gcs_bucket")
}

func TestPublishCommand_ArgBounds(t *testing.T) {
	cmd := NewPublishCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute(), "publish requires at least the data file")

	cmd = NewPublishCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"a", "b", "c"})
	assert.Error(t, cmd.Execute(), "publish accepts at most data and sidecar")
}
