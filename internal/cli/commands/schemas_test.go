package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execSchemas(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CORPUSFORGE_SCHEMAS_FILE", "")

	cmd := NewSchemasCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func TestSchemasCommand_List(t *testing.T) {
	output, err := execSchemas(t)
	require.NoError(t, err)

	assert.Contains(t, output, "primary_competition_data")
	assert.Contains(t, output, "daigt_v2_additional_data")
	assert.Contains(t, output, "train_prompts")
	assert.Contains(t, output, "(3 schemas)")
}

func TestSchemasCommand_ListJSON(t *testing.T) {
	output, err := execSchemas(t, "--format", "json")
	require.NoError(t, err)

	assert.Contains(t, output, `"name": "primary_competition_data"`)
	assert.Contains(t, output, `"min_rows": 1000`)
	assert.Contains(t, output, `"allowed_values"`)
}

func TestSchemasCommand_Detail(t *testing.T) {
	output, err := execSchemas(t, "train_prompts")
	require.NoError(t, err)

	assert.Contains(t, output, "Dataset: train_prompts")
	assert.Contains(t, output, "at least 1")
	assert.Contains(t, output, "prompt_id")
	assert.Contains(t, output, "instructions")
	assert.Contains(t, output, ">=10")
}

func TestSchemasCommand_DetailJSON(t *testing.T) {
	output, err := execSchemas(t, "daigt_v2_additional_data", "--format", "json")
	require.NoError(t, err)

	assert.Contains(t, output, `"name": "daigt_v2_additional_data"`)
	assert.Contains(t, output, `"min_rows": 100`)
	assert.Contains(t, output, `"name": "source"`)
}

func TestSchemasCommand_Unknown(t *testing.T) {
	_, err := execSchemas(t, "no_such_dataset")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dataset schema")
}

func writeOverlayFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "schemas.yaml")
	content := `schemas:
  - name: web_scrape
    min_rows: 5
    columns:
      - name: url
        type: text
        nullable: false
      - name: text
        type: text
        nullable: false
    checks:
      - name: non_empty
        expr: row_count > 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestSchemasCommand_Overlay(t *testing.T) {
	// An overlay column and check must show up in the detail view
	overlay := writeOverlayFile(t)
	t.Setenv("CORPUSFORGE_SCHEMAS_FILE", overlay)

	cmd := NewSchemasCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"web_scrape"})

	require.NoError(t, cmd.Execute())
	output := buf.String()
	assert.Contains(t, output, "Dataset: web_scrape")
	assert.Contains(t, output, "url")
	assert.Contains(t, output, "Checks:")
	assert.Contains(t, output, "row_count > 0")
}
