package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detectlab/corpusforge/internal/schema"
	"github.com/detectlab/corpusforge/internal/state"
	"github.com/detectlab/corpusforge/internal/table"
	"github.com/detectlab/corpusforge/internal/testutil"
	"github.com/detectlab/corpusforge/internal/unify"
)

// testRegistry lowers the primary schema's row floor so fixtures stay small.
func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	overlay := filepath.Join(t.TempDir(), "schemas.yaml")
	content := `schemas:
  - name: primary_competition_data
    min_rows: 1
    columns:
      - name: id
        type: integer
        nullable: false
        unique: true
      - name: prompt_id
        type: integer
        nullable: false
      - name: text
        type: text
        nullable: false
        min_length: 10
      - name: generated
        type: integer
        nullable: false
        allowed_values: ["0", "1"]
`
	require.NoError(t, os.WriteFile(overlay, []byte(content), 0o644))

	r := schema.NewRegistry()
	require.NoError(t, r.LoadOverlay(overlay))
	return r
}

func stageDataset(t *testing.T, dataDir, dataset, filename, content string) {
	t.Helper()
	dir := filepath.Join(dataDir, dataset)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644))
}

func essaysCSV(start, rows int, generated string) string {
	out := "id,prompt_id,text,generated\n"
	for i := 0; i < rows; i++ {
		out += fmt.Sprintf("%d,1,essay number %d with enough words to pass,%s\n", start+i, start+i, generated)
	}
	return out
}

func testStore(t *testing.T) *state.SQLiteStore {
	t.Helper()
	s := state.NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, s.Open(":memory:"))
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate())
	return s
}

type fakePublisher struct {
	name        string
	version     string
	dataPath    string
	sidecarPath string
	url         string
	err         error
}

func (f *fakePublisher) UploadDataset(_ context.Context, name, version, dataPath, sidecarPath string) (string, error) {
	f.name, f.version, f.dataPath, f.sidecarPath = name, version, dataPath, sidecarPath
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func TestVersion(t *testing.T) {
	at := time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC)

	assert.Equal(t, "v20240315_103045", New(Config{}).Version(at))
	assert.Equal(t, "release-20240315_103045", New(Config{VersionPrefix: "release-"}).Version(at))

	est := time.FixedZone("EST", -5*60*60)
	assert.Equal(t, "v20240315_103045", New(Config{}).Version(at.In(est)))
}

func TestRun_EndToEnd(t *testing.T) {
	dataDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "processed")
	stageDataset(t, dataDir, "train_essays", "train_essays.csv", essaysCSV(1, 2, "0"))
	stageDataset(t, dataDir, "train_extra", "data_train_v2.csv", essaysCSV(10, 2, "1"))
	stageDataset(t, dataDir, "train_bad", "train_broken.csv", essaysCSV(20, 2, "7"))

	store := testStore(t)
	pub := &fakePublisher{url: "gs://corpus/datasets/unified_text_corpus/v1"}
	p := New(Config{
		DataDir:   dataDir,
		OutputDir: outDir,
		Format:    "csv",
		Registry:  testRegistry(t),
		Store:     store,
		Publisher: pub,
		Logger:    testutil.NewTestLogger(t),
	})

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.SourceCount)
	assert.Equal(t, 4, report.RowCount)
	assert.Equal(t, filepath.Join(outDir, "unified_dataset_"+report.Version+".csv"), report.DataPath)
	assert.Equal(t, pub.url, report.PublishedURL)

	require.Len(t, report.Datasets, 3)
	byName := map[string]DatasetReport{}
	for _, d := range report.Datasets {
		byName[d.Dataset] = d
	}
	assert.True(t, byName["train_essays"].Merged)
	assert.True(t, byName["train_extra"].Merged)
	assert.False(t, byName["train_bad"].Merged)
	require.NotNil(t, byName["train_bad"].Result)
	assert.False(t, byName["train_bad"].Result.Valid)

	f, err := table.ReadCSV(report.DataPath)
	require.NoError(t, err)
	assert.Equal(t, 4, f.RowCount())
	want := append(unify.StandardColumns(), unify.ColOriginalID)
	assert.Equal(t, want, f.Columns())

	var meta unify.Metadata
	raw, err := os.ReadFile(report.SidecarPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "unified_text_corpus", meta.Name)
	assert.Equal(t, report.Version, meta.Version)
	assert.Equal(t, []string{"train_essays", "train_extra"}, meta.SourceDatasets)
	assert.Equal(t, 4, meta.RowCount)

	run, err := store.GetRun(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusCompleted, run.Status)
	assert.Equal(t, report.Version, run.Version)
	assert.Equal(t, 2, run.SourceCount)
	assert.Equal(t, 4, run.RowCount)
	require.NotNil(t, run.CompletedAt)

	artifacts, err := store.GetArtifactsForRun(report.RunID)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	formats := []string{artifacts[0].Format, artifacts[1].Format}
	assert.ElementsMatch(t, []string{"csv", "json"}, formats)
	for _, a := range artifacts {
		assert.Len(t, a.Checksum, 16)
		assert.Greater(t, a.Bytes, int64(0))
	}

	assert.Equal(t, "unified_text_corpus", pub.name)
	assert.Equal(t, report.Version, pub.version)
	assert.Equal(t, report.DataPath, pub.dataPath)
	assert.Equal(t, report.SidecarPath, pub.sidecarPath)
}

func TestRun_NoValidDatasets(t *testing.T) {
	dataDir := t.TempDir()
	stageDataset(t, dataDir, "train_bad", "train_broken.csv", essaysCSV(1, 2, "7"))

	store := testStore(t)
	p := New(Config{
		DataDir:   dataDir,
		OutputDir: t.TempDir(),
		Registry:  testRegistry(t),
		Store:     store,
	})

	report, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid datasets found after validation")

	run, err := store.GetRun(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusFailed, run.Status)
	assert.Equal(t, err.Error(), run.Error)
	require.NotNil(t, run.CompletedAt)
}

func TestRun_SkipValidation(t *testing.T) {
	dataDir := t.TempDir()
	stageDataset(t, dataDir, "train_essays", "train_essays.csv", essaysCSV(1, 2, "0"))
	stageDataset(t, dataDir, "train_bad", "train_broken.csv", essaysCSV(10, 2, "7"))

	p := New(Config{
		DataDir:        dataDir,
		OutputDir:      t.TempDir(),
		Format:         "csv",
		SkipValidation: true,
		Registry:       testRegistry(t),
	})

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.SourceCount)
	assert.Equal(t, 4, report.RowCount)
	for _, d := range report.Datasets {
		assert.True(t, d.Merged)
		assert.Nil(t, d.Result)
	}
	assert.Empty(t, report.RunID)
	assert.Empty(t, report.PublishedURL)
}

func TestRun_MissingDataDir(t *testing.T) {
	store := testStore(t)
	p := New(Config{
		DataDir:   filepath.Join(t.TempDir(), "absent"),
		OutputDir: t.TempDir(),
		Store:     store,
	})

	report, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading dataset directory")

	run, err := store.GetRun(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusFailed, run.Status)
}

func TestRun_PublisherError(t *testing.T) {
	dataDir := t.TempDir()
	stageDataset(t, dataDir, "train_essays", "train_essays.csv", essaysCSV(1, 2, "0"))

	store := testStore(t)
	p := New(Config{
		DataDir:   dataDir,
		OutputDir: t.TempDir(),
		Format:    "csv",
		Registry:  testRegistry(t),
		Store:     store,
		Publisher: &fakePublisher{err: errors.New("bucket unreachable")},
	})

	report, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publishing dataset")

	run, err := store.GetRun(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "bucket unreachable")
}
