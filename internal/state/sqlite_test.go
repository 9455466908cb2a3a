package state

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(nil)
	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)

	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestSQLiteStore_OpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	store := NewSQLiteStore(nil)

	if err := store.Open(path); err != nil {
		t.Fatalf("failed to open file store: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if _, err := store.CreateRun("v20240101_120000"); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{"runs", "artifacts"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		if err != nil {
			t.Errorf("table %s does not exist: %v", table, err)
			continue
		}
		rows.Close()
	}

	version, err := store.GetMigrationVersion()
	if err != nil {
		t.Fatalf("failed to get migration version: %v", err)
	}
	if version < 1 {
		t.Errorf("expected migration version >= 1, got %d", version)
	}

	// Running migrations again is a no-op.
	if err := store.Migrate(); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)

	if _, err := store.CreateRun("v1"); err == nil {
		t.Error("CreateRun should fail before Open")
	}
	if _, err := store.GetRun("x"); err == nil {
		t.Error("GetRun should fail before Open")
	}
	if err := store.Migrate(); err == nil {
		t.Error("Migrate should fail before Open")
	}
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.CreateRun("v20240101_120000")
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if run.ID == "" {
		t.Error("run ID should not be empty")
	}
	if run.Status != RunStatusRunning {
		t.Errorf("expected status %q, got %q", RunStatusRunning, run.Status)
	}
	if run.StartedAt.IsZero() {
		t.Error("run StartedAt should be set")
	}

	if err := store.CompleteRun(run.ID, RunStatusCompleted, 2, 1500, ""); err != nil {
		t.Fatalf("failed to complete run: %v", err)
	}

	got, err := store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.Status != RunStatusCompleted {
		t.Errorf("expected status %q, got %q", RunStatusCompleted, got.Status)
	}
	if got.SourceCount != 2 || got.RowCount != 1500 {
		t.Errorf("expected counts 2/1500, got %d/%d", got.SourceCount, got.RowCount)
	}
	if got.CompletedAt == nil {
		t.Error("completed run should have CompletedAt set")
	}
	if got.Error != "" {
		t.Errorf("expected empty error, got %q", got.Error)
	}
	if got.Version != "v20240101_120000" {
		t.Errorf("unexpected version %q", got.Version)
	}
}

func TestSQLiteStore_FailedRunKeepsError(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.CreateRun("v1")
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if err := store.CompleteRun(run.ID, RunStatusFailed, 0, 0, "no datasets provided for merging"); err != nil {
		t.Fatalf("failed to complete run: %v", err)
	}

	got, err := store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.Status != RunStatusFailed {
		t.Errorf("expected status %q, got %q", RunStatusFailed, got.Status)
	}
	if !strings.Contains(got.Error, "no datasets") {
		t.Errorf("expected error message preserved, got %q", got.Error)
	}
}

func TestSQLiteStore_GetRunNotFound(t *testing.T) {
	store := setupTestStore(t)

	if _, err := store.GetRun("missing"); err == nil {
		t.Error("expected error for missing run")
	}
	if err := store.CompleteRun("missing", RunStatusCompleted, 0, 0, ""); err == nil {
		t.Error("expected error completing missing run")
	}
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := setupTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := store.CreateRun("v1")
		if err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		ids = append(ids, run.ID)
		// started_at orders the listing
		time.Sleep(5 * time.Millisecond)
	}

	runs, err := store.ListRuns(0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != ids[2] {
		t.Errorf("expected newest run first, got %s", runs[0].ID)
	}

	limited, err := store.ListRuns(2)
	if err != nil {
		t.Fatalf("failed to list runs with limit: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 runs, got %d", len(limited))
	}
}

func TestSQLiteStore_Artifacts(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.CreateRun("v1")
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	data, err := store.CreateArtifact(run.ID, "data/processed/unified_dataset_v1.parquet", "parquet", "abc123", 2048)
	if err != nil {
		t.Fatalf("failed to create artifact: %v", err)
	}
	if data.ID == "" {
		t.Error("artifact ID should not be empty")
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := store.CreateArtifact(run.ID, "data/processed/unified_dataset_v1.json", "json", "", 128); err != nil {
		t.Fatalf("failed to create sidecar artifact: %v", err)
	}

	artifacts, err := store.GetArtifactsForRun(run.ID)
	if err != nil {
		t.Fatalf("failed to get artifacts: %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(artifacts))
	}
	if artifacts[0].Format != "parquet" || artifacts[1].Format != "json" {
		t.Errorf("unexpected artifact order: %s, %s", artifacts[0].Format, artifacts[1].Format)
	}
	if artifacts[0].Checksum != "abc123" {
		t.Errorf("expected checksum recorded, got %q", artifacts[0].Checksum)
	}
	if artifacts[0].Bytes != 2048 {
		t.Errorf("expected size recorded, got %d", artifacts[0].Bytes)
	}
}

func TestSQLiteStore_ArtifactRequiresRun(t *testing.T) {
	store := setupTestStore(t)

	if _, err := store.CreateArtifact("missing-run", "x.parquet", "parquet", "", 0); err == nil {
		t.Error("expected foreign key violation for unknown run")
	}
}
