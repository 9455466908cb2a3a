// Package state tracks pipeline run history in SQLite: one row per run plus
// the artifacts each run produced.
package state

import "time"

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run records one pipeline execution.
type Run struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	Version     string     `json:"version"`
	SourceCount int        `json:"source_count"`
	RowCount    int        `json:"row_count"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Artifact records one file a run wrote: the unified dataset, its metadata
// sidecar, or an exported copy.
type Artifact struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Path      string    `json:"path"`
	Format    string    `json:"format"`
	Bytes     int64     `json:"bytes"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence contract for run history.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	CreateRun(version string) (*Run, error)
	CompleteRun(id string, status RunStatus, sourceCount, rowCount int, errMsg string) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	CreateArtifact(runID, path, format, checksum string, bytes int64) (*Artifact, error)
	GetArtifactsForRun(runID string) ([]*Artifact, error)
}
