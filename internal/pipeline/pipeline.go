// Package pipeline orchestrates the full corpus build: validate the staged
// datasets, unify the valid ones, save the artifact pair, record the run and
// optionally publish.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/detectlab/corpusforge/internal/schema"
	"github.com/detectlab/corpusforge/internal/state"
	"github.com/detectlab/corpusforge/internal/unify"
	"github.com/detectlab/corpusforge/internal/validate"
)

// Publisher pushes a finished dataset version to remote storage.
type Publisher interface {
	UploadDataset(ctx context.Context, name, version, dataPath, sidecarPath string) (string, error)
}

// Config wires the pipeline's collaborators and knobs. Store and Publisher
// are optional; a nil Store skips run recording and a nil Publisher skips
// publishing.
type Config struct {
	DataDir        string
	OutputDir      string
	Format         string
	VersionPrefix  string
	SkipValidation bool
	Registry       *schema.Registry
	Store          state.Store
	Publisher      Publisher
	Logger         *slog.Logger
}

// DatasetReport is one staged dataset's fate within a run.
type DatasetReport struct {
	Dataset string           `json:"dataset"`
	Result  *validate.Result `json:"result,omitempty"`
	Merged  bool             `json:"merged"`
}

// Report summarizes a pipeline run.
type Report struct {
	RunID        string          `json:"run_id,omitempty"`
	Version      string          `json:"version"`
	Datasets     []DatasetReport `json:"datasets"`
	SourceCount  int             `json:"source_count"`
	RowCount     int             `json:"row_count"`
	DataPath     string          `json:"data_path"`
	SidecarPath  string          `json:"sidecar_path"`
	PublishedURL string          `json:"published_url,omitempty"`
}

// Pipeline runs the corpus build end to end. The run is sequential; only
// publishing fans out internally.
type Pipeline struct {
	cfg       Config
	unifier   *unify.Unifier
	validator *validate.Validator
	logger    *slog.Logger
}

// New creates a Pipeline, defaulting the format to parquet and the version
// prefix to "v".
func New(cfg Config) *Pipeline {
	if cfg.Format == "" {
		cfg.Format = "parquet"
	}
	if cfg.VersionPrefix == "" {
		cfg.VersionPrefix = "v"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Registry == nil {
		cfg.Registry = schema.NewRegistry()
	}
	return &Pipeline{
		cfg:       cfg,
		unifier:   unify.New(cfg.Logger),
		validator: validate.New(cfg.Registry, cfg.Logger),
		logger:    cfg.Logger,
	}
}

// Version renders a dataset version string for the UTC instant now.
func Version(prefix string, now time.Time) string {
	return prefix + now.UTC().Format("20060102_150405")
}

// Version renders the dataset version for a run started at now.
func (p *Pipeline) Version(now time.Time) string {
	return Version(p.cfg.VersionPrefix, now)
}

// Run executes the pipeline. Invalid datasets are excluded from the merge and
// reported; zero mergeable datasets fails the run.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	version := p.Version(time.Now())
	report := &Report{Version: version}
	p.logger.Info("starting pipeline run", "version", version, "data_dir", p.cfg.DataDir)

	var run *state.Run
	if p.cfg.Store != nil {
		created, err := p.cfg.Store.CreateRun(version)
		if err != nil {
			return nil, fmt.Errorf("recording run start: %w", err)
		}
		run = created
		report.RunID = run.ID
	}

	sources, err := p.unifier.LoadFromDirectory(p.cfg.DataDir)
	if err != nil {
		return report, p.fail(run, report, err)
	}

	merge := make([]unify.Source, 0, len(sources))
	for _, src := range sources {
		rep := DatasetReport{Dataset: src.Name}
		if p.cfg.SkipValidation {
			rep.Merged = true
			merge = append(merge, src)
			report.Datasets = append(report.Datasets, rep)
			continue
		}

		result := p.validator.ValidateNamed(src.Frame, src.Name)
		rep.Result = result
		if result.Valid {
			rep.Merged = true
			merge = append(merge, src)
		} else {
			p.logger.Warn("excluding invalid dataset",
				"dataset", src.Name, "errors", len(result.Errors))
		}
		report.Datasets = append(report.Datasets, rep)
	}

	if len(merge) == 0 {
		return report, p.fail(run, report, fmt.Errorf("no valid datasets found after validation"))
	}

	merged, err := p.unifier.Merge(merge)
	if err != nil {
		return report, p.fail(run, report, err)
	}
	report.SourceCount = len(merge)
	report.RowCount = merged.RowCount()

	target := filepath.Join(p.cfg.OutputDir, "unified_dataset_"+version)
	dataPath, err := p.unifier.Save(merged, target, p.cfg.Format)
	if err != nil {
		return report, p.fail(run, report, err)
	}
	report.DataPath = dataPath

	names := make([]string, 0, len(merge))
	for _, src := range merge {
		names = append(names, src.Name)
	}
	meta := unify.BuildMetadata(merged, names, version)
	sidecarPath, err := unify.WriteMetadataSidecar(meta, dataPath)
	if err != nil {
		return report, p.fail(run, report, err)
	}
	report.SidecarPath = sidecarPath

	if p.cfg.Store != nil {
		if err := p.recordArtifacts(run.ID, report); err != nil {
			return report, p.fail(run, report, err)
		}
	}

	if p.cfg.Publisher != nil {
		url, err := p.cfg.Publisher.UploadDataset(ctx, meta.Name, version, dataPath, sidecarPath)
		if err != nil {
			return report, p.fail(run, report, fmt.Errorf("publishing dataset: %w", err))
		}
		report.PublishedURL = url
	}

	if p.cfg.Store != nil {
		if err := p.cfg.Store.CompleteRun(run.ID, state.RunStatusCompleted, report.SourceCount, report.RowCount, ""); err != nil {
			return report, fmt.Errorf("recording run completion: %w", err)
		}
	}

	p.logger.Info("pipeline run completed",
		"version", version, "datasets", report.SourceCount, "rows", report.RowCount, "path", dataPath)
	return report, nil
}

// fail marks the recorded run as failed before surfacing the error.
func (p *Pipeline) fail(run *state.Run, report *Report, err error) error {
	if p.cfg.Store != nil && run != nil {
		cerr := p.cfg.Store.CompleteRun(run.ID, state.RunStatusFailed, report.SourceCount, report.RowCount, err.Error())
		if cerr != nil {
			p.logger.Warn("failed to record run failure", "run", run.ID, "error", cerr)
		}
	}
	return err
}

// recordArtifacts stores the data file and sidecar with their checksums.
func (p *Pipeline) recordArtifacts(runID string, report *Report) error {
	for _, artifact := range []struct {
		path   string
		format string
	}{
		{report.DataPath, p.cfg.Format},
		{report.SidecarPath, "json"},
	} {
		checksum, size, err := checksumFile(artifact.path)
		if err != nil {
			return fmt.Errorf("checksumming %s: %w", artifact.path, err)
		}
		if _, err := p.cfg.Store.CreateArtifact(runID, artifact.path, artifact.format, checksum, size); err != nil {
			return err
		}
	}
	return nil
}

// checksumFile returns the xxh3 digest and size of a file.
func checksumFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := xxh3.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("%016x", h.Sum64()), size, nil
}
