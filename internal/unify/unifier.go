// Package unify merges heterogeneous source datasets into a single corpus
// with a fixed column shape suitable for downstream model training.
package unify

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/detectlab/corpusforge/internal/schema"
	"github.com/detectlab/corpusforge/internal/table"
)

// Standard column names every unified dataset carries.
const (
	ColID        = "id"
	ColPromptID  = "prompt_id"
	ColText      = "text"
	ColGenerated = "generated"
	ColSource    = "source"

	// ColOriginalID holds the pre-disambiguation id of each row.
	ColOriginalID = "original_id"
)

var standardColumns = []string{ColID, ColPromptID, ColText, ColGenerated, ColSource}

// StandardColumns returns the standard column names in order.
func StandardColumns() []string {
	out := make([]string, len(standardColumns))
	copy(out, standardColumns)
	return out
}

// Source pairs a loaded dataset with the name it was loaded under. The name
// selects the column mapping and fills the source column of rows that lack one.
type Source struct {
	Name  string
	Frame *table.Frame
}

// Metadata describes a saved unified dataset. It is written as a JSON
// sidecar next to the dataset file.
type Metadata struct {
	Name           string    `json:"name"`
	SourceDatasets []string  `json:"source_datasets"`
	RowCount       int       `json:"row_count"`
	ColumnCount    int       `json:"column_count"`
	Version        string    `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
}

// UnsupportedFormatError reports an output format the unifier cannot write.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported output format %q (supported: csv, parquet)", e.Format)
}

// Unifier standardizes source datasets and merges them into one frame.
type Unifier struct {
	mappings map[string]map[string]string
	logger   *slog.Logger
}

// New returns a Unifier with the built-in source column mappings.
func New(logger *slog.Logger) *Unifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Unifier{
		mappings: builtinMappings(),
		logger:   logger,
	}
}

// builtinMappings maps each known source's columns onto the standard names,
// keyed by standard column.
func builtinMappings() map[string]map[string]string {
	return map[string]map[string]string{
		schema.PrimaryCompetitionData: {
			ColID:        "id",
			ColPromptID:  "prompt_id",
			ColText:      "text",
			ColGenerated: "generated",
		},
		schema.DaigtV2AdditionalData: {
			ColID:        "id",
			ColPromptID:  "prompt_id",
			ColText:      "text",
			ColGenerated: "generated",
			ColSource:    "source",
		},
	}
}

func identityMapping() map[string]string {
	m := make(map[string]string, len(standardColumns))
	for _, col := range standardColumns {
		m[col] = col
	}
	return m
}

// Standardize reshapes a source dataset onto the standard column set.
// Mapped columns are copied under their standard names and everything else is
// dropped. Standard columns the source lacks are appended: source is filled
// with the dataset name, the rest with nulls. Values are then coerced, with
// id, prompt_id, text and source becoming strings and generated becoming an
// integer where missing or non-numeric values count as 0.
//
// Sources without a registered mapping are taken to already use the standard
// column names.
func (u *Unifier) Standardize(f *table.Frame, sourceName string) (*table.Frame, error) {
	mapping, ok := u.mappings[sourceName]
	if !ok {
		u.logger.Debug("no column mapping registered, using standard column names", "dataset", sourceName)
		mapping = identityMapping()
	}

	out := table.New()
	for _, std := range standardColumns {
		src, mapped := mapping[std]
		if !mapped {
			continue
		}
		if !f.HasColumn(src) {
			u.logger.Warn("source column not found", "dataset", sourceName, "column", src)
			continue
		}
		values := append([]any(nil), f.Column(src)...)
		if err := out.SetColumn(std, values); err != nil {
			return nil, fmt.Errorf("standardizing %s: %w", sourceName, err)
		}
	}

	for _, std := range standardColumns {
		if out.HasColumn(std) {
			continue
		}
		if std == ColSource {
			out.AddColumn(ColSource, sourceName)
		} else {
			out.AddColumn(std, nil)
		}
	}

	if err := coerceTypes(out); err != nil {
		return nil, fmt.Errorf("standardizing %s: %w", sourceName, err)
	}

	if allNull(out.Column(ColSource)) {
		fill := make([]any, out.RowCount())
		for i := range fill {
			fill[i] = sourceName
		}
		if err := out.SetColumn(ColSource, fill); err != nil {
			return nil, fmt.Errorf("standardizing %s: %w", sourceName, err)
		}
	}

	u.logger.Info("standardized dataset", "dataset", sourceName, "rows", out.RowCount())
	return out, nil
}

// coerceTypes normalizes the standard columns in place: text-like columns to
// strings and generated to an integer. Nulls in text-like columns stay null.
func coerceTypes(f *table.Frame) error {
	for _, col := range []string{ColID, ColPromptID, ColText, ColSource} {
		values := append([]any(nil), f.Column(col)...)
		for i, v := range values {
			if v == nil {
				continue
			}
			if _, isString := v.(string); isString {
				continue
			}
			values[i] = table.FormatValue(v)
		}
		if err := f.SetColumn(col, values); err != nil {
			return err
		}
	}

	values := append([]any(nil), f.Column(ColGenerated)...)
	for i, v := range values {
		values[i] = coerceGenerated(v)
	}
	return f.SetColumn(ColGenerated, values)
}

// coerceGenerated maps a label cell onto 0 or 1 territory: integers pass
// through, floats truncate, anything unparseable counts as human-written.
func coerceGenerated(v any) int64 {
	switch t := v.(type) {
	case nil:
		return 0
	case bool:
		if t {
			return 1
		}
		return 0
	}
	if n, ok := table.ToInt(v); ok {
		return n
	}
	switch t := v.(type) {
	case float64:
		return int64(t)
	case float32:
		return int64(t)
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return int64(parsed)
		}
	}
	return 0
}

func allNull(values []any) bool {
	for _, v := range values {
		if v != nil {
			return false
		}
	}
	return true
}

// ResolveIDConflicts rewrites ids so rows from different datasets cannot
// collide after merging. Each frame's ids gain a two-digit sequence prefix
// ("01_", "02_", ...) and the pre-rewrite ids are kept in original_id. The
// sequence advances for every frame, with or without an id column, so
// prefixes identify the frame's position in the input.
func (u *Unifier) ResolveIDConflicts(frames []*table.Frame) []*table.Frame {
	resolved := make([]*table.Frame, 0, len(frames))
	for seq, f := range frames {
		out := f.Clone()
		if out.HasColumn(ColID) {
			original := append([]any(nil), out.Column(ColID)...)
			prefixed := make([]any, len(original))
			for i, v := range original {
				prefixed[i] = fmt.Sprintf("%02d_%s", seq+1, table.FormatValue(v))
			}
			// Both value counts equal the clone's row count.
			_ = out.SetColumn(ColOriginalID, original)
			_ = out.SetColumn(ColID, prefixed)
		}
		resolved = append(resolved, out)
	}
	return resolved
}

// Merge standardizes every source, disambiguates ids, concatenates the
// results and drops rows whose text exactly duplicates an earlier row's.
// The merged frame orders the standard columns first.
func (u *Unifier) Merge(sources []Source) (*table.Frame, error) {
	if len(sources) == 0 {
		return nil, errors.New("no datasets provided for merging")
	}

	standardized := make([]*table.Frame, 0, len(sources))
	for _, src := range sources {
		f, err := u.Standardize(src.Frame, src.Name)
		if err != nil {
			return nil, err
		}
		standardized = append(standardized, f)
	}

	merged := table.Concat(u.ResolveIDConflicts(standardized)...)

	before := merged.RowCount()
	merged = dropDuplicateTexts(merged)
	if dropped := before - merged.RowCount(); dropped > 0 {
		u.logger.Info("removed duplicate texts", "count", dropped)
	}

	merged = merged.ReorderColumns(standardColumns)
	u.logger.Info("merged datasets", "datasets", len(sources), "rows", merged.RowCount())
	return merged, nil
}

// dropDuplicateTexts keeps the first row for each distinct text value.
// Null texts count as one distinct value.
func dropDuplicateTexts(f *table.Frame) *table.Frame {
	if !f.HasColumn(ColText) {
		return f
	}
	seen := make(map[string]struct{}, f.RowCount())
	seenNull := false
	keep := make([]int, 0, f.RowCount())
	for i, v := range f.Column(ColText) {
		if v == nil {
			if seenNull {
				continue
			}
			seenNull = true
			keep = append(keep, i)
			continue
		}
		key := table.FormatValue(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, i)
	}
	if len(keep) == f.RowCount() {
		return f
	}
	return f.SelectRows(keep)
}

// BuildMetadata describes a unified dataset for its JSON sidecar.
func BuildMetadata(f *table.Frame, sourceDatasets []string, version string) Metadata {
	return Metadata{
		Name:           "unified_text_corpus",
		SourceDatasets: append([]string(nil), sourceDatasets...),
		RowCount:       f.RowCount(),
		ColumnCount:    f.ColumnCount(),
		Version:        version,
		CreatedAt:      time.Now().UTC(),
	}
}
