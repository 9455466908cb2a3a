package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()

	ds, err := r.Lookup(PrimaryCompetitionData)
	require.NoError(t, err)
	assert.Equal(t, PrimaryCompetitionData, ds.Name)
	assert.Equal(t, 1000, ds.MinRows)
	assert.Equal(t, []string{"id", "prompt_id", "text", "generated"}, ds.ColumnNames())

	gen, ok := ds.Column("generated")
	require.True(t, ok)
	assert.Equal(t, TypeInteger, gen.Type)
	assert.False(t, gen.Nullable)
	assert.Equal(t, []string{"0", "1"}, gen.AllowedValues)
}

func TestRegistry_LookupUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Lookup("nonexistent")
	require.Error(t, err)

	var unknownErr *UnknownSchemaError
	require.True(t, errors.As(err, &unknownErr))
	assert.Equal(t, "nonexistent", unknownErr.Name)
	assert.Contains(t, unknownErr.Available, TrainPrompts)
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{DaigtV2AdditionalData, PrimaryCompetitionData, TrainPrompts}, r.Names())
}

func TestRegistry_InferName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
		found    bool
	}{
		{"train_essays", PrimaryCompetitionData, true},
		{"TRAIN_ESSAYS_v2", PrimaryCompetitionData, true},
		{"train_data", PrimaryCompetitionData, true},
		{"train_prompts", TrainPrompts, true},
		{"some_train_essay_prompts", TrainPrompts, true},
		{"daigt_v2_train", DaigtV2AdditionalData, true},
		{"daigt_train_set", PrimaryCompetitionData, true},
		{"daigt_external", DaigtV2AdditionalData, true},
		{"DAIGT_V2", DaigtV2AdditionalData, true},
		{"unrelated", "", false},
		{"training", "", false},
	}

	r := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, found := r.InferName(tt.filename)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDataset_Validate(t *testing.T) {
	tests := []struct {
		name    string
		dataset Dataset
		wantErr string
	}{
		{
			name: "valid",
			dataset: Dataset{
				Name:    "ok",
				Columns: []Column{{Name: "id", Type: TypeInteger}},
				MinRows: 1,
			},
		},
		{
			name:    "no columns",
			dataset: Dataset{Name: "empty"},
			wantErr: "no columns",
		},
		{
			name: "duplicate column",
			dataset: Dataset{
				Name:    "dup",
				Columns: []Column{{Name: "id", Type: TypeInteger}, {Name: "id", Type: TypeText}},
			},
			wantErr: "duplicate column",
		},
		{
			name: "bad type",
			dataset: Dataset{
				Name:    "badtype",
				Columns: []Column{{Name: "id", Type: "float"}},
			},
			wantErr: "unknown type",
		},
		{
			name: "length bounds inverted",
			dataset: Dataset{
				Name:    "len",
				Columns: []Column{{Name: "text", Type: TypeText, MinLength: intp(10), MaxLength: intp(5)}},
			},
			wantErr: "exceeds max_length",
		},
		{
			name: "max rows below min rows",
			dataset: Dataset{
				Name:    "rows",
				Columns: []Column{{Name: "id", Type: TypeInteger}},
				MinRows: 10,
				MaxRows: intp(5),
			},
			wantErr: "below min_rows",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dataset.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRegistry_LoadOverlay(t *testing.T) {
	overlay := `
schemas:
  - name: external_reviews
    min_rows: 5
    columns:
      - name: id
        type: integer
        nullable: false
        unique: true
      - name: review
        type: text
        min_length: 20
    checks:
      - name: has_rows
        expr: "row_count > 0"
  - name: train_prompts
    columns:
      - name: prompt_id
        type: integer
`
	path := filepath.Join(t.TempDir(), "schemas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(overlay), 0644))

	r := NewRegistry()
	require.NoError(t, r.LoadOverlay(path))

	ds, err := r.Lookup("external_reviews")
	require.NoError(t, err)
	assert.Equal(t, 5, ds.MinRows)
	require.Len(t, ds.Columns, 2)
	assert.False(t, ds.Columns[0].Nullable)
	assert.True(t, ds.Columns[1].Nullable)
	require.NotNil(t, ds.Columns[1].MinLength)
	assert.Equal(t, 20, *ds.Columns[1].MinLength)
	require.Len(t, ds.Checks, 1)
	assert.Equal(t, "row_count > 0", ds.Checks[0].Expr)

	// overlays override built-ins by name
	prompts, err := r.Lookup(TrainPrompts)
	require.NoError(t, err)
	assert.Len(t, prompts.Columns, 1)
	assert.Equal(t, 1, prompts.MinRows)
}

func TestRegistry_LoadOverlayInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "unknown column type",
			content: `
schemas:
  - name: broken
    columns:
      - name: id
        type: decimal
`,
			wantErr: "unknown type",
		},
		{
			name: "check without expression",
			content: `
schemas:
  - name: broken
    columns:
      - name: id
        type: integer
    checks:
      - name: empty
`,
			wantErr: "no expression",
		},
		{
			name:    "bad yaml",
			content: "schemas: [unclosed",
			wantErr: "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "schemas.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			r := NewRegistry()
			err := r.LoadOverlay(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegistry_LoadOverlayMissingFile(t *testing.T) {
	r := NewRegistry()
	err := r.LoadOverlay(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
