package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockExporter(t *testing.T) (*Exporter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Exporter{db: db, logger: New(nil).logger}, mock
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "defaults",
			cfg:  Config{Database: "corpus"},
			want: "host=localhost port=5432 dbname=corpus sslmode=disable",
		},
		{
			name: "full config",
			cfg: Config{
				Host: "db.internal", Port: 5433, Database: "corpus",
				Username: "loader", Password: "secret", SSLMode: "require",
			},
			want: "host=db.internal port=5433 dbname=corpus sslmode=require user=loader password=secret",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildDSN(tt.cfg))
		})
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"id", "id"},
		{"prompt id", "prompt_id"},
		{"original-id", "original_id"},
		{"user", `"user"`},
		{"Select", `"Select"`},
		{"col(1)", `"col(1)"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeIdentifier(tt.in), "sanitizeIdentifier(%q)", tt.in)
	}
}

func TestCreateTextTable(t *testing.T) {
	e, mock := mockExporter(t)

	mock.ExpectExec(`DROP TABLE IF EXISTS unified_corpus`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE unified_corpus \(id TEXT, prompt_id TEXT, text TEXT, generated TEXT, source TEXT\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := e.createTextTable(context.Background(), "unified_corpus", []string{"id", "prompt_id", "text", "generated", "source"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTextTable_QuotesReservedColumns(t *testing.T) {
	e, mock := mockExporter(t)

	mock.ExpectExec(`DROP TABLE IF EXISTS corpus`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE corpus \("user" TEXT, id TEXT\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := e.createTextTable(context.Background(), "corpus", []string{"user", "id"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportCSV_RunsDDLBeforeCopy(t *testing.T) {
	e, mock := mockExporter(t)

	path := filepath.Join(t.TempDir(), "corpus.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,text\n1,hello\n"), 0o644))

	mock.ExpectExec(`DROP TABLE IF EXISTS corpus`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE corpus \(id TEXT, text TEXT\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	// The mock connection cannot serve COPY, so the export stops there; the
	// DDL expectations above must already have run.
	err := e.ExportCSV(context.Background(), "corpus", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a pgx connection")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportCSV_NotConnected(t *testing.T) {
	e := New(nil)
	err := e.ExportCSV(context.Background(), "corpus", "missing.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not established")
}

func TestExportCSV_MissingFile(t *testing.T) {
	e, _ := mockExporter(t)
	err := e.ExportCSV(context.Background(), "corpus", filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open CSV file")
}
