package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name    string
		version string
		commit  string
		date    string
		wantOut []string
	}{
		{
			name:    "default version",
			version: "0.1.0",
			commit:  "none",
			date:    "unknown",
			wantOut: []string{"corpusforge v0.1.0", "Commit: none", "Built:  unknown"},
		},
		{
			name:    "release version",
			version: "1.2.3",
			commit:  "abc1234",
			date:    "2024-06-01",
			wantOut: []string{"corpusforge v1.2.3", "Commit: abc1234"},
		},
		{
			name:    "dev version",
			version: "dev",
			commit:  "none",
			date:    "unknown",
			wantOut: []string{"corpusforge vdev"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(tt.version, tt.commit, tt.date)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)

			if err := cmd.Execute(); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}

			output := buf.String()
			for _, want := range tt.wantOut {
				if !strings.Contains(output, want) {
					t.Errorf("output should contain %q, got: %s", want, output)
				}
			}
		})
	}
}

func TestVersionCommandMetadata(t *testing.T) {
	cmd := NewVersionCommand("test", "none", "unknown")

	if cmd.Use != "version" {
		t.Errorf("Use = %q, want %q", cmd.Use, "version")
	}

	if cmd.Short == "" {
		t.Error("Short should not be empty")
	}

	if cmd.Long == "" {
		t.Error("Long should not be empty")
	}
}
