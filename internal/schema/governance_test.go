//go:build governance

package schema_test

import (
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

const modulePath = "github.com/detectlab/corpusforge"

// =============================================================================
// LAYERING TEST - Domain packages must not reach into the CLI
// =============================================================================

// TestGovernance_DomainDoesNotImportCLI verifies that no domain package under
// internal/ imports the CLI layer. The dependency arrow points one way: the
// CLI composes domain packages, never the reverse.
func TestGovernance_DomainDoesNotImportCLI(t *testing.T) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedImports,
	}
	pkgs, err := packages.Load(cfg, modulePath+"/internal/...")
	if err != nil {
		t.Fatalf("Failed to load packages: %v", err)
	}

	cliPrefix := modulePath + "/internal/cli"

	for _, p := range pkgs {
		if strings.HasPrefix(p.PkgPath, cliPrefix) || strings.HasSuffix(p.PkgPath, "_test") {
			continue
		}

		for importPath := range p.Imports {
			if strings.HasPrefix(importPath, cliPrefix) {
				t.Errorf("LAYERING VIOLATION: '%s' imports '%s'.\n"+
					"   Fix: Move the shared code out of internal/cli into a domain package.",
					strings.TrimPrefix(p.PkgPath, modulePath+"/"), strings.TrimPrefix(importPath, modulePath+"/"))
			}
		}
	}
}

// TestGovernance_CobraStaysInCLI verifies that cobra and pflag are only
// imported by the CLI layer. Domain packages take plain arguments and return
// errors; flag parsing happens at the edge.
func TestGovernance_CobraStaysInCLI(t *testing.T) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedImports,
	}
	pkgs, err := packages.Load(cfg, modulePath+"/internal/...")
	if err != nil {
		t.Fatalf("Failed to load packages: %v", err)
	}

	cliPrefix := modulePath + "/internal/cli"
	forbidden := []string{
		"github.com/spf13/cobra",
		"github.com/spf13/pflag",
	}

	for _, p := range pkgs {
		if strings.HasPrefix(p.PkgPath, cliPrefix) || strings.HasSuffix(p.PkgPath, "_test") {
			continue
		}

		for importPath := range p.Imports {
			for _, banned := range forbidden {
				if importPath == banned {
					t.Errorf("LAYERING VIOLATION: '%s' imports '%s'.\n"+
						"   Fix: Parse flags in internal/cli and pass plain values down.",
						strings.TrimPrefix(p.PkgPath, modulePath+"/"), banned)
				}
			}
		}
	}
}
