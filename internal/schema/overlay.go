package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overlayFile is the on-disk shape of a schema overlay.
type overlayFile struct {
	Schemas []overlayDataset `yaml:"schemas"`
}

type overlayDataset struct {
	Name    string          `yaml:"name"`
	Columns []overlayColumn `yaml:"columns"`
	MinRows *int            `yaml:"min_rows"`
	MaxRows *int            `yaml:"max_rows"`
	Checks  []overlayCheck  `yaml:"checks"`
}

type overlayColumn struct {
	Name          string   `yaml:"name"`
	Type          string   `yaml:"type"`
	Nullable      *bool    `yaml:"nullable"`
	Unique        bool     `yaml:"unique"`
	MinLength     *int     `yaml:"min_length"`
	MaxLength     *int     `yaml:"max_length"`
	AllowedValues []string `yaml:"allowed_values"`
}

type overlayCheck struct {
	Name string `yaml:"name"`
	Expr string `yaml:"expr"`
}

// LoadOverlay merges dataset schemas from a YAML overlay file into the
// registry. Overlay datasets override built-ins that share a name.
func (r *Registry) LoadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read schema overlay: %w", err)
	}

	var overlay overlayFile
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse schema overlay %s: %w", path, err)
	}

	for _, od := range overlay.Schemas {
		ds, err := od.toDataset()
		if err != nil {
			return fmt.Errorf("invalid schema overlay %s: %w", path, err)
		}
		if err := ds.Validate(); err != nil {
			return fmt.Errorf("invalid schema overlay %s: %w", path, err)
		}
		r.datasets[ds.Name] = ds
	}
	return nil
}

func (od overlayDataset) toDataset() (Dataset, error) {
	ds := Dataset{
		Name:    od.Name,
		MinRows: 1,
		MaxRows: od.MaxRows,
	}
	if od.MinRows != nil {
		ds.MinRows = *od.MinRows
	}

	for _, oc := range od.Columns {
		col := Column{
			Name:          oc.Name,
			Nullable:      true,
			Unique:        oc.Unique,
			MinLength:     oc.MinLength,
			MaxLength:     oc.MaxLength,
			AllowedValues: oc.AllowedValues,
		}
		if oc.Nullable != nil {
			col.Nullable = *oc.Nullable
		}
		switch ColumnType(oc.Type) {
		case TypeInteger, TypeText:
			col.Type = ColumnType(oc.Type)
		case "":
			col.Type = TypeText
		default:
			return Dataset{}, fmt.Errorf("dataset %s: column %s has unknown type %q", od.Name, oc.Name, oc.Type)
		}
		ds.Columns = append(ds.Columns, col)
	}

	for _, ck := range od.Checks {
		if ck.Expr == "" {
			return Dataset{}, fmt.Errorf("dataset %s: check %q has no expression", od.Name, ck.Name)
		}
		ds.Checks = append(ds.Checks, Check{Name: ck.Name, Expr: ck.Expr})
	}
	return ds, nil
}
