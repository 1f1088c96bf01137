package entity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Table is the declarative entity list loaded at boot.
type Table struct {
	Entities []Spec `yaml:"entities" json:"entities"`
}

// LoadTable reads an entity table from path. The format follows the
// extension: .yaml/.yml for YAML, .json/.jsonc for JSON with optional
// comments.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config
	if err != nil {
		return Table{}, fmt.Errorf("reading entity table: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".json", ".jsonc":
		return ParseJSON(data)
	default:
		return Table{}, fmt.Errorf("%w: %s", ErrTableFormat, filepath.Ext(path))
	}
}

// ParseYAML decodes a YAML entity table.
func ParseYAML(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("parsing entity table: %w", err)
	}
	return t, nil
}

// ParseJSON decodes a JSON entity table. Comments and trailing commas are
// stripped first.
func ParseJSON(data []byte) (Table, error) {
	var t Table
	if err := json.Unmarshal(jsonc.ToJSON(data), &t); err != nil {
		return Table{}, fmt.Errorf("parsing entity table: %w", err)
	}
	return t, nil
}
