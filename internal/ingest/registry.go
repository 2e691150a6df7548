package ingest

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/core4ce/h5n1-tracker/internal/models"
)

//go:embed config/datasets.yaml
var datasetsYAML embed.FS

// Registry holds the configuration for all ingestible datasets.
type Registry struct {
	Datasets []DatasetConfig `yaml:"datasets"`
}

// DatasetConfig defines a single CSV dataset.
type DatasetConfig struct {
	ID     string            `yaml:"id"`
	Name   string            `yaml:"name"`
	File   string            `yaml:"file"`
	Source models.DataSource `yaml:"source"`
}

// LoadRegistry reads the embedded datasets.yaml, falling back to the given
// path for local overrides. Environment variables in the YAML (e.g.
// ${DATA_DIR}) are expanded before parsing.
func LoadRegistry(path string) (*Registry, error) {
	data, err := datasetsYAML.ReadFile("config/datasets.yaml")
	if err != nil {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Get returns the config for a dataset id.
func (r *Registry) Get(id string) (DatasetConfig, error) {
	for _, d := range r.Datasets {
		if d.ID == id {
			return d, nil
		}
	}
	return DatasetConfig{}, fmt.Errorf("unknown dataset %q", id)
}
