package reference

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition declares one reference image.
type Definition struct {
	Name      string  `yaml:"name"`
	Path      string  `yaml:"path"`
	Threshold float64 `yaml:"threshold"`
	Scale     float64 `yaml:"scale,omitempty"`
}

// Manifest is the ordered list of declared references.
type Manifest struct {
	References []Definition `yaml:"references"`
}

// ParseManifest decodes a YAML manifest and rejects empty or duplicate names.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("reference manifest: %w", err)
	}
	seen := make(map[string]bool, len(m.References))
	for i, d := range m.References {
		if d.Name == "" {
			return nil, fmt.Errorf("reference manifest: entry %d has no name", i)
		}
		if d.Path == "" {
			return nil, fmt.Errorf("reference manifest: %s has no path", d.Name)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("reference manifest: duplicate name %q", d.Name)
		}
		seen[d.Name] = true
	}
	return &m, nil
}

// LoadManifest reads a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reference manifest: %w", err)
	}
	return ParseManifest(data)
}
