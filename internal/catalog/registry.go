// Package catalog loads the tool catalog embedded in config/tools.yaml.
package catalog

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Catalog holds tool specs in file order.
type Catalog struct {
	mu     sync.RWMutex
	specs  []ToolSpec
	byName map[string]int
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	data, err := configFiles.ReadFile("config/tools.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read tool catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML. Names must be unique and every entry
// needs a valid classification.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool catalog: %w", err)
	}

	c := &Catalog{byName: make(map[string]int, len(file.Tools))}
	for _, spec := range file.Tools {
		if spec.Name == "" {
			return nil, fmt.Errorf("tool catalog entry %d has no name", len(c.specs))
		}
		if _, dup := c.byName[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q in catalog", spec.Name)
		}
		if !spec.Classification.Valid() {
			return nil, fmt.Errorf("tool %q has invalid classification %q", spec.Name, spec.Classification)
		}
		c.byName[spec.Name] = len(c.specs)
		c.specs = append(c.specs, spec)
	}
	return c, nil
}

// Get returns the spec for a tool name.
func (c *Catalog) Get(name string) (*ToolSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	spec := c.specs[i]
	return &spec, true
}

// All returns every spec in catalog order.
func (c *Catalog) All() []ToolSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ToolSpec, len(c.specs))
	copy(out, c.specs)
	return out
}
