package tools

import (
	"fmt"
	"sort"

	"github.com/miguelbenajes/HoldedConnector/internal/catalog"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/repositories"
)

// ToolRegistryBuilder binds catalog entries to executors.
//
// Usage:
//
//	registry, err := tools.NewToolRegistryBuilder(cat, cfg).
//	    WithLedgerTools(reader).
//	    WithChartTools().
//	    WithFileTools(conversations).
//	    WithHoldedTools(client).
//	    Build()
type ToolRegistryBuilder struct {
	catalog   *catalog.Catalog
	config    *ToolConfig
	executors map[string]Executor
}

// NewToolRegistryBuilder creates a builder. A nil config uses DefaultToolConfig.
func NewToolRegistryBuilder(cat *catalog.Catalog, config *ToolConfig) *ToolRegistryBuilder {
	if config == nil {
		config = DefaultToolConfig()
	}
	return &ToolRegistryBuilder{
		catalog:   cat,
		config:    config,
		executors: make(map[string]Executor),
	}
}

// WithExecutor binds a single executor by tool name.
func (b *ToolRegistryBuilder) WithExecutor(name string, exec Executor) *ToolRegistryBuilder {
	b.executors[name] = exec
	return b
}

func (b *ToolRegistryBuilder) withAll(executors map[string]Executor) *ToolRegistryBuilder {
	for name, exec := range executors {
		b.executors[name] = exec
	}
	return b
}

// WithLedgerTools adds the read-only ledger tools.
func (b *ToolRegistryBuilder) WithLedgerTools(reader repositories.LedgerReader) *ToolRegistryBuilder {
	return b.withAll(NewLedgerTools(reader, b.config).Executors())
}

// WithChartTools adds render_chart.
func (b *ToolRegistryBuilder) WithChartTools() *ToolRegistryBuilder {
	return b.withAll(ChartExecutors())
}

// WithFileTools adds list_files and upload_file. recorder receives upload audit turns.
func (b *ToolRegistryBuilder) WithFileTools(recorder TurnRecorder) *ToolRegistryBuilder {
	return b.withAll(NewFileTools(b.config, recorder).Executors())
}

// WithHoldedTools adds the mutating Holded tools.
func (b *ToolRegistryBuilder) WithHoldedTools(client HoldedWriter) *ToolRegistryBuilder {
	return b.withAll(NewHoldedTools(client, b.config).Executors())
}

// Missing lists catalog tools that have no executor bound yet.
func (b *ToolRegistryBuilder) Missing() []string {
	var missing []string
	for _, spec := range b.catalog.All() {
		if _, ok := b.executors[spec.Name]; !ok {
			missing = append(missing, spec.Name)
		}
	}
	return missing
}

// Build registers every catalog tool that has an executor, in catalog order.
// An executor without a catalog entry is an error.
func (b *ToolRegistryBuilder) Build() (*Registry, error) {
	var unknown []string
	for name := range b.executors {
		if _, ok := b.catalog.Get(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("executors without catalog entry: %v", unknown)
	}

	registry := NewRegistry()
	for _, spec := range b.catalog.All() {
		exec, ok := b.executors[spec.Name]
		if !ok {
			continue
		}
		registry.Register(&Tool{
			Definition: spec.Definition(),
			Chart:      spec.Chart,
			Executor:   exec,
		})
	}
	return registry, nil
}
