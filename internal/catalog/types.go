package catalog

import "github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"

// ToolSpec is one catalog entry as written in YAML.
type ToolSpec struct {
	Name           string                 `yaml:"name"`
	Classification agent.Classification   `yaml:"classification"`
	Description    string                 `yaml:"description"`
	Chart          bool                   `yaml:"chart"` // results feed the chart side channel
	Parameters     map[string]interface{} `yaml:"parameters"`
}

// Definition converts the spec into the definition advertised to the model.
func (s *ToolSpec) Definition() agent.ToolDefinition {
	params := s.Parameters
	if params == nil {
		params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	return agent.ToolDefinition{
		Name:           s.Name,
		Description:    s.Description,
		Classification: s.Classification,
		Parameters:     params,
	}
}

type catalogFile struct {
	Tools []ToolSpec `yaml:"tools"`
}
