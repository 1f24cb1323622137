package agent

// Classification tells the loop whether a tool may run inline or must wait
// for user confirmation.
type Classification string

const (
	ReadOnly Classification = "read_only"
	Mutating Classification = "mutating"
)

// Valid reports whether c is a known classification.
func (c Classification) Valid() bool {
	return c == ReadOnly || c == Mutating
}

// ToolDefinition is the catalog entry advertised to the model.
// Parameters is a JSON schema object.
type ToolDefinition struct {
	Name           string                 `json:"name"`
	Description    string                 `json:"description"`
	Classification Classification         `json:"classification"`
	Parameters     map[string]interface{} `json:"parameters"`
}
