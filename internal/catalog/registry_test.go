package catalog

import (
	"strings"
	"testing"

	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
)

func TestLoad_EmbeddedCatalog(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	mutating := map[string]bool{
		"create_estimate":       true,
		"create_invoice":        true,
		"send_document":         true,
		"create_contact":        true,
		"update_invoice_status": true,
		"upload_file":           true,
	}

	specs := c.All()
	if len(specs) != 16 {
		t.Errorf("catalog has %d tools, want 16", len(specs))
	}
	for _, spec := range specs {
		want := agent.ReadOnly
		if mutating[spec.Name] {
			want = agent.Mutating
		}
		if spec.Classification != want {
			t.Errorf("%s classification = %s, want %s", spec.Name, spec.Classification, want)
		}
		if spec.Parameters["type"] != "object" {
			t.Errorf("%s parameters type = %v, want object", spec.Name, spec.Parameters["type"])
		}
	}

	chart, ok := c.Get("render_chart")
	if !ok || !chart.Chart {
		t.Error("render_chart should be chart-tagged")
	}

	// The YAML anchor for line items must resolve in both invoice tools.
	inv, _ := c.Get("create_invoice")
	props := inv.Parameters["properties"].(map[string]interface{})
	items, ok := props["items"].(map[string]interface{})
	if !ok || items["type"] != "array" {
		t.Errorf("create_invoice items = %#v, want array schema", props["items"])
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "duplicate name",
			yaml:    "tools:\n  - {name: a, classification: read_only}\n  - {name: a, classification: read_only}\n",
			wantErr: "duplicate",
		},
		{
			name:    "bad classification",
			yaml:    "tools:\n  - {name: a, classification: sometimes}\n",
			wantErr: "invalid classification",
		},
		{
			name:    "missing name",
			yaml:    "tools:\n  - {classification: mutating}\n",
			wantErr: "no name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
