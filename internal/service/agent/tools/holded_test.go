package tools

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/miguelbenajes/HoldedConnector/internal/holded"
)

// fakeHolded records writes.
type fakeHolded struct {
	mu       sync.Mutex
	safeMode bool
	statuses []string
	created  []holded.DocumentPayload
	sent     []holded.SendPayload
	contacts []holded.ContactPayload
}

func (f *fakeHolded) result(id string) *holded.WriteResult {
	return &holded.WriteResult{Status: 1, ID: id, SafeMode: f.safeMode}
}

func (f *fakeHolded) CreateDocument(_ context.Context, docType string, p holded.DocumentPayload) (*holded.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, p)
	return f.result(docType + "-1"), nil
}

func (f *fakeHolded) SendDocument(_ context.Context, _, _ string, p holded.SendPayload) (*holded.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, p)
	return f.result(""), nil
}

func (f *fakeHolded) CreateContact(_ context.Context, p holded.ContactPayload) (*holded.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts = append(f.contacts, p)
	return f.result("contact-1"), nil
}

func (f *fakeHolded) UpdateDocumentStatus(_ context.Context, docType, docID string, status int) (*holded.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, docType+"/"+docID+"="+StatusArg(status).Label())
	return f.result(""), nil
}

func (f *fakeHolded) SafeMode() bool { return f.safeMode }

func TestHoldedTools_Describe(t *testing.T) {
	executors := NewHoldedTools(&fakeHolded{}, DefaultToolConfig()).Executors()

	tests := []struct {
		tool string
		args string
		want string
	}{
		{"update_invoice_status", `{"doc_id":"123","status":"paid"}`, "Mark invoice 123 as paid"},
		{"update_invoice_status", `{"doc_id":123,"status":3}`, "Mark invoice 123 as paid"},
		{"update_invoice_status", `{"doc_type":"purchase","doc_id":"77","status":"cancelled"}`, "Update purchase 77 status to cancelled"},
		{"create_estimate", `{"contact_id":"c1","items":[{"name":"A","units":2,"price":600},{"name":"B","units":1,"price":34.5}]}`,
			"Create an estimate with 2 items (subtotal: 1,234.50 EUR)"},
		{"create_invoice", `{"contact_id":"c1","items":[{"name":"A","units":1,"price":10}]}`,
			"Create an invoice with 1 items (subtotal: 10.00 EUR)"},
		{"send_document", `{"doc_type":"invoice","doc_id":"9","emails":["a@b.com","c@d.com"]}`, "Send invoice 9 to a@b.com, c@d.com"},
		{"send_document", `{"doc_type":"estimate","doc_id":"9"}`, "Send estimate 9 to contact's email on file"},
		{"create_contact", `{"name":"Acme SL"}`, "Create contact: Acme SL"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			d, ok := executors[tt.tool].(Describer)
			if !ok {
				t.Fatalf("%s executor does not describe", tt.tool)
			}
			got, err := d.Describe(json.RawMessage(tt.args))
			if err != nil {
				t.Fatalf("Describe: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHoldedTools_ValidationErrors(t *testing.T) {
	executors := NewHoldedTools(&fakeHolded{}, DefaultToolConfig()).Executors()

	tests := []struct {
		name string
		tool string
		args string
	}{
		{"unknown status label", "update_invoice_status", `{"doc_id":"1","status":"lost"}`},
		{"status out of range", "update_invoice_status", `{"doc_id":"1","status":9}`},
		{"missing status", "update_invoice_status", `{"doc_id":"1"}`},
		{"estimate doc type", "update_invoice_status", `{"doc_type":"estimate","doc_id":"1","status":"paid"}`},
		{"no items", "create_invoice", `{"contact_id":"c1","items":[]}`},
		{"item without name", "create_invoice", `{"contact_id":"c1","items":[{"units":1,"price":1}]}`},
		{"bad date", "create_estimate", `{"contact_id":"c1","date":"01/02/2026","items":[{"name":"A","units":1,"price":1}]}`},
		{"bad contact type", "create_contact", `{"name":"X","type":"friend"}`},
		{"bad doc type", "send_document", `{"doc_type":"receipt","doc_id":"1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := executors[tt.tool].(ArgsValidator)
			if err := v.ValidateArgs(json.RawMessage(tt.args)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestHoldedTools_UpdateStatus(t *testing.T) {
	client := &fakeHolded{safeMode: true}
	exec := NewHoldedTools(client, DefaultToolConfig()).Executors()["update_invoice_status"]

	out, err := exec.Execute(context.Background(), json.RawMessage(`{"doc_id":"123","status":"paid"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	res := out.(*writeResult)
	if !res.Success || !res.SafeMode || res.Message != "Status updated to paid (dry run)" {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(client.statuses) != 1 || client.statuses[0] != "invoice/123=paid" {
		t.Errorf("statuses = %v", client.statuses)
	}
}

func TestHoldedTools_CreateEstimatePayload(t *testing.T) {
	client := &fakeHolded{}
	exec := NewHoldedTools(client, DefaultToolConfig()).Executors()["create_estimate"]

	_, err := exec.Execute(context.Background(), json.RawMessage(
		`{"contact_id":"c1","desc":"Q3","date":"2026-03-01","items":[{"name":"Audit","units":2,"price":500,"tax":21}]}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(client.created) != 1 {
		t.Fatalf("created %d documents", len(client.created))
	}
	p := client.created[0]
	if p.ContactID != "c1" || p.Desc != "Q3" || p.Date == 0 {
		t.Errorf("unexpected payload: %+v", p)
	}
	if len(p.Products) != 1 || p.Products[0].Subtotal != 500 || p.Products[0].Tax == nil || *p.Products[0].Tax != 21 {
		t.Errorf("unexpected products: %+v", p.Products)
	}
}
