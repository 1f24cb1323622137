package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/miguelbenajes/HoldedConnector/internal/domain"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/ledger"
)

// fakeLedger serves canned data and records the ranges it was asked for.
type fakeLedger struct {
	queries  []string
	ranges   []ledger.Range
	totals   map[string]ledger.PeriodTotals // keyed by From date
	overdue  map[ledger.DocType][]ledger.Row
	payments []ledger.Row
}

func (f *fakeLedger) Query(_ context.Context, q string, maxRows int) ([]ledger.Row, error) {
	f.queries = append(f.queries, q)
	return []ledger.Row{{"n": int64(maxRows)}}, nil
}

func (f *fakeLedger) SearchContacts(context.Context, string, int) ([]ledger.Row, error) {
	return []ledger.Row{{"id": "c1", "name": "Acme"}}, nil
}

func (f *fakeLedger) ContactHistory(context.Context, string) (ledger.Row, error) {
	return ledger.Row{"invoices": ledger.Row{"cnt": 2, "total": 300.0}}, nil
}

func (f *fakeLedger) SearchProducts(context.Context, string, int) ([]ledger.Row, error) {
	return []ledger.Row{{"id": "p1", "name": "Widget"}}, nil
}

func (f *fakeLedger) ProductPriceHistory(context.Context, string) (ledger.Row, ledger.Row, error) {
	return ledger.Row{"avg_sale_price": 15.0}, ledger.Row{"avg_purchase_price": 10.0}, nil
}

func (f *fakeLedger) PeriodTotals(_ context.Context, r ledger.Range) (ledger.PeriodTotals, error) {
	f.ranges = append(f.ranges, r)
	return f.totals[r.From.Format(dateLayout)], nil
}

func (f *fakeLedger) TopClients(context.Context, ledger.Range, int) ([]ledger.Row, error) {
	return nil, nil
}

func (f *fakeLedger) MonthlyIncome(context.Context, ledger.Range) ([]ledger.MonthTotal, error) {
	return nil, nil
}

func (f *fakeLedger) MonthlyExpenses(context.Context, ledger.Range) ([]ledger.MonthTotal, error) {
	return nil, nil
}

func (f *fakeLedger) Document(_ context.Context, _ ledger.DocType, id string) (ledger.Row, []ledger.Row, error) {
	if id != "1" {
		return nil, nil, domain.ErrNotFound
	}
	return ledger.Row{"id": "1"}, []ledger.Row{{"name": "line"}}, nil
}

func (f *fakeLedger) OverdueDocuments(_ context.Context, docType ledger.DocType, _ float64) ([]ledger.Row, error) {
	return f.overdue[docType], nil
}

func (f *fakeLedger) Payments(_ context.Context, r ledger.Range, _ string) ([]ledger.Row, error) {
	f.ranges = append(f.ranges, r)
	return f.payments, nil
}

func (f *fakeLedger) Stats(context.Context) (ledger.Stats, error) {
	return ledger.Stats{}, nil
}

func newLedgerRegistry(t *testing.T, reader *fakeLedger, now time.Time) *Registry {
	t.Helper()
	cfg := DefaultToolConfig()
	cfg.Now = func() time.Time { return now }

	r := NewRegistry()
	for name, exec := range NewLedgerTools(reader, cfg).Executors() {
		r.Register(&Tool{Definition: agent.ToolDefinition{Name: name, Classification: agent.ReadOnly}, Executor: exec})
	}
	return r
}

func execute(t *testing.T, r *Registry, name, args string) ToolResult {
	t.Helper()
	res, err := r.Execute(context.Background(), agent.ToolCall{ID: "1", Name: name, Arguments: json.RawMessage(args)})
	if err != nil {
		t.Fatalf("Execute(%s): %v", name, err)
	}
	return res
}

func TestQueryDatabase_Guardrail(t *testing.T) {
	reader := &fakeLedger{}
	r := newLedgerRegistry(t, reader, time.Now())

	res := execute(t, r, "query_database", `{"sql":"DELETE FROM invoices","explanation":"x"}`)
	if !res.IsError || res.Error.Code != domain.ToolErrGuardrail {
		t.Fatalf("expected guardrail rejection, got %+v", res)
	}
	if len(reader.queries) != 0 {
		t.Fatal("rejected query reached the database")
	}

	res = execute(t, r, "query_database", `{"sql":"SELECT COUNT(*) FROM invoices","explanation":"count"}`)
	if res.IsError {
		t.Fatalf("unexpected error: %v", res.Error)
	}
	out := res.Result.(map[string]interface{})
	if out["count"] != 1 || out["explanation"] != "count" {
		t.Errorf("unexpected result: %+v", out)
	}
	rows := out["rows"].([]ledger.Row)
	if rows[0]["n"] != int64(100) {
		t.Errorf("row cap not passed through: %v", rows[0]["n"])
	}
}

func TestComparePeriods(t *testing.T) {
	reader := &fakeLedger{totals: map[string]ledger.PeriodTotals{
		"2026-01-01": {Income: 0, Expenses: 200},
		"2026-02-01": {Income: 500, Expenses: 300},
	}}
	r := newLedgerRegistry(t, reader, time.Now())

	res := execute(t, r, "compare_periods",
		`{"period1_start":"2026-01-01","period1_end":"2026-01-31","period2_start":"2026-02-01","period2_end":"2026-02-28"}`)
	if res.IsError {
		t.Fatalf("unexpected error: %v", res.Error)
	}

	changes := res.Result.(map[string]interface{})["changes"].(map[string]*float64)
	if changes["income_pct"] != nil {
		t.Errorf("income_pct should be nil when the first period is zero, got %v", *changes["income_pct"])
	}
	if changes["expenses_pct"] == nil || *changes["expenses_pct"] != 50 {
		t.Errorf("expenses_pct = %v", changes["expenses_pct"])
	}
	// balance -200 -> 200 is +200% of |old|
	if changes["balance_pct"] == nil || *changes["balance_pct"] != 200 {
		t.Errorf("balance_pct = %v", changes["balance_pct"])
	}

	end := reader.ranges[0].To
	if end.Hour() != 23 || end.Minute() != 59 || end.Day() != 31 {
		t.Errorf("period end is not end of day: %v", end)
	}
}

func TestComparePeriods_InvalidDate(t *testing.T) {
	r := newLedgerRegistry(t, &fakeLedger{}, time.Now())
	res := execute(t, r, "compare_periods", `{"period1_start":"2026-13-01","period1_end":"2026-01-31","period2_start":"2026-02-01","period2_end":"2026-02-28"}`)
	if !res.IsError || res.Error.Code != domain.ToolErrValidation {
		t.Fatalf("expected validation error, got %+v", res)
	}
}

func TestDocumentDetails_NotFound(t *testing.T) {
	r := newLedgerRegistry(t, &fakeLedger{}, time.Now())

	res := execute(t, r, "get_document_details", `{"doc_type":"invoice","doc_id":2}`)
	if !res.IsError || res.Error.Code != domain.ToolErrNotFound {
		t.Fatalf("expected not_found, got %+v", res)
	}

	res = execute(t, r, "get_document_details", `{"doc_type":"invoice","doc_id":1}`)
	if res.IsError {
		t.Fatalf("unexpected error: %v", res.Error)
	}
}

func TestOverdueInvoices(t *testing.T) {
	reader := &fakeLedger{overdue: map[ledger.DocType][]ledger.Row{
		ledger.DocInvoice:  {{"id": "i1", "amount": 100.25}},
		ledger.DocPurchase: {{"id": "p1", "amount": int64(50)}},
	}}
	r := newLedgerRegistry(t, reader, time.Now())

	res := execute(t, r, "get_overdue_invoices", `{}`)
	out := res.Result.(map[string]interface{})
	if out["count"] != 2 || out["total_overdue"] != 150.25 {
		t.Errorf("unexpected result: %+v", out)
	}

	res = execute(t, r, "get_overdue_invoices", `{"type":"payable"}`)
	out = res.Result.(map[string]interface{})
	rows := out["overdue"].([]ledger.Row)
	if len(rows) != 1 || rows[0]["source"] != "payable" {
		t.Errorf("unexpected rows: %+v", rows)
	}
}

func TestUpcomingPayments_Window(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	reader := &fakeLedger{payments: []ledger.Row{{"amount": 10.0}, {"amount": 5.5}}}
	r := newLedgerRegistry(t, reader, now)

	res := execute(t, r, "get_upcoming_payments", `{"days_ahead":7}`)
	out := res.Result.(map[string]interface{})
	if out["total"] != 15.5 {
		t.Errorf("total = %v", out["total"])
	}

	got := reader.ranges[0]
	if !got.From.Equal(now.AddDate(0, 0, -30)) || !got.To.Equal(now.AddDate(0, 0, 7)) {
		t.Errorf("window = %v..%v", got.From, got.To)
	}
}

func TestProductPricing_Margin(t *testing.T) {
	r := newLedgerRegistry(t, &fakeLedger{}, time.Now())
	res := execute(t, r, "get_product_pricing", `{"search":"wid"}`)
	products := res.Result.(map[string]interface{})["products"].([]ledger.Row)
	if products[0]["margin_pct"] != 50.0 {
		t.Errorf("margin_pct = %v", products[0]["margin_pct"])
	}
}
