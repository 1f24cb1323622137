package ledger

import "time"

// Row is one result row keyed by column name.
type Row map[string]interface{}

// DocType names a kind of accounting document.
type DocType string

const (
	DocInvoice  DocType = "invoice"
	DocPurchase DocType = "purchase"
	DocEstimate DocType = "estimate"
)

// DocTypes lists every document type accepted by read tools.
var DocTypes = []interface{}{DocInvoice, DocPurchase, DocEstimate}

// Invoice and purchase status codes
const (
	StatusDraft     = 0
	StatusIssued    = 1
	StatusPartial   = 2
	StatusPaid      = 3
	StatusOverdue   = 4
	StatusCancelled = 5
)

// StatusLabels maps status codes to their lowercase names.
var StatusLabels = map[int]string{
	StatusDraft:     "draft",
	StatusIssued:    "issued",
	StatusPartial:   "partial",
	StatusPaid:      "paid",
	StatusOverdue:   "overdue",
	StatusCancelled: "cancelled",
}

// PeriodTotals aggregates one date range.
type PeriodTotals struct {
	Income        float64 `json:"income"`
	Expenses      float64 `json:"expenses"`
	InvoiceCount  int     `json:"invoice_count"`
	PurchaseCount int     `json:"purchase_count"`
}

// Balance is income minus expenses.
func (p PeriodTotals) Balance() float64 {
	return p.Income - p.Expenses
}

// MonthTotal is one bucket of a monthly trend.
type MonthTotal struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

// Stats summarizes the ledger for the system prompt.
type Stats struct {
	Invoices      int
	Purchases     int
	Estimates     int
	Contacts      int
	Products      int
	TotalIncome   float64
	TotalExpenses float64
}

// Range is an inclusive time window.
type Range struct {
	From time.Time
	To   time.Time
}
