package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/miguelbenajes/HoldedConnector/internal/domain"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/ledger"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/repositories"
	"github.com/miguelbenajes/HoldedConnector/internal/service/agent/guardrail"
)

// LedgerTools are the read-only tools over the synced accounting database.
type LedgerTools struct {
	reader repositories.LedgerReader
	config *ToolConfig
}

// NewLedgerTools creates the ledger tool set.
func NewLedgerTools(reader repositories.LedgerReader, config *ToolConfig) *LedgerTools {
	return &LedgerTools{reader: reader, config: config}
}

// Executors returns the ledger executors keyed by tool name.
func (t *LedgerTools) Executors() map[string]Executor {
	return map[string]Executor{
		"query_database":        Typed[QueryDatabaseArgs](t.queryDatabase),
		"get_contact_details":   Typed[ContactDetailsArgs](t.contactDetails),
		"get_product_pricing":   Typed[ProductPricingArgs](t.productPricing),
		"get_financial_summary": Typed[FinancialSummaryArgs](t.financialSummary),
		"get_document_details":  Typed[DocumentDetailsArgs](t.documentDetails),
		"get_overdue_invoices":  Typed[OverdueInvoicesArgs](t.overdueInvoices),
		"get_upcoming_payments": Typed[UpcomingPaymentsArgs](t.upcomingPayments),
		"compare_periods":       Typed[ComparePeriodsArgs](t.comparePeriods),
	}
}

// QueryDatabaseArgs runs an ad-hoc read query.
type QueryDatabaseArgs struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
}

func (a *QueryDatabaseArgs) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.SQL, validation.Required),
	)
}

func (t *LedgerTools) queryDatabase(ctx context.Context, args *QueryDatabaseArgs) (interface{}, error) {
	if err := guardrail.Validate(args.SQL); err != nil {
		return nil, err
	}

	rows, err := t.reader.Query(ctx, args.SQL, t.config.MaxQueryRows)
	if err != nil {
		return nil, domain.NewToolError(domain.ToolErrExecutor, "query failed: %v", err)
	}
	return map[string]interface{}{
		"rows":        rows,
		"count":       len(rows),
		"explanation": args.Explanation,
	}, nil
}

// ContactDetailsArgs looks up contacts by name or id.
type ContactDetailsArgs struct {
	Search         string `json:"search"`
	IncludeHistory bool   `json:"include_history"`
}

func (a *ContactDetailsArgs) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Search, validation.Required),
	)
}

func (t *LedgerTools) contactDetails(ctx context.Context, args *ContactDetailsArgs) (interface{}, error) {
	contacts, err := t.reader.SearchContacts(ctx, args.Search, t.config.SearchLimit)
	if err != nil {
		return nil, err
	}

	if args.IncludeHistory {
		for _, c := range contacts {
			history, err := t.reader.ContactHistory(ctx, fmt.Sprint(c["id"]))
			if err != nil {
				return nil, err
			}
			c["history"] = history
		}
	}

	return map[string]interface{}{"contacts": contacts, "count": len(contacts)}, nil
}

// ProductPricingArgs looks up products and their price history.
type ProductPricingArgs struct {
	Search         string `json:"search"`
	IncludeHistory *bool  `json:"include_history"`
}

func (a *ProductPricingArgs) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Search, validation.Required),
	)
}

func (t *LedgerTools) productPricing(ctx context.Context, args *ProductPricingArgs) (interface{}, error) {
	products, err := t.reader.SearchProducts(ctx, args.Search, t.config.SearchLimit)
	if err != nil {
		return nil, err
	}

	if args.IncludeHistory == nil || *args.IncludeHistory {
		for _, p := range products {
			sales, purchases, err := t.reader.ProductPriceHistory(ctx, fmt.Sprint(p["id"]))
			if err != nil {
				return nil, err
			}
			p["sales"] = sales
			p["purchases"] = purchases

			avgSale := toFloat(sales["avg_sale_price"])
			avgCost := toFloat(purchases["avg_purchase_price"])
			if avgCost > 0 {
				p["margin_pct"] = round2((avgSale - avgCost) / avgCost * 100)
			} else {
				p["margin_pct"] = nil
			}
		}
	}

	return map[string]interface{}{"products": products, "count": len(products)}, nil
}

// FinancialSummaryArgs selects the summary window. Both dates are optional.
type FinancialSummaryArgs struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (a *FinancialSummaryArgs) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.StartDate, validation.Date(dateLayout)),
		validation.Field(&a.EndDate, validation.Date(dateLayout)),
	)
}

func (t *LedgerTools) financialSummary(ctx context.Context, args *FinancialSummaryArgs) (interface{}, error) {
	now := t.config.now()
	r := ledger.Range{
		From: now.AddDate(0, 0, -t.config.SummaryDefaultDays),
		To:   now,
	}
	if args.StartDate != "" {
		r.From, _ = parseDate(args.StartDate)
	}
	if args.EndDate != "" {
		end, _ := parseDate(args.EndDate)
		r.To = endOfDay(end)
	}

	totals, err := t.reader.PeriodTotals(ctx, r)
	if err != nil {
		return nil, err
	}
	topClients, err := t.reader.TopClients(ctx, r, t.config.TopClientsLimit)
	if err != nil {
		return nil, err
	}
	monthlyIncome, err := t.reader.MonthlyIncome(ctx, r)
	if err != nil {
		return nil, err
	}
	monthlyExpenses, err := t.reader.MonthlyExpenses(ctx, r)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"period": map[string]string{
			"start": r.From.Format(dateLayout),
			"end":   r.To.Format(dateLayout),
		},
		"income":           round2(totals.Income),
		"expenses":         round2(totals.Expenses),
		"balance":          round2(totals.Balance()),
		"top_clients":      topClients,
		"monthly_income":   monthlyIncome,
		"monthly_expenses": monthlyExpenses,
	}, nil
}

// DocumentDetailsArgs identifies one document.
type DocumentDetailsArgs struct {
	DocType ledger.DocType `json:"doc_type"`
	DocID   FlexString     `json:"doc_id"`
}

func (a *DocumentDetailsArgs) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.DocType, validation.Required, validation.In(ledger.DocTypes...)),
		validation.Field(&a.DocID, validation.Required),
	)
}

func (t *LedgerTools) documentDetails(ctx context.Context, args *DocumentDetailsArgs) (interface{}, error) {
	doc, items, err := t.reader.Document(ctx, args.DocType, args.DocID.String())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewToolError(domain.ToolErrNotFound, "document %s not found", args.DocID)
		}
		return nil, err
	}
	return map[string]interface{}{"document": doc, "items": items}, nil
}

// OverdueInvoicesArgs filters overdue documents.
type OverdueInvoicesArgs struct {
	Type      string  `json:"type"`
	MinAmount float64 `json:"min_amount"`
}

func (a *OverdueInvoicesArgs) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Type, validation.In("receivable", "payable", "both")),
		validation.Field(&a.MinAmount, validation.Min(0.0)),
	)
}

func (t *LedgerTools) overdueInvoices(ctx context.Context, args *OverdueInvoicesArgs) (interface{}, error) {
	kind := args.Type
	if kind == "" {
		kind = "both"
	}

	results := make([]ledger.Row, 0)
	sources := []struct {
		name    string
		docType ledger.DocType
	}{
		{"receivable", ledger.DocInvoice},
		{"payable", ledger.DocPurchase},
	}
	for _, src := range sources {
		if kind != "both" && kind != src.name {
			continue
		}
		rows, err := t.reader.OverdueDocuments(ctx, src.docType, args.MinAmount)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			row["source"] = src.name
			results = append(results, row)
		}
	}

	var total float64
	for _, row := range results {
		total += toFloat(row["amount"])
	}
	return map[string]interface{}{
		"overdue":       results,
		"count":         len(results),
		"total_overdue": round2(total),
	}, nil
}

// UpcomingPaymentsArgs selects the payment window.
type UpcomingPaymentsArgs struct {
	DaysAhead *int   `json:"days_ahead"`
	Type      string `json:"type"`
}

func (a *UpcomingPaymentsArgs) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.DaysAhead, validation.Min(0), validation.Max(3650)),
		validation.Field(&a.Type, validation.In("income", "expense", "both")),
	)
}

func (t *LedgerTools) upcomingPayments(ctx context.Context, args *UpcomingPaymentsArgs) (interface{}, error) {
	days := t.config.UpcomingDefaultDays
	if args.DaysAhead != nil {
		days = *args.DaysAhead
	}
	paymentType := args.Type
	if paymentType == "both" {
		paymentType = ""
	}

	now := t.config.now()
	r := ledger.Range{
		From: now.Add(-time.Duration(t.config.PastPaymentsDays) * 24 * time.Hour),
		To:   now.Add(time.Duration(days) * 24 * time.Hour),
	}
	payments, err := t.reader.Payments(ctx, r, paymentType)
	if err != nil {
		return nil, err
	}

	var total float64
	for _, p := range payments {
		total += toFloat(p["amount"])
	}
	return map[string]interface{}{
		"payments": payments,
		"count":    len(payments),
		"total":    round2(total),
	}, nil
}

// ComparePeriodsArgs names two inclusive date ranges.
type ComparePeriodsArgs struct {
	Period1Start string `json:"period1_start"`
	Period1End   string `json:"period1_end"`
	Period2Start string `json:"period2_start"`
	Period2End   string `json:"period2_end"`
}

func (a *ComparePeriodsArgs) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Period1Start, validation.Required, validation.Date(dateLayout)),
		validation.Field(&a.Period1End, validation.Required, validation.Date(dateLayout)),
		validation.Field(&a.Period2Start, validation.Required, validation.Date(dateLayout)),
		validation.Field(&a.Period2End, validation.Required, validation.Date(dateLayout)),
	)
}

// PeriodStats is one side of a comparison.
type PeriodStats struct {
	Period        string  `json:"period"`
	Income        float64 `json:"income"`
	Expenses      float64 `json:"expenses"`
	Balance       float64 `json:"balance"`
	InvoiceCount  int     `json:"invoice_count"`
	PurchaseCount int     `json:"purchase_count"`
}

func (t *LedgerTools) comparePeriods(ctx context.Context, args *ComparePeriodsArgs) (interface{}, error) {
	p1, err := t.periodStats(ctx, args.Period1Start, args.Period1End)
	if err != nil {
		return nil, err
	}
	p2, err := t.periodStats(ctx, args.Period2Start, args.Period2End)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"period1": p1,
		"period2": p2,
		"changes": map[string]*float64{
			"income_pct":   pctChange(p1.Income, p2.Income),
			"expenses_pct": pctChange(p1.Expenses, p2.Expenses),
			"balance_pct":  pctChange(p1.Balance, p2.Balance),
		},
	}, nil
}

func (t *LedgerTools) periodStats(ctx context.Context, start, end string) (*PeriodStats, error) {
	from, _ := parseDate(start)
	to, _ := parseDate(end)

	totals, err := t.reader.PeriodTotals(ctx, ledger.Range{From: from, To: endOfDay(to)})
	if err != nil {
		return nil, err
	}
	return &PeriodStats{
		Period:        fmt.Sprintf("%s to %s", start, end),
		Income:        round2(totals.Income),
		Expenses:      round2(totals.Expenses),
		Balance:       round2(totals.Balance()),
		InvoiceCount:  totals.InvoiceCount,
		PurchaseCount: totals.PurchaseCount,
	}, nil
}

// pctChange returns nil when old is zero.
func pctChange(old, new float64) *float64 {
	if old == 0 {
		return nil
	}
	v := round2((new - old) / math.Abs(old) * 100)
	return &v
}
