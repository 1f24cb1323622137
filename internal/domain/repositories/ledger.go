package repositories

import (
	"context"

	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/ledger"
)

// LedgerReader reads the synced accounting data. Implementations never write.
type LedgerReader interface {
	// Query runs an already validated read-only statement and returns at most maxRows rows.
	Query(ctx context.Context, query string, maxRows int) ([]ledger.Row, error)

	SearchContacts(ctx context.Context, search string, limit int) ([]ledger.Row, error)
	// ContactHistory returns count/total per document kind for a contact.
	ContactHistory(ctx context.Context, contactID string) (ledger.Row, error)

	SearchProducts(ctx context.Context, search string, limit int) ([]ledger.Row, error)
	// ProductPriceHistory returns sale and purchase price aggregates for a product.
	ProductPriceHistory(ctx context.Context, productID string) (sales ledger.Row, purchases ledger.Row, err error)

	PeriodTotals(ctx context.Context, r ledger.Range) (ledger.PeriodTotals, error)
	TopClients(ctx context.Context, r ledger.Range, limit int) ([]ledger.Row, error)
	MonthlyIncome(ctx context.Context, r ledger.Range) ([]ledger.MonthTotal, error)
	MonthlyExpenses(ctx context.Context, r ledger.Range) ([]ledger.MonthTotal, error)

	// Document returns the document and its line items.
	// Returns domain.ErrNotFound if the document does not exist.
	Document(ctx context.Context, docType ledger.DocType, id string) (ledger.Row, []ledger.Row, error)

	// OverdueDocuments lists overdue invoices (receivable) or purchases (payable).
	OverdueDocuments(ctx context.Context, docType ledger.DocType, minAmount float64) ([]ledger.Row, error)

	// Payments lists payments in r, optionally filtered by type ("income"/"expense").
	Payments(ctx context.Context, r ledger.Range, paymentType string) ([]ledger.Row, error)

	Stats(ctx context.Context) (ledger.Stats, error)
}
