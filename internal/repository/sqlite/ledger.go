package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/miguelbenajes/HoldedConnector/internal/domain"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/ledger"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/repositories"
)

// LedgerSchema is the layout written by the Holded sync job. Dates are unix
// seconds, amounts are EUR.
const LedgerSchema = `
CREATE TABLE IF NOT EXISTS invoices (
	id TEXT PRIMARY KEY, contact_id TEXT, contact_name TEXT, "desc" TEXT,
	date INTEGER, amount REAL, status INTEGER,
	payments_pending REAL DEFAULT 0, payments_total REAL DEFAULT 0,
	due_date INTEGER, doc_number TEXT
);
CREATE TABLE IF NOT EXISTS purchase_invoices (
	id TEXT PRIMARY KEY, contact_id TEXT, contact_name TEXT, "desc" TEXT,
	date INTEGER, amount REAL, status INTEGER, doc_number TEXT
);
CREATE TABLE IF NOT EXISTS estimates (
	id TEXT PRIMARY KEY, contact_id TEXT, contact_name TEXT, "desc" TEXT,
	date INTEGER, amount REAL, status INTEGER, doc_number TEXT
);
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY, name TEXT, "desc" TEXT, price REAL, stock REAL, sku TEXT
);
CREATE TABLE IF NOT EXISTS invoice_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT, invoice_id TEXT, product_id TEXT, name TEXT, sku TEXT,
	units REAL, price REAL, subtotal REAL, discount REAL, tax REAL, retention REAL, account TEXT
);
CREATE TABLE IF NOT EXISTS estimate_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT, estimate_id TEXT, product_id TEXT, name TEXT, sku TEXT,
	units REAL, price REAL, subtotal REAL, discount REAL, tax REAL, retention REAL, account TEXT
);
CREATE TABLE IF NOT EXISTS purchase_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT, purchase_id TEXT, product_id TEXT, name TEXT, sku TEXT,
	units REAL, price REAL, subtotal REAL, discount REAL, tax REAL, retention REAL, account TEXT
);
CREATE TABLE IF NOT EXISTS contacts (
	id TEXT PRIMARY KEY, name TEXT, email TEXT, type TEXT, code TEXT, vat TEXT, phone TEXT, mobile TEXT
);
CREATE TABLE IF NOT EXISTS payments (
	id TEXT PRIMARY KEY, document_id TEXT, amount REAL, date INTEGER, method TEXT, type TEXT
);
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY, name TEXT, "desc" TEXT, status TEXT, customer_id TEXT, budget REAL
);
CREATE TABLE IF NOT EXISTS ledger_accounts (
	id TEXT PRIMARY KEY, name TEXT, num TEXT
);
`

// EnsureLedgerSchema creates missing ledger tables so the assistant can start
// before the first sync.
func EnsureLedgerSchema(db *sql.DB) error {
	if _, err := db.Exec(LedgerSchema); err != nil {
		return fmt.Errorf("create ledger schema: %w", err)
	}
	return nil
}

type docTables struct {
	table, items, fk string
}

var documentTables = map[ledger.DocType]docTables{
	ledger.DocInvoice:  {"invoices", "invoice_items", "invoice_id"},
	ledger.DocPurchase: {"purchase_invoices", "purchase_items", "purchase_id"},
	ledger.DocEstimate: {"estimates", "estimate_items", "estimate_id"},
}

// LedgerStore reads the synced accounting tables.
type LedgerStore struct {
	db *sql.DB
}

var _ repositories.LedgerReader = (*LedgerStore)(nil)

// NewLedgerStore wraps db, which should be opened with OpenReadOnly.
func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) Query(ctx context.Context, query string, maxRows int) ([]ledger.Row, error) {
	return s.rows(ctx, maxRows, query)
}

func (s *LedgerStore) SearchContacts(ctx context.Context, search string, limit int) ([]ledger.Row, error) {
	return s.rows(ctx, 0, `SELECT * FROM contacts WHERE id = ? OR name LIKE ? LIMIT ?`,
		search, "%"+search+"%", limit)
}

func (s *LedgerStore) ContactHistory(ctx context.Context, contactID string) (ledger.Row, error) {
	history := ledger.Row{}
	for key, table := range map[string]string{
		"invoices":  "invoices",
		"purchases": "purchase_invoices",
		"estimates": "estimates",
	} {
		row, err := s.row(ctx, fmt.Sprintf(
			`SELECT COUNT(*) AS cnt, COALESCE(SUM(amount), 0) AS total FROM %s WHERE contact_id = ?`, table),
			contactID)
		if err != nil {
			return nil, err
		}
		history[key] = row
	}
	return history, nil
}

func (s *LedgerStore) SearchProducts(ctx context.Context, search string, limit int) ([]ledger.Row, error) {
	pattern := "%" + search + "%"
	return s.rows(ctx, 0, `SELECT * FROM products WHERE id = ? OR name LIKE ? OR sku LIKE ? LIMIT ?`,
		search, pattern, pattern, limit)
}

func (s *LedgerStore) ProductPriceHistory(ctx context.Context, productID string) (ledger.Row, ledger.Row, error) {
	sales, err := s.row(ctx, `
		SELECT COUNT(*) AS sales_count,
			COALESCE(AVG(price), 0) AS avg_sale_price,
			COALESCE(MIN(price), 0) AS min_sale_price,
			COALESCE(MAX(price), 0) AS max_sale_price,
			COALESCE(SUM(subtotal), 0) AS total_revenue
		FROM invoice_items WHERE product_id = ?`, productID)
	if err != nil {
		return nil, nil, err
	}
	purchases, err := s.row(ctx, `
		SELECT COUNT(*) AS purchase_count,
			COALESCE(AVG(price), 0) AS avg_purchase_price,
			COALESCE(MIN(price), 0) AS min_purchase_price,
			COALESCE(MAX(price), 0) AS max_purchase_price,
			COALESCE(SUM(subtotal), 0) AS total_cost
		FROM purchase_items WHERE product_id = ?`, productID)
	if err != nil {
		return nil, nil, err
	}
	return sales, purchases, nil
}

func (s *LedgerStore) PeriodTotals(ctx context.Context, r ledger.Range) (ledger.PeriodTotals, error) {
	var totals ledger.PeriodTotals
	from, to := r.From.Unix(), r.To.Unix()

	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM invoices WHERE date >= ? AND date <= ?
	`, from, to).Scan(&totals.Income, &totals.InvoiceCount)
	if err != nil {
		return totals, fmt.Errorf("sum invoices: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM purchase_invoices WHERE date >= ? AND date <= ?
	`, from, to).Scan(&totals.Expenses, &totals.PurchaseCount)
	if err != nil {
		return totals, fmt.Errorf("sum purchases: %w", err)
	}
	return totals, nil
}

func (s *LedgerStore) TopClients(ctx context.Context, r ledger.Range, limit int) ([]ledger.Row, error) {
	return s.rows(ctx, 0, `
		SELECT contact_name, SUM(amount) AS total FROM invoices
		WHERE date >= ? AND date <= ? AND contact_name IS NOT NULL AND contact_name != ''
		GROUP BY contact_name ORDER BY total DESC LIMIT ?
	`, r.From.Unix(), r.To.Unix(), limit)
}

func (s *LedgerStore) MonthlyIncome(ctx context.Context, r ledger.Range) ([]ledger.MonthTotal, error) {
	return s.monthly(ctx, "invoices", r)
}

func (s *LedgerStore) MonthlyExpenses(ctx context.Context, r ledger.Range) ([]ledger.MonthTotal, error) {
	return s.monthly(ctx, "purchase_invoices", r)
}

func (s *LedgerStore) monthly(ctx context.Context, table string, r ledger.Range) ([]ledger.MonthTotal, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT strftime('%%Y-%%m', datetime(date, 'unixepoch')) AS month, COALESCE(SUM(amount), 0)
		FROM %s WHERE date >= ? AND date <= ?
		GROUP BY month ORDER BY month
	`, table), r.From.Unix(), r.To.Unix())
	if err != nil {
		return nil, fmt.Errorf("monthly totals of %s: %w", table, err)
	}
	defer rows.Close()

	months := make([]ledger.MonthTotal, 0)
	for rows.Next() {
		var m ledger.MonthTotal
		if err := rows.Scan(&m.Month, &m.Total); err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		months = append(months, m)
	}
	return months, rows.Err()
}

func (s *LedgerStore) Document(ctx context.Context, docType ledger.DocType, id string) (ledger.Row, []ledger.Row, error) {
	tables, ok := documentTables[docType]
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown doc_type %q", domain.ErrValidation, docType)
	}

	docs, err := s.rows(ctx, 1, fmt.Sprintf(`SELECT * FROM %s WHERE id = ?`, tables.table), id)
	if err != nil {
		return nil, nil, err
	}
	if len(docs) == 0 {
		return nil, nil, fmt.Errorf("%s %s: %w", docType, id, domain.ErrNotFound)
	}

	items, err := s.rows(ctx, 0, fmt.Sprintf(`SELECT * FROM %s WHERE %s = ?`, tables.items, tables.fk), id)
	if err != nil {
		return nil, nil, err
	}
	return docs[0], items, nil
}

func (s *LedgerStore) OverdueDocuments(ctx context.Context, docType ledger.DocType, minAmount float64) ([]ledger.Row, error) {
	tables, ok := documentTables[docType]
	if !ok || docType == ledger.DocEstimate {
		return nil, fmt.Errorf("%w: no overdue state for %q", domain.ErrValidation, docType)
	}
	return s.rows(ctx, 0, fmt.Sprintf(`
		SELECT id, contact_name, amount, date, status FROM %s
		WHERE status = ? AND amount >= ? ORDER BY amount DESC
	`, tables.table), ledger.StatusOverdue, minAmount)
}

func (s *LedgerStore) Payments(ctx context.Context, r ledger.Range, paymentType string) ([]ledger.Row, error) {
	query := `SELECT id, document_id, amount, date, method, type FROM payments WHERE date >= ? AND date <= ?`
	args := []interface{}{r.From.Unix(), r.To.Unix()}
	if paymentType != "" {
		query += ` AND type = ?`
		args = append(args, paymentType)
	}
	return s.rows(ctx, 0, query+` ORDER BY date ASC`, args...)
}

func (s *LedgerStore) Stats(ctx context.Context) (ledger.Stats, error) {
	var st ledger.Stats
	counts := []struct {
		table string
		dst   *int
	}{
		{"invoices", &st.Invoices},
		{"purchase_invoices", &st.Purchases},
		{"estimates", &st.Estimates},
		{"contacts", &st.Contacts},
		{"products", &st.Products},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.table)).Scan(c.dst); err != nil {
			return st, fmt.Errorf("count %s: %w", c.table, err)
		}
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM invoices`).Scan(&st.TotalIncome); err != nil {
		return st, fmt.Errorf("sum income: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM purchase_invoices`).Scan(&st.TotalExpenses); err != nil {
		return st, fmt.Errorf("sum expenses: %w", err)
	}
	return st, nil
}

func (s *LedgerStore) row(ctx context.Context, query string, args ...interface{}) (ledger.Row, error) {
	rows, err := s.rows(ctx, 1, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return ledger.Row{}, nil
	}
	return rows[0], nil
}

// rows scans every column into a Row; maxRows <= 0 means no limit.
func (s *LedgerStore) rows(ctx context.Context, maxRows int, query string, args ...interface{}) ([]ledger.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	result := make([]ledger.Row, 0)
	for rows.Next() {
		if maxRows > 0 && len(result) >= maxRows {
			break
		}
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(ledger.Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
