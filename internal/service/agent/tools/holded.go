package tools

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/ledger"
	"github.com/miguelbenajes/HoldedConnector/internal/holded"
)

// HoldedWriter is the write side of the Holded API used by mutating tools.
type HoldedWriter interface {
	CreateDocument(ctx context.Context, docType string, payload holded.DocumentPayload) (*holded.WriteResult, error)
	SendDocument(ctx context.Context, docType, docID string, payload holded.SendPayload) (*holded.WriteResult, error)
	CreateContact(ctx context.Context, payload holded.ContactPayload) (*holded.WriteResult, error)
	UpdateDocumentStatus(ctx context.Context, docType, docID string, status int) (*holded.WriteResult, error)
	SafeMode() bool
}

// HoldedTools are the mutating tools. They only run after confirmation.
type HoldedTools struct {
	client HoldedWriter
	config *ToolConfig
}

// NewHoldedTools creates the Holded tool set.
func NewHoldedTools(client HoldedWriter, config *ToolConfig) *HoldedTools {
	return &HoldedTools{client: client, config: config}
}

// Executors returns the Holded executors keyed by tool name.
func (t *HoldedTools) Executors() map[string]Executor {
	return map[string]Executor{
		"create_estimate":       Typed[CreateEstimateArgs](t.createEstimate),
		"create_invoice":        Typed[CreateInvoiceArgs](t.createInvoice),
		"send_document":         Typed[SendDocumentArgs](t.sendDocument),
		"create_contact":        Typed[CreateContactArgs](t.createContact),
		"update_invoice_status": Typed[UpdateStatusArgs](t.updateStatus),
	}
}

// writeResult is the tool result of a successful write.
type writeResult struct {
	Success  bool   `json:"success"`
	ID       string `json:"id,omitempty"`
	SafeMode bool   `json:"safe_mode"`
	Message  string `json:"message"`
}

func newWriteResult(res *holded.WriteResult, message string) *writeResult {
	if res.SafeMode {
		message += " (dry run)"
	}
	return &writeResult{Success: true, ID: res.ID, SafeMode: res.SafeMode, Message: message}
}

func lineItems(items []LineItemArgs) []holded.LineItem {
	out := make([]holded.LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, holded.LineItem{
			Name:      item.Name,
			Units:     item.Units,
			Subtotal:  item.Price,
			Tax:       item.Tax,
			Retention: item.Retention,
		})
	}
	return out
}

// CreateEstimateArgs creates a draft estimate.
type CreateEstimateArgs struct {
	ContactID FlexString     `json:"contact_id"`
	Items     []LineItemArgs `json:"items"`
	Desc      string         `json:"desc,omitempty"`
	Date      string         `json:"date,omitempty"`
}

func (a *CreateEstimateArgs) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.ContactID, validation.Required),
		validation.Field(&a.Items, validation.Required),
		validation.Field(&a.Date, validation.Date(dateLayout)),
	)
}

func (a *CreateEstimateArgs) Describe() string {
	return fmt.Sprintf("Create an estimate with %d items (subtotal: %s EUR)", len(a.Items), FormatAmount(itemsSubtotal(a.Items)))
}

func (t *HoldedTools) createEstimate(ctx context.Context, args *CreateEstimateArgs) (interface{}, error) {
	payload := holded.DocumentPayload{
		ContactID: args.ContactID.String(),
		Desc:      args.Desc,
		Products:  lineItems(args.Items),
	}
	if args.Date != "" {
		date, _ := parseDate(args.Date)
		payload.Date = date.Unix()
	} else {
		payload.Date = t.config.now().Unix()
	}

	res, err := t.client.CreateDocument(ctx, string(ledger.DocEstimate), payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create estimate: %w", err)
	}
	return newWriteResult(res, "Estimate created"), nil
}

// CreateInvoiceArgs creates a sales invoice.
type CreateInvoiceArgs struct {
	ContactID FlexString     `json:"contact_id"`
	Items     []LineItemArgs `json:"items"`
	Desc      string         `json:"desc,omitempty"`
}

func (a *CreateInvoiceArgs) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.ContactID, validation.Required),
		validation.Field(&a.Items, validation.Required),
	)
}

func (a *CreateInvoiceArgs) Describe() string {
	return fmt.Sprintf("Create an invoice with %d items (subtotal: %s EUR)", len(a.Items), FormatAmount(itemsSubtotal(a.Items)))
}

func (t *HoldedTools) createInvoice(ctx context.Context, args *CreateInvoiceArgs) (interface{}, error) {
	payload := holded.DocumentPayload{
		ContactID: args.ContactID.String(),
		Desc:      args.Desc,
		Date:      t.config.now().Unix(),
		Products:  lineItems(args.Items),
	}
	res, err := t.client.CreateDocument(ctx, string(ledger.DocInvoice), payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	return newWriteResult(res, "Invoice created"), nil
}

// SendDocumentArgs emails a document.
type SendDocumentArgs struct {
	DocType ledger.DocType `json:"doc_type"`
	DocID   FlexString     `json:"doc_id"`
	Emails  []string       `json:"emails,omitempty"`
	Subject string         `json:"subject,omitempty"`
	Body    string         `json:"body,omitempty"`
}

func (a *SendDocumentArgs) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.DocType, validation.Required, validation.In(ledger.DocTypes...)),
		validation.Field(&a.DocID, validation.Required),
		validation.Field(&a.Emails, validation.Each(validation.Required, validation.Length(3, 254))),
	)
}

func (a *SendDocumentArgs) Describe() string {
	to := "contact's email on file"
	if len(a.Emails) > 0 {
		to = strings.Join(a.Emails, ", ")
	}
	return fmt.Sprintf("Send %s %s to %s", a.DocType, a.DocID, to)
}

func (t *HoldedTools) sendDocument(ctx context.Context, args *SendDocumentArgs) (interface{}, error) {
	payload := holded.SendPayload{Emails: args.Emails, Subject: args.Subject, Body: args.Body}
	res, err := t.client.SendDocument(ctx, string(args.DocType), args.DocID.String(), payload)
	if err != nil {
		return nil, fmt.Errorf("failed to send document: %w", err)
	}
	return newWriteResult(res, "Document sent"), nil
}

// CreateContactArgs creates a client or supplier.
type CreateContactArgs struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Type  string `json:"type,omitempty"`
	VAT   string `json:"vat,omitempty"`
	Phone string `json:"phone,omitempty"`
	Code  string `json:"code,omitempty"`
}

func (a *CreateContactArgs) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&a.Type, validation.In("client", "supplier", "creditor", "debtor")),
	)
}

func (a *CreateContactArgs) Describe() string {
	return fmt.Sprintf("Create contact: %s", a.Name)
}

func (t *HoldedTools) createContact(ctx context.Context, args *CreateContactArgs) (interface{}, error) {
	res, err := t.client.CreateContact(ctx, holded.ContactPayload{
		Name:  args.Name,
		Email: args.Email,
		Type:  args.Type,
		VAT:   args.VAT,
		Phone: args.Phone,
		Code:  args.Code,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	return newWriteResult(res, "Contact created"), nil
}

// UpdateStatusArgs changes an invoice or purchase status.
type UpdateStatusArgs struct {
	DocType ledger.DocType `json:"doc_type,omitempty"`
	DocID   FlexString     `json:"doc_id"`
	Status  *StatusArg     `json:"status"`
}

func (a *UpdateStatusArgs) Validate() error {
	if a.DocType == "" {
		a.DocType = ledger.DocInvoice
	}
	return validation.ValidateStruct(a,
		validation.Field(&a.DocType, validation.In(ledger.DocInvoice, ledger.DocPurchase)),
		validation.Field(&a.DocID, validation.Required),
		validation.Field(&a.Status, validation.NotNil, validation.Min(ledger.StatusDraft), validation.Max(ledger.StatusCancelled)),
	)
}

func (a *UpdateStatusArgs) Describe() string {
	if int(*a.Status) == ledger.StatusPaid {
		return fmt.Sprintf("Mark %s %s as paid", a.DocType, a.DocID)
	}
	return fmt.Sprintf("Update %s %s status to %s", a.DocType, a.DocID, a.Status.Label())
}

func (t *HoldedTools) updateStatus(ctx context.Context, args *UpdateStatusArgs) (interface{}, error) {
	res, err := t.client.UpdateDocumentStatus(ctx, string(args.DocType), args.DocID.String(), int(*args.Status))
	if err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	return newWriteResult(res, fmt.Sprintf("Status updated to %s", args.Status.Label())), nil
}
