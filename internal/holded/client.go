// Package holded is a minimal client for the write side of the Holded API.
package holded

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the Holded API root
	DefaultBaseURL = "https://api.holded.com/api"
	// DefaultTimeout bounds a single Holded request
	DefaultTimeout = 40 * time.Second

	// SafeModeID is returned instead of a real id for simulated creates.
	SafeModeID = "SAFE_MODE_ID_TEST"
)

// Client posts documents and contacts to Holded. In safe mode every write is
// intercepted, logged and answered with a simulated success.
type Client struct {
	apiKey     string
	baseURL    string
	safeMode   bool
	httpClient *http.Client
	logger     *slog.Logger
}

// Config configures a Client.
type Config struct {
	APIKey   string
	BaseURL  string
	SafeMode bool
	Timeout  time.Duration
}

// NewClient creates a Holded client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		safeMode:   cfg.SafeMode,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// SafeMode reports whether writes are simulated.
func (c *Client) SafeMode() bool {
	return c.safeMode
}

// WriteResult is Holded's answer to a write. Status 1 means success.
type WriteResult struct {
	Status   int    `json:"status"`
	ID       string `json:"id,omitempty"`
	Info     string `json:"info,omitempty"`
	SafeMode bool   `json:"safe_mode"`
}

// LineItem is one product line of an estimate or invoice.
type LineItem struct {
	Name      string   `json:"name"`
	Units     float64  `json:"units"`
	Subtotal  float64  `json:"subtotal"`
	Tax       *float64 `json:"tax,omitempty"`
	Retention *float64 `json:"retention,omitempty"`
}

// DocumentPayload creates an estimate or invoice.
type DocumentPayload struct {
	ContactID string     `json:"contact"`
	Desc      string     `json:"desc"`
	Date      int64      `json:"date,omitempty"` // unix seconds
	Products  []LineItem `json:"products"`
}

// SendPayload emails a document.
type SendPayload struct {
	Emails  []string `json:"emails,omitempty"`
	Subject string   `json:"subject,omitempty"`
	Body    string   `json:"body,omitempty"`
}

// ContactPayload creates a contact.
type ContactPayload struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Type  string `json:"type,omitempty"`
	VAT   string `json:"vatnumber,omitempty"`
	Phone string `json:"phone,omitempty"`
	Code  string `json:"code,omitempty"`
}

// CreateDocument creates an estimate or invoice (docType "estimate"/"invoice").
func (c *Client) CreateDocument(ctx context.Context, docType string, payload DocumentPayload) (*WriteResult, error) {
	return c.write(ctx, http.MethodPost, fmt.Sprintf("/invoicing/v1/documents/%s", docType), payload)
}

// SendDocument emails a document through Holded.
func (c *Client) SendDocument(ctx context.Context, docType, docID string, payload SendPayload) (*WriteResult, error) {
	return c.write(ctx, http.MethodPost, fmt.Sprintf("/invoicing/v1/documents/%s/%s/send", docType, docID), payload)
}

// CreateContact creates a client or supplier.
func (c *Client) CreateContact(ctx context.Context, payload ContactPayload) (*WriteResult, error) {
	return c.write(ctx, http.MethodPost, "/invoicing/v1/contacts", payload)
}

// UpdateDocumentStatus sets the status code of an invoice or purchase.
func (c *Client) UpdateDocumentStatus(ctx context.Context, docType, docID string, status int) (*WriteResult, error) {
	return c.write(ctx, http.MethodPut, fmt.Sprintf("/invoicing/v1/documents/%s/%s", docType, docID), map[string]int{"status": status})
}

func (c *Client) write(ctx context.Context, method, endpoint string, payload interface{}) (*WriteResult, error) {
	if c.safeMode {
		c.logger.Info("safe mode: intercepted write", "method", method, "endpoint", endpoint)
		c.logger.Debug("safe mode: payload", "payload", payload)
		result := &WriteResult{Status: 1, Info: "Dry run successful", SafeMode: true}
		if method == http.MethodPost {
			result.ID = SafeModeID
		}
		return result, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("holded write failed",
			"method", method,
			"endpoint", endpoint,
			"status", resp.StatusCode,
			"body", string(respBody),
		)
		return nil, fmt.Errorf("holded API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result WriteResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Status != 1 {
		return nil, fmt.Errorf("holded rejected %s %s: %s", method, endpoint, result.Info)
	}
	return &result, nil
}
