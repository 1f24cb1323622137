package tools

import (
	"time"

	"github.com/miguelbenajes/HoldedConnector/internal/config"
)

// ToolConfig holds the limits and locations the built-in tools work with.
type ToolConfig struct {
	MaxQueryRows        int // rows returned by query_database
	SearchLimit         int // contacts/products returned by a search
	TopClientsLimit     int
	FilesDefaultLimit   int
	FilesMaxLimit       int
	UpcomingDefaultDays int // get_upcoming_payments look-ahead
	PastPaymentsDays    int // get_upcoming_payments look-back
	SummaryDefaultDays  int // get_financial_summary window when no start date

	UploadsDir string
	ReportsDir string

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// DefaultToolConfig returns the defaults used by the server.
func DefaultToolConfig() *ToolConfig {
	return &ToolConfig{
		MaxQueryRows:        config.MaxQueryRows,
		SearchLimit:         10,
		TopClientsLimit:     5,
		FilesDefaultLimit:   20,
		FilesMaxLimit:       100,
		UpcomingDefaultDays: 30,
		PastPaymentsDays:    30,
		SummaryDefaultDays:  365,
		UploadsDir:          "uploads",
		ReportsDir:          "reports",
		Now:                 time.Now,
	}
}

func (c *ToolConfig) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}
