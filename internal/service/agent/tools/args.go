package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/ledger"
)

const dateLayout = "2006-01-02"

// FlexString accepts a JSON string or number. Models send document ids both ways.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// StatusArg is an invoice status given either as a code (0-5) or a label
// ("paid"). Numeric strings are accepted too.
type StatusArg int

func (s *StatusArg) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var label string
		if err := json.Unmarshal(data, &label); err != nil {
			return err
		}
		code, ok := parseStatus(label)
		if !ok {
			return fmt.Errorf("unknown status %q", label)
		}
		*s = StatusArg(code)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("status must be a label or an integer code")
	}
	*s = StatusArg(n)
	return nil
}

// MarshalJSON writes the code so re-decoding merged arguments is lossless.
func (s StatusArg) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(s))), nil
}

// Label returns the lowercase status name, or the code when unknown.
func (s StatusArg) Label() string {
	if label, ok := ledger.StatusLabels[int(s)]; ok {
		return label
	}
	return strconv.Itoa(int(s))
}

func parseStatus(raw string) (int, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(raw); err == nil {
		return n, true
	}
	for code, label := range ledger.StatusLabels {
		if label == raw {
			return code, true
		}
	}
	if raw == "partial payment" {
		return ledger.StatusPartial, true
	}
	return 0, false
}

// LineItemArgs is one product line of an estimate or invoice.
type LineItemArgs struct {
	Name      string   `json:"name"`
	Units     float64  `json:"units"`
	Price     float64  `json:"price"`
	Tax       *float64 `json:"tax,omitempty"`
	Retention *float64 `json:"retention,omitempty"`
}

func (l LineItemArgs) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&l.Units, validation.Required, validation.Min(0.0)),
		validation.Field(&l.Price, validation.Min(0.0)),
		validation.Field(&l.Tax, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&l.Retention, validation.Min(0.0), validation.Max(100.0)),
	)
}

func itemsSubtotal(items []LineItemArgs) float64 {
	var total float64
	for _, item := range items {
		total += item.Units * item.Price
	}
	return total
}

// parseDate parses a YYYY-MM-DD date at local midnight.
func parseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, raw, time.Local)
}

// endOfDay returns the last second of t's day.
func endOfDay(t time.Time) time.Time {
	return t.Add(24*time.Hour - time.Second)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatAmount renders 1234.5 as "1,234.50".
func FormatAmount(v float64) string {
	s := strconv.FormatFloat(math.Abs(v), 'f', 2, 64)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}

// toFloat converts a scanned SQLite value to float64.
func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case []byte:
		f, _ := strconv.ParseFloat(string(n), 64)
		return f
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}
