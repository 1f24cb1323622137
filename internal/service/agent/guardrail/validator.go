// Package guardrail checks ad-hoc SQL before it reaches the ledger.
//
// Only a single read statement is accepted. The scanner walks the input one
// character at a time, tracking quoted literals, quoted identifiers and
// comments, so keywords inside strings or comments never trigger a rejection
// and a keyword split by a comment is read as two unrelated words.
package guardrail

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/miguelbenajes/HoldedConnector/internal/domain"
)

// forbidden lists words that indicate mutation, schema change, or
// SQLite-specific database manipulation.
var forbidden = map[string]struct{}{
	"INSERT":   {},
	"UPDATE":   {},
	"DELETE":   {},
	"DROP":     {},
	"ALTER":    {},
	"CREATE":   {},
	"TRUNCATE": {},
	"ATTACH":   {},
	"DETACH":   {},
	"PRAGMA":   {},
	"VACUUM":   {},
	"REINDEX":  {},
	"GRANT":    {},
	"REVOKE":   {},
}

// readStarts are the words a read statement may begin with.
var readStarts = map[string]struct{}{
	"SELECT": {},
	"WITH":   {},
}

// RejectedError explains why a candidate query was refused.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "query rejected: " + e.Reason
}

// Is lets callers match rejections with errors.Is(err, domain.ErrValidation).
func (e *RejectedError) Is(target error) bool {
	return target == domain.ErrValidation
}

// ToolError converts the rejection into the error fed back to the model.
func (e *RejectedError) ToolError() *domain.ToolError {
	return domain.NewToolError(domain.ToolErrGuardrail, "%s. Only a single read-only SELECT statement is allowed.", e.Reason)
}

type scanState int

const (
	stateNormal scanState = iota
	stateSingleQuote
	stateDoubleQuote
	stateBacktick
	stateLineComment
	stateBlockComment
)

// Validate returns nil when candidate is a single read-only statement and a
// *RejectedError otherwise.
func Validate(candidate string) error {
	s := &scanner{input: []rune(candidate)}
	return s.run()
}

type scanner struct {
	input      []rune
	word       strings.Builder
	firstWord  string
	terminated bool // a ';' has been seen outside literals and comments
}

func (s *scanner) run() error {
	state := stateNormal

	for i := 0; i < len(s.input); i++ {
		c := s.input[i]
		next := rune(0)
		if i+1 < len(s.input) {
			next = s.input[i+1]
		}

		switch state {
		case stateSingleQuote:
			if c == '\'' {
				if next == '\'' {
					i++ // escaped quote
					continue
				}
				state = stateNormal
			}
			continue

		case stateDoubleQuote:
			if c == '"' {
				if next == '"' {
					i++
					continue
				}
				state = stateNormal
			}
			continue

		case stateBacktick:
			if c == '`' {
				state = stateNormal
			}
			continue

		case stateLineComment:
			if c == '\n' {
				state = stateNormal
			}
			continue

		case stateBlockComment:
			if c == '*' && next == '/' {
				i++
				state = stateNormal
			}
			continue
		}

		// Normal state
		if isWordRune(c) {
			if s.terminated {
				return reject("multiple statements are not allowed")
			}
			s.word.WriteRune(c)
			continue
		}

		// Any non-word character ends the current word, including comment
		// openers, so "DR/**/OP" scans as "DR" and "OP".
		if err := s.flushWord(); err != nil {
			return err
		}

		switch {
		case c == '-' && next == '-':
			i++
			state = stateLineComment
		case c == '/' && next == '*':
			i++
			state = stateBlockComment
		case c == ';':
			s.terminated = true
		case unicode.IsSpace(c):
		default:
			if s.terminated {
				return reject("multiple statements are not allowed")
			}
			switch c {
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			case '`':
				state = stateBacktick
			}
		}
	}

	switch state {
	case stateSingleQuote, stateDoubleQuote, stateBacktick:
		return reject("unterminated quoted literal")
	case stateBlockComment:
		return reject("unterminated comment")
	}

	if err := s.flushWord(); err != nil {
		return err
	}

	if s.firstWord == "" {
		return reject("empty query")
	}
	return nil
}

// flushWord checks the accumulated word and resets the buffer.
func (s *scanner) flushWord() error {
	if s.word.Len() == 0 {
		return nil
	}
	w := strings.ToUpper(s.word.String())
	s.word.Reset()

	if s.firstWord == "" {
		s.firstWord = w
		if _, ok := readStarts[w]; !ok {
			return reject(fmt.Sprintf("statement must start with SELECT or WITH, got %s", w))
		}
	}

	if _, bad := forbidden[w]; bad {
		return reject(fmt.Sprintf("forbidden keyword %s", w))
	}
	return nil
}

func isWordRune(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}

func reject(reason string) error {
	return &RejectedError{Reason: reason}
}
