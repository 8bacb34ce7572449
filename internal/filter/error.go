package filter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidExpression matches every *InvalidExpressionError.
var ErrInvalidExpression = errors.New("invalid filter expression")

// InvalidExpressionError is returned by Compile for text that is not a valid
// chain of Where clauses.
type InvalidExpressionError struct {
	Expression string
	Reason     string
	Cause      *ParseError // nil when the failure is not positional
}

func (e *InvalidExpressionError) Error() string {
	return fmt.Sprintf("invalid filter expression %q: %s", e.Expression, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidExpression) match.
func (e *InvalidExpressionError) Is(target error) bool {
	return target == ErrInvalidExpression
}

func (e *InvalidExpressionError) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

// ParseError is a structured error from the lexer or parser with position
// information and an optional suggestion.
type ParseError struct {
	Message    string
	Line       int
	Col        int
	Pos        int
	Suggestion string // "did you mean 'Where'?" or ""
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("line %d col %d: %s", e.Line, e.Col, e.Message)
	if e.Suggestion != "" {
		msg += " (" + e.Suggestion + ")"
	}
	return msg
}

func newParseError(tok Token, msg string) *ParseError {
	return &ParseError{
		Message: msg,
		Line:    tok.Line,
		Col:     tok.Col,
		Pos:     tok.Pos,
	}
}

// suggestOperator proposes Where for a misspelled operator name. Case is
// ignored, so "where" and "WHERE" are both caught.
func suggestOperator(word string) string {
	if editDistance(strings.ToLower(word), strings.ToLower(Operator)) > 2 {
		return ""
	}
	return "did you mean '" + Operator + "'?"
}

// editDistance is the rune-wise Levenshtein distance, one row at a time.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}
	for i, ca := range ra {
		diag := row[0]
		row[0] = i + 1
		for j, cb := range rb {
			up := row[j+1]
			sub := diag
			if ca != cb {
				sub++
			}
			row[j+1] = min(up+1, row[j]+1, sub)
			diag = up
		}
	}
	return row[len(rb)]
}
