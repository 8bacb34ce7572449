package filter

import (
	"fmt"
	"strings"

	"github.com/matthewbaird/entitygrid/internal/types"
)

// Operator is the only clause operator accepted.
const Operator = "Where"

// Filter is a compiled expression. Clauses are combined with AND.
type Filter struct {
	text    string
	program *Program
}

// Compile parses and validates an expression. Every clause operator must be
// Where and at least one clause must be present; anything else is an
// *InvalidExpressionError.
func Compile(text string) (*Filter, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &InvalidExpressionError{Expression: text, Reason: "no operator found"}
	}

	tokens, lexErrs := NewLexer(text).Tokenize()
	if len(lexErrs) > 0 {
		return nil, &InvalidExpressionError{Expression: text, Reason: lexErrs[0].Error(), Cause: lexErrs[0]}
	}
	if err := checkOperators(text, tokens); err != nil {
		return nil, err
	}
	prog, errs := NewParser(tokens).Parse()
	if len(errs) > 0 {
		return nil, &InvalidExpressionError{Expression: text, Reason: errs[0].Error(), Cause: errs[0]}
	}
	if len(prog.Clauses) == 0 {
		return nil, &InvalidExpressionError{Expression: text, Reason: "no operator found"}
	}
	return &Filter{text: text, program: prog}, nil
}

// MustCompile is Compile for expressions known at build time.
func MustCompile(text string) *Filter {
	f, err := Compile(text)
	if err != nil {
		panic(err)
	}
	return f
}

// checkOperators rejects any identifier called like an operator, "Name(",
// unless it is Where. Property paths ("x.Name(") count too.
func checkOperators(text string, tokens []Token) error {
	found := false
	for i := 0; i+1 < len(tokens); i++ {
		tok := tokens[i]
		if tok.Type != TokenIdent || tokens[i+1].Type != TokenLParen {
			continue
		}
		if tok.Literal != Operator {
			pe := newParseError(tok, fmt.Sprintf("unsupported operator '%s'", tok.Literal))
			pe.Suggestion = suggestOperator(tok.Literal)
			return &InvalidExpressionError{Expression: text, Reason: pe.Message, Cause: pe}
		}
		found = true
	}
	if !found {
		return &InvalidExpressionError{Expression: text, Reason: "no operator found"}
	}
	return nil
}

// String returns the source text.
func (f *Filter) String() string { return f.text }

// Clauses returns the number of chained clauses.
func (f *Filter) Clauses() int { return len(f.program.Clauses) }

// Match reports whether an entity satisfies every clause.
func (f *Filter) Match(e *types.Entity) bool {
	for _, c := range f.program.Clauses {
		if !truthy(eval(c.Body, e)) {
			return false
		}
	}
	return true
}

// Predicate returns Match as a function value.
func (f *Filter) Predicate() func(*types.Entity) bool {
	return f.Match
}

// Apply returns the entities that satisfy the filter, in input order.
func (f *Filter) Apply(list []*types.Entity) []*types.Entity {
	out := make([]*types.Entity, 0, len(list))
	for _, e := range list {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}
