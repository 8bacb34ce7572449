// Package filter implements the lexer, parser and interpreter for filter
// expressions: chains of Where clauses over a single lambda parameter, e.g.
//
//	Where(c => c.Balance > 100 && c.Active).Where(c => c.Region != "West")
//
// Expressions are parsed and interpreted; nothing is ever evaluated as code.
package filter

// TokenType identifies the kind of lexical token.
type TokenType int

const (
	// Literals and identifiers
	TokenEOF    TokenType = iota
	TokenIdent            // parameter, property or operator name
	TokenString           // "quoted" or 'quoted'
	TokenInt              // 123
	TokenFloat            // 1.23
	TokenBool             // true / false
	TokenNull             // null / undefined

	// Comparison
	TokenEQ        // ==
	TokenNEQ       // !=
	TokenStrictEQ  // ===
	TokenStrictNEQ // !==
	TokenGT        // >
	TokenLT        // <
	TokenGTE       // >=
	TokenLTE       // <=

	// Logic
	TokenAnd // &&
	TokenOr  // ||
	TokenNot // !

	// Punctuation
	TokenArrow  // =>
	TokenDot    // .
	TokenComma  // ,
	TokenMinus  // -
	TokenLParen // (
	TokenRParen // )
)

// String returns a human-readable name for the token type.
func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "end of expression"
	case TokenIdent:
		return "identifier"
	case TokenString:
		return "string"
	case TokenInt:
		return "integer"
	case TokenFloat:
		return "float"
	case TokenBool:
		return "boolean"
	case TokenNull:
		return "null"
	case TokenEQ:
		return "=="
	case TokenNEQ:
		return "!="
	case TokenStrictEQ:
		return "==="
	case TokenStrictNEQ:
		return "!=="
	case TokenGT:
		return ">"
	case TokenLT:
		return "<"
	case TokenGTE:
		return ">="
	case TokenLTE:
		return "<="
	case TokenAnd:
		return "&&"
	case TokenOr:
		return "||"
	case TokenNot:
		return "!"
	case TokenArrow:
		return "=>"
	case TokenDot:
		return "."
	case TokenComma:
		return ","
	case TokenMinus:
		return "-"
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	default:
		return "unknown"
	}
}

// IsComparison reports whether the token is a comparison operator.
func (t TokenType) IsComparison() bool {
	return t >= TokenEQ && t <= TokenLTE
}

// Token represents a single lexical token.
type Token struct {
	Type    TokenType
	Literal string // raw text of the token
	Pos     int    // byte offset in source
	Line    int    // 1-based line number
	Col     int    // 1-based column number
}

// keywords are case-sensitive, as in the host expression language.
var keywords = map[string]TokenType{
	"true":      TokenBool,
	"false":     TokenBool,
	"null":      TokenNull,
	"undefined": TokenNull,
}

// LookupKeyword returns the keyword token type for an identifier, or
// TokenIdent if the identifier is not a keyword.
func LookupKeyword(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdent
}
