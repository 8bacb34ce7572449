package filter

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer tokenizes filter expression text.
type Lexer struct {
	input  string
	pos    int // current byte position
	line   int // 1-based
	col    int // 1-based
	tokens []Token
	errors []*ParseError
}

// NewLexer creates a lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, col: 1}
}

// Tokenize scans the entire input and returns all tokens plus any errors.
func (l *Lexer) Tokenize() ([]Token, []*ParseError) {
	for {
		tok := l.next()
		l.tokens = append(l.tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	return l.tokens, l.errors
}

func (l *Lexer) peek() rune {
	return l.peekAt(0)
}

func (l *Lexer) peekAt(offset int) rune {
	p := l.pos + offset
	if p >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[p:])
	return r
}

func (l *Lexer) advance() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

// operators is ordered longest first so "===" wins over "==".
var operators = []struct {
	text string
	typ  TokenType
}{
	{"===", TokenStrictEQ},
	{"!==", TokenStrictNEQ},
	{"==", TokenEQ},
	{"!=", TokenNEQ},
	{">=", TokenGTE},
	{"<=", TokenLTE},
	{"=>", TokenArrow},
	{"&&", TokenAnd},
	{"||", TokenOr},
	{">", TokenGT},
	{"<", TokenLT},
	{"!", TokenNot},
	{".", TokenDot},
	{",", TokenComma},
	{"-", TokenMinus},
	{"(", TokenLParen},
	{")", TokenRParen},
}

func (l *Lexer) next() Token {
	l.skipWhitespace()

	start := Token{Pos: l.pos, Line: l.line, Col: l.col}
	if l.pos >= len(l.input) {
		start.Type = TokenEOF
		return start
	}

	r := l.peek()
	switch {
	case r == '"' || r == '\'':
		return l.scanString(start)
	case r >= '0' && r <= '9':
		return l.scanNumber(start)
	case isIdentStart(r):
		return l.scanIdent(start)
	}

	rest := l.input[l.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			for range op.text {
				l.advance()
			}
			start.Type = op.typ
			start.Literal = op.text
			return start
		}
	}

	l.advance()
	msg := fmt.Sprintf("unexpected character %q", r)
	if r == '=' {
		msg = "assignment is not allowed, use == or ==="
	}
	l.errors = append(l.errors, newParseError(start, msg))
	start.Type = TokenIdent
	start.Literal = string(r)
	return start
}

func (l *Lexer) scanString(tok Token) Token {
	quote := l.advance()
	var b strings.Builder
	for l.pos < len(l.input) {
		r := l.advance()
		if r == quote {
			tok.Type = TokenString
			tok.Literal = b.String()
			return tok
		}
		if r == '\\' {
			next := l.advance()
			switch next {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\', '"', '\'':
				b.WriteRune(next)
			default:
				b.WriteByte('\\')
				b.WriteRune(next)
			}
			continue
		}
		b.WriteRune(r)
	}
	l.errors = append(l.errors, newParseError(tok, "unterminated string"))
	tok.Type = TokenString
	tok.Literal = b.String()
	return tok
}

func (l *Lexer) scanNumber(tok Token) Token {
	start := l.pos
	isFloat := false
	for l.pos < len(l.input) {
		r := l.peek()
		if r >= '0' && r <= '9' {
			l.advance()
		} else if r == '.' && !isFloat && l.peekAt(1) >= '0' && l.peekAt(1) <= '9' {
			isFloat = true
			l.advance()
		} else {
			break
		}
	}
	tok.Literal = l.input[start:l.pos]
	tok.Type = TokenInt
	if isFloat {
		tok.Type = TokenFloat
	}
	return tok
}

func (l *Lexer) scanIdent(tok Token) Token {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.peek()) {
		l.advance()
	}
	tok.Literal = l.input[start:l.pos]
	tok.Type = LookupKeyword(tok.Literal)
	return tok
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
