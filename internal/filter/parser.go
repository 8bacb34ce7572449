package filter

import (
	"fmt"
	"strconv"
)

// Parser implements a recursive descent parser for filter expressions.
type Parser struct {
	tokens []Token
	pos    int
	errors []*ParseError
	param  string // parameter of the clause being parsed
}

// NewParser creates a parser from a token slice (typically from Lexer.Tokenize).
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse parses the token stream into a program.
func (p *Parser) Parse() (*Program, []*ParseError) {
	prog := &Program{}
	for {
		c := p.parseClause()
		if c == nil {
			break
		}
		prog.Clauses = append(prog.Clauses, c)
		if !p.check(TokenDot) {
			break
		}
		p.advance()
	}
	if !p.atEnd() && len(p.errors) == 0 {
		tok := p.peek()
		p.addError(tok, fmt.Sprintf("unexpected %s after clause", tok.Type))
	}
	return prog, p.errors
}

// ── Token navigation ────────────────────────────────────────────────────────

func (p *Parser) peek() Token {
	return p.peekAt(0)
}

func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos+offset]
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if tok.Type != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) atEnd() bool {
	return p.peek().Type == TokenEOF
}

func (p *Parser) check(t TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) match(types ...TokenType) (Token, bool) {
	for _, t := range types {
		if p.check(t) {
			return p.advance(), true
		}
	}
	return Token{}, false
}

func (p *Parser) expect(t TokenType) (Token, bool) {
	if p.check(t) {
		return p.advance(), true
	}
	tok := p.peek()
	p.addError(tok, fmt.Sprintf("expected %s, got %s", t, tok.Type))
	return tok, false
}

func (p *Parser) addError(tok Token, msg string) {
	p.errors = append(p.errors, newParseError(tok, msg))
}

// ── Clauses ─────────────────────────────────────────────────────────────────

func (p *Parser) parseClause() *Clause {
	opTok, ok := p.expect(TokenIdent)
	if !ok {
		return nil
	}
	if _, ok := p.expect(TokenLParen); !ok {
		return nil
	}
	paramTok, ok := p.parseParam()
	if !ok {
		return nil
	}
	if _, ok := p.expect(TokenArrow); !ok {
		return nil
	}
	p.param = paramTok.Literal
	body := p.parseOrExpr()
	if body == nil {
		return nil
	}
	if _, ok := p.expect(TokenRParen); !ok {
		return nil
	}
	return &Clause{TokenPos: opTok.Pos, Operator: opTok.Literal, Param: paramTok.Literal, Body: body}
}

// parseParam accepts "x" or "(x)".
func (p *Parser) parseParam() (Token, bool) {
	if p.check(TokenLParen) && p.peekAt(1).Type == TokenIdent && p.peekAt(2).Type == TokenRParen {
		p.advance()
		tok := p.advance()
		p.advance()
		return tok, true
	}
	return p.expect(TokenIdent)
}

// ── Expressions ─────────────────────────────────────────────────────────────

func (p *Parser) parseOrExpr() Expr {
	left := p.parseAndExpr()
	if left == nil {
		return nil
	}
	for p.check(TokenOr) {
		opTok := p.advance()
		right := p.parseAndExpr()
		if right == nil {
			return nil
		}
		left = &BinaryLogicExpr{TokenPos: opTok.Pos, Op: LogicOr, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAndExpr() Expr {
	left := p.parseUnaryExpr()
	if left == nil {
		return nil
	}
	for p.check(TokenAnd) {
		opTok := p.advance()
		right := p.parseUnaryExpr()
		if right == nil {
			return nil
		}
		left = &BinaryLogicExpr{TokenPos: opTok.Pos, Op: LogicAnd, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnaryExpr() Expr {
	if tok, ok := p.match(TokenNot); ok {
		expr := p.parseUnaryExpr()
		if expr == nil {
			return nil
		}
		return &NotExpr{TokenPos: tok.Pos, Expr: expr}
	}
	if p.check(TokenLParen) {
		p.advance()
		expr := p.parseOrExpr()
		if expr == nil {
			return nil
		}
		if _, ok := p.expect(TokenRParen); !ok {
			return nil
		}
		return expr
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() Expr {
	left := p.parseOperand()
	if left == nil {
		return nil
	}
	if !p.peek().Type.IsComparison() {
		return left
	}
	opTok := p.advance()
	right := p.parseOperand()
	if right == nil {
		return nil
	}
	return &ComparisonExpr{TokenPos: opTok.Pos, Left: left, Op: compOpFor(opTok.Type), Right: right}
}

func compOpFor(t TokenType) CompOp {
	switch t {
	case TokenEQ, TokenStrictEQ:
		return CompEQ
	case TokenNEQ, TokenStrictNEQ:
		return CompNEQ
	case TokenGT:
		return CompGT
	case TokenLT:
		return CompLT
	case TokenGTE:
		return CompGTE
	default:
		return CompLTE
	}
}

func (p *Parser) parseOperand() Expr {
	tok := p.peek()
	switch tok.Type {
	case TokenIdent:
		return p.parsePath()
	case TokenMinus:
		p.advance()
		num := p.peek()
		if num.Type != TokenInt && num.Type != TokenFloat {
			p.addError(num, fmt.Sprintf("expected number after '-', got %s", num.Type))
			return nil
		}
		lit := p.parseLiteral()
		if lit == nil {
			return nil
		}
		lit.TokenPos = tok.Pos
		lit.Raw = "-" + lit.Raw
		switch v := lit.Value.(type) {
		case int64:
			lit.Value = -v
		case float64:
			lit.Value = -v
		}
		return lit
	case TokenString, TokenInt, TokenFloat, TokenBool, TokenNull:
		if lit := p.parseLiteral(); lit != nil {
			return lit
		}
		return nil
	}
	p.addError(tok, fmt.Sprintf("expected property or literal, got %s", tok.Type))
	return nil
}

func (p *Parser) parsePath() Expr {
	tok := p.advance()
	if p.check(TokenLParen) {
		p.addError(tok, fmt.Sprintf("function calls are not supported: %s(", tok.Literal))
		return nil
	}
	if tok.Literal != p.param {
		p.addError(tok, fmt.Sprintf("unknown identifier '%s', expected '%s'", tok.Literal, p.param))
		return nil
	}
	path := &PathExpr{TokenPos: tok.Pos, Param: tok.Literal}
	for p.check(TokenDot) {
		p.advance()
		part, ok := p.expect(TokenIdent)
		if !ok {
			return nil
		}
		if p.check(TokenLParen) {
			p.addError(part, fmt.Sprintf("method calls are not supported: %s(", part.Literal))
			return nil
		}
		path.Parts = append(path.Parts, part.Literal)
	}
	return path
}

func (p *Parser) parseLiteral() *Literal {
	tok := p.advance()
	lit := &Literal{TokenPos: tok.Pos, Raw: tok.Literal}
	switch tok.Type {
	case TokenString:
		lit.Type, lit.Value = LitString, tok.Literal
	case TokenInt:
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.addError(tok, fmt.Sprintf("invalid integer: %s", tok.Literal))
			return nil
		}
		lit.Type, lit.Value = LitInt, n
	case TokenFloat:
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.addError(tok, fmt.Sprintf("invalid number: %s", tok.Literal))
			return nil
		}
		lit.Type, lit.Value = LitFloat, f
	case TokenBool:
		lit.Type, lit.Value = LitBool, tok.Literal == "true"
	case TokenNull:
		lit.Type, lit.Value = LitNull, nil
	default:
		p.addError(tok, fmt.Sprintf("expected literal value, got %s", tok.Type))
		return nil
	}
	return lit
}
