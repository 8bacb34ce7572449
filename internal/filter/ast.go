package filter

import "strings"

// Node is the interface implemented by all AST nodes.
type Node interface {
	nodeType() string
	Pos() int // byte offset in source
}

// Program is a parsed expression: one or more chained clauses.
type Program struct {
	Clauses []*Clause
}

// Clause represents: Operator(param => body)
type Clause struct {
	TokenPos int
	Operator string
	Param    string
	Body     Expr
}

func (c *Clause) nodeType() string { return "Clause" }
func (c *Clause) Pos() int         { return c.TokenPos }

// Expr is implemented by all expression nodes of a clause body.
type Expr interface {
	Node
	exprNode()
}

// LogicOp is AND or OR.
type LogicOp int

const (
	LogicAnd LogicOp = iota
	LogicOr
)

// BinaryLogicExpr represents "expr && expr" or "expr || expr".
type BinaryLogicExpr struct {
	TokenPos int
	Op       LogicOp
	Left     Expr
	Right    Expr
}

func (e *BinaryLogicExpr) nodeType() string { return "BinaryLogicExpr" }
func (e *BinaryLogicExpr) Pos() int         { return e.TokenPos }
func (e *BinaryLogicExpr) exprNode()        {}

// NotExpr represents "!expr".
type NotExpr struct {
	TokenPos int
	Expr     Expr
}

func (e *NotExpr) nodeType() string { return "NotExpr" }
func (e *NotExpr) Pos() int         { return e.TokenPos }
func (e *NotExpr) exprNode()        {}

// CompOp is a comparison operator. Loose equality is parsed into the strict
// operators: no type coercion ever happens.
type CompOp int

const (
	CompEQ CompOp = iota
	CompNEQ
	CompGT
	CompLT
	CompGTE
	CompLTE
)

// String returns the operator symbol.
func (op CompOp) String() string {
	switch op {
	case CompEQ:
		return "==="
	case CompNEQ:
		return "!=="
	case CompGT:
		return ">"
	case CompLT:
		return "<"
	case CompGTE:
		return ">="
	case CompLTE:
		return "<="
	default:
		return "?"
	}
}

// ComparisonExpr represents "operand op operand".
type ComparisonExpr struct {
	TokenPos int
	Left     Expr
	Op       CompOp
	Right    Expr
}

func (e *ComparisonExpr) nodeType() string { return "ComparisonExpr" }
func (e *ComparisonExpr) Pos() int         { return e.TokenPos }
func (e *ComparisonExpr) exprNode()        {}

// PathExpr is a property access on the clause parameter, e.g. "c.Owner.Name".
// An empty Parts refers to the entity itself.
type PathExpr struct {
	TokenPos int
	Param    string
	Parts    []string
}

// String returns the dotted path.
func (e *PathExpr) String() string {
	return strings.Join(append([]string{e.Param}, e.Parts...), ".")
}

func (e *PathExpr) nodeType() string { return "PathExpr" }
func (e *PathExpr) Pos() int         { return e.TokenPos }
func (e *PathExpr) exprNode()        {}

// LiteralType classifies a literal value.
type LiteralType int

const (
	LitString LiteralType = iota
	LitInt
	LitFloat
	LitBool
	LitNull
)

// Literal represents a constant value.
type Literal struct {
	TokenPos int
	Type     LiteralType
	Raw      string
	Value    any // string, int64, float64, bool or nil
}

func (l *Literal) nodeType() string { return "Literal" }
func (l *Literal) Pos() int         { return l.TokenPos }
func (l *Literal) exprNode()        {}
