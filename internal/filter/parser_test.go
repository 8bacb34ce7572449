package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, input string) (*Program, []*ParseError) {
	t.Helper()
	tokens, lexErrs := NewLexer(input).Tokenize()
	require.Empty(t, lexErrs)
	return NewParser(tokens).Parse()
}

func TestParser_SingleClause(t *testing.T) {
	prog, errs := parse(t, `Where(x => x.Age > 18)`)
	require.Empty(t, errs)
	require.Len(t, prog.Clauses, 1)

	c := prog.Clauses[0]
	assert.Equal(t, "Where", c.Operator)
	assert.Equal(t, "x", c.Param)

	cmp, ok := c.Body.(*ComparisonExpr)
	require.True(t, ok)
	assert.Equal(t, CompGT, cmp.Op)
	path, ok := cmp.Left.(*PathExpr)
	require.True(t, ok)
	assert.Equal(t, []string{"Age"}, path.Parts)
	assert.Equal(t, "x.Age", path.String())
	lit, ok := cmp.Right.(*Literal)
	require.True(t, ok)
	assert.Equal(t, int64(18), lit.Value)
}

func TestParser_Precedence(t *testing.T) {
	prog, errs := parse(t, `Where(x => x.A == 1 || x.B == 2 && !x.C)`)
	require.Empty(t, errs)

	or, ok := prog.Clauses[0].Body.(*BinaryLogicExpr)
	require.True(t, ok)
	assert.Equal(t, LogicOr, or.Op)
	and, ok := or.Right.(*BinaryLogicExpr)
	require.True(t, ok)
	assert.Equal(t, LogicAnd, and.Op)
	_, ok = and.Right.(*NotExpr)
	assert.True(t, ok)
}

func TestParser_Grouping(t *testing.T) {
	prog, errs := parse(t, `Where((x) => (x.A == 1 || x.B == 2) && x.C)`)
	require.Empty(t, errs)
	and, ok := prog.Clauses[0].Body.(*BinaryLogicExpr)
	require.True(t, ok)
	assert.Equal(t, LogicAnd, and.Op)
}

func TestParser_LooseEqualityIsStrict(t *testing.T) {
	prog, errs := parse(t, `Where(x => x.A == 1 && x.B != 2 && x.C === 3 && x.D !== 4)`)
	require.Empty(t, errs)

	var ops []CompOp
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *BinaryLogicExpr:
			walk(n.Left)
			walk(n.Right)
		case *ComparisonExpr:
			ops = append(ops, n.Op)
		}
	}
	walk(prog.Clauses[0].Body)
	assert.Equal(t, []CompOp{CompEQ, CompNEQ, CompEQ, CompNEQ}, ops)
}

func TestParser_ChainedClauses(t *testing.T) {
	prog, errs := parse(t, `Where(a => a.X > 1).Where(b => b.Y < -2.5)`)
	require.Empty(t, errs)
	require.Len(t, prog.Clauses, 2)
	assert.Equal(t, "b", prog.Clauses[1].Param)

	cmp := prog.Clauses[1].Body.(*ComparisonExpr)
	assert.Equal(t, -2.5, cmp.Right.(*Literal).Value)
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"unknown identifier", `Where(x => y.Age > 1)`, "unknown identifier"},
		{"method call", `Where(x => x.Name.startsWith("a"))`, "method calls"},
		{"missing arrow", `Where(x x.Age)`, "expected =>"},
		{"missing paren", `Where(x => x.Age > 1`, "expected )"},
		{"trailing tokens", `Where(x => x.Age) x`, "unexpected"},
		{"dangling operator", `Where(x => x.Age >)`, "expected property or literal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := parse(t, tt.input)
			require.NotEmpty(t, errs)
			assert.Contains(t, errs[0].Message, tt.msg)
		})
	}
}
