package filter

import (
	"math"

	"github.com/matthewbaird/entitygrid/internal/types"
)

// eval computes the value of an expression against one entity.
func eval(expr Expr, e *types.Entity) any {
	switch x := expr.(type) {
	case *Literal:
		return x.Value
	case *PathExpr:
		return resolve(e, x.Parts)
	case *NotExpr:
		return !truthy(eval(x.Expr, e))
	case *BinaryLogicExpr:
		left := truthy(eval(x.Left, e))
		if x.Op == LogicAnd {
			return left && truthy(eval(x.Right, e))
		}
		return left || truthy(eval(x.Right, e))
	case *ComparisonExpr:
		return compare(x.Op, eval(x.Left, e), eval(x.Right, e))
	}
	return nil
}

// resolve walks a property path. Nested objects are maps; anything else
// ends the walk with nil.
func resolve(e *types.Entity, parts []string) any {
	if e == nil {
		return nil
	}
	if len(parts) == 0 {
		return e
	}
	cur, _ := e.Get(parts[0])
	for _, p := range parts[1:] {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[p]
	}
	return cur
}

func compare(op CompOp, a, b any) bool {
	switch op {
	case CompEQ:
		return strictEqual(a, b)
	case CompNEQ:
		return !strictEqual(a, b)
	}
	c, ok := order(a, b)
	if !ok {
		return false
	}
	switch op {
	case CompGT:
		return c > 0
	case CompLT:
		return c < 0
	case CompGTE:
		return c >= 0
	default:
		return c <= 0
	}
}

// strictEqual compares without type coercion: numbers with numbers, strings
// with strings, booleans with booleans. A missing property equals null.
func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case *types.Entity:
		bv, ok := b.(*types.Entity)
		return ok && av == bv
	}
	return false
}

// order compares two values of the same kind. Mixed kinds are unordered.
func order(a, b any) (int, bool) {
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		if !ok || math.IsNaN(fa) || math.IsNaN(fb) {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	as, ok := a.(string)
	if !ok {
		return 0, false
	}
	bs, ok := b.(string)
	if !ok {
		return 0, false
	}
	switch {
	case as < bs:
		return -1, true
	case as > bs:
		return 1, true
	}
	return 0, true
}

func number(v any) (float64, bool) {
	if _, isBool := v.(bool); isBool {
		return 0, false
	}
	return types.AsFloat(v)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case *types.Entity:
		return t != nil
	}
	if f, ok := number(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}
