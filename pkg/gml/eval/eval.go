// Package eval implements the tree-walking evaluator for GML scripts: guard
// expressions (only/when), field transforms (with_expr/sets) and tool
// argument bodies all run through Eval/EvalScript.
package eval

import (
	"strings"

	"github.com/r3e-network/flowengine/pkg/gml/ast"
	"github.com/r3e-network/flowengine/pkg/gml/parser"
	"github.com/r3e-network/flowengine/pkg/gml/value"
)

// Context is the read-only input bag a script evaluates against (flow
// inputs, variables, globals — whatever the caller merges together before
// invoking EvalSource/EvalScript).
type Context map[string]value.Value

func (c Context) get(key string) value.Value {
	if v, ok := c[key]; ok {
		return v
	}
	return value.Null
}

// EvalSource lexes, parses and evaluates a script in one call.
func EvalSource(source string, ctx Context) (value.Value, error) {
	script, err := parser.Parse(source)
	if err != nil {
		return value.Null, err
	}
	return EvalScript(script, ctx)
}

// EvalScript runs every statement in order and produces the script result.
//
// Every assignment, temp ($-prefixed) or not, is written into an in-progress
// output map; $-prefixed keys are filtered out of the final result but
// remain visible to later statements in the same script (mirroring the
// original evaluator, which reuses this map as the expression scope too).
// A bare Return short-circuits immediately. With no assignments at all, the
// script's value is simply the last bare expression evaluated.
func EvalScript(script *ast.Script, ctx Context) (value.Value, error) {
	output := map[string]value.Value{}
	result := value.Null
	hasAssignment := false

	for _, stmt := range script.Statements {
		switch s := stmt.(type) {
		case ast.Return:
			return Eval(s.Expression, ctx, output)
		case ast.Assignment:
			v, err := Eval(s.Expression, ctx, output)
			if err != nil {
				return value.Null, err
			}
			key := s.Field
			if s.IsTemp {
				key = "$" + s.Field
			}
			output[key] = v
			hasAssignment = true
		case ast.ExprStatement:
			v, err := Eval(s.Expression, ctx, output)
			if err != nil {
				return value.Null, err
			}
			result = v
		}
	}

	if !hasAssignment {
		return result, nil
	}
	filtered := make(map[string]value.Value, len(output))
	for k, v := range output {
		if strings.HasPrefix(k, "$") {
			continue
		}
		filtered[k] = v
	}
	if len(filtered) == 0 {
		return result, nil
	}
	return value.Mapping(filtered), nil
}

// scope is the in-progress output map threaded through expression
// evaluation; it doubles as the lexical scope AND as what `this` resolves
// against, matching the original evaluator exactly.
type scope = map[string]value.Value

// Eval evaluates a single expression against ctx (the script's outer input)
// and scope (the in-progress assignment map — pass an empty map when
// evaluating standalone expressions such as a node's `only`/`when` guard).
func Eval(expr ast.Expression, ctx Context, sc scope) (value.Value, error) {
	switch e := expr.(type) {
	case ast.Literal:
		return e.Value, nil

	case ast.Variable:
		return evalPath(e.Path, ctx, sc)

	case ast.This:
		return resolvePath(value.Mapping(sc), e.Path)

	case ast.Index:
		return evalIndex(e, ctx, sc)

	case ast.Unary:
		v, err := Eval(e.Operand, ctx, sc)
		if err != nil {
			return value.Null, err
		}
		switch e.Op {
		case ast.OpNot:
			return value.Bool(!v.Truthy()), nil
		case ast.OpNeg:
			switch v.Kind() {
			case value.KindInt:
				return value.Int(-v.AsInt()), nil
			case value.KindFloat:
				return value.Float(-v.AsFloat()), nil
			default:
				return value.Null, &TypeError{Expected: "number", Actual: v.Kind().String()}
			}
		}
		return value.Null, &EvaluationError{Message: "unknown unary operator"}

	case ast.Binary:
		return evalBinary(e, ctx, sc)

	case ast.Ternary:
		cond, err := Eval(e.Condition, ctx, sc)
		if err != nil {
			return value.Null, err
		}
		if cond.Truthy() {
			return Eval(e.ThenBranch, ctx, sc)
		}
		return Eval(e.ElseBranch, ctx, sc)

	case ast.Case:
		for _, branch := range e.Branches {
			cond, err := Eval(branch.When, ctx, sc)
			if err != nil {
				return value.Null, err
			}
			if cond.Truthy() {
				return Eval(branch.Then, ctx, sc)
			}
		}
		if e.ElseBranch != nil {
			return Eval(e.ElseBranch, ctx, sc)
		}
		return value.Null, nil

	case ast.FunctionCall:
		args := make([]value.Value, len(e.Args))
		for i, a := range e.Args {
			v, err := Eval(a, ctx, sc)
			if err != nil {
				return value.Null, err
			}
			args[i] = v
		}
		fn, ok := Builtins[strings.ToUpper(e.Name)]
		if !ok {
			return value.Null, &UndefinedFunctionError{Name: e.Name}
		}
		return fn(args)

	case ast.MethodCall:
		target, err := Eval(e.Target, ctx, sc)
		if err != nil {
			return value.Null, err
		}
		if target.IsNull() {
			return value.Null, nil
		}
		args := make([]value.Value, len(e.Args))
		for i, a := range e.Args {
			v, err := Eval(a, ctx, sc)
			if err != nil {
				return value.Null, err
			}
			args[i] = v
		}
		return evalMethod(target, e.Method, args)

	case ast.Lambda:
		return value.Null, &EvaluationError{Message: "lambda cannot be evaluated directly"}

	case ast.ObjectLiteral:
		return evalObjectLiteral(e, ctx, sc)

	case ast.ArrayLiteral:
		items := make([]value.Value, len(e.Elements))
		for i, el := range e.Elements {
			v, err := Eval(el, ctx, sc)
			if err != nil {
				return value.Null, err
			}
			items[i] = v
		}
		return value.Array(items), nil

	case ast.Spread:
		return Eval(e.Expression, ctx, sc)

	case ast.Template:
		return evalTemplate(e, ctx, sc)
	}
	return value.Null, &EvaluationError{Message: "unknown expression kind"}
}

// evalPath resolves a dotted Variable path: the first segment is looked up
// in scope first; if present, the remaining segments resolve against that
// scope value. Otherwise the full path resolves against ctx from the top.
func evalPath(path []string, ctx Context, sc scope) (value.Value, error) {
	if len(path) == 0 {
		return value.Null, nil
	}
	if head, ok := sc[path[0]]; ok {
		return resolvePath(head, path[1:])
	}
	return resolvePath(value.Mapping(ctx), path)
}

func resolvePath(v value.Value, path []string) (value.Value, error) {
	cur := v
	for _, seg := range path {
		next, err := cur.Get(seg)
		if err != nil {
			return value.Null, err
		}
		cur = next
	}
	return cur, nil
}

func evalIndex(e ast.Index, ctx Context, sc scope) (value.Value, error) {
	target, err := Eval(e.Target, ctx, sc)
	if err != nil {
		return value.Null, err
	}
	if target.IsNull() {
		return value.Null, nil
	}

	switch e.Kind {
	case ast.IndexNumber:
		return indexArrayChecked(target, e.Number)
	case ast.IndexLast:
		if target.Kind() != value.KindArray {
			return value.Null, &TypeError{Expected: "array", Actual: target.Kind().String()}
		}
		arr := target.AsArray()
		if len(arr) == 0 {
			return value.Null, &IndexOutOfBoundsError{Index: -1, Length: 0}
		}
		return indexArrayChecked(target, int64(len(arr)-1))
	case ast.IndexExpression:
		idx, err := Eval(e.Expr, ctx, sc)
		if err != nil {
			return value.Null, err
		}
		switch target.Kind() {
		case value.KindArray:
			if idx.Kind() != value.KindInt {
				return value.Null, &TypeError{Expected: "int index", Actual: idx.Kind().String()}
			}
			return indexArrayChecked(target, idx.AsInt())
		case value.KindMapping:
			if idx.Kind() != value.KindString {
				return value.Null, &TypeError{Expected: "string key", Actual: idx.Kind().String()}
			}
			m := target.AsMapping()
			if v, ok := m[idx.AsString()]; ok {
				return v, nil
			}
			return value.Null, nil
		default:
			return value.Null, &TypeError{Expected: "array or object", Actual: target.Kind().String()}
		}
	}
	return value.Null, &EvaluationError{Message: "unknown index kind"}
}

// indexArrayChecked performs a hard-erroring numeric index, unlike plain
// field access which null-propagates: negative indices count from the end,
// out-of-bounds is always an error.
func indexArrayChecked(target value.Value, i int64) (value.Value, error) {
	if target.Kind() != value.KindArray {
		return value.Null, &TypeError{Expected: "array", Actual: target.Kind().String()}
	}
	arr := target.AsArray()
	idx := i
	if idx < 0 {
		idx += int64(len(arr))
	}
	if idx < 0 || idx >= int64(len(arr)) {
		return value.Null, &IndexOutOfBoundsError{Index: i, Length: len(arr)}
	}
	return arr[idx], nil
}

func evalBinary(e ast.Binary, ctx Context, sc scope) (value.Value, error) {
	if e.Op == ast.OpAnd {
		left, err := Eval(e.Left, ctx, sc)
		if err != nil {
			return value.Null, err
		}
		if !left.Truthy() {
			return value.Bool(false), nil
		}
		right, err := Eval(e.Right, ctx, sc)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(right.Truthy()), nil
	}
	if e.Op == ast.OpOr {
		left, err := Eval(e.Left, ctx, sc)
		if err != nil {
			return value.Null, err
		}
		if left.Truthy() {
			return left, nil
		}
		return Eval(e.Right, ctx, sc)
	}

	left, err := Eval(e.Left, ctx, sc)
	if err != nil {
		return value.Null, err
	}
	right, err := Eval(e.Right, ctx, sc)
	if err != nil {
		return value.Null, err
	}
	return evalBinaryOp(e.Op, left, right)
}

func evalBinaryOp(op ast.BinaryOp, left, right value.Value) (value.Value, error) {
	switch op {
	case ast.OpAdd:
		if left.Kind() == value.KindString && right.Kind() == value.KindString {
			return value.String(left.AsString() + right.AsString()), nil
		}
		return numericOp(left, right, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b })
	case ast.OpSub:
		return numericOp(left, right, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b })
	case ast.OpMul:
		return numericOp(left, right, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b })
	case ast.OpMod:
		if left.Kind() == value.KindInt && right.Kind() == value.KindInt {
			if right.AsInt() == 0 {
				return value.Null, &DivisionByZeroError{}
			}
		}
		return numericOp(left, right, func(a, b int64) int64 { return a % b }, func(a, b float64) float64 {
			return float64(int64(a) % int64(b))
		})
	case ast.OpDiv:
		if right.Kind() == value.KindInt && right.AsInt() == 0 {
			return value.Null, &DivisionByZeroError{}
		}
		if left.IsNumeric() && right.IsNumeric() {
			return value.Float(left.Float64() / right.Float64()), nil
		}
		return value.Null, &TypeError{Expected: "number", Actual: left.Kind().String()}
	case ast.OpEq:
		return value.Bool(value.Equal(left, right)), nil
	case ast.OpNe:
		return value.Bool(!value.Equal(left, right)), nil
	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		cmp, ok := value.Compare(left, right)
		if !ok {
			return value.Null, &TypeError{Expected: "comparable types", Actual: left.Kind().String() + "/" + right.Kind().String()}
		}
		switch op {
		case ast.OpLt:
			return value.Bool(cmp < 0), nil
		case ast.OpLe:
			return value.Bool(cmp <= 0), nil
		case ast.OpGt:
			return value.Bool(cmp > 0), nil
		case ast.OpGe:
			return value.Bool(cmp >= 0), nil
		}
	}
	return value.Null, &EvaluationError{Message: "unknown binary operator"}
}

func numericOp(left, right value.Value, intOp func(a, b int64) int64, floatOp func(a, b float64) float64) (value.Value, error) {
	if left.Kind() == value.KindInt && right.Kind() == value.KindInt {
		return value.Int(intOp(left.AsInt(), right.AsInt())), nil
	}
	if left.IsNumeric() && right.IsNumeric() {
		return value.Float(floatOp(left.Float64(), right.Float64())), nil
	}
	return value.Null, &TypeError{Expected: "number", Actual: left.Kind().String()}
}

func evalObjectLiteral(e ast.ObjectLiteral, ctx Context, sc scope) (value.Value, error) {
	out := map[string]value.Value{}
	for _, f := range e.Fields {
		switch f.Kind {
		case ast.FieldNamed:
			v, err := Eval(f.Value, ctx, sc)
			if err != nil {
				return value.Null, err
			}
			out[f.Name] = v
		case ast.FieldShorthand:
			if v, ok := sc[f.Name]; ok {
				out[f.Name] = v
			} else {
				out[f.Name] = ctx.get(f.Name)
			}
		case ast.FieldSpread:
			v, err := Eval(f.Value, ctx, sc)
			if err != nil {
				return value.Null, err
			}
			if v.Kind() == value.KindMapping {
				for k, mv := range v.AsMapping() {
					out[k] = mv
				}
			}
		}
	}
	return value.Mapping(out), nil
}

func evalTemplate(e ast.Template, ctx Context, sc scope) (value.Value, error) {
	var sb strings.Builder
	for _, part := range e.Parts {
		if part.Kind == ast.TemplateLiteral {
			sb.WriteString(part.Literal)
			continue
		}
		v, err := Eval(part.Expr, ctx, sc)
		if err != nil {
			return value.Null, err
		}
		sb.WriteString(v.ToString())
	}
	return value.String(sb.String()), nil
}
