package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/flowengine/pkg/gml/value"
)

func mustEval(t *testing.T, source string, ctx Context) value.Value {
	t.Helper()
	v, err := EvalSource(source, ctx)
	require.NoError(t, err)
	return v
}

func TestEvalReturnExpression(t *testing.T) {
	v := mustEval(t, "return 1 + 2", nil)
	assert.Equal(t, int64(3), v.AsInt())
}

func TestEvalBareExpressionNoAssignment(t *testing.T) {
	v := mustEval(t, "1 + 1, 2 + 2", nil)
	assert.Equal(t, int64(4), v.AsInt())
}

func TestEvalAssignmentsProduceObject(t *testing.T) {
	v := mustEval(t, "a = 1, b = 2", nil)
	require.Equal(t, value.KindMapping, v.Kind())
	m := v.AsMapping()
	assert.Equal(t, int64(1), m["a"].AsInt())
	assert.Equal(t, int64(2), m["b"].AsInt())
}

func TestEvalTempAssignmentHiddenFromResultButVisibleLater(t *testing.T) {
	v := mustEval(t, "$tmp = 5, total = $tmp + 1", nil)
	m := v.AsMapping()
	_, hasTemp := m["$tmp"]
	assert.False(t, hasTemp)
	assert.Equal(t, int64(6), m["total"].AsInt())
}

func TestEvalSingleAssignmentStillWrapsAsObject(t *testing.T) {
	v := mustEval(t, "x = 10", nil)
	require.Equal(t, value.KindMapping, v.Kind())
	assert.Equal(t, int64(10), v.AsMapping()["x"].AsInt())
}

func TestEvalOnlyTempAssignmentFallsBackToResult(t *testing.T) {
	v := mustEval(t, "$tmp = 1, $tmp + 1", nil)
	assert.Equal(t, int64(2), v.AsInt())
}

func TestEvalVariablePath(t *testing.T) {
	ctx := Context{"user": value.Mapping(map[string]value.Value{
		"name": value.String("alice"),
	})}
	v := mustEval(t, "return user.name", ctx)
	assert.Equal(t, "alice", v.AsString())
}

func TestEvalVariablePathNullPropagates(t *testing.T) {
	ctx := Context{"user": value.Null}
	v := mustEval(t, "return user.name.deep", ctx)
	assert.True(t, v.IsNull())
}

func TestEvalThisResolvesAgainstScope(t *testing.T) {
	v := mustEval(t, "a = 1, b = this.a + 1", nil)
	assert.Equal(t, int64(2), v.AsMapping()["b"].AsInt())
}

func TestEvalAndShortCircuitsWithoutEvaluatingRight(t *testing.T) {
	v := mustEval(t, "return false && (1/0 == 0)", nil)
	assert.Equal(t, false, v.AsBool())
}

func TestEvalAndCoercesRightToBool(t *testing.T) {
	v := mustEval(t, "return true && 5", nil)
	assert.Equal(t, true, v.AsBool())
}

func TestEvalOrReturnsRawLeftWithoutCoercion(t *testing.T) {
	v := mustEval(t, "return 5 || false", nil)
	assert.Equal(t, int64(5), v.AsInt())
}

func TestEvalOrReturnsRawRightWithoutCoercion(t *testing.T) {
	v := mustEval(t, "return null || 5", nil)
	assert.Equal(t, int64(5), v.AsInt())
}

func TestEvalDivisionByIntZeroErrors(t *testing.T) {
	_, err := EvalSource("return 1 / 0", nil)
	require.Error(t, err)
	assert.IsType(t, &DivisionByZeroError{}, err)
}

func TestEvalDivisionByFloatZeroProducesInf(t *testing.T) {
	v := mustEval(t, "return 1.0 / 0.0", nil)
	assert.True(t, v.AsFloat() > 1e300 || v.AsFloat() != v.AsFloat()+1)
}

func TestEvalArrayIndexOutOfBoundsErrors(t *testing.T) {
	_, err := EvalSource("return [1,2,3][10]", nil)
	require.Error(t, err)
	assert.IsType(t, &IndexOutOfBoundsError{}, err)
}

func TestEvalArrayIndexNegativeFromEnd(t *testing.T) {
	v := mustEval(t, "return [1,2,3][-1]", nil)
	assert.Equal(t, int64(3), v.AsInt())
}

func TestEvalArrayLastHash(t *testing.T) {
	v := mustEval(t, "return [1,2,3][#]", nil)
	assert.Equal(t, int64(3), v.AsInt())
}

func TestEvalObjectIndexMissingKeyIsNull(t *testing.T) {
	v := mustEval(t, "o = { a = 1 }, return o['missing']", nil)
	assert.True(t, v.IsNull())
}

func TestEvalMethodCallOnNullShortCircuits(t *testing.T) {
	v := mustEval(t, "return null.length()", nil)
	assert.True(t, v.IsNull())
}

func TestEvalArrayMethodsSumAvgMinMax(t *testing.T) {
	v := mustEval(t, "return [1,2,3].sum()", nil)
	assert.Equal(t, 6.0, v.AsFloat())
	v = mustEval(t, "return [1,2,3].avg()", nil)
	assert.Equal(t, 2.0, v.AsFloat())
	v = mustEval(t, "return [].avg()", nil)
	assert.True(t, v.IsNull())
}

func TestEvalArrayMethodsWithFieldName(t *testing.T) {
	ctx := Context{}
	v := mustEval(t, "return [{amount=1},{amount=2}].sum('amount')", ctx)
	assert.Equal(t, 3.0, v.AsFloat())
}

func TestEvalArrayDistinctAndJoin(t *testing.T) {
	v := mustEval(t, "return [1,1,2,3,3].distinct().join('-')", nil)
	assert.Equal(t, "1-2-3", v.AsString())
}

func TestEvalArrayIncludesRequiresArgument(t *testing.T) {
	_, err := EvalSource("return [1,2].includes()", nil)
	require.Error(t, err)
}

func TestEvalArrayConcatIgnoresNonArrayArg(t *testing.T) {
	v := mustEval(t, "return [1,2].concat(3)", nil)
	assert.Equal(t, 2, len(v.AsArray()))
}

func TestEvalObjectProj(t *testing.T) {
	v := mustEval(t, "o = {a=1,b=2,c=3}, return o.proj('a, c')", nil)
	m := v.AsMapping()
	assert.Equal(t, int64(1), m["a"].AsInt())
	_, hasB := m["b"]
	assert.False(t, hasB)
}

func TestEvalStringMethods(t *testing.T) {
	v := mustEval(t, "return 'Hello'.toLowerCase()", nil)
	assert.Equal(t, "hello", v.AsString())
	v = mustEval(t, "return 'hi'.length()", nil)
	assert.Equal(t, int64(2), v.AsInt())
}

func TestEvalTemplate(t *testing.T) {
	ctx := Context{"name": value.String("bob")}
	v := mustEval(t, "return `hi ${name}!`", ctx)
	assert.Equal(t, "hi bob!", v.AsString())
}

func TestEvalCase(t *testing.T) {
	v := mustEval(t, "return CASE WHEN false THEN 1 WHEN true THEN 2 ELSE 3 END", nil)
	assert.Equal(t, int64(2), v.AsInt())
}

func TestEvalTernary(t *testing.T) {
	v := mustEval(t, "return true ? 1 : 2", nil)
	assert.Equal(t, int64(1), v.AsInt())
}

func TestEvalSpreadInObjectLiteral(t *testing.T) {
	v := mustEval(t, "a = {x=1}, b = {...a, y=2}", nil)
	m := v.AsMapping()["b"].AsMapping()
	assert.Equal(t, int64(1), m["x"].AsInt())
	assert.Equal(t, int64(2), m["y"].AsInt())
}

func TestEvalLambdaCannotBeEvaluatedDirectly(t *testing.T) {
	_, err := EvalSource("return x => x + 1", nil)
	require.Error(t, err)
}

func TestEvalComparisonAcrossIntFloat(t *testing.T) {
	v := mustEval(t, "return 1 < 1.5", nil)
	assert.True(t, v.AsBool())
}

func TestEvalComparisonIncompatibleTypesErrors(t *testing.T) {
	_, err := EvalSource("return 1 < 'a'", nil)
	require.Error(t, err)
	assert.IsType(t, &TypeError{}, err)
}
