package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/flowengine/pkg/gml/value"
)

func call(t *testing.T, name string, args ...value.Value) value.Value {
	t.Helper()
	fn, ok := Builtins[name]
	require.True(t, ok, "builtin %s not registered", name)
	v, err := fn(args)
	require.NoError(t, err)
	return v
}

func TestFnSumVariadicAndArray(t *testing.T) {
	v := call(t, "SUM", value.Int(1), value.Int(2), value.Int(3))
	assert.Equal(t, 6.0, v.AsFloat())

	arr := value.Array([]value.Value{value.Int(1), value.Int(2)})
	v = call(t, "SUM", arr)
	assert.Equal(t, 3.0, v.AsFloat())
}

func TestFnConcatCollapsesNullToEmptyString(t *testing.T) {
	v := call(t, "CONCAT", value.String("a"), value.Null, value.String("b"))
	assert.Equal(t, "ab", v.AsString())
}

func TestFnStringRendersNullAsLiteral(t *testing.T) {
	v := call(t, "STRING", value.Null)
	assert.Equal(t, "null", v.AsString())
}

func TestFnUpperLower(t *testing.T) {
	assert.Equal(t, "ABC", call(t, "UPPER", value.String("abc")).AsString())
	assert.Equal(t, "abc", call(t, "LOWER", value.String("ABC")).AsString())
}

func TestFnCoalesce(t *testing.T) {
	v := call(t, "COALESCE", value.Null, value.Null, value.Int(7))
	assert.Equal(t, int64(7), v.AsInt())
}

func TestFnIfRequiresThreeArgs(t *testing.T) {
	_, err := Builtins["IF"]([]value.Value{value.Bool(true)})
	require.Error(t, err)
}

func TestFnRoundWithDecimals(t *testing.T) {
	v := call(t, "ROUND", value.Float(3.14159), value.Int(2))
	assert.InDelta(t, 3.14, v.AsFloat(), 1e-9)
}

func TestFnMD5ProducesRealDigest(t *testing.T) {
	v := call(t, "MD5", value.String("hello"))
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", v.AsString())
}

func TestFnCountOnArrayAndScalar(t *testing.T) {
	arr := value.Array([]value.Value{value.Int(1), value.Int(2)})
	assert.Equal(t, int64(2), call(t, "COUNT", arr).AsInt())
	assert.Equal(t, int64(1), call(t, "COUNT", value.Int(5)).AsInt())
}

func TestFnFirstLastOnScalarFallback(t *testing.T) {
	assert.Equal(t, int64(9), call(t, "FIRST", value.Int(9)).AsInt())
	assert.Equal(t, int64(9), call(t, "LAST", value.Int(1), value.Int(9)).AsInt())
}

func TestFnSubstring(t *testing.T) {
	v := call(t, "SUBSTRING", value.String("hello world"), value.Int(6), value.Int(5))
	assert.Equal(t, "world", v.AsString())
}

func TestFnReplace(t *testing.T) {
	v := call(t, "REPLACE", value.String("a-b-c"), value.String("-"), value.String("_"))
	assert.Equal(t, "a_b_c", v.AsString())
}

func TestFnDateOffsetIdentity(t *testing.T) {
	v := call(t, "DATE", value.String(""))
	assert.Len(t, v.AsString(), 10)
}

func TestFnIntFloatConversions(t *testing.T) {
	assert.Equal(t, int64(42), call(t, "INT", value.String("42")).AsInt())
	assert.Equal(t, 4.5, call(t, "FLOAT", value.String("4.5")).AsFloat())
}

func TestFnBoolTruthiness(t *testing.T) {
	assert.True(t, call(t, "BOOL", value.Int(1)).AsBool())
	assert.False(t, call(t, "BOOL", value.Null).AsBool())
}

func TestUndefinedFunctionErrors(t *testing.T) {
	_, err := EvalSource("return NOPE(1)", nil)
	require.Error(t, err)
	assert.IsType(t, &UndefinedFunctionError{}, err)
}
