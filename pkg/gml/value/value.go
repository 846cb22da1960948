// Package value implements the dynamically-typed value model shared by the
// GML lexer, parser and evaluator: a closed tagged union of
// null/bool/int64/float64/string/array/mapping.
package value

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which variant of Value is active.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is the tagged union every GML expression evaluates to.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	arr  []Value
	m    map[string]Value
}

// Null is the singleton null value.
var Null = Value{kind: KindNull}

func Bool(b bool) Value    { return Value{kind: KindBool, b: b} }
func Int(i int64) Value    { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }

func Array(items []Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

func Mapping(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMapping, m: m}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() bool       { return v.b }
func (v Value) AsInt() int64       { return v.i }
func (v Value) AsFloat() float64   { return v.f }
func (v Value) AsString() string   { return v.s }
func (v Value) AsArray() []Value   { return v.arr }
func (v Value) AsMapping() map[string]Value { return v.m }

// IsNumeric reports whether the value is an int or a float.
func (v Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// Float64 widens an int or float Value to a float64. Caller must check
// IsNumeric first.
func (v Value) Float64() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// Truthy implements spec.md §3.1: only null and false are falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	default:
		return true
	}
}

const floatEpsilon = 1e-9

// Equal implements structural equality with float-epsilon tolerance for
// numeric comparisons (spec.md §3.1).
func Equal(a, b Value) bool {
	if a.IsNumeric() && b.IsNumeric() {
		return math.Abs(a.Float64()-b.Float64()) < floatEpsilon
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare returns -1/0/1 ordering two values, per spec.md §4.1: numeric
// comparisons widen, string comparison is lexicographic. The second return
// value is false when the values are not comparable (mixed non-numeric
// kinds), which callers surface as a TypeError.
func Compare(a, b Value) (int, bool) {
	if a.IsNumeric() && b.IsNumeric() {
		af, bf := a.Float64(), b.Float64()
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	if a.kind == KindString && b.kind == KindString {
		return strings.Compare(a.s, b.s), true
	}
	return 0, false
}

// Get performs path access `a.b.c` with null-propagation: a null
// intermediate yields null; a non-mapping intermediate is a type error.
func (v Value) Get(key string) (Value, error) {
	switch v.kind {
	case KindNull:
		return Null, nil
	case KindMapping:
		if child, ok := v.m[key]; ok {
			return child, nil
		}
		return Null, nil
	default:
		return Null, fmt.Errorf("type error: cannot access field %q on %s", key, v.kind)
	}
}

// Index performs numeric array indexing, including negative-from-end via
// the caller resolving `#` to len-1 before calling.
func (v Value) Index(i int64) (Value, error) {
	if v.kind == KindNull {
		return Null, nil
	}
	if v.kind != KindArray {
		return Null, fmt.Errorf("type error: cannot index non-array value of kind %s", v.kind)
	}
	if i < 0 {
		i += int64(len(v.arr))
	}
	if i < 0 || i >= int64(len(v.arr)) {
		return Null, fmt.Errorf("index out of bounds: %d", i)
	}
	return v.arr[i], nil
}

// ToString stringifies a Value for template interpolation and CONCAT/STRING
// builtins: numbers render naturally, null renders as the literal "null",
// arrays/mappings render as canonical JSON-like text.
func (v Value) ToString() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindString:
		return v.s
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.jsonLike()
		}
		return "[" + strings.Join(parts, ",") + "]"
	case KindMapping:
		return v.jsonLike()
	}
	return ""
}

func (v Value) jsonLike() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.s)
	case KindMapping:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = strconv.Quote(k) + ":" + v.m[k].jsonLike()
		}
		return "{" + strings.Join(parts, ",") + "}"
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.jsonLike()
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return v.ToString()
	}
}

// FromAny converts a generic Go value (as produced by encoding/json or
// gopkg.in/yaml.v3 unmarshaling into interface{}) into a Value. This is the
// boundary adapter used by flow-definition decoders, not by the evaluator.
func FromAny(a any) Value {
	switch t := a.(type) {
	case nil:
		return Null
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float64:
		return Float(t)
	case string:
		return String(t)
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = FromAny(e)
		}
		return Array(items)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = FromAny(e)
		}
		return Mapping(m)
	case []Value:
		return Array(t)
	case map[string]Value:
		return Mapping(t)
	default:
		return Null
	}
}

// ToAny converts a Value back into a generic Go value, for handing results
// to JSON/YAML encoders or to tool-dispatch argument bodies.
func (v Value) ToAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.ToAny()
		}
		return out
	case KindMapping:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = e.ToAny()
		}
		return out
	}
	return nil
}
