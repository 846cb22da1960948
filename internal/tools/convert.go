package tools

import "github.com/r3e-network/flowengine/pkg/gml/value"

// ToNative converts a GML value into a plain Go value suitable for
// json.Marshal, so tool handlers can build HTTP request bodies without
// reaching into value's internal representation.
func ToNative(v value.Value) any {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindBool:
		return v.AsBool()
	case value.KindInt:
		return v.AsInt()
	case value.KindFloat:
		return v.AsFloat()
	case value.KindString:
		return v.AsString()
	case value.KindArray:
		items := v.AsArray()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = ToNative(item)
		}
		return out
	case value.KindMapping:
		m := v.AsMapping()
		out := make(map[string]any, len(m))
		for k, item := range m {
			out[k] = ToNative(item)
		}
		return out
	default:
		return nil
	}
}

// FromNative converts a decoded JSON value (as produced by
// json.Unmarshal into an any) into a GML value.
func FromNative(v any) value.Value {
	switch t := v.(type) {
	case nil:
		return value.Null
	case bool:
		return value.Bool(t)
	case string:
		return value.String(t)
	case float64:
		return value.Float(t)
	case int:
		return value.Int(int64(t))
	case int64:
		return value.Int(t)
	case []any:
		out := make([]value.Value, len(t))
		for i, item := range t {
			out[i] = FromNative(item)
		}
		return value.Array(out)
	case map[string]any:
		out := make(map[string]value.Value, len(t))
		for k, item := range t {
			out[k] = FromNative(item)
		}
		return value.Mapping(out)
	default:
		return value.Null
	}
}
