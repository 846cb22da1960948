package eval

import (
	"strings"

	"github.com/r3e-network/flowengine/pkg/gml/value"
)

// evalMethod dispatches a `.method(args)` call by the target's kind. The
// caller (Eval) has already short-circuited a null target to null before
// reaching here.
func evalMethod(target value.Value, method string, args []value.Value) (value.Value, error) {
	switch target.Kind() {
	case value.KindArray:
		return evalArrayMethod(target, method, args)
	case value.KindMapping:
		return evalObjectMethod(target, method, args)
	case value.KindString:
		return evalStringMethod(target, method, args)
	default:
		return value.Null, &EvaluationError{Message: "cannot call method " + method + " on " + target.Kind().String()}
	}
}

func fieldOrSelfFloat(v value.Value, field string) (float64, bool) {
	item := v
	if field != "" {
		if v.Kind() != value.KindMapping {
			return 0, false
		}
		m := v.AsMapping()
		fv, ok := m[field]
		if !ok {
			return 0, false
		}
		item = fv
	}
	if !item.IsNumeric() {
		return 0, false
	}
	return item.Float64(), true
}

func optionalFieldArg(args []value.Value) string {
	if len(args) > 0 && args[0].Kind() == value.KindString {
		return args[0].AsString()
	}
	return ""
}

func optionalStringArg(args []value.Value, idx int, def string) string {
	if len(args) > idx && args[idx].Kind() == value.KindString {
		return args[idx].AsString()
	}
	return def
}

func evalArrayMethod(target value.Value, method string, args []value.Value) (value.Value, error) {
	arr := target.AsArray()
	switch method {
	case "length":
		return value.Int(int64(len(arr))), nil

	case "sum":
		field := optionalFieldArg(args)
		total := 0.0
		for _, it := range arr {
			f, ok := fieldOrSelfFloat(it, field)
			if ok {
				total += f
			}
		}
		return value.Float(total), nil

	case "avg":
		if len(arr) == 0 {
			return value.Null, nil
		}
		field := optionalFieldArg(args)
		total := 0.0
		for _, it := range arr {
			f, _ := fieldOrSelfFloat(it, field)
			total += f
		}
		return value.Float(total / float64(len(arr))), nil

	case "min", "max":
		field := optionalFieldArg(args)
		var best float64
		found := false
		for _, it := range arr {
			f, ok := fieldOrSelfFloat(it, field)
			if !ok {
				continue
			}
			if !found || (method == "min" && f < best) || (method == "max" && f > best) {
				best = f
				found = true
			}
		}
		if !found {
			return value.Null, nil
		}
		return value.Float(best), nil

	case "first":
		if len(arr) == 0 {
			return value.Null, nil
		}
		return arr[0], nil

	case "last":
		if len(arr) == 0 {
			return value.Null, nil
		}
		return arr[len(arr)-1], nil

	case "reverse":
		out := make([]value.Value, len(arr))
		for i, v := range arr {
			out[len(arr)-1-i] = v
		}
		return value.Array(out), nil

	case "distinct":
		var out []value.Value
		for _, v := range arr {
			seen := false
			for _, u := range out {
				if value.Equal(v, u) {
					seen = true
					break
				}
			}
			if !seen {
				out = append(out, v)
			}
		}
		return value.Array(out), nil

	case "join":
		sep := optionalStringArg(args, 0, ",")
		parts := make([]string, len(arr))
		for i, v := range arr {
			parts[i] = v.ToString()
		}
		return value.String(strings.Join(parts, sep)), nil

	case "flat":
		var out []value.Value
		for _, v := range arr {
			if v.Kind() == value.KindArray {
				out = append(out, v.AsArray()...)
			} else {
				out = append(out, v)
			}
		}
		return value.Array(out), nil

	case "includes":
		if len(args) == 0 {
			return value.Null, &InvalidArgumentError{Message: "includes requires an argument"}
		}
		for _, v := range arr {
			if value.Equal(v, args[0]) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil

	case "push", "add":
		out := append(append([]value.Value{}, arr...), args...)
		return value.Array(out), nil

	case "concat", "addAll":
		out := append([]value.Value{}, arr...)
		if len(args) > 0 && args[0].Kind() == value.KindArray {
			out = append(out, args[0].AsArray()...)
		}
		return value.Array(out), nil

	default:
		return value.Null, &EvaluationError{Message: "unknown array method: " + method}
	}
}

func evalObjectMethod(target value.Value, method string, args []value.Value) (value.Value, error) {
	switch method {
	case "proj":
		fields := optionalStringArg(args, 0, "")
		m := target.AsMapping()
		out := map[string]value.Value{}
		for _, f := range strings.Split(fields, ",") {
			name := strings.TrimSpace(f)
			if v, ok := m[name]; ok {
				out[name] = v
			}
		}
		return value.Mapping(out), nil
	default:
		return value.Null, &EvaluationError{Message: "unknown object method: " + method}
	}
}

func evalStringMethod(target value.Value, method string, args []value.Value) (value.Value, error) {
	s := target.AsString()
	switch method {
	case "length":
		return value.Int(int64(len([]rune(s)))), nil
	case "toLowerCase", "lower":
		return value.String(strings.ToLower(s)), nil
	case "toUpperCase", "upper":
		return value.String(strings.ToUpper(s)), nil
	case "trim":
		return value.String(strings.TrimSpace(s)), nil
	case "split":
		sep := optionalStringArg(args, 0, ",")
		parts := strings.Split(s, sep)
		out := make([]value.Value, len(parts))
		for i, p := range parts {
			out[i] = value.String(p)
		}
		return value.Array(out), nil
	case "startsWith":
		return value.Bool(strings.HasPrefix(s, optionalStringArg(args, 0, ""))), nil
	case "endsWith":
		return value.Bool(strings.HasSuffix(s, optionalStringArg(args, 0, ""))), nil
	case "contains":
		return value.Bool(strings.Contains(s, optionalStringArg(args, 0, ""))), nil
	default:
		return value.Null, &EvaluationError{Message: "unknown string method: " + method}
	}
}
