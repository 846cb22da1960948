package eval

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/r3e-network/flowengine/pkg/gml/value"
)

// BuiltinFunc is the signature every GML built-in implements.
type BuiltinFunc func(args []value.Value) (value.Value, error)

// Builtins is the uppercase-name-keyed registry FunctionCall dispatches
// through. MD5 uses the real crypto/md5 sum, correcting the reference
// implementation's non-cryptographic placeholder per spec.md's errata note;
// every other function mirrors the reference implementation's behavior
// exactly, including its quirks (CONCAT collapsing null to "" while STRING
// renders it as the literal "null").
var Builtins = map[string]BuiltinFunc{
	"SUM":         fnSum,
	"AVG":         fnAvg,
	"MIN":         fnMin,
	"MAX":         fnMax,
	"ROUND":       fnRound,
	"FLOOR":       fnFloor,
	"CEIL":        fnCeil,
	"ABS":         fnAbs,
	"CONCAT":      fnConcat,
	"UPPER":       fnUpper,
	"LOWER":       fnLower,
	"TRIM":        fnTrim,
	"LENGTH":      fnLength,
	"SUBSTRING":   fnSubstring,
	"REPLACE":     fnReplace,
	"SPLIT":       fnSplit,
	"DATE":        fnDate,
	"NOW":         fnNow,
	"TIME":        fnDate,
	"FORMAT_DATE": fnFormatDate,
	"COUNT":       fnCount,
	"FIRST":       fnFirst,
	"LAST":        fnLast,
	"INT":         fnInt,
	"FLOAT":       fnFloat,
	"STRING":      fnString,
	"BOOL":        fnBool,
	"COALESCE":    fnCoalesce,
	"IF":          fnIf,
	"MD5":         fnMD5,
}

func numericArgs(args []value.Value) ([]float64, bool) {
	out := make([]float64, 0, len(args))
	for _, a := range args {
		if !a.IsNumeric() {
			return nil, false
		}
		out = append(out, a.Float64())
	}
	return out, true
}

// arrayOrVariadicNumbers supports SUM/AVG/MIN/MAX's two call shapes: a
// single array argument (optionally with a field-name string as the second
// argument), or a variadic list of numbers.
func arrayOrVariadicNumbers(args []value.Value) ([]float64, error) {
	if len(args) >= 1 && args[0].Kind() == value.KindArray {
		field := ""
		if len(args) >= 2 && args[1].Kind() == value.KindString {
			field = args[1].AsString()
		}
		var out []float64
		for _, it := range args[0].AsArray() {
			f, ok := fieldOrSelfFloat(it, field)
			if ok {
				out = append(out, f)
			}
		}
		return out, nil
	}
	nums, ok := numericArgs(args)
	if !ok {
		return nil, &TypeError{Expected: "numbers", Actual: "non-numeric argument"}
	}
	return nums, nil
}

func fnSum(args []value.Value) (value.Value, error) {
	nums, err := arrayOrVariadicNumbers(args)
	if err != nil {
		return value.Null, err
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return value.Float(total), nil
}

func fnAvg(args []value.Value) (value.Value, error) {
	nums, err := arrayOrVariadicNumbers(args)
	if err != nil {
		return value.Null, err
	}
	if len(nums) == 0 {
		return value.Null, nil
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return value.Float(total / float64(len(nums))), nil
}

func fnMin(args []value.Value) (value.Value, error) { return fnExtreme(args, false) }
func fnMax(args []value.Value) (value.Value, error) { return fnExtreme(args, true) }

func fnExtreme(args []value.Value, wantMax bool) (value.Value, error) {
	nums, err := arrayOrVariadicNumbers(args)
	if err != nil {
		return value.Null, err
	}
	if len(nums) == 0 {
		return value.Null, nil
	}
	best := nums[0]
	for _, n := range nums[1:] {
		if (wantMax && n > best) || (!wantMax && n < best) {
			best = n
		}
	}
	return value.Float(best), nil
}

func fnRound(args []value.Value) (value.Value, error) {
	if len(args) == 0 || !args[0].IsNumeric() {
		return value.Null, &InvalidArgumentError{Message: "ROUND requires a numeric argument"}
	}
	decimals := int64(0)
	if len(args) >= 2 && args[1].Kind() == value.KindInt {
		decimals = args[1].AsInt()
	}
	mult := math.Pow(10, float64(decimals))
	return value.Float(math.Round(args[0].Float64()*mult) / mult), nil
}

func fnFloor(args []value.Value) (value.Value, error) {
	if len(args) == 0 || !args[0].IsNumeric() {
		return value.Null, &InvalidArgumentError{Message: "FLOOR requires a numeric argument"}
	}
	return value.Float(math.Floor(args[0].Float64())), nil
}

func fnCeil(args []value.Value) (value.Value, error) {
	if len(args) == 0 || !args[0].IsNumeric() {
		return value.Null, &InvalidArgumentError{Message: "CEIL requires a numeric argument"}
	}
	return value.Float(math.Ceil(args[0].Float64())), nil
}

func fnAbs(args []value.Value) (value.Value, error) {
	if len(args) == 0 || !args[0].IsNumeric() {
		return value.Null, &InvalidArgumentError{Message: "ABS requires a numeric argument"}
	}
	if args[0].Kind() == value.KindInt {
		i := args[0].AsInt()
		if i < 0 {
			i = -i
		}
		return value.Int(i), nil
	}
	return value.Float(math.Abs(args[0].Float64())), nil
}

// fnConcat stringifies every argument and joins them, collapsing null to ""
// — unlike STRING(), which renders null as the literal text "null".
func fnConcat(args []value.Value) (value.Value, error) {
	var sb strings.Builder
	for _, a := range args {
		if a.IsNull() {
			continue
		}
		sb.WriteString(a.ToString())
	}
	return value.String(sb.String()), nil
}

func fnUpper(args []value.Value) (value.Value, error) {
	return value.String(strings.ToUpper(stringArg(args, 0))), nil
}

func fnLower(args []value.Value) (value.Value, error) {
	return value.String(strings.ToLower(stringArg(args, 0))), nil
}

func fnTrim(args []value.Value) (value.Value, error) {
	return value.String(strings.TrimSpace(stringArg(args, 0))), nil
}

func fnLength(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Null, &InvalidArgumentError{Message: "LENGTH requires an argument"}
	}
	switch args[0].Kind() {
	case value.KindString:
		return value.Int(int64(len([]rune(args[0].AsString())))), nil
	case value.KindArray:
		return value.Int(int64(len(args[0].AsArray()))), nil
	default:
		return value.Null, &TypeError{Expected: "string or array", Actual: args[0].Kind().String()}
	}
}

func fnSubstring(args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Null, &InvalidArgumentError{Message: "SUBSTRING requires at least 2 arguments"}
	}
	r := []rune(stringArg(args, 0))
	start := int(intArg(args, 1))
	if start < 0 {
		start = 0
	}
	if start > len(r) {
		start = len(r)
	}
	end := len(r)
	if len(args) >= 3 && args[2].Kind() == value.KindInt {
		end = start + int(args[2].AsInt())
	}
	if end > len(r) {
		end = len(r)
	}
	if end < start {
		end = start
	}
	return value.String(string(r[start:end])), nil
}

func fnReplace(args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Null, &InvalidArgumentError{Message: "REPLACE requires at least 2 arguments"}
	}
	s := stringArg(args, 0)
	from := stringArg(args, 1)
	to := optionalStringArg(args, 2, "")
	return value.String(strings.ReplaceAll(s, from, to)), nil
}

func fnSplit(args []value.Value) (value.Value, error) {
	s := stringArg(args, 0)
	sep := optionalStringArg(args, 1, ",")
	parts := strings.Split(s, sep)
	out := make([]value.Value, len(parts))
	for i, p := range parts {
		out[i] = value.String(p)
	}
	return value.Array(out), nil
}

// applyDateOffset parses an offset string like "3d", "-2h", "1w": a
// trailing alphabetic unit (s/m/h/d/w/M/y) else "d"; "" or "0" is identity.
// M and y are approximated as 30 and 365 days, matching the reference
// implementation's calendar-free approach.
func applyDateOffset(base time.Time, offset string) (time.Time, error) {
	offset = strings.TrimSpace(offset)
	if offset == "" || offset == "0" {
		return base, nil
	}
	unit := offset[len(offset)-1]
	numPart := offset
	switch unit {
	case 's', 'm', 'h', 'd', 'w', 'M', 'y':
		numPart = offset[:len(offset)-1]
	default:
		unit = 'd'
	}
	n, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return base, &InvalidArgumentError{Message: "invalid date offset: " + offset}
	}
	switch unit {
	case 's':
		return base.Add(time.Duration(n * float64(time.Second))), nil
	case 'm':
		return base.Add(time.Duration(n * float64(time.Minute))), nil
	case 'h':
		return base.Add(time.Duration(n * float64(time.Hour))), nil
	case 'd':
		return base.Add(time.Duration(n * 24 * float64(time.Hour))), nil
	case 'w':
		return base.Add(time.Duration(n * 7 * 24 * float64(time.Hour))), nil
	case 'M':
		return base.Add(time.Duration(n * 30 * 24 * float64(time.Hour))), nil
	case 'y':
		return base.Add(time.Duration(n * 365 * 24 * float64(time.Hour))), nil
	}
	return base, nil
}

func fnDate(args []value.Value) (value.Value, error) {
	offset := optionalStringArg(args, 0, "0d")
	t, err := applyDateOffset(time.Now().UTC(), offset)
	if err != nil {
		return value.Null, err
	}
	return value.String(t.Format("2006-01-02")), nil
}

func fnNow(args []value.Value) (value.Value, error) {
	return value.String(time.Now().UTC().Format(time.RFC3339)), nil
}

// strftimeToGo converts the subset of strftime directives the reference
// implementation supports into a Go reference-time layout.
func strftimeToGo(format string) string {
	replacer := strings.NewReplacer(
		"%Y", "2006",
		"%m", "01",
		"%d", "02",
		"%H", "15",
		"%M", "04",
		"%S", "05",
	)
	return replacer.Replace(format)
}

func fnFormatDate(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Null, &InvalidArgumentError{Message: "FORMAT_DATE requires a date argument"}
	}
	dateStr := args[0].ToString()
	format := optionalStringArg(args, 1, "%Y-%m-%d")
	t, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		t, err = time.Parse(time.RFC3339, dateStr)
		if err != nil {
			return value.Null, &InvalidArgumentError{Message: "invalid date: " + dateStr}
		}
	}
	return value.String(t.Format(strftimeToGo(format))), nil
}

func fnCount(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Int(0), nil
	}
	if args[0].Kind() == value.KindArray {
		return value.Int(int64(len(args[0].AsArray()))), nil
	}
	return value.Int(1), nil
}

func fnFirst(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Null, nil
	}
	if args[0].Kind() == value.KindArray {
		arr := args[0].AsArray()
		if len(arr) == 0 {
			return value.Null, nil
		}
		return arr[0], nil
	}
	return args[0], nil
}

func fnLast(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Null, nil
	}
	if args[0].Kind() == value.KindArray {
		arr := args[0].AsArray()
		if len(arr) == 0 {
			return value.Null, nil
		}
		return arr[len(arr)-1], nil
	}
	return args[len(args)-1], nil
}

func fnInt(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Null, &InvalidArgumentError{Message: "INT requires an argument"}
	}
	switch args[0].Kind() {
	case value.KindInt:
		return args[0], nil
	case value.KindFloat:
		return value.Int(int64(args[0].AsFloat())), nil
	case value.KindString:
		i, err := strconv.ParseInt(strings.TrimSpace(args[0].AsString()), 10, 64)
		if err != nil {
			return value.Null, &InvalidArgumentError{Message: "cannot convert to int: " + args[0].AsString()}
		}
		return value.Int(i), nil
	case value.KindBool:
		if args[0].AsBool() {
			return value.Int(1), nil
		}
		return value.Int(0), nil
	default:
		return value.Null, &TypeError{Expected: "convertible to int", Actual: args[0].Kind().String()}
	}
}

func fnFloat(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Null, &InvalidArgumentError{Message: "FLOAT requires an argument"}
	}
	switch args[0].Kind() {
	case value.KindFloat:
		return args[0], nil
	case value.KindInt:
		return value.Float(float64(args[0].AsInt())), nil
	case value.KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(args[0].AsString()), 64)
		if err != nil {
			return value.Null, &InvalidArgumentError{Message: "cannot convert to float: " + args[0].AsString()}
		}
		return value.Float(f), nil
	default:
		return value.Null, &TypeError{Expected: "convertible to float", Actual: args[0].Kind().String()}
	}
}

// fnString renders its argument as text; unlike CONCAT, null becomes the
// literal "null".
func fnString(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.String("null"), nil
	}
	return value.String(args[0].ToString()), nil
}

func fnBool(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Bool(false), nil
	}
	return value.Bool(args[0].Truthy()), nil
}

func fnCoalesce(args []value.Value) (value.Value, error) {
	for _, a := range args {
		if !a.IsNull() {
			return a, nil
		}
	}
	return value.Null, nil
}

func fnIf(args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return value.Null, &InvalidArgumentError{Message: "IF requires exactly 3 arguments"}
	}
	if args[0].Truthy() {
		return args[1], nil
	}
	return args[2], nil
}

// fnMD5 hashes the argument with crypto/md5. The reference implementation
// uses a non-cryptographic placeholder accumulator here and flags it as
// demonstration-only; this corrects it to a real digest.
func fnMD5(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Null, &InvalidArgumentError{Message: "MD5 requires an argument"}
	}
	sum := md5.Sum([]byte(args[0].ToString()))
	return value.String(hex.EncodeToString(sum[:])), nil
}

func stringArg(args []value.Value, idx int) string {
	if len(args) > idx {
		return args[idx].ToString()
	}
	return ""
}

func intArg(args []value.Value, idx int) int64 {
	if len(args) > idx && args[idx].Kind() == value.KindInt {
		return args[idx].AsInt()
	}
	if len(args) > idx && args[idx].Kind() == value.KindFloat {
		return int64(args[idx].AsFloat())
	}
	return 0
}
