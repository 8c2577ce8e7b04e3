// Package coerce implements cross-boundary value coercion (C9): bidirectional
// conversion between Luau-family VM values and a JSON-like tree
// (map[string]any / []any / string / bool / int64 / float64 / nil), with
// the integer/float unification rule §4.8 requires.
package coerce

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	lua "github.com/yuin/gopher-lua"
)

// maxSafeInt is the largest magnitude a float64 can represent exactly,
// matching the VM's unified double-precision number type.
const maxSafeInt = 1 << 53

// ToJSON converts a VM value into the JSON-like tree. Tables whose keys
// are exactly 1..n (for some n >= 1, with no gaps and no other keys)
// become arrays; every other table, including the empty table, becomes an
// object (Open Question (a), resolved in SPEC_FULL.md). All other VM
// values that are not bool/string/number/table map to nil.
func ToJSON(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return numberToJSON(float64(val))
	case *lua.LTable:
		return tableToJSON(val)
	default:
		return nil
	}
}

func numberToJSON(f float64) any {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) <= maxSafeInt {
		return int64(f)
	}
	return f
}

func tableToJSON(t *lua.LTable) any {
	if arr, ok := asArray(t); ok {
		out := make([]any, len(arr))
		for i, v := range arr {
			out[i] = ToJSON(v)
		}
		return out
	}
	out := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		out[keyToString(k)] = ToJSON(v)
	})
	return out
}

// asArray reports whether t's keys are exactly the consecutive integers
// 1..n and, if so, returns the values in order. An empty table is NOT an
// array (Open Question (a) resolution: empty tables are objects).
func asArray(t *lua.LTable) ([]lua.LValue, bool) {
	n := t.Len()
	if n == 0 {
		return nil, false
	}
	count := 0
	t.ForEach(func(lua.LValue, lua.LValue) { count++ })
	if count != n {
		return nil, false
	}
	out := make([]lua.LValue, n)
	for i := 1; i <= n; i++ {
		v := t.RawGetInt(i)
		if v == lua.LNil {
			return nil, false
		}
		out[i-1] = v
	}
	return out, true
}

func keyToString(k lua.LValue) string {
	switch v := k.(type) {
	case lua.LString:
		return string(v)
	case lua.LNumber:
		if f := float64(v); f == math.Trunc(f) {
			return strconv.FormatInt(int64(f), 10)
		}
		return v.String()
	default:
		return fmt.Sprintf("%v", k)
	}
}

// ToLua converts a JSON-like value into a VM value. Objects and arrays
// become tables with the natural key structure.
func ToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case []any:
		t := L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, ToLua(L, item))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.RawSetString(k, ToLua(L, val[k]))
		}
		return t
	default:
		return lua.LNil
	}
}

// StringifyForURL renders a VM value as its canonical string form for use
// as a path/query/header parameter value (§4.8). Whole-valued numbers
// format as integers; fractional numbers use the VM's default float
// formatting; booleans format as "true"/"false"; strings pass through.
func StringifyForURL(v lua.LValue) (string, error) {
	switch val := v.(type) {
	case lua.LString:
		return string(val), nil
	case lua.LBool:
		if val {
			return "true", nil
		}
		return "false", nil
	case lua.LNumber:
		f := float64(val)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			if math.Abs(f) <= maxSafeInt {
				return strconv.FormatInt(int64(f), 10), nil
			}
			return strconv.FormatFloat(f, 'f', -1, 64), nil
		}
		return val.String(), nil
	default:
		return "", fmt.Errorf("cannot coerce %s to a parameter string", v.Type().String())
	}
}

// RoundToInt64 rounds a VM number to the nearest int64, tolerating float
// drift from division (e.g. 9/3 producing 3.0000000000000004) as required
// for integer-typed parameters (§4.6 step 4).
func RoundToInt64(v lua.LValue) (int64, bool) {
	n, ok := v.(lua.LNumber)
	if !ok {
		return 0, false
	}
	return int64(math.Round(float64(n))), true
}
