package coerce

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func TestRoundTrip_Scalars(t *testing.T) {
	t.Parallel()
	L := lua.NewState()
	defer L.Close()

	cases := []any{
		"hello",
		true,
		false,
		int64(42),
		float64(3.5),
		nil,
	}

	for _, want := range cases {
		got := ToJSON(ToLua(L, want))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("round trip mismatch for %v (-want +got):\n%s", want, diff)
		}
	}
}

func TestRoundTrip_NestedStructures(t *testing.T) {
	t.Parallel()
	L := lua.NewState()
	defer L.Close()

	want := map[string]any{
		"name":  "Buddy",
		"count": int64(2),
		"tags":  []any{"a", "b", "c"},
		"nested": map[string]any{
			"active": true,
			"score":  float64(1.25),
		},
	}

	got := ToJSON(ToLua(L, want))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestIntegerNotExposedAsFloat(t *testing.T) {
	t.Parallel()
	L := lua.NewState()
	defer L.Close()

	v := ToLua(L, int64(7))
	got := ToJSON(v)
	asInt, ok := got.(int64)
	require.True(t, ok, "expected int64, got %T", got)
	assert.Equal(t, int64(7), asInt)
}

func TestFractionalStaysFloat(t *testing.T) {
	t.Parallel()
	L := lua.NewState()
	defer L.Close()

	got := ToJSON(ToLua(L, float64(7.5)))
	_, ok := got.(float64)
	require.True(t, ok, "expected float64, got %T", got)
}

func TestEmptyTableIsObject(t *testing.T) {
	t.Parallel()
	L := lua.NewState()
	defer L.Close()

	empty := L.NewTable()
	got := ToJSON(empty)
	_, ok := got.(map[string]any)
	assert.True(t, ok, "expected empty table to become an object, got %T", got)
}

func TestArrayDetection(t *testing.T) {
	t.Parallel()
	L := lua.NewState()
	defer L.Close()

	tbl := L.NewTable()
	tbl.RawSetInt(1, lua.LString("a"))
	tbl.RawSetInt(2, lua.LString("b"))

	got := ToJSON(tbl)
	arr, ok := got.([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, arr)
}

func TestStringifyForURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		v    lua.LValue
		want string
	}{
		{"whole number", lua.LNumber(5), "5"},
		{"whole number negative", lua.LNumber(-5), "-5"},
		{"boolean true", lua.LBool(true), "true"},
		{"boolean false", lua.LBool(false), "false"},
		{"string passthrough", lua.LString("hello"), "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := StringifyForURL(tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringifyForURL_FractionalIsNotWholeFormatted(t *testing.T) {
	t.Parallel()
	got, err := StringifyForURL(lua.LNumber(5.5))
	require.NoError(t, err)
	assert.NotEqual(t, "5", got)
	assert.Contains(t, got, "5.5")
}

func TestRoundToInt64_TolerantOfFloatDrift(t *testing.T) {
	t.Parallel()
	// 9/3 in float64 arithmetic can drift slightly from 3.0.
	drifted := lua.LNumber(3.0000000000000004)
	n, ok := RoundToInt64(drifted)
	require.True(t, ok)
	assert.Equal(t, int64(3), n)
}
