package jsonpartial

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestParseComplete(t *testing.T) {
	r := Parse([]byte(`{"a":1,"b":[1,2,3]}`))
	require.Equal(t, StateComplete, r.State)
	require.Equal(t, map[string]any{"a": 1.0, "b": []any{1.0, 2.0, 3.0}}, r.Value)
}

func TestParseEmptyBufferIsIncomplete(t *testing.T) {
	require.Equal(t, StateIncomplete, Parse(nil).State)
	require.Equal(t, StateIncomplete, Parse([]byte("   \n\t")).State)
}

func TestParseRepairedObject(t *testing.T) {
	r := Parse([]byte(`{"a":1,"b":{"c":2`))
	require.Equal(t, StateRepaired, r.State)
	require.Equal(t, map[string]any{"a": 1.0, "b": map[string]any{"c": 2.0}}, r.Value)
}

func TestParseRepairedArray(t *testing.T) {
	r := Parse([]byte(`[1,2,3`))
	require.Equal(t, StateRepaired, r.State)
	require.Equal(t, []any{1.0, 2.0, 3.0}, r.Value)
}

func TestParseRepairedNestedArrayOfObjects(t *testing.T) {
	r := Parse([]byte(`[{"x":1},{"y":2`))
	require.Equal(t, StateRepaired, r.State)
	require.Equal(t, []any{map[string]any{"x": 1.0}, map[string]any{"y": 2.0}}, r.Value)
}

func TestParseIncompleteOnDanglingKey(t *testing.T) {
	// The trailing string "b" is a closed key with no value yet; closing
	// the object gives {"a":1,"b"}, which is not valid JSON, so the result
	// is incomplete.
	r := Parse([]byte(`{"a":1,"b"`))
	require.Equal(t, StateIncomplete, r.State)
}

func TestParseRepairedOnTrailingUnbalancedClose(t *testing.T) {
	// The direct parse fails (trailing "}" after a complete top-level
	// value); repair falls back to the last clean boundary, which is the
	// balanced object itself.
	r := Parse([]byte(`{"a":1}}`))
	require.Equal(t, StateRepaired, r.State)
	require.Equal(t, map[string]any{"a": 1.0}, r.Value)
}

func TestParseNeverPanics(t *testing.T) {
	inputs := []string{
		"", "{", "}", "[", "]", `"`, `{"a":`, `{"a":"b\`, "null", "tru", "-", `{,}`,
		`{"a":[1,2,{"b":"c`, string([]byte{0x00, 0x01, '{'}),
	}
	for _, in := range inputs {
		require.NotPanics(t, func() { Parse([]byte(in)) })
	}
}

// TestParseRepairMonotonicOverGrowingPrefix checks that "[" alone is
// incomplete and that a truncated array "[1,1,..." of 1 to 50 elements is
// always repaired or complete, never incomplete.
func TestParseRepairMonotonicOverGrowingPrefix(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("appending one more complete array element keeps the result parseable", prop.ForAll(
		func(n int) bool {
			buf := "["
			for i := 0; i < n; i++ {
				if i > 0 {
					buf += ","
				}
				buf += "1"
			}
			r := Parse([]byte(buf))
			if n == 0 {
				return r.State == StateIncomplete
			}
			return r.State == StateRepaired || r.State == StateComplete
		},
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}
