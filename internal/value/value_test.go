package value

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMapKeepsInsertionOrder(t *testing.T) {
	v := Map(F("zeta", Int(1)), F("alpha", Int(2)), F("zeta", Int(3)))
	require.Equal(t, []string{"zeta", "alpha"}, v.Keys())
	got, ok := v.Get("zeta")
	require.True(t, ok)
	require.Equal(t, float64(3), got.Number())

	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.Equal(t, `{"zeta":3,"alpha":2}`, string(b))
}

func TestHostMarshalsAsPlaceholder(t *testing.T) {
	b, err := json.Marshal(List(Host(HostWindow), Host(HostDocument)))
	require.NoError(t, err)
	require.Equal(t, `["[Window]","[Document]"]`, string(b))
}

func TestParsePreservesObjectOrder(t *testing.T) {
	v, err := Parse([]byte(`{"b":{"y":true,"x":null},"a":[1,"two",2.5]}`))
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a"}, v.Keys())

	nested, _ := v.Get("b")
	require.Equal(t, []string{"y", "x"}, nested.Keys())

	want := map[string]any{
		"b": map[string]any{"y": true, "x": nil},
		"a": []any{float64(1), "two", 2.5},
	}
	if diff := cmp.Diff(want, v.Interface()); diff != "" {
		t.Errorf("Interface() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	_, err := Parse([]byte(`{"a":1} {"b":2}`))
	require.Error(t, err)
}

func TestFromConvertsPlainData(t *testing.T) {
	v := From(map[string]any{
		"url":   "http://x/y",
		"count": 3,
		"tags":  []string{"a", "b"},
		"ok":    true,
		"none":  nil,
	})
	require.Equal(t, KindMap, v.Kind())
	require.Equal(t, []string{"count", "none", "ok", "tags", "url"}, v.Keys())

	tags, _ := v.Get("tags")
	require.Equal(t, 2, tags.Len())
	require.Equal(t, "b", tags.Index(1).Str())
}

func genValue(depth int) *rapid.Generator[Value] {
	return rapid.Custom(func(t *rapid.T) Value {
		top := 5
		if depth <= 0 {
			top = 3
		}
		switch rapid.IntRange(0, top).Draw(t, "kind") {
		case 0:
			return Null()
		case 1:
			return Bool(rapid.Bool().Draw(t, "b"))
		case 2:
			return Int(rapid.IntRange(-1_000_000, 1_000_000).Draw(t, "n"))
		case 3:
			return String(rapid.String().Draw(t, "s"))
		case 4:
			n := rapid.IntRange(0, 4).Draw(t, "len")
			items := make([]Value, n)
			for i := range items {
				items[i] = genValue(depth-1).Draw(t, "item")
			}
			return List(items...)
		default:
			n := rapid.IntRange(0, 4).Draw(t, "len")
			fields := make([]Field, n)
			for i := range fields {
				fields[i] = F(rapid.StringN(1, 12, -1).Draw(t, "key"), genValue(depth-1).Draw(t, "val"))
			}
			return Map(fields...)
		}
	})
}

// Property: JSON encoding round-trips through Parse.
func TestJSONRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		original := genValue(3).Draw(t, "value")

		data, err := json.Marshal(original)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		parsed, err := Parse(data)
		if err != nil {
			t.Fatalf("Parse(%s): %v", data, err)
		}
		if !parsed.Equal(original) {
			t.Fatalf("round trip mismatch:\n got: %s\nwant: %s", mustJSON(parsed), data)
		}
		if parsed.Kind() == KindMap && !cmp.Equal(parsed.Keys(), original.Keys()) {
			t.Fatalf("key order changed: %v -> %v", original.Keys(), parsed.Keys())
		}
	})
}

func mustJSON(v Value) string {
	b, _ := json.Marshal(v)
	return string(b)
}
