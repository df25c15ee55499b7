package sanitize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/fr4iser90/FoundryCord-sub001/internal/value"
)

func TestSanitizeRedactsNestedSecrets(t *testing.T) {
	in := value.Map(
		value.F("password", value.String("x")),
		value.F("nested", value.Map(
			value.F("token", value.String("y")),
			value.F("ok", value.Int(1)),
		)),
	)

	got, err := json.Marshal(Sanitize(in))
	require.NoError(t, err)
	require.JSONEq(t, `{"password":"[REDACTED]","nested":{"token":"[REDACTED]","ok":1}}`, string(got))
}

func TestSanitizeMatchesCaseInsensitively(t *testing.T) {
	for _, key := range []string{"Password", "API_KEY", "sessionToken", "ClientSecret", "Authorization", "AWSCredentials", "keyboard"} {
		require.True(t, IsSensitiveKey(key), key)
	}
	for _, key := range []string{"url", "title", "count", "hash"} {
		require.False(t, IsSensitiveKey(key), key)
	}
}

func TestSanitizeRedactsStructuredValuesWholesale(t *testing.T) {
	in := value.Map(value.F("auth", value.Map(value.F("user", value.String("bob")))))
	out := Sanitize(in)
	auth, _ := out.Get("auth")
	require.Equal(t, value.KindString, auth.Kind())
	require.Equal(t, Redacted, auth.Str())
}

func TestSanitizeReplacesHostReferences(t *testing.T) {
	in := value.Map(
		value.F("win", value.Host(value.HostWindow)),
		value.F("items", value.List(value.Host(value.HostDocument), value.Int(2))),
	)
	got, err := json.Marshal(Sanitize(in))
	require.NoError(t, err)
	require.JSONEq(t, `{"win":"[Window]","items":["[Document]",2]}`, string(got))
}

func TestSanitizeLeavesPrimitivesAlone(t *testing.T) {
	for _, v := range []value.Value{value.Null(), value.Bool(true), value.Int(7), value.String("password")} {
		require.True(t, Sanitize(v).Equal(v))
	}
}

func genCaptured(depth int) *rapid.Generator[value.Value] {
	keys := rapid.SampledFrom([]string{"url", "Token", "nested", "password", "ok", "apiKey", "title", "list"})
	return rapid.Custom(func(t *rapid.T) value.Value {
		top := 5
		if depth <= 0 {
			top = 3
		}
		switch rapid.IntRange(0, top).Draw(t, "kind") {
		case 0:
			return value.Null()
		case 1:
			return value.Int(rapid.Int().Draw(t, "n"))
		case 2:
			return value.String(rapid.String().Draw(t, "s"))
		case 3:
			return value.Host(rapid.SampledFrom([]string{value.HostWindow, value.HostDocument}).Draw(t, "host"))
		case 4:
			n := rapid.IntRange(0, 3).Draw(t, "len")
			items := make([]value.Value, n)
			for i := range items {
				items[i] = genCaptured(depth-1).Draw(t, "item")
			}
			return value.List(items...)
		default:
			n := rapid.IntRange(0, 4).Draw(t, "len")
			fields := make([]value.Field, n)
			for i := range fields {
				fields[i] = value.F(keys.Draw(t, "key"), genCaptured(depth-1).Draw(t, "val"))
			}
			return value.Map(fields...)
		}
	})
}

// Property: sanitizing already-sanitized data is a no-op.
func TestSanitizeIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := genCaptured(3).Draw(t, "value")
		once := Sanitize(v)
		twice := Sanitize(once)
		if !once.Equal(twice) {
			t.Fatalf("not idempotent: %v vs %v", once.Interface(), twice.Interface())
		}
	})
}

// Property: no sensitive key survives with anything but the marker.
func TestSanitizeLeavesNoSecrets(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		out := Sanitize(genCaptured(3).Draw(t, "value"))
		var walk func(v value.Value)
		walk = func(v value.Value) {
			switch v.Kind() {
			case value.KindHost:
				t.Fatalf("host reference survived sanitization")
			case value.KindList:
				for _, item := range v.Items() {
					walk(item)
				}
			case value.KindMap:
				for _, f := range v.Fields() {
					if IsSensitiveKey(f.Key) && (f.Value.Kind() != value.KindString || f.Value.Str() != Redacted) {
						t.Fatalf("key %q not redacted: %v", f.Key, f.Value.Interface())
					}
					walk(f.Value)
				}
			}
		}
		walk(out)
	})
}
