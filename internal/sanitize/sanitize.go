// Package sanitize redacts likely-sensitive fields from captured state
// before it is stored or transmitted.
package sanitize

import (
	"strings"

	"github.com/fr4iser90/FoundryCord-sub001/internal/value"
)

// Redacted replaces the value of every sensitive key.
const Redacted = "[REDACTED]"

// sensitiveFragments are matched case-insensitively against map keys.
var sensitiveFragments = []string{"password", "token", "key", "secret", "auth", "credential"}

// IsSensitiveKey reports whether key names a field that must be redacted.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, frag := range sensitiveFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// Sanitize walks v and returns a copy with sensitive map values replaced by
// Redacted and host references replaced by their placeholder string. Lists
// keep their order and length. Sanitize(Sanitize(v)) equals Sanitize(v).
func Sanitize(v value.Value) value.Value {
	switch v.Kind() {
	case value.KindHost:
		return value.String(value.HostPlaceholder(v.Str()))
	case value.KindList:
		items := v.Items()
		for i, item := range items {
			items[i] = Sanitize(item)
		}
		return value.List(items...)
	case value.KindMap:
		fields := v.Fields()
		for i, f := range fields {
			if IsSensitiveKey(f.Key) {
				fields[i].Value = value.String(Redacted)
				continue
			}
			fields[i].Value = Sanitize(f.Value)
		}
		return value.Map(fields...)
	default:
		return v
	}
}
