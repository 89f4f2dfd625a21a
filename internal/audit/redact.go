package audit

import "strings"

// Redacted replaces the value of every sensitive field.
const Redacted = "[REDACTED]"

const maxRedactDepth = 10

var sensitiveFields = map[string]struct{}{
	"password":        {},
	"passwordhash":    {},
	"password_hash":   {},
	"currentpassword": {},
	"newpassword":     {},
	"token":           {},
	"accesstoken":     {},
	"refreshtoken":    {},
	"sessiontoken":    {},
	"secret":          {},
	"key":             {},
	"authorization":   {},
}

// IsSensitiveField reports whether a field name must never be persisted in clear.
// Matching ignores case and underscores.
func IsSensitiveField(name string) bool {
	n := strings.ToLower(name)
	if _, ok := sensitiveFields[n]; ok {
		return true
	}
	_, ok := sensitiveFields[strings.ReplaceAll(n, "_", "")]
	return ok
}

// Redact returns a deep copy of values with sensitive fields replaced by Redacted.
// Nested maps and slices of maps are walked; the input is not modified.
func Redact(values map[string]any) map[string]any {
	return redactMap(values, 0)
}

func redactMap(values map[string]any, depth int) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		if IsSensitiveField(k) {
			out[k] = Redacted
			continue
		}
		out[k] = redactValue(v, depth+1)
	}
	return out
}

func redactValue(v any, depth int) any {
	switch v.(type) {
	case map[string]any, []any, []map[string]any:
		// Containers past the depth limit are replaced whole.
		if depth > maxRedactDepth {
			return Redacted
		}
	}
	switch t := v.(type) {
	case map[string]any:
		return redactMap(t, depth)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = redactValue(item, depth+1)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, item := range t {
			out[i] = redactMap(item, depth+1)
		}
		return out
	default:
		return v
	}
}
