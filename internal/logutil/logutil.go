package logutil

import (
	"encoding/json"
	"strings"
)

const redacted = "[REDACTED]"

// IsSensitiveLogField returns true when a key likely contains sensitive data.
func IsSensitiveLogField(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")
	normalized = strings.ReplaceAll(normalized, " ", "")

	switch {
	case normalized == "authorization":
		return true
	case strings.Contains(normalized, "token"):
		return true
	case strings.Contains(normalized, "secret"):
		return true
	case strings.Contains(normalized, "password"):
		return true
	case strings.Contains(normalized, "apikey"):
		return true
	case strings.Contains(normalized, "cookie"):
		return true
	case strings.Contains(normalized, "otp"):
		return true
	default:
		return false
	}
}

// RedactFillValue hides text typed into a field whose locator description looks sensitive.
func RedactFillValue(target, value string) string {
	if IsSensitiveLogField(target) {
		return redacted
	}
	return value
}

// RedactValueForLog renders a script result as JSON with sensitive keys redacted.
// Values that cannot be marshaled fall back to a placeholder.
func RedactValueForLog(v any, maxChars int) string {
	var redact func(v any) any
	redact = func(v any) any {
		switch typed := v.(type) {
		case map[string]any:
			out := make(map[string]any, len(typed))
			for k, child := range typed {
				if IsSensitiveLogField(k) {
					out[k] = redacted
					continue
				}
				out[k] = redact(child)
			}
			return out
		case []any:
			out := make([]any, len(typed))
			for i, child := range typed {
				out[i] = redact(child)
			}
			return out
		default:
			return v
		}
	}

	raw, err := json.Marshal(redact(v))
	if err != nil {
		return "<unserializable>"
	}
	return TruncateForLog(string(raw), maxChars)
}

// TruncateForLog returns a single-line truncated preview for unstructured values.
func TruncateForLog(value string, maxChars int) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	normalized := strings.ReplaceAll(trimmed, "\n", "\\n")
	if maxChars <= 0 || len(normalized) <= maxChars {
		return normalized
	}
	return normalized[:maxChars] + "... [truncated]"
}
