package utils

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	// RedactionMarker replaces values of credential-like fields.
	RedactionMarker = "***"

	// MaxLoggedStringLen truncates long string values in diagnostic logs.
	MaxLoggedStringLen = 64
)

// SensitiveKeywords are field-name fragments that mark a value as a
// credential. Matching is case-insensitive substring.
var SensitiveKeywords = []string{
	"pass",
	"passwd",
	"password",
	"authorization",
	"token",
	"secret",
	"credential",
	"api-key",
	"login-at",
	"login_at",
	"_t",
	"userkey",
}

// BodyMasker redacts credential-like material from request/response bodies
// and headers before they reach a log sink. Diagnostic logging must always
// pass through it.
type BodyMasker struct {
	sensitiveKeywords []string
}

// NewBodyMasker creates a masker with the default keyword set.
func NewBodyMasker() *BodyMasker {
	return &BodyMasker{sensitiveKeywords: SensitiveKeywords}
}

// IsSensitiveField reports whether a field name looks credential-like.
func (bm *BodyMasker) IsSensitiveField(name string) bool {
	nameLower := strings.ToLower(name)
	for _, keyword := range bm.sensitiveKeywords {
		if strings.Contains(nameLower, keyword) {
			return true
		}
	}
	return false
}

// MaskValue shortens or hides a single value regardless of its field name.
// JWT-shaped strings keep only a head and tail so two log lines remain
// distinguishable; anything long gets truncated.
func (bm *BodyMasker) MaskValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return bm.MaskMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = bm.MaskValue(item)
		}
		return out
	case string:
		if looksJWTish(val) {
			parts := strings.Split(val, ".")
			return parts[0][:6] + "..." + parts[len(parts)-1][len(parts[len(parts)-1])-6:]
		}
		if len(val) > MaxLoggedStringLen {
			return val[:MaxLoggedStringLen/2] + "...(trunc)"
		}
		return val
	default:
		return v
	}
}

// MaskMap redacts a decoded JSON object: sensitive field names are replaced
// with the redaction marker, everything else is value-masked recursively.
func (bm *BodyMasker) MaskMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if bm.IsSensitiveField(k) {
			out[k] = RedactionMarker
			continue
		}
		out[k] = bm.MaskValue(v)
	}
	return out
}

// MaskJSON parses raw JSON, masks it, and renders it back for logging.
// Non-JSON input is returned truncated instead.
func (bm *BodyMasker) MaskJSON(raw []byte) string {
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		s := string(raw)
		if len(s) > 500 {
			return s[:500] + "...(trunc)"
		}
		return s
	}
	masked := bm.MaskValue(decoded)
	rendered, err := json.Marshal(masked)
	if err != nil {
		return "<unrenderable body>"
	}
	return string(rendered)
}

// MaskHeaders returns a log-safe copy of HTTP headers.
func (bm *BodyMasker) MaskHeaders(headers http.Header) map[string]string {
	result := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		value := values[0]
		if bm.IsSensitiveField(name) {
			if strings.HasPrefix(value, "Bearer ") {
				result[name] = "Bearer " + RedactionMarker
			} else if len(value) > 8 {
				result[name] = value[:4] + RedactionMarker + value[len(value)-4:]
			} else {
				result[name] = RedactionMarker
			}
			continue
		}
		result[name] = value
	}
	return result
}

// looksJWTish is a loose check used only for log shortening; the strict
// jwt-shape test lives with the token extractor.
func looksJWTish(s string) bool {
	if strings.Count(s, ".") != 2 {
		return false
	}
	for _, p := range strings.Split(s, ".") {
		if len(p) <= 5 {
			return false
		}
	}
	return true
}
