package utils

import (
	"sort"
	"strings"
)

// sensitiveKeywords flag header names whose values must not reach the logs.
var sensitiveKeywords = []string{
	"authorization",
	"token",
	"key",
	"secret",
	"password",
	"credential",
	"cookie",
}

// IsSensitiveHeader reports whether a header name looks credential-bearing.
func IsSensitiveHeader(name string) bool {
	nameLower := strings.ToLower(name)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(nameLower, keyword) {
			return true
		}
	}
	return false
}

// RedactHeaderValue masks the value of a sensitive header. Bearer tokens
// keep their prefix, longer secrets keep the first and last four
// characters, short ones disappear entirely.
func RedactHeaderValue(name, value string) string {
	if !IsSensitiveHeader(name) {
		return value
	}
	if strings.HasPrefix(value, "Bearer ") {
		return "Bearer ***"
	}
	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}
	return "***"
}

// RedactHeaders returns a copy of headers safe for logging.
func RedactHeaders(headers map[string]string) map[string]string {
	result := make(map[string]string, len(headers))
	for name, value := range headers {
		result[name] = RedactHeaderValue(name, value)
	}
	return result
}

// RedactHeadersToString formats headers for a single log line, sensitive
// values masked, names sorted for stable output.
func RedactHeadersToString(headers map[string]string) string {
	parts := make([]string, 0, len(headers))
	for name, value := range RedactHeaders(headers) {
		parts = append(parts, name+": "+value)
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
