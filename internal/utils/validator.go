package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxHeaderValueLength caps a single header value (8KB).
const MaxHeaderValueLength = 8192

// forbiddenHeaders are managed by the HTTP client and must not be set by
// the user; overriding them breaks connection reuse and content framing.
var forbiddenHeaders = map[string]bool{
	"host":              true,
	"content-length":    true,
	"transfer-encoding": true,
	"connection":        true,
}

var (
	headerNameRegex  = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	headerValueRegex = regexp.MustCompile(`^[\x20-\x7E\t]*$`)
)

// ValidateHeader checks one custom header against RFC 7230: a token name,
// printable-ASCII value within the length cap, and not a client-managed
// header.
func ValidateHeader(name, value string) error {
	if forbiddenHeaders[strings.ToLower(name)] {
		return fmt.Errorf("header %q is managed by the HTTP client and cannot be overridden", name)
	}
	if name == "" {
		return fmt.Errorf("header name must not be empty")
	}
	if !headerNameRegex.MatchString(name) {
		return fmt.Errorf("header name %q contains invalid characters (letters, digits and hyphens only)", name)
	}
	if len(value) > MaxHeaderValueLength {
		return fmt.Errorf("header %q value is %d bytes, max %d", name, len(value), MaxHeaderValueLength)
	}
	if !headerValueRegex.MatchString(value) {
		return fmt.Errorf("header %q value contains non-printable or non-ASCII characters", name)
	}
	return nil
}

// ValidateHeaders checks a whole custom header map.
func ValidateHeaders(headers map[string]string) error {
	for name, value := range headers {
		if err := ValidateHeader(name, value); err != nil {
			return err
		}
	}
	return nil
}
