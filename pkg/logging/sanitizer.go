package logging

import (
	"regexp"
	"strings"
)

const (
	// MaxBodyLogLength is the maximum length of an upstream response body to log
	MaxBodyLogLength = 200
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
	// visiblePhoneDigits is how many trailing digits MaskPhone keeps
	visiblePhoneDigits = 4
)

var (
	// Matches password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Bearer tokens, JWT shaped or opaque
	bearerPattern = regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-_.~+/]+=*`)

	// api_key=..., apikey=..., key=... query parameters
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key|token)=[A-Za-z0-9\-_]{8,}`)

	// user:pass@host in redis:// and postgres:// URLs
	connStringPattern = regexp.MustCompile(`://[^:/@\s]*:[^@\s]+@`)
)

// SanitizeConnectionString removes credentials from Redis and Postgres
// connection strings before they are logged.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")

	return sanitized
}

// SanitizeError strips credentials from error messages. CRM transport errors
// embed request URLs, which can carry API keys.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = bearerPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")

	return sanitized
}

// MaskPhone keeps the leading '+' and the last four digits of a phone number.
// "+13035550100" becomes "+*******0100".
func MaskPhone(phone string) string {
	if phone == "" {
		return ""
	}

	prefix := ""
	body := phone
	if strings.HasPrefix(body, "+") {
		prefix = "+"
		body = body[1:]
	}
	if len(body) <= visiblePhoneDigits {
		return prefix + strings.Repeat("*", len(body))
	}
	return prefix + strings.Repeat("*", len(body)-visiblePhoneDigits) + body[len(body)-visiblePhoneDigits:]
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
