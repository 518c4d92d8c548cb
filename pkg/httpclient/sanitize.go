package httpclient

import (
	"net/url"
	"strings"
)

// sensitiveParamSubstrings flags a query parameter as secret-bearing if its
// name contains any of these, case-insensitively. internal/connector/builtin
// applies an analogous redaction to a connector result's meta (see
// result.go); this is the request-URL-logging side of the same policy.
var sensitiveParamSubstrings = []string{
	"api_key", "apikey", "token", "password", "auth", "secret", "key", "credential",
}

// sanitizeURL renders u with every sensitive query parameter's value
// replaced, so the logging transport never writes a secret to a log line.
func sanitizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	q := u.Query()
	for param := range q {
		if isSensitiveParam(param) {
			q.Set(param, "[REDACTED]")
		}
	}

	safe := *u
	safe.RawQuery = q.Encode()
	return safe.String()
}

func isSensitiveParam(param string) bool {
	lower := strings.ToLower(param)
	for _, substr := range sensitiveParamSubstrings {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}
