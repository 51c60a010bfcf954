package logging

import (
	"net/http"
	"strconv"
	"strings"
)

// IsRateLimit reports whether err looks like a provider rate-limit rejection.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, strconv.Itoa(http.StatusTooManyRequests))
}
