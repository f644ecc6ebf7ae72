package cloudflare

import (
	"fmt"
	"strings"
)

// Error codes returned by the routing settings endpoint.
const (
	CodeAuthError     = 10001
	CodeInvalidZoneID = 7003
)

// APIError is returned when the API answers with success=false or a non-2xx status.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Errors     []ResponseInfo
}

func (e *APIError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, info := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%d: %s", info.Code, info.Message))
	}
	if len(msgs) == 0 {
		return fmt.Sprintf("cloudflare API error (%d) on %s %s", e.StatusCode, e.Method, e.Path)
	}
	return fmt.Sprintf("cloudflare API error (%d) on %s %s: %s", e.StatusCode, e.Method, e.Path, strings.Join(msgs, "; "))
}

// HasCode reports whether the response carried the given error code.
func (e *APIError) HasCode(code int) bool {
	for _, info := range e.Errors {
		if info.Code == code {
			return true
		}
	}
	return false
}
