package middleware

import (
	"net/http"
	"strings"
)

// UnknownClient is the shared bucket for requests without proxy headers.
const UnknownClient = "unknown"

// ClientIP returns the client address reported by the fronting proxy:
// CF-Connecting-IP, then X-Real-IP, then the first X-Forwarded-For entry.
// Requests carrying none of them share the UnknownClient bucket.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return UnknownClient
}
