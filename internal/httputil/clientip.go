package httputil

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP returns the address the request arrived from. Forwarding
// headers are only honoured when trustProxy is set: X-Forwarded-For (first
// entry), then X-Real-IP. Bracketed IPv6 remote addresses are unwrapped.
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.Trim(r.RemoteAddr, "[]")
	}
	return ip
}

// ClientIPFunc binds trustProxy for use as a rate-limit key function.
func ClientIPFunc(trustProxy bool) func(*http.Request) string {
	return func(r *http.Request) string {
		return GetClientIP(r, trustProxy)
	}
}
