package waha

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// RawResponse is an upstream reply forwarded without interpretation.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Headers that never cross the proxy in either direction. Credentials are
// replaced by the client's own API key.
var strippedHeaders = []string{
	"Authorization",
	"Connection",
	"Content-Length",
	"Cookie",
	"Host",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Set-Cookie",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"X-Api-Key",
}

// SanitizeHeaders returns a copy of h without hop-by-hop and credential headers.
func SanitizeHeaders(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		out = http.Header{}
	}
	for _, f := range out["Connection"] {
		for _, name := range strings.Split(f, ",") {
			out.Del(strings.TrimSpace(name))
		}
	}
	for _, name := range strippedHeaders {
		out.Del(name)
	}
	return out
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// Forward relays an operation that has no typed method. escapedPath is
// relative to the session namespace, so "/contacts/all" reaches
// /api/{session}/contacts/all. Any upstream HTTP response, including non-2xx,
// is returned as a RawResponse; only failures to obtain one are errors.
// Non-idempotent methods are attempted once.
func (c *Client) Forward(ctx context.Context, method, escapedPath string, query url.Values, header http.Header, body []byte) (*RawResponse, error) {
	if !strings.HasPrefix(escapedPath, "/") {
		escapedPath = "/" + escapedPath
	}
	resp, err := c.do(ctx, call{
		op:     "forward",
		method: method,
		path:   c.sessionPath(escapedPath),
		query:  query,
		raw:    body,
		header: SanitizeHeaders(header),
		retry:  idempotent(method),
	})

	var ue *UpstreamError
	if errors.As(err, &ue) {
		return &RawResponse{StatusCode: ue.StatusCode, Header: SanitizeHeaders(ue.Header), Body: ue.Body}, nil
	}
	if err != nil {
		return nil, err
	}
	return &RawResponse{StatusCode: resp.status, Header: SanitizeHeaders(resp.header), Body: resp.body}, nil
}
