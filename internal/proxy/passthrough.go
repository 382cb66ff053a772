package proxy

import (
	"net/http"
	"strings"

	"szenai/pkg/waha"
)

// handlePassthrough forwards any request without a dedicated handler to the
// same path in the WAHA session namespace and echoes the upstream reply.
func (p *Proxy) handlePassthrough(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.EscapedPath(), prefix)
		if path == "" {
			path = "/"
		}

		body, err := readBody(w, r)
		if err != nil {
			p.writeError(w, r, "forward", err)
			return
		}

		resp, err := p.upstream.Forward(r.Context(), r.Method, path, r.URL.Query(), r.Header, body)
		if err != nil {
			p.writeError(w, r, "forward", err)
			return
		}

		for name, values := range waha.SanitizeHeaders(resp.Header) {
			// CORS is answered locally
			if strings.HasPrefix(name, "Access-Control-") {
				continue
			}
			for _, v := range values {
				w.Header().Add(name, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		if r.Method != http.MethodHead {
			_, _ = w.Write(resp.Body)
		}
	}
}
