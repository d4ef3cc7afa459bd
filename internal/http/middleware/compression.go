package middleware

import (
	"net/http"
	"strings"
)

// SkipCompressionForSSE wraps a compression middleware so SSE responses
// bypass it. Compressed event streams buffer in the compressor and
// defeat per-event flushing.
func SkipCompressionForSSE(compressionHandler func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		compressedHandler := compressionHandler(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
				next.ServeHTTP(w, r)
				return
			}

			// The event stream endpoint itself, regardless of Accept
			if strings.HasSuffix(r.URL.Path, "/events") {
				next.ServeHTTP(w, r)
				return
			}

			compressedHandler.ServeHTTP(w, r)
		})
	}
}
