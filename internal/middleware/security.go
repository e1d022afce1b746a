// Package middleware provides HTTP middleware for the investing monitor.
package middleware

import (
	"net/http"
)

// SecurityHeaders adds security-related HTTP headers to responses. The API
// serves JSON only, so the policy is strict: nothing may be embedded or
// executed.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent embedding in iframes
		w.Header().Set("X-Frame-Options", "DENY")

		// Never leak referrer information
		w.Header().Set("Referrer-Policy", "no-referrer")

		// No content of any kind may load from this origin
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		next.ServeHTTP(w, r)
	})
}
