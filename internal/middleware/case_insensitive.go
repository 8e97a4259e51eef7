package middleware

import (
	"net/http"
	"strings"
)

// CaseInsensitiveMiddleware converts all URL paths to lowercase.
// QR codes encode upper-case text more compactly, so a scanned
// HTTPS://LABELS.EXAMPLE.COM/VIEW/244 must still reach /view/244.
// Query strings are left untouched since batch codes are case-sensitive.
func CaseInsensitiveMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.URL.Path = strings.ToLower(r.URL.Path)
		if r.URL.RawPath != "" {
			r.URL.RawPath = strings.ToLower(r.URL.RawPath)
		}
		next.ServeHTTP(w, r)
	})
}
