package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const (
	bearerPrefix = "Bearer "

	msgMissingToken = "Missing service token"
	msgInvalidToken = "Invalid service token"
)

// bearerToken returns everything after the first space of a "Bearer " header.
func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	return header[len(bearerPrefix):], true
}

// tokenMatches compares in constant time for equal-length inputs.
func tokenMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// requireServiceToken rejects requests without the shared service token
// before any body is read.
func requireServiceToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				authFailuresTotal.WithLabelValues("missing").Inc()
				writeJSONError(w, http.StatusUnauthorized, msgMissingToken)
				return
			}
			if !tokenMatches(got, token) {
				authFailuresTotal.WithLabelValues("invalid").Inc()
				writeJSONError(w, http.StatusForbidden, msgInvalidToken)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
