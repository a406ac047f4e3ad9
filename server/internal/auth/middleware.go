package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// Header is the request header carrying the API key.
const Header = "X-API-Key"

// APIKey wraps next with API key authentication.
//
// Behaviour:
//   - An empty key disables authentication entirely (local development).
//   - Otherwise the value of the X-API-Key header is compared against key
//     in constant time; a missing or wrong key gets 401 before next runs.
func APIKey(key string, next http.Handler) http.Handler {
	if key == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(Header)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"}) //nolint:errcheck
			return
		}
		next.ServeHTTP(w, r)
	})
}
