package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// adminPrefix is the route prefix guarded by API keys. Health and metrics
// stay open for probes and scrapers.
const adminPrefix = "/admin"

const bearerPrefix = "Bearer "

// AdminAuthMiddleware requires a bearer token from apiKeys on admin routes.
// Empty keys are ignored; with none left authentication is disabled.
func AdminAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != adminPrefix && !strings.HasPrefix(r.URL.Path, adminPrefix+"/") {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "admin routes require a bearer token")
				return
			}
			if !knownKey(keys, token) {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) ([]byte, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, bearerPrefix) {
		return nil, false
	}
	token := strings.TrimSpace(auth[len(bearerPrefix):])
	return []byte(token), token != ""
}

// knownKey compares against every key so timing does not reveal which matched.
func knownKey(keys [][]byte, token []byte) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, token)
	}
	return found == 1
}
