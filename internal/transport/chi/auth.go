package chi

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/topicdex/internal/logger"
)

// exemptPaths bypass authentication.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

type keyIDCtxKey struct{}

// KeyIDFromContext returns the id of the API key that authenticated the
// request, or "" when authentication is disabled or the path is exempt.
func KeyIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(keyIDCtxKey{}).(string)
	return id
}

// KeyID derives a loggable id from an API key. The key itself never
// appears in logs.
func KeyID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "key_" + hex.EncodeToString(sum[:4])
}

type apiKey struct {
	secret []byte
	id     string
}

// BearerAuthMiddleware returns a middleware that validates Bearer tokens.
// If apiKeys is empty, authentication is disabled (pass-through).
// Authenticated requests carry the key id in their context and logger.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	seen := make(map[string]struct{}, len(apiKeys))
	keys := make([]apiKey, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, apiKey{secret: []byte(k), id: KeyID(k)})
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			reject := func(reason string) {
				logger.FromContext(r.Context()).Warn("Request rejected", zap.String("reason", reason))
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, reason)
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				reject("missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				reject("authorization header must use Bearer scheme")
				return
			}

			id, ok := match(keys, []byte(auth[len(bearerPrefix):]))
			if !ok {
				reject("invalid api key")
				return
			}

			ctx := context.WithValue(r.Context(), keyIDCtxKey{}, id)
			ctx = logger.With(ctx, zap.String("api_key_id", id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// match compares token against every key in constant time per key.
func match(keys []apiKey, token []byte) (string, bool) {
	found := ""
	for _, k := range keys {
		if subtle.ConstantTimeCompare(k.secret, token) == 1 {
			found = k.id
		}
	}
	return found, found != ""
}
