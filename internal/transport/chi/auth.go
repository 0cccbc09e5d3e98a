package chi

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"go.uber.org/zap"

	logpkg "github.com/ShikharMathco/merck-agentic-poc/internal/logger"
)

// apiKeyHeader is accepted alongside Authorization for MCP clients that
// cannot set a bearer token.
const apiKeyHeader = "X-API-Key"

// exemptPaths bypass authentication so probes and scrapers need no key.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// apiKey is a configured key plus the short id logged in its place.
type apiKey struct {
	secret []byte
	id     string
}

// keyID is a stable, non-reversible label for a key: the first 8 hex chars of its sha256.
func keyID(k string) string {
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:4])
}

// BearerAuthMiddleware validates API keys sent as "Authorization: Bearer <key>"
// or X-API-Key. An empty key list disables authentication. Authenticated
// requests get a key_id field on their context logger.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	var keys []apiKey
	seen := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, apiKey{secret: []byte(k), id: keyID(k)})
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

			token, msg := credential(r)
			if msg != "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, msg)
				return
			}
			id, ok := matchKey(keys, token)
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid api key")
				return
			}

			ctx := logpkg.WithFields(r.Context(), zap.String("key_id", id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// credential extracts the presented key, or a client-facing reason it is missing.
func credential(r *http.Request) (token, msg string) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, rest, found := strings.Cut(auth, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			return "", "authorization header must use Bearer scheme"
		}
		if token = strings.TrimSpace(rest); token == "" {
			return "", "empty bearer token"
		}
		return token, ""
	}
	if token = r.Header.Get(apiKeyHeader); token != "" {
		return token, ""
	}
	return "", "missing authorization header"
}

// matchKey compares token against every key in constant time and returns the matching key id.
func matchKey(keys []apiKey, token string) (string, bool) {
	t := []byte(token)
	id := ""
	for _, k := range keys {
		if subtle.ConstantTimeCompare(k.secret, t) == 1 {
			id = k.id
		}
	}
	return id, id != ""
}
