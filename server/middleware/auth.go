package middleware

import (
	"log"
	"net/http"

	"github.com/indieinfra/mediadrop/config"
	"github.com/indieinfra/mediadrop/server/auth"
	"github.com/indieinfra/mediadrop/server/resp"
	"github.com/indieinfra/mediadrop/server/util"
)

// ValidateTokenMiddleware wraps a downstream handler. It requires a Bearer token in the
// Authorization header, verifies it against the configured HS256 secret and checks that it
// grants scope. The verified claims and a request logger are stored in the request context.
func ValidateTokenMiddleware(cfg *config.Config, scope auth.Scope, next http.Handler) http.Handler {
	secret := []byte(cfg.Auth.JwtSecret)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.ExtractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			resp.WriteUnauthorized(w, "An access token is required")
			return
		}

		claims, err := auth.VerifyToken(secret, cfg.Auth.Issuer, token)
		if err != nil {
			if cfg.Debug {
				util.WithRequest(log.Default(), r, "").Infof("token rejected: %v", err)
			}
			resp.WriteUnauthorized(w, "Token validation failed")
			return
		}

		if !claims.HasScope(scope) {
			resp.WriteInsufficientScope(w, "Token is missing the "+scope.String()+" scope")
			return
		}

		rl := util.WithRequest(log.Default(), r, claims.Subject)
		ctx := util.ContextWithLogger(r.Context(), rl)
		next.ServeHTTP(w, r.WithContext(auth.AddClaims(ctx, claims)))
	})
}

// CORS answers pre-flight requests and decorates responses for browser callers.
func CORS(allowedOrigin string, next http.Handler) http.Handler {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", allowedOrigin)
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Max-Age", "600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
