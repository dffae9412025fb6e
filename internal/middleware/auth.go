// Package middleware provides the HTTP middleware stack: authentication,
// role checks, login rate limiting, CORS, tracing and metrics.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dgi-platform/rendezvous-service/internal/logging"
	"github.com/dgi-platform/rendezvous-service/internal/services/auth"
)

// TokenVerifier validates a session token and returns its claims.
// *auth.Service satisfies it.
type TokenVerifier interface {
	VerifyToken(tokenString string) (*auth.Claims, error)
}

// AuthMiddleware authenticates requests via a Bearer session token.
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *logging.Logger
}

// NewAuthMiddleware creates the authentication middleware.
func NewAuthMiddleware(verifier TokenVerifier, logger *logging.Logger) *AuthMiddleware {
	if logger == nil {
		logger = logging.NewDefault("middleware")
	}
	return &AuthMiddleware{verifier: verifier, logger: logger}
}

// Handler rejects requests without a valid Bearer token and stores the
// verified identity in the request context.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSONError(w, http.StatusUnauthorized, "Authentification requise")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeJSONError(w, http.StatusUnauthorized, "Authentification requise")
			return
		}

		claims, err := m.verifier.VerifyToken(parts[1])
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("token validation failed")
			writeJSONError(w, http.StatusForbidden, "Token invalide")
			return
		}

		ctx := logging.WithUser(r.Context(), claims.UserID, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles rejects authenticated requests whose role is not in the
// allow-set.
func RequireRoles(logger *logging.Logger, roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := logging.GetRole(r.Context())
			if !allowed[role] {
				if logger != nil {
					logger.LogSecurityEvent(r.Context(), "role_forbidden", map[string]interface{}{
						"path":   r.URL.Path,
						"method": r.Method,
						"role":   role,
					})
				}
				writeJSONError(w, http.StatusForbidden, "Accès interdit")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
