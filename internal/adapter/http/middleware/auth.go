package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/auth"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"go.uber.org/zap"
)

// Authenticate parses a "Bearer <token>" Authorization header when present and
// stores the caller in the request context. Requests without a usable token
// pass through anonymously, so public routes keep working with a stale token;
// RequireAuth and RequireAdmin reject them on gated routes.
func Authenticate(tokens *auth.TokenManager, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.Fields(header)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				log.Debug("Invalid authorization header format", zap.String("path", r.URL.Path))
				next.ServeHTTP(w, r.WithContext(withTokenRejected(r.Context())))
				return
			}

			claims, err := tokens.Parse(parts[1])
			if err != nil {
				log.Debug("Token rejected", zap.String("path", r.URL.Path), zap.Error(err))
				next.ServeHTTP(w, r.WithContext(withTokenRejected(r.Context())))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), claims.Caller())))
		})
	}
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CallerFromContext(r.Context()); !ok {
			writeUnauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects anonymous requests with 401 and non-admin callers with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok {
			writeUnauthorized(w, r)
			return
		}
		if !caller.IsAdmin() {
			writeMessage(w, http.StatusForbidden, "Not authorized as an admin")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	if TokenRejected(r.Context()) {
		writeMessage(w, http.StatusUnauthorized, "Not authorized, token failed")
		return
	}
	writeMessage(w, http.StatusUnauthorized, "Not authorized, no token")
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
