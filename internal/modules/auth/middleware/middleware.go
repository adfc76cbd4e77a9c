package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"iotdash-server/internal/modules/auth/service"
	"iotdash-server/internal/modules/auth/types"
	"iotdash-server/internal/utils"
)

type contextKey struct{}

var principalKey contextKey

// Middleware is the authorization gate: it extracts the bearer credential,
// validates it through the token service and attaches the principal to the
// request context.
type Middleware struct {
	tokens *service.TokenService
}

func New(tokens *service.TokenService) *Middleware {
	return &Middleware{tokens: tokens}
}

// PrincipalFrom returns the authenticated principal stored by RequireUser.
func PrincipalFrom(ctx context.Context) (types.Principal, bool) {
	p, ok := ctx.Value(principalKey).(types.Principal)
	return p, ok
}

// ExtractToken reads the credential from the Authorization header (optional
// Bearer prefix) or the legacy x-auth-token header.
func ExtractToken(r *http.Request) string {
	token := r.Header.Get("Authorization")
	if token == "" {
		token = r.Header.Get("x-auth-token")
	}
	token = strings.TrimSpace(token)
	if after, ok := strings.CutPrefix(token, "Bearer "); ok {
		token = strings.TrimSpace(after)
	}
	return token
}

// RequireUser rejects requests without a valid session token.
func (m *Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.tokens.Validate(ExtractToken(r))
		if err != nil {
			writeAuthError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin additionally demands the admin role.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())
		if p.Role != types.RoleAdmin {
			utils.WriteError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	kind, ok := types.AuthKind(err)
	if !ok {
		slog.Error("token validation failed", "path", r.URL.Path, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "authentication unavailable")
		return
	}
	switch kind {
	case types.AuthMissing:
		utils.WriteError(w, http.StatusUnauthorized, "missing token")
	case types.AuthExpired:
		utils.WriteError(w, http.StatusUnauthorized, "expired token")
	default:
		utils.WriteError(w, http.StatusUnauthorized, "invalid token")
	}
}
