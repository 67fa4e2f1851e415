package security

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/pkg/httputil"
)

const DefaultCookieName = "access_token"

type RoleResolver interface {
	RoleOf(ctx context.Context, userID string) (domain.Role, error)
}

// Authenticator turns the caller's existing session into an identity.
// Token sources, in order: cookie, Authorization: Bearer, ?access_token.
type Authenticator struct {
	verifier   *JWTVerifier
	cookieName string
	roles      RoleResolver
}

func NewAuthenticator(verifier *JWTVerifier, cookieName string, roles RoleResolver) *Authenticator {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	return &Authenticator{verifier: verifier, cookieName: cookieName, roles: roles}
}

func (a *Authenticator) Authenticate(r *http.Request) (domain.Identity, error) {
	raw := TokenFromRequest(r, a.cookieName)
	if raw == "" {
		return domain.Identity{}, ErrMissingToken
	}
	claims, err := a.verifier.ParseAndValidate(raw)
	if err != nil {
		return domain.Identity{}, err
	}
	id, err := claims.Identity()
	if err != nil {
		return domain.Identity{}, err
	}

	if id.Role == "" {
		if a.roles == nil {
			return domain.Identity{}, fmt.Errorf("%w: token has no role", domain.ErrUnauthenticated)
		}
		role, err := a.roles.RoleOf(r.Context(), id.UserID)
		if err != nil {
			return domain.Identity{}, fmt.Errorf("%w: resolve role: %v", domain.ErrUnauthenticated, err)
		}
		id.Role = role
	}

	return id, nil
}

// Middleware пропускает только запросы с валидной сессией.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.Authenticate(r)
		if err != nil {
			httputil.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func TokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value)
	}
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}

	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(domain.Identity)
	return id, ok
}
