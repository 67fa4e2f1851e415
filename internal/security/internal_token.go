package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/cwrk-planet/realtime-service/pkg/httputil"
)

const HeaderInternalToken = "X-Internal-Token"

// TokenGuard checks the shared secret of internal callers (persistence
// layer, other services). An empty secret rejects everyone.
type TokenGuard struct {
	token []byte
}

func NewTokenGuard(token string) *TokenGuard {
	return &TokenGuard{token: []byte(strings.TrimSpace(token))}
}

func (g *TokenGuard) Check(presented string) bool {
	if g == nil || len(g.token) == 0 {
		return false
	}

	return subtle.ConstantTimeCompare(g.token, []byte(strings.TrimSpace(presented))) == 1
}

func (g *TokenGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Check(r.Header.Get(HeaderInternalToken)) {
			httputil.Error(w, http.StatusUnauthorized, "invalid internal token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
