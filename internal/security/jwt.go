package security

import (
	"crypto/rsa"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"

	"github.com/golang-jwt/jwt"
	"github.com/jonboulle/clockwork"
)

// SessionClaims - access token, выпущенный auth-service. Role может
// отсутствовать, тогда роль берётся из реестра пользователей.
type SessionClaims struct {
	jwt.StandardClaims
	Role string `json:"role,omitempty"`
}

// JWTVerifier проверяет только RS256 и не умеет подписывать.
type JWTVerifier struct {
	public    *rsa.PublicKey
	issuer    string
	audience  string
	clockSkew time.Duration
	clock     clockwork.Clock
	parser    *jwt.Parser
}

func NewJWTVerifier(public *rsa.PublicKey, issuer, audience string, clockSkew time.Duration, clock clockwork.Clock) *JWTVerifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &JWTVerifier{
		public:    public,
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
		clock:     clock,
		// exp/nbf проверяем сами, с учётом clockSkew
		parser: &jwt.Parser{
			ValidMethods:         []string{jwt.SigningMethodRS256.Alg()},
			SkipClaimsValidation: true,
		},
	}
}

func (v *JWTVerifier) ParseAndValidate(tokenStr string) (*SessionClaims, error) {
	if v.public == nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, errNoKey)
	}

	claims := &SessionClaims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		return v.public, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, ErrInvalidIssuer
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return nil, ErrInvalidAudience
	}

	now := v.clock.Now()
	if claims.ExpiresAt == 0 {
		return nil, ErrTokenExpired
	}
	exp := time.Unix(claims.ExpiresAt, 0).Add(v.clockSkew)
	if now.After(exp) {
		return nil, ErrTokenExpired
	}
	if claims.NotBefore != 0 {
		nbf := time.Unix(claims.NotBefore, 0).Add(-v.clockSkew)
		if now.Before(nbf) {
			return nil, ErrTokenExpired
		}
	}

	return claims, nil
}

// Identity достаёт (userID, role) из проверенных клеймов.
func (c *SessionClaims) Identity() (domain.Identity, error) {
	if c == nil || strings.TrimSpace(c.Subject) == "" {
		return domain.Identity{}, ErrInvalidSubject
	}

	return domain.Identity{
		UserID: strings.TrimSpace(c.Subject),
		Role:   domain.ParseRole(c.Role),
	}, nil
}

func LoadRSAPublicKeyFromPEM(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("parse public key %s: %w", path, err)
	}

	return pub, nil
}
