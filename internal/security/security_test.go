package security_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/security"

	"github.com/golang-jwt/jwt"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "auth-service"
	testAudience = "cwrk-planet"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func sign(t *testing.T, key *rsa.PrivateKey, claims security.SessionClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(sub, role string) security.SessionClaims {
	return security.SessionClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   sub,
			Issuer:    testIssuer,
			Audience:  testAudience,
			IssuedAt:  testNow.Unix(),
			NotBefore: testNow.Unix(),
			ExpiresAt: testNow.Add(15 * time.Minute).Unix(),
		},
		Role: role,
	}
}

func newVerifier(key *rsa.PrivateKey) *security.JWTVerifier {
	return security.NewJWTVerifier(&key.PublicKey, testIssuer, testAudience, 30*time.Second, clockwork.NewFakeClockAt(testNow))
}

func TestJWTVerifier(t *testing.T) {
	key := newKey(t)
	v := newVerifier(key)

	claims, err := v.ParseAndValidate(sign(t, key, validClaims("u1", "client")))
	require.NoError(t, err)
	id, err := claims.Identity()
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{UserID: "u1", Role: domain.RoleClient}, id)

	t.Run("expired beyond skew", func(t *testing.T) {
		c := validClaims("u1", "client")
		c.ExpiresAt = testNow.Add(-time.Minute).Unix()
		_, err := v.ParseAndValidate(sign(t, key, c))
		assert.ErrorIs(t, err, security.ErrTokenExpired)
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("expired within skew", func(t *testing.T) {
		c := validClaims("u1", "client")
		c.ExpiresAt = testNow.Add(-10 * time.Second).Unix()
		_, err := v.ParseAndValidate(sign(t, key, c))
		assert.NoError(t, err)
	})

	t.Run("not yet valid", func(t *testing.T) {
		c := validClaims("u1", "client")
		c.NotBefore = testNow.Add(time.Hour).Unix()
		_, err := v.ParseAndValidate(sign(t, key, c))
		assert.ErrorIs(t, err, security.ErrTokenExpired)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		c := validClaims("u1", "client")
		c.Issuer = "someone"
		_, err := v.ParseAndValidate(sign(t, key, c))
		assert.ErrorIs(t, err, security.ErrInvalidIssuer)
	})

	t.Run("wrong audience", func(t *testing.T) {
		c := validClaims("u1", "client")
		c.Audience = "other"
		_, err := v.ParseAndValidate(sign(t, key, c))
		assert.ErrorIs(t, err, security.ErrInvalidAudience)
	})

	t.Run("foreign key", func(t *testing.T) {
		_, err := v.ParseAndValidate(sign(t, newKey(t), validClaims("u1", "client")))
		assert.ErrorIs(t, err, security.ErrInvalidToken)
	})

	t.Run("hmac rejected", func(t *testing.T) {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims("u1", "client")).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = v.ParseAndValidate(s)
		assert.ErrorIs(t, err, security.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.ParseAndValidate("not.a.jwt")
		assert.ErrorIs(t, err, security.ErrInvalidToken)
	})
}

type stubRoles map[string]domain.Role

func (s stubRoles) RoleOf(_ context.Context, id string) (domain.Role, error) {
	r, ok := s[id]
	if !ok {
		return "", domain.ErrUserNotFound
	}
	return r, nil
}

func TestAuthenticator_TokenSources(t *testing.T) {
	key := newKey(t)
	a := security.NewAuthenticator(newVerifier(key), "", nil)
	tok := sign(t, key, validClaims("u1", "service_provider"))

	reqs := map[string]*http.Request{}

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.AddCookie(&http.Cookie{Name: security.DefaultCookieName, Value: tok})
	reqs["cookie"] = r

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	reqs["bearer"] = r

	reqs["query"] = httptest.NewRequest(http.MethodGet, "/ws?access_token="+tok, nil)

	for name, req := range reqs {
		t.Run(name, func(t *testing.T) {
			id, err := a.Authenticate(req)
			require.NoError(t, err)
			assert.Equal(t, "u1", id.UserID)
			assert.Equal(t, domain.RoleServiceProvider, id.Role)
		})
	}

	_, err := a.Authenticate(httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.ErrorIs(t, err, security.ErrMissingToken)
}

func TestAuthenticator_RoleFallback(t *testing.T) {
	key := newKey(t)
	tok := sign(t, key, validClaims("u2", ""))

	a := security.NewAuthenticator(newVerifier(key), "", stubRoles{"u2": domain.RolePropertyOwner})
	r := httptest.NewRequest(http.MethodGet, "/ws?access_token="+tok, nil)
	id, err := a.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, domain.RolePropertyOwner, id.Role)

	a = security.NewAuthenticator(newVerifier(key), "", stubRoles{})
	_, err = a.Authenticate(r)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	a = security.NewAuthenticator(newVerifier(key), "", nil)
	_, err = a.Authenticate(r)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestAuthenticator_Middleware(t *testing.T) {
	key := newKey(t)
	a := security.NewAuthenticator(newVerifier(key), "", nil)

	var got domain.Identity
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = security.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/presence/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/presence/x", nil)
	req.Header.Set("Authorization", "bearer "+sign(t, key, validClaims("u3", "support")))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, domain.Identity{UserID: "u3", Role: domain.RoleSupport}, got)
}

func TestTokenGuard(t *testing.T) {
	g := security.NewTokenGuard("s3cret")
	assert.True(t, g.Check("s3cret"))
	assert.False(t, g.Check("nope"))
	assert.False(t, g.Check(""))

	assert.False(t, security.NewTokenGuard("").Check(""))

	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	req := httptest.NewRequest(http.MethodPost, "/internal/notify", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set(security.HeaderInternalToken, "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestLoadRSAPublicKeyFromPEM(t *testing.T) {
	key := newKey(t)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "jwt_public.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	pub, err := security.LoadRSAPublicKeyFromPEM(path)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(pub))

	_, err = security.LoadRSAPublicKeyFromPEM(filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)
}
