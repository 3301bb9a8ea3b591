package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret", Issuer: "health-tests"}

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":       "user-1",
		"tenant_id": "tenant-a",
		"iss":       testConfig.Issuer,
		"exp":       time.Now().Add(time.Hour).Unix(),
		"scopes":    []string{ScopeHealthRead},
	}
}

func TestParseValidToken(t *testing.T) {
	claims, err := Parse(signToken(t, validClaims(), testConfig.Secret), testConfig)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "tenant-a", claims.TenantID)
	assert.True(t, claims.CanRead())
	assert.False(t, claims.CanWrite())
	assert.Equal(t, "user-1", claims.Owner().UserID)
}

func TestWriteScopeImpliesRead(t *testing.T) {
	c := validClaims()
	c["scopes"] = "health:write"
	claims, err := Parse(signToken(t, c, testConfig.Secret), testConfig)
	require.NoError(t, err)
	assert.True(t, claims.CanRead())
	assert.True(t, claims.CanWrite())
}

func TestParseRejectsBadTokens(t *testing.T) {
	_, err := Parse("", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = Parse(signToken(t, validClaims(), "other-secret"), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	_, err = Parse(signToken(t, expired, testConfig.Secret), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	noTenant := validClaims()
	delete(noTenant, "tenant_id")
	_, err = Parse(signToken(t, noTenant, testConfig.Secret), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := validClaims()
	wrongIssuer["iss"] = "someone-else"
	_, err = Parse(signToken(t, wrongIssuer, testConfig.Secret), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := NewMiddleware(testConfig).Wrap(next)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health-analysis/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "unauthorized")

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Nil(t, seen)

	req := httptest.NewRequest(http.MethodGet, "/health-analysis/profile", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims(), testConfig.Secret))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "tenant-a", seen.TenantID)
}
