package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// issue signs claims the way the identity provider does
func issue(t *testing.T, method jwt.SigningMethod, secret string, claims *IdentityClaims) string {
	t.Helper()
	tokenStr, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tokenStr
}

func TestJWTUtil_Validate(t *testing.T) {
	ju := NewJWTUtil("HS256", "secret", "token")
	tokenStr := issue(t, jwt.SigningMethodHS256, "secret", &IdentityClaims{
		UID:            "learner-1",
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(time.Hour).Unix()},
	})

	claims, err := ju.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, "learner-1", claims.UID)
	assert.True(t, claims.TimeRemaining() > 59*time.Minute)
}

func TestJWTUtil_RejectsForeignSecretAndMethod(t *testing.T) {
	tokenStr := issue(t, jwt.SigningMethodHS512, "other", &IdentityClaims{UID: "learner-1"})

	_, err := NewJWTUtil("HS256", "other", "token").Validate(tokenStr)
	assert.Error(t, err)
	_, err = NewJWTUtil("HS512", "secret", "token").Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTUtil_RejectsMissingUID(t *testing.T) {
	ju := NewJWTUtil("HS256", "secret", "token")
	tokenStr := issue(t, jwt.SigningMethodHS256, "secret", &IdentityClaims{})

	_, err := ju.Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTUtil_ExtractToken(t *testing.T) {
	ju := NewJWTUtil("HS256", "secret", "token")
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "from-cookie"})
	tok, err := ju.ExtractToken(e.NewContext(req, httptest.NewRecorder()))
	require.NoError(t, err)
	assert.Equal(t, "from-cookie", tok)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer from-header")
	tok, err = ju.ExtractToken(e.NewContext(req, httptest.NewRecorder()))
	require.NoError(t, err)
	assert.Equal(t, "from-header", tok)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	_, err = ju.ExtractToken(e.NewContext(req, httptest.NewRecorder()))
	assert.ErrorIs(t, err, ErrMissingToken)
}
