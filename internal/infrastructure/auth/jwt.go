package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
)

// ErrMissingToken no token found in the request
var ErrMissingToken = errors.New("No identity token in request")

// IdentityClaims claims issued by the identity provider
type IdentityClaims struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`

	jwt.StandardClaims
}

// TimeRemaining remaining time before the token get expired
func (tk *IdentityClaims) TimeRemaining() time.Duration {
	exp := time.Unix(tk.ExpiresAt, 0)
	now := time.Now()

	if exp.Before(now) {
		return 0
	}
	return exp.Sub(now)
}

// JWTUtil verifies identity tokens. HS* methods share secret with the provider,
// ES256 expects secret to hold the provider's PEM encoded public key.
type JWTUtil struct {
	secret    []byte
	tokenName string
	method    jwt.SigningMethod
}

// NewJWTUtil create a JWTUtil instance
func NewJWTUtil(method, secret, tokenName string) *JWTUtil {
	var signMethod jwt.SigningMethod
	switch method {
	case "HS512":
		signMethod = jwt.SigningMethodHS512
	case "ES256":
		signMethod = jwt.SigningMethodES256
	default:
		signMethod = jwt.SigningMethodHS256
	}
	return &JWTUtil{
		method:    signMethod,
		secret:    []byte(secret),
		tokenName: tokenName,
	}
}

// Validate validate token string and return IdentityClaims
func (ju *JWTUtil) Validate(tokenStr string) (*IdentityClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != ju.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", token.Method.Alg())
		}
		if _, ok := ju.method.(*jwt.SigningMethodECDSA); ok {
			return jwt.ParseECPublicKeyFromPEM(ju.secret)
		}
		return ju.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims := token.Claims.(*IdentityClaims)
	if claims.UID == "" {
		return nil, errors.New("token carries no uid")
	}
	return claims, nil
}

// SetContextToken set token in App context
func (ju *JWTUtil) SetContextToken(c echo.Context, token *IdentityClaims) {
	c.Set(ju.tokenName, token)
}

// GetContextToken get token from App context
func (ju *JWTUtil) GetContextToken(c echo.Context) *IdentityClaims {
	v, ok := c.Get(ju.tokenName).(*IdentityClaims)
	if ok {
		return v
	}
	return nil
}

// LearnerID learner identifier of the verified request, empty if anonymous
func (ju *JWTUtil) LearnerID(c echo.Context) string {
	if claims := ju.GetContextToken(c); claims != nil {
		return claims.UID
	}
	return ""
}

// ExtractToken get token string from the cookie, or the Authorization header as fallback
func (ju *JWTUtil) ExtractToken(c echo.Context) (string, error) {
	if token, err := c.Cookie(ju.tokenName); err == nil && token.Value != "" {
		return token.Value, nil
	}
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer "), nil
	}
	return "", ErrMissingToken
}
