package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/coursegate/internal/infrastructure/auth"
)

// ValidateTokenOption ...
type ValidateTokenOption struct {
	// InBlackList reports whether the token was revoked
	InBlackList func(ctx context.Context, token string) (bool, error)
}

// VerifyToken validate JWT, the learner identity is then available through ju.LearnerID
func VerifyToken(ju *auth.JWTUtil, options ...*ValidateTokenOption) echo.MiddlewareFunc {
	inBlacklist := func(context.Context, string) (bool, error) { return false, nil }
	if len(options) > 0 {
		if option := options[0]; option.InBlackList != nil {
			inBlacklist = option.InBlackList
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, err := ju.ExtractToken(c)
			if err != nil {
				return c.NoContent(http.StatusUnauthorized)
			}

			if ok, err := inBlacklist(c.Request().Context(), tokenStr); err != nil {
				return err
			} else if ok {
				return c.NoContent(http.StatusUnauthorized)
			}

			token, err := ju.Validate(tokenStr)
			if err == nil {
				ju.SetContextToken(c, token)
				return next(c)
			}
			return c.NoContent(http.StatusUnauthorized)
		}
	}
}
