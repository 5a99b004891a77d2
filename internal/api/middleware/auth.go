package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/taxtooter/support-api/internal/core/domain"
)

// Context keys set by Auth and OptionalAuth.
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
	CtxName   = "name"
)

// UserResolver re-loads the token subject so deleted users and role changes
// take effect before the token expires.
type UserResolver interface {
	Me(ctx context.Context, userID string) (*domain.User, error)
}

var (
	errMissingHeader = echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	errBadHeader     = echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
	errBadToken      = echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
)

// Auth validates the bearer JWT and injects the caller into the context.
// resolver may be nil, in which case the token claims are trusted as-is.
func Auth(jwtSecret string, resolver UserResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, err := authenticate(c, jwtSecret, resolver)
			if err != nil {
				return err
			}
			setActor(c, actor)
			return next(c)
		}
	}
}

// OptionalAuth behaves like Auth when a valid token is present and lets the
// request through anonymously otherwise.
func OptionalAuth(jwtSecret string, resolver UserResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if actor, err := authenticate(c, jwtSecret, resolver); err == nil {
				setActor(c, actor)
			}
			return next(c)
		}
	}
}

func authenticate(c echo.Context, jwtSecret string, resolver UserResolver) (domain.Actor, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return domain.Actor{}, errMissingHeader
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return domain.Actor{}, errBadHeader
	}

	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !tkn.Valid {
		return domain.Actor{}, errBadToken
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return domain.Actor{}, errBadToken
	}
	role, _ := claims["role"].(string)
	name, _ := claims["name"].(string)
	actor := domain.Actor{ID: sub, Role: role, Name: name}

	if resolver == nil {
		return actor, nil
	}

	user, err := resolver.Me(c.Request().Context(), sub)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "user not found")
		}
		return domain.Actor{}, err
	}
	return domain.ActorFromUser(user), nil
}

func setActor(c echo.Context, actor domain.Actor) {
	c.Set(CtxUserID, actor.ID)
	c.Set(CtxRole, actor.Role)
	c.Set(CtxName, actor.Name)
}
