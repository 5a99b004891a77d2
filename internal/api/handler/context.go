package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taxtooter/support-api/internal/api/middleware"
	"github.com/taxtooter/support-api/internal/core/domain"
)

// ctxActor extracts the caller injected by the Auth middleware. A missing id
// or role means the route was registered without Auth.
func ctxActor(c echo.Context) (domain.Actor, error) {
	id, _ := c.Get(middleware.CtxUserID).(string)
	role, _ := c.Get(middleware.CtxRole).(string)
	if id == "" || role == "" {
		return domain.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	name, _ := c.Get(middleware.CtxName).(string)
	return domain.Actor{ID: id, Name: name, Role: role}, nil
}

// optionalActor returns the caller set by OptionalAuth, or nil.
func optionalActor(c echo.Context) *domain.Actor {
	actor, err := ctxActor(c)
	if err != nil {
		return nil
	}
	return &actor
}
