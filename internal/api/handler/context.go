package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bugtracker/bugtracker/internal/api/middleware"
	"github.com/bugtracker/bugtracker/internal/core/domain"
)

// ctxPrincipal extracts the caller injected by the Auth middleware.
// A missing principal means the route was registered without Auth.
func ctxPrincipal(c echo.Context) (domain.Principal, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok || p.UserID == "" {
		return domain.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return p, nil
}
