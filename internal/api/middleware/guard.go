package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/campusmarket/session-engine/internal/core/domain"
	"github.com/campusmarket/session-engine/internal/core/service"
)

// SessionState exposes the engine snapshots the guard consults. Satisfied by
// the session manager plus aggregator pair.
type SessionState interface {
	Phase() domain.Phase
	Identity() *domain.Identity
	Application() *domain.SellerApplication
}

type denyResponse struct {
	Error    string        `json:"error"`
	Required []domain.Role `json:"required_roles"`
	Actual   domain.Role   `json:"actual_role"`
}

// Guard translates authorization gate decisions into HTTP: a still-
// initializing session answers 503 with Retry-After, an unauthenticated one
// is redirected to login with the requested path preserved, and a denial
// carries the required vs. actual role for display.
func Guard(state SessionState, required ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			decision := service.Decide(
				state.Phase(),
				state.Identity(),
				state.Application(),
				c.Request().URL.Path,
				required...,
			)

			switch decision.Verdict {
			case service.VerdictAllow:
				return next(c)
			case service.VerdictPending:
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "session initializing"})
			case service.VerdictRedirect:
				return c.Redirect(http.StatusFound, decision.Path)
			default:
				return c.JSON(http.StatusForbidden, denyResponse{
					Error:    "forbidden",
					Required: decision.Required,
					Actual:   decision.Actual,
				})
			}
		}
	}
}
