package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/campusmarket/session-engine/internal/core/ports"
	"github.com/campusmarket/session-engine/internal/core/service"
)

// SessionHandler exposes the engine's session lifecycle over HTTP for the
// host shell.
type SessionHandler struct {
	sessions   *service.SessionManager
	aggregator *service.Aggregator
	override   *service.Override
	provider   ports.AuthProvider
}

func NewSessionHandler(
	sessions *service.SessionManager,
	aggregator *service.Aggregator,
	override *service.Override,
	provider ports.AuthProvider,
) *SessionHandler {
	return &SessionHandler{
		sessions:   sessions,
		aggregator: aggregator,
		override:   override,
		provider:   provider,
	}
}

// SignIn authenticates a user and starts the realtime aggregation.
//
// @Summary      Sign in
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      signInRequest  true  "Credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /session [post]
func (h *SessionHandler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	identity, err := h.sessions.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}

	if err := h.aggregator.Start(ctx, identity); err != nil {
		return err
	}

	var token string
	if sess, err := h.provider.CurrentSession(ctx); err == nil && sess != nil {
		token = sess.Token
	}

	return c.JSON(http.StatusOK, sessionResponse{
		Phase:    h.sessions.Phase(),
		Identity: identity,
		Token:    token,
	})
}

// SignOut tears the session down. Idempotent.
//
// @Summary      Sign out
// @Tags         session
// @Produce      json
// @Success      204
// @Router       /session [delete]
func (h *SessionHandler) SignOut(c echo.Context) error {
	h.aggregator.Stop()
	if err := h.sessions.SignOut(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Current returns the session phase and the cached identity snapshot.
//
// @Summary      Current session
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /session [get]
func (h *SessionHandler) Current(c echo.Context) error {
	return c.JSON(http.StatusOK, sessionResponse{
		Phase:    h.sessions.Phase(),
		Identity: h.sessions.Identity(),
	})
}

// Counters returns the derived realtime counters.
//
// @Summary      Derived counters
// @Tags         session
// @Produce      json
// @Success      200  {object}  countersResponse
// @Failure      401  {object}  map[string]string
// @Router       /session/counters [get]
func (h *SessionHandler) Counters(c echo.Context) error {
	if _, err := ctxSubject(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, countersResponse{
		Counters:    h.aggregator.Counters(),
		Application: h.aggregator.Application(),
	})
}

// ActivateOverride arms the operational-recovery channel.
//
// @Summary      Activate override channel
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body  overrideRequest  true  "Recovery secret"
// @Success      204
// @Failure      403   {object}  map[string]string
// @Router       /session/override [post]
func (h *SessionHandler) ActivateOverride(c echo.Context) error {
	var req overrideRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.override.Activate(c.Request().Context(), req.Secret); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
