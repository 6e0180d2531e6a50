package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ctxSubject extracts the provider subject injected by the Auth middleware
// and fast-fails before any service call: an empty subject means the
// middleware never ran or the token carried no identity.
func ctxSubject(c echo.Context) (string, error) {
	subject, _ := c.Get("subject").(string)
	if subject == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return subject, nil
}
