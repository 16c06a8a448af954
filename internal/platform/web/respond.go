// Package web renders page models as HTML or JSON depending on the client.
package web

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// WantsJSON reports whether the client asked for JSON rather than a page.
func WantsJSON(c echo.Context) bool {
	req := c.Request()
	if strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) {
		return true
	}
	return strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}

// Render writes data as JSON for API clients, otherwise through the named template.
func Render(c echo.Context, status int, name string, data interface{}) error {
	if WantsJSON(c) {
		return c.JSON(status, data)
	}
	return c.Render(status, name, data)
}

// Redirect completes a form action: browsers follow a 303 to location,
// API clients receive payload with jsonStatus.
func Redirect(c echo.Context, location string, jsonStatus int, payload interface{}) error {
	if WantsJSON(c) {
		if payload == nil {
			return c.NoContent(jsonStatus)
		}
		return c.JSON(jsonStatus, payload)
	}
	return c.Redirect(http.StatusSeeOther, location)
}
