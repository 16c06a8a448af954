package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorPage is the model of the "error" template.
type ErrorPage struct {
	Status  int    `json:"status"`
	Message string `json:"error"`
}

// ErrorHandler renders errors as JSON or as the error page. Unauthenticated
// browser requests are sent to the login page.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := http.StatusText(status)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if he.Internal != nil {
				logger.Error().Err(he.Internal).Int("status", status).Str("path", c.Request().URL.Path).Msg(fmt.Sprint(he.Message))
			}
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(status)
			}
		} else {
			logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("unhandled error")
		}

		var werr error
		switch {
		case c.Request().Method == http.MethodHead:
			werr = c.NoContent(status)
		case WantsJSON(c):
			werr = c.JSON(status, ErrorPage{Status: status, Message: message})
		case status == http.StatusUnauthorized:
			werr = c.Redirect(http.StatusSeeOther, "/login")
		default:
			werr = c.Render(status, "error", ErrorPage{Status: status, Message: message})
			if werr != nil {
				werr = c.String(status, message)
			}
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("failed to write error response")
		}
	}
}
