package dashboard

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/helix/phr/internal/platform/auth"
	"github.com/helix/phr/internal/platform/web"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the overview on the root of the dashboard group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.Overview)
}

func (h *Handler) Overview(c echo.Context) error {
	page, err := h.svc.Page(c.Request().Context(), auth.IdentityFromContext(c.Request().Context()))
	if errors.Is(err, auth.ErrNotAuthenticated) {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load dashboard").SetInternal(err)
	}
	return web.Render(c, http.StatusOK, "dashboard", page)
}
