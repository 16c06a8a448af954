package share

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/helix/phr/internal/platform/auth"
	"github.com/helix/phr/internal/platform/web"
)

type Handler struct {
	svc           *Service
	publicBaseURL string
}

// NewHandler builds share URLs from publicBaseURL. When it is empty they are
// derived from the request scheme and Host.
func NewHandler(svc *Service, publicBaseURL string) *Handler {
	return &Handler{svc: svc, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// RegisterRoutes mounts link management on the dashboard group and the
// public token route on e. publicLimiter guards token lookups.
func (h *Handler) RegisterRoutes(e *echo.Echo, dashboard *echo.Group, publicLimiter echo.MiddlewareFunc) {
	dashboard.GET("/share", h.ListLinks)
	dashboard.POST("/share", h.CreateLink)
	dashboard.POST("/share/:id/revoke", h.RevokeLink)

	e.GET("/share/:token", h.ViewShared, publicLimiter)
}

func (h *Handler) ListLinks(c echo.Context) error {
	page, err := h.svc.Page(c.Request().Context(), identity(c), h.baseURL(c))
	if err != nil {
		return httpError(err, "Failed to load share links")
	}
	return web.Render(c, http.StatusOK, "share", page)
}

func (h *Handler) CreateLink(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	l, err := h.svc.Create(c.Request().Context(), identity(c), in)
	if err != nil {
		return httpError(err, "Failed to create share link")
	}
	return web.Redirect(c, "/dashboard/share", http.StatusCreated, LinkView{
		Link:   l,
		Status: StatusActive,
		URL:    PublicURL(h.baseURL(c), l.Token),
	})
}

func (h *Handler) RevokeLink(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Revoke(c.Request().Context(), identity(c), id); err != nil {
		return httpError(err, "Failed to revoke link")
	}
	return web.Redirect(c, "/dashboard/share", http.StatusNoContent, nil)
}

// ViewShared is the unauthenticated token route.
func (h *Handler) ViewShared(c echo.Context) error {
	view, err := h.svc.Resolve(c.Request().Context(), c.Param("token"))
	if err != nil {
		return httpError(err, "Failed to load shared records")
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	c.Response().Header().Set("X-Robots-Tag", "noindex")
	return web.Render(c, http.StatusOK, "shared", view)
}

func identity(c echo.Context) auth.Identity {
	return auth.IdentityFromContext(c.Request().Context())
}

func (h *Handler) baseURL(c echo.Context) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}
	return c.Scheme() + "://" + c.Request().Host
}

func httpError(err error, message string) error {
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "This link is invalid or has expired.")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, message).SetInternal(err)
	}
}
