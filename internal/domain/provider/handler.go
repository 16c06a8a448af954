package provider

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
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

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/providers", h.ListProviders)
	g.POST("/providers", h.CreateProvider)
	g.POST("/providers/:id", h.UpdateProvider)
	g.PUT("/providers/:id", h.UpdateProvider)
	g.POST("/providers/:id/delete", h.DeleteProvider)
	g.DELETE("/providers/:id", h.DeleteProvider)
}

func (h *Handler) ListProviders(c echo.Context) error {
	page, err := h.svc.Page(c.Request().Context(), identity(c))
	if err != nil {
		return httpError(err, "Failed to load providers")
	}
	return web.Render(c, http.StatusOK, "providers", page)
}

func (h *Handler) CreateProvider(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	p, err := h.svc.Create(c.Request().Context(), identity(c), in)
	if err != nil {
		return httpError(err, "Failed to add provider")
	}
	return web.Redirect(c, "/dashboard/providers", http.StatusCreated, p)
}

func (h *Handler) UpdateProvider(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	form, err := web.FormValues(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	p, err := h.svc.Update(c.Request().Context(), identity(c), id, form)
	if err != nil {
		return httpError(err, "Failed to update provider")
	}
	return web.Redirect(c, "/dashboard/providers", http.StatusOK, p)
}

func (h *Handler) DeleteProvider(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), identity(c), id); err != nil {
		return httpError(err, "Failed to remove provider")
	}
	return web.Redirect(c, "/dashboard/providers", http.StatusNoContent, nil)
}

func identity(c echo.Context) auth.Identity {
	return auth.IdentityFromContext(c.Request().Context())
}

func httpError(err error, message string) error {
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Provider not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, message).SetInternal(err)
	}
}
