package record

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/helix/phr/internal/platform/auth"
	"github.com/helix/phr/internal/platform/web"
	"github.com/helix/phr/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the record pages on the authenticated dashboard group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/records", h.ListRecords)
	g.POST("/records", h.CreateRecord)
	g.GET("/records/:id", h.GetRecord)
	g.POST("/records/:id", h.UpdateRecord)
	g.PUT("/records/:id", h.UpdateRecord)
	g.POST("/records/:id/delete", h.DeleteRecord)
	g.DELETE("/records/:id", h.DeleteRecord)
	g.GET("/timeline", h.Timeline)
}

func (h *Handler) ListRecords(c echo.Context) error {
	f := Filter{
		Type:   c.QueryParam("type"),
		Status: c.QueryParam("status"),
		Query:  c.QueryParam("q"),
	}
	page, err := h.svc.RecordsPage(c.Request().Context(), identity(c), f, pagination.FromContext(c), c.Request().URL)
	if err != nil {
		return httpError(err, "Failed to load records")
	}
	return web.Render(c, http.StatusOK, "records", page)
}

func (h *Handler) GetRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.Get(c.Request().Context(), identity(c), id)
	if err != nil {
		return httpError(err, "Failed to load record")
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) CreateRecord(c echo.Context) error {
	form, err := web.FormValues(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	r, err := h.svc.Create(c.Request().Context(), identity(c), form)
	if err != nil {
		return httpError(err, "Failed to create record")
	}
	return web.Redirect(c, "/dashboard/records", http.StatusCreated, r)
}

func (h *Handler) UpdateRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	form, err := web.FormValues(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	r, err := h.svc.Update(c.Request().Context(), identity(c), id, form)
	if err != nil {
		return httpError(err, "Failed to update record")
	}
	return web.Redirect(c, "/dashboard/records", http.StatusOK, r)
}

func (h *Handler) DeleteRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), identity(c), id); err != nil {
		return httpError(err, "Failed to delete record")
	}
	return web.Redirect(c, "/dashboard/records", http.StatusNoContent, nil)
}

func (h *Handler) Timeline(c echo.Context) error {
	f := TimelineFilter{Type: c.QueryParam("type"), Query: c.QueryParam("q")}
	page, err := h.svc.Timeline(c.Request().Context(), identity(c), f)
	if err != nil {
		return httpError(err, "Failed to load timeline")
	}
	return web.Render(c, http.StatusOK, "timeline", page)
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
		return echo.NewHTTPError(http.StatusNotFound, "Record not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, message).SetInternal(err)
	}
}
