package profile

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/helix/phr/internal/platform/auth"
	"github.com/helix/phr/internal/platform/web"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts settings on the dashboard group and the onboarding
// page on its own authenticated group.
func (h *Handler) RegisterRoutes(dashboard *echo.Group, onboarding *echo.Group) {
	dashboard.GET("/settings", h.Settings)
	dashboard.POST("/settings", h.UpdateSettings)
	dashboard.PUT("/settings", h.UpdateSettings)

	onboarding.GET("", h.OnboardingPage)
	onboarding.POST("", h.CompleteOnboarding)
}

func (h *Handler) Settings(c echo.Context) error {
	page, err := h.svc.Settings(c.Request().Context(), identity(c))
	if err != nil {
		return httpError(err, "Failed to load profile")
	}
	return web.Render(c, http.StatusOK, "settings", page)
}

func (h *Handler) UpdateSettings(c echo.Context) error {
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	p, err := h.svc.Update(c.Request().Context(), identity(c), in)
	if err != nil {
		return httpError(err, "Failed to update profile")
	}
	return web.Redirect(c, "/dashboard/settings", http.StatusOK, p)
}

func (h *Handler) OnboardingPage(c echo.Context) error {
	return web.Render(c, http.StatusOK, "onboarding", h.svc.Onboarding(identity(c)))
}

func (h *Handler) CompleteOnboarding(c echo.Context) error {
	var in OnboardingInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	who := identity(c)
	if err := h.svc.CompleteOnboarding(c.Request().Context(), who, in); err != nil {
		if errors.Is(err, ErrValidation) && !web.WantsJSON(c) {
			page := h.svc.Onboarding(who)
			page.Error = err.Error()
			return web.Render(c, http.StatusBadRequest, "onboarding", page)
		}
		return httpError(err, "Failed to complete onboarding")
	}
	return web.Redirect(c, "/dashboard", http.StatusOK, map[string]string{"status": "onboarded"})
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
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, message).SetInternal(err)
	}
}
