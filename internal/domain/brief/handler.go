package brief

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
	g.GET("/ai-brief", h.ListBriefs)
	g.POST("/ai-brief", h.GenerateBrief)
	g.POST("/ai-brief/:id/delete", h.DeleteBrief)
	g.DELETE("/ai-brief/:id", h.DeleteBrief)
}

func (h *Handler) ListBriefs(c echo.Context) error {
	page, err := h.svc.Page(c.Request().Context(), identity(c))
	if err != nil {
		return httpError(err, "Failed to load AI briefs")
	}
	return web.Render(c, http.StatusOK, "ai_brief", page)
}

// GenerateBrief answers API clients with the GenerateResult. Browsers get the
// brief page with the new text, or with the failure message.
func (h *Handler) GenerateBrief(c echo.Context) error {
	var in GenerateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	ctx := c.Request().Context()
	who := identity(c)

	res, err := h.svc.Generate(ctx, who, in.Specialty)
	if web.WantsJSON(c) {
		if err != nil {
			return httpError(err, "Failed to generate AI brief")
		}
		return c.JSON(http.StatusCreated, res)
	}

	if errors.Is(err, auth.ErrNotAuthenticated) {
		return httpError(err, "")
	}
	page, perr := h.svc.Page(ctx, who)
	if perr != nil {
		return httpError(perr, "Failed to load AI briefs")
	}
	if err != nil {
		he := httpError(err, ErrGenerationFailed.Error()).(*echo.HTTPError)
		if he.Code == http.StatusInternalServerError {
			return he
		}
		page.Error = publicMessage(err)
		return web.Render(c, he.Code, "ai_brief", page)
	}
	page.Result = res
	return web.Render(c, http.StatusOK, "ai_brief", page)
}

func (h *Handler) DeleteBrief(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), identity(c), id); err != nil {
		return httpError(err, "Failed to delete AI brief")
	}
	return web.Redirect(c, "/dashboard/ai-brief", http.StatusNoContent, nil)
}

func identity(c echo.Context) auth.Identity {
	return auth.IdentityFromContext(c.Request().Context())
}

// publicMessage hides the provider error wrapped into ErrGenerationFailed.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, ErrGenerationFailed):
		return ErrGenerationFailed.Error()
	case errors.Is(err, ErrNoRecords):
		return ErrNoRecords.Error()
	}
	return err.Error()
}

func httpError(err error, message string) error {
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNoRecords):
		return echo.NewHTTPError(http.StatusBadRequest, ErrNoRecords.Error())
	case errors.Is(err, ErrGenerationFailed):
		return echo.NewHTTPError(http.StatusBadGateway, ErrGenerationFailed.Error()).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, message).SetInternal(err)
	}
}
