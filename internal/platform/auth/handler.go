package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/helix/phr/internal/platform/web"
)

// ProfileBootstrapper creates the profile row for a freshly signed-up account.
type ProfileBootstrapper interface {
	EnsureProfile(ctx context.Context, who Identity) error
}

// FormPage is the model of the login and signup pages.
type FormPage struct {
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Error    string `json:"error,omitempty"`
}

type loginForm struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

type signupForm struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=6"`
	FullName string `json:"full_name" form:"full_name" validate:"required,max=200"`
}

type Handler struct {
	client   Client
	store    *SessionStore
	resolver *Resolver
	profiles ProfileBootstrapper
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewHandler(client Client, store *SessionStore, resolver *Resolver, profiles ProfileBootstrapper, logger zerolog.Logger) *Handler {
	return &Handler{
		client:   client,
		store:    store,
		resolver: resolver,
		profiles: profiles,
		validate: web.NewValidator(),
		logger:   logger,
	}
}

// RegisterRoutes mounts the account pages. formLimiter guards the credential posts.
func (h *Handler) RegisterRoutes(e *echo.Echo, formLimiter echo.MiddlewareFunc) {
	e.GET("/", h.Landing)
	e.GET("/login", h.LoginPage)
	e.POST("/login", h.Login, formLimiter)
	e.GET("/signup", h.SignupPage)
	e.POST("/signup", h.Signup, formLimiter)
	e.POST("/logout", h.Logout)
}

func (h *Handler) Landing(c echo.Context) error {
	if !IdentityFromContext(c.Request().Context()).IsZero() {
		return c.Redirect(http.StatusSeeOther, "/dashboard")
	}
	return web.Render(c, http.StatusOK, "landing", FormPage{})
}

func (h *Handler) LoginPage(c echo.Context) error {
	return web.Render(c, http.StatusOK, "login", FormPage{})
}

func (h *Handler) SignupPage(c echo.Context) error {
	return web.Render(c, http.StatusOK, "signup", FormPage{})
}

func (h *Handler) Login(c echo.Context) error {
	var f loginForm
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	if err := h.validate.Struct(f); err != nil {
		return web.Render(c, http.StatusBadRequest, "login", FormPage{Email: f.Email, Error: web.ValidationMessage(err)})
	}

	tokens, err := h.client.SignInWithPassword(c.Request().Context(), f.Email, f.Password)
	if err != nil {
		return web.Render(c, http.StatusUnauthorized, "login", FormPage{Email: f.Email, Error: h.collaboratorMessage(err)})
	}
	if err := h.store.Save(c.Response(), c.Request(), *tokens); err != nil {
		h.logger.Error().Err(err).Msg("failed to save session")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to sign in")
	}
	return web.Redirect(c, "/dashboard", http.StatusOK, map[string]string{"status": "signed_in"})
}

func (h *Handler) Signup(c echo.Context) error {
	var f signupForm
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	page := FormPage{Email: f.Email, FullName: f.FullName}
	if err := h.validate.Struct(f); err != nil {
		page.Error = web.ValidationMessage(err)
		return web.Render(c, http.StatusBadRequest, "signup", page)
	}

	ctx := c.Request().Context()
	if err := h.client.SignUp(ctx, f.Email, f.Password, f.FullName); err != nil {
		page.Error = h.collaboratorMessage(err)
		return web.Render(c, http.StatusBadRequest, "signup", page)
	}

	tokens, err := h.client.SignInWithPassword(ctx, f.Email, f.Password)
	if err != nil {
		return web.Render(c, http.StatusOK, "login", FormPage{
			Email: f.Email,
			Error: "Check your email to confirm your account, then sign in.",
		})
	}

	who, err := h.resolver.Resolve(ctx, tokens.AccessToken)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to resolve new account")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to sign up")
	}
	if who.FullName == "" {
		who.FullName = f.FullName
	}
	if err := h.profiles.EnsureProfile(ctx, who); err != nil {
		h.logger.Error().Err(err).Str("user_id", who.UserID.String()).Msg("failed to create profile")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to sign up")
	}
	if err := h.store.Save(c.Response(), c.Request(), *tokens); err != nil {
		h.logger.Error().Err(err).Msg("failed to save session")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to sign up")
	}
	return web.Redirect(c, "/onboarding", http.StatusCreated, who)
}

func (h *Handler) Logout(c echo.Context) error {
	tokens := h.store.Load(c.Request())
	if tokens.AccessToken != "" {
		if err := h.client.SignOut(c.Request().Context(), tokens.AccessToken); err != nil {
			h.logger.Warn().Err(err).Msg("auth service sign out failed")
		}
	}
	if err := h.store.Clear(c.Response(), c.Request()); err != nil {
		h.logger.Warn().Err(err).Msg("failed to clear session")
	}
	return web.Redirect(c, "/", http.StatusNoContent, nil)
}

// collaboratorMessage passes auth service messages through and hides transport errors.
func (h *Handler) collaboratorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	h.logger.Error().Err(err).Msg("auth service unavailable")
	return "Authentication service unavailable. Please try again."
}
