package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Resolver turns an access token into an Identity. Tokens are verified
// locally when a signing secret is configured, otherwise the auth service is asked.
type Resolver struct {
	verifier *TokenVerifier
	client   Client
}

func NewResolver(verifier *TokenVerifier, client Client) *Resolver {
	return &Resolver{verifier: verifier, client: client}
}

func (r *Resolver) Resolve(ctx context.Context, accessToken string) (Identity, error) {
	if r.verifier != nil {
		return r.verifier.Verify(accessToken)
	}
	id, err := r.client.GetUser(ctx, accessToken)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return Identity{}, ErrTokenExpired
	}
	return id, err
}

// SessionMiddleware derives the caller identity from the session cookie on
// every request and attaches it to the request context. Expired access tokens
// are refreshed once; any other failure clears the session.
func SessionMiddleware(store *SessionStore, resolver *Resolver, client Client, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			tokens := store.Load(req)
			if tokens.AccessToken == "" {
				return next(c)
			}

			ctx := req.Context()
			id, err := resolver.Resolve(ctx, tokens.AccessToken)
			if errors.Is(err, ErrTokenExpired) && tokens.RefreshToken != "" {
				var fresh *Tokens
				fresh, err = client.Refresh(ctx, tokens.RefreshToken)
				if err == nil {
					if saveErr := store.Save(c.Response(), req, *fresh); saveErr != nil {
						logger.Warn().Err(saveErr).Msg("failed to persist refreshed session")
					}
					id, err = resolver.Resolve(ctx, fresh.AccessToken)
				}
			}
			if err != nil {
				logger.Debug().Err(err).Msg("dropping invalid session")
				if clearErr := store.Clear(c.Response(), req); clearErr != nil {
					logger.Warn().Err(clearErr).Msg("failed to clear session")
				}
				return next(c)
			}

			c.Set("user_id", id.UserID.String())
			c.SetRequest(req.WithContext(WithIdentity(ctx, id)))
			return next(c)
		}
	}
}

// RequireSession rejects requests without an identity. The error handler
// turns the 401 into a redirect to /login for browser requests.
func RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if IdentityFromContext(c.Request().Context()).IsZero() {
				return echo.NewHTTPError(http.StatusUnauthorized, ErrNotAuthenticated.Error())
			}
			return next(c)
		}
	}
}
