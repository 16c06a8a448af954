package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/helix/phr/internal/domain/record"
	"github.com/helix/phr/internal/platform/auth"
	"github.com/helix/phr/internal/platform/viewcache"
	"github.com/helix/phr/internal/platform/web"
)

var ErrValidation = errors.New("invalid provider")

var pages = []viewcache.Page{viewcache.PageProviders, viewcache.PageDashboard}

type Service struct {
	providers Repository
	validate  *validator.Validate
	views     *viewcache.Cache
	inv       viewcache.Invalidator
}

func NewService(providers Repository) *Service {
	return &Service{
		providers: providers,
		validate:  web.NewValidator(),
		inv:       viewcache.Nop{},
	}
}

// SetViewCache enables cached page reads and invalidation on writes.
func (s *Service) SetViewCache(c *viewcache.Cache) {
	s.views = c
	if c != nil {
		s.inv = c
	}
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Create adds a provider for who. New providers have no access and the
// summary_only level.
func (s *Service) Create(ctx context.Context, who auth.Identity, in CreateInput) (*Provider, error) {
	if err := who.Require(); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return nil, invalid(web.ValidationMessage(err))
	}

	p := &Provider{
		UserID:      who.UserID,
		Name:        in.Name,
		Specialty:   nullable(in.Specialty),
		ClinicName:  nullable(in.ClinicName),
		Email:       nullable(in.Email),
		Phone:       nullable(in.Phone),
		HasAccess:   false,
		AccessLevel: AccessSummaryOnly,
	}
	if err := s.providers.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}
	s.inv.Invalidate(ctx, who.UserID, pages...)
	return p, nil
}

// Update applies the allow-listed fields present in form. has_access is true
// only for the literal "true".
func (s *Service) Update(ctx context.Context, who auth.Identity, id uuid.UUID, form url.Values) (*Provider, error) {
	if err := who.Require(); err != nil {
		return nil, err
	}

	patch := make(Patch)
	for _, field := range updatableCols {
		if _, ok := form[field]; !ok {
			continue
		}
		v := strings.TrimSpace(form.Get(field))
		switch field {
		case "has_access":
			patch[field] = v == "true"
		case "access_level":
			if !validAccessLevels[v] {
				return nil, invalid("access_level must be one of: " + strings.Join(AccessLevels, ", "))
			}
			patch[field] = v
		case "name":
			if v == "" {
				return nil, invalid("name is required")
			}
			patch[field] = v
		case "email":
			if v != "" {
				if err := s.validate.Var(v, "email"); err != nil {
					return nil, invalid("email must be a valid email address")
				}
			}
			patch[field] = nullable(v)
		default:
			patch[field] = nullable(v)
		}
	}

	p, err := s.providers.Update(ctx, who.UserID, id, patch)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update provider: %w", err)
	}
	s.inv.Invalidate(ctx, who.UserID, pages...)
	return p, nil
}

// Delete removes the provider when it belongs to who. Unknown and foreign
// ids succeed without effect.
func (s *Service) Delete(ctx context.Context, who auth.Identity, id uuid.UUID) error {
	if err := who.Require(); err != nil {
		return err
	}
	if err := s.providers.Delete(ctx, who.UserID, id); err != nil {
		return fmt.Errorf("delete provider: %w", err)
	}
	s.inv.Invalidate(ctx, who.UserID, pages...)
	return nil
}

func (s *Service) List(ctx context.Context, who auth.Identity) ([]*Provider, error) {
	if err := who.Require(); err != nil {
		return nil, err
	}
	providers, err := viewcache.Load(ctx, s.views, who.UserID, viewcache.PageProviders, func(ctx context.Context) ([]*Provider, error) {
		return s.providers.ListByUser(ctx, who.UserID)
	})
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	return providers, nil
}

// Page is the model of the providers page.
type Page struct {
	Providers    []*Provider `json:"providers"`
	Specialties  []string    `json:"-"`
	AccessLevels []string    `json:"-"`
}

func (s *Service) Page(ctx context.Context, who auth.Identity) (*Page, error) {
	providers, err := s.List(ctx, who)
	if err != nil {
		return nil, err
	}
	return &Page{
		Providers:    providers,
		Specialties:  record.Specialties,
		AccessLevels: AccessLevels,
	}, nil
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
