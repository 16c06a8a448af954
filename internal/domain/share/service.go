package share

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helix/phr/internal/domain/profile"
	"github.com/helix/phr/internal/domain/record"
	"github.com/helix/phr/internal/platform/auth"
	"github.com/helix/phr/internal/platform/viewcache"
	"github.com/helix/phr/internal/platform/web"
)

var ErrValidation = errors.New("invalid share link")

type Service struct {
	links    Repository
	records  record.Repository
	profiles profile.Repository
	validate *validator.Validate
	views    *viewcache.Cache
	inv      viewcache.Invalidator
	logger   zerolog.Logger
	now      func() time.Time
	newToken func() (string, error)
}

func NewService(links Repository, records record.Repository, profiles profile.Repository, logger zerolog.Logger) *Service {
	return &Service{
		links:    links,
		records:  records,
		profiles: profiles,
		validate: web.NewValidator(),
		inv:      viewcache.Nop{},
		logger:   logger,
		now:      time.Now,
		newToken: NewToken,
	}
}

// SetViewCache enables cached page reads and invalidation on writes.
func (s *Service) SetViewCache(c *viewcache.Cache) {
	s.views = c
	if c != nil {
		s.inv = c
	}
}

// Create issues a new active link for who.
func (s *Service) Create(ctx context.Context, who auth.Identity, in CreateInput) (*Link, error) {
	if err := who.Require(); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, web.ValidationMessage(err))
	}

	token, err := s.newToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	l := &Link{
		UserID:            who.UserID,
		Token:             token,
		RecipientName:     nullable(in.RecipientName),
		Purpose:           nullable(in.Purpose),
		AccessLevel:       in.AccessLevel,
		FilterSpecialties: splitSpecialties(in.FilterSpecialties),
		IsActive:          true,
	}
	if l.AccessLevel == "" {
		l.AccessLevel = AccessSummary
	}
	if d, ok := ExpiryOptions[in.Expiry]; ok {
		exp := s.now().Add(d)
		l.ExpiresAt = &exp
	}

	if err := s.links.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("create share link: %w", err)
	}
	linksCreated.WithLabelValues(l.AccessLevel).Inc()
	s.inv.Invalidate(ctx, who.UserID, viewcache.PageShare)
	return l, nil
}

// Revoke permanently deactivates who's link. There is no way to reactivate it.
func (s *Service) Revoke(ctx context.Context, who auth.Identity, id uuid.UUID) error {
	if err := who.Require(); err != nil {
		return err
	}
	if err := s.links.Revoke(ctx, who.UserID, id); err != nil {
		return fmt.Errorf("revoke share link: %w", err)
	}
	s.inv.Invalidate(ctx, who.UserID, viewcache.PageShare)
	return nil
}

// List returns who's links with their derived status. baseURL prefixes the
// public share path.
func (s *Service) List(ctx context.Context, who auth.Identity, baseURL string) ([]LinkView, error) {
	if err := who.Require(); err != nil {
		return nil, err
	}
	links, err := viewcache.Load(ctx, s.views, who.UserID, viewcache.PageShare, func(ctx context.Context) ([]*Link, error) {
		return s.links.ListByUser(ctx, who.UserID)
	})
	if err != nil {
		return nil, fmt.Errorf("list share links: %w", err)
	}
	now := s.now()
	out := make([]LinkView, len(links))
	for i, l := range links {
		out[i] = LinkView{Link: l, Status: l.Status(now), URL: PublicURL(baseURL, l.Token)}
	}
	return out, nil
}

// Page is the model of the share page.
type Page struct {
	Links        []LinkView `json:"links"`
	AccessLevels []string   `json:"-"`
	Specialties  []string   `json:"-"`
}

func (s *Service) Page(ctx context.Context, who auth.Identity, baseURL string) (*Page, error) {
	links, err := s.List(ctx, who, baseURL)
	if err != nil {
		return nil, err
	}
	return &Page{Links: links, AccessLevels: AccessLevels, Specialties: record.Specialties}, nil
}

// Resolve discloses the records behind a public token. Unknown, revoked and
// expired tokens all return ErrNotFound. Each successful resolution counts
// one view.
func (s *Service) Resolve(ctx context.Context, token string) (*SharedView, error) {
	if len(token) != TokenLength {
		resolutions.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	}
	l, err := s.links.GetActiveByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		resolutions.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup share link: %w", err)
	}
	if !l.Valid(s.now()) {
		resolutions.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	}

	if n, err := s.links.IncrementView(ctx, l.ID); err != nil {
		s.logger.Error().Err(err).Str("link_id", l.ID.String()).Msg("failed to count share view")
	} else {
		l.ViewCount = n
	}
	s.inv.Invalidate(ctx, l.UserID, viewcache.PageShare)

	view, err := s.disclose(ctx, l)
	if err != nil {
		return nil, err
	}
	resolutions.WithLabelValues("resolved").Inc()
	return view, nil
}

func (s *Service) disclose(ctx context.Context, l *Link) (*SharedView, error) {
	view := &SharedView{
		AccessLevel:   l.AccessLevel,
		RecipientName: l.RecipientName,
		Purpose:       l.Purpose,
		ExpiresAt:     l.ExpiresAt,
	}

	if l.AccessLevel == AccessSummary {
		conditions, err := s.records.ListByType(ctx, l.UserID, record.TypeCondition, record.StatusActive)
		if err != nil {
			return nil, fmt.Errorf("load shared conditions: %w", err)
		}
		medications, err := s.records.ListByType(ctx, l.UserID, record.TypeMedication, record.StatusActive)
		if err != nil {
			return nil, fmt.Errorf("load shared medications: %w", err)
		}
		view.ActiveConditions = conditions
		view.CurrentMedications = medications
		return view, nil
	}

	var (
		records []*record.HealthRecord
		err     error
	)
	if l.AccessLevel == AccessFiltered {
		records, err = s.records.ListBySpecialties(ctx, l.UserID, l.FilterSpecialties)
	} else {
		records, err = s.records.ListByUser(ctx, l.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("load shared records: %w", err)
	}
	view.Records = records
	view.ActiveConditions, view.CurrentMedications = activeLists(records)

	p, err := s.profiles.GetByID(ctx, l.UserID)
	switch {
	case errors.Is(err, profile.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load shared profile: %w", err)
	default:
		view.Patient = summarize(p, s.now())
	}
	return view, nil
}

func activeLists(records []*record.HealthRecord) (conditions, medications []*record.HealthRecord) {
	conditions = []*record.HealthRecord{}
	medications = []*record.HealthRecord{}
	for _, r := range records {
		if !r.IsActive() {
			continue
		}
		switch r.Type {
		case record.TypeCondition:
			conditions = append(conditions, r)
		case record.TypeMedication:
			medications = append(medications, r)
		}
	}
	return conditions, medications
}

func summarize(p *profile.Profile, now time.Time) *PatientSummary {
	ps := &PatientSummary{FullName: p.FullName, BloodType: p.BloodType, Allergies: p.Allergies}
	if age, ok := p.Age(now); ok {
		ps.Age = &age
	}
	if ps.Allergies == nil {
		ps.Allergies = []string{}
	}
	return ps
}

// PublicURL is the address a recipient opens.
func PublicURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/share/" + token
}

func splitSpecialties(raw string) []string {
	out := []string{}
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
