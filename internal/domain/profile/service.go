package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/helix/phr/internal/domain/provider"
	"github.com/helix/phr/internal/domain/record"
	"github.com/helix/phr/internal/platform/auth"
	"github.com/helix/phr/internal/platform/db"
	"github.com/helix/phr/internal/platform/viewcache"
	"github.com/helix/phr/internal/platform/web"
)

var ErrValidation = errors.New("invalid profile")

const dateLayout = "2006-01-02"

type Service struct {
	profiles  Repository
	records   record.Repository
	providers provider.Repository
	tx        db.TxRunner
	validate  *validator.Validate
	views     *viewcache.Cache
	inv       viewcache.Invalidator
	now       func() time.Time
}

func NewService(profiles Repository, records record.Repository, providers provider.Repository, tx db.TxRunner) *Service {
	return &Service{
		profiles:  profiles,
		records:   records,
		providers: providers,
		tx:        tx,
		validate:  web.NewValidator(),
		inv:       viewcache.Nop{},
		now:       time.Now,
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

// EnsureProfile creates the profile row for a new account.
func (s *Service) EnsureProfile(ctx context.Context, who auth.Identity) error {
	if err := who.Require(); err != nil {
		return err
	}
	if err := s.profiles.Ensure(ctx, who.UserID, who.Email, nullable(who.FullName)); err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	return nil
}

// Get returns who's profile. An account without a profile row gets an
// empty profile.
func (s *Service) Get(ctx context.Context, who auth.Identity) (*Profile, error) {
	if err := who.Require(); err != nil {
		return nil, err
	}
	p, err := s.profiles.GetByID(ctx, who.UserID)
	if errors.Is(err, ErrNotFound) {
		return &Profile{ID: who.UserID, Email: who.Email, Allergies: []string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// SettingsPage is the model of the settings page.
type SettingsPage struct {
	Profile    *Profile `json:"profile"`
	Email      string   `json:"email"`
	BloodTypes []string `json:"-"`
}

func (s *Service) Settings(ctx context.Context, who auth.Identity) (*SettingsPage, error) {
	if err := who.Require(); err != nil {
		return nil, err
	}
	p, err := viewcache.Load(ctx, s.views, who.UserID, viewcache.PageSettings, func(ctx context.Context) (*Profile, error) {
		return s.Get(ctx, who)
	})
	if err != nil {
		return nil, err
	}
	return &SettingsPage{Profile: p, Email: who.Email, BloodTypes: BloodTypes}, nil
}

// Update replaces the settings fields. Empty values clear the field.
func (s *Service) Update(ctx context.Context, who auth.Identity, in UpdateInput) (*Profile, error) {
	if err := who.Require(); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, invalid(web.ValidationMessage(err))
	}
	dob, err := parseDate(in.DateOfBirth)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		ID:                    who.UserID,
		Email:                 who.Email,
		FullName:              nullable(in.FullName),
		DateOfBirth:           dob,
		BloodType:             nullable(in.BloodType),
		Allergies:             ParseAllergies(in.Allergies),
		EmergencyContactName:  nullable(in.EmergencyContactName),
		EmergencyContactPhone: nullable(in.EmergencyContactPhone),
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.profiles.Ensure(ctx, who.UserID, who.Email, nil); err != nil {
			return err
		}
		return s.profiles.Update(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	s.inv.Invalidate(ctx, who.UserID, viewcache.PageSettings, viewcache.PageDashboard)
	return p, nil
}

// CompleteOnboarding stores the onboarding answers and the optional first
// record and provider in one transaction.
func (s *Service) CompleteOnboarding(ctx context.Context, who auth.Identity, in OnboardingInput) error {
	if err := who.Require(); err != nil {
		return err
	}
	if err := s.validate.Struct(in); err != nil {
		return invalid(web.ValidationMessage(err))
	}
	dob, err := parseDate(in.DateOfBirth)
	if err != nil {
		return err
	}

	var rec *record.HealthRecord
	if title := strings.TrimSpace(in.RecordTitle); title != "" {
		rec = &record.HealthRecord{
			UserID: who.UserID,
			Type:   in.RecordType,
			Title:  title,
			Status: record.StatusActive,
		}
		if rec.Type == "" {
			rec.Type = record.TypeCondition
		}
		date, err := parseDate(in.RecordDate)
		if err != nil {
			return err
		}
		if date == nil {
			today, _ := time.Parse(dateLayout, s.now().Format(dateLayout))
			date = &today
		}
		rec.Date = *date
		rec.Metadata = record.BuildMetadata(rec.Type, nil)
	}

	var prov *provider.Provider
	if name := strings.TrimSpace(in.ProviderName); name != "" {
		prov = &provider.Provider{
			UserID:      who.UserID,
			Name:        name,
			Specialty:   nullable(in.ProviderSpec),
			ClinicName:  nullable(in.ProviderClinic),
			AccessLevel: provider.AccessSummaryOnly,
		}
	}

	p := &Profile{
		ID:          who.UserID,
		Email:       who.Email,
		FullName:    nullable(who.FullName),
		DateOfBirth: dob,
		BloodType:   nullable(in.BloodType),
		Allergies:   ParseAllergies(in.Allergies),
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.profiles.CompleteOnboarding(ctx, p); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
		if rec != nil {
			if err := s.records.Create(ctx, rec); err != nil {
				return fmt.Errorf("create first record: %w", err)
			}
		}
		if prov != nil {
			if err := s.providers.Create(ctx, prov); err != nil {
				return fmt.Errorf("create first provider: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("complete onboarding: %w", err)
	}
	s.inv.Invalidate(ctx, who.UserID,
		viewcache.PageSettings, viewcache.PageDashboard, viewcache.PageRecords,
		viewcache.PageTimeline, viewcache.PageProviders)
	return nil
}

// OnboardingPage is the model of the onboarding page.
type OnboardingPage struct {
	FullName    string   `json:"full_name"`
	BloodTypes  []string `json:"blood_types"`
	RecordTypes []string `json:"record_types"`
	Specialties []string `json:"specialties"`
	Error       string   `json:"error,omitempty"`
}

func (s *Service) Onboarding(who auth.Identity) *OnboardingPage {
	return &OnboardingPage{
		FullName:    who.FullName,
		BloodTypes:  BloodTypes,
		RecordTypes: record.Types,
		Specialties: record.Specialties,
	}
}

func parseDate(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, invalid("date must be a date (YYYY-MM-DD)")
	}
	return &d, nil
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
