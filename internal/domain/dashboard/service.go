// Package dashboard builds the landing page of a signed-in user.
package dashboard

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/helix/phr/internal/domain/profile"
	"github.com/helix/phr/internal/domain/provider"
	"github.com/helix/phr/internal/domain/record"
	"github.com/helix/phr/internal/platform/auth"
	"github.com/helix/phr/internal/platform/viewcache"
)

// RecentLimit is the number of records in the recent list.
const RecentLimit = 5

type Stats struct {
	ActiveConditions  int `json:"active_conditions"`
	ActiveMedications int `json:"active_medications"`
	Providers         int `json:"providers"`
	Records           int `json:"records"`
}

type Page struct {
	Name               string                 `json:"name"`
	Stats              Stats                  `json:"stats"`
	ActiveConditions   []*record.HealthRecord `json:"active_conditions"`
	CurrentMedications []*record.HealthRecord `json:"current_medications"`
	RecentRecords      []*record.HealthRecord `json:"recent_records"`
}

type Service struct {
	records   record.Repository
	providers provider.Repository
	profiles  profile.Repository
	views     *viewcache.Cache
}

func NewService(records record.Repository, providers provider.Repository, profiles profile.Repository) *Service {
	return &Service{records: records, providers: providers, profiles: profiles}
}

// SetViewCache enables cached page reads.
func (s *Service) SetViewCache(c *viewcache.Cache) {
	s.views = c
}

func (s *Service) Page(ctx context.Context, who auth.Identity) (*Page, error) {
	if err := who.Require(); err != nil {
		return nil, err
	}
	page, err := viewcache.Load(ctx, s.views, who.UserID, viewcache.PageDashboard, func(ctx context.Context) (*Page, error) {
		return s.build(ctx, who)
	})
	if err != nil {
		return nil, fmt.Errorf("load dashboard: %w", err)
	}
	return page, nil
}

func (s *Service) build(ctx context.Context, who auth.Identity) (*Page, error) {
	var (
		records   []*record.HealthRecord
		providers int
		p         *profile.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.records.ListByUser(gctx, who.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		providers, err = s.providers.CountByUser(gctx, who.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		p, err = s.profiles.GetByID(gctx, who.UserID)
		if errors.Is(err, profile.ErrNotFound) {
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	page := &Page{
		Name:               who.Email,
		ActiveConditions:   []*record.HealthRecord{},
		CurrentMedications: []*record.HealthRecord{},
	}
	if p != nil {
		page.Name = p.DisplayName()
	} else if who.FullName != "" {
		page.Name = who.FullName
	}
	for _, r := range records {
		if !r.IsActive() {
			continue
		}
		switch r.Type {
		case record.TypeCondition:
			page.ActiveConditions = append(page.ActiveConditions, r)
		case record.TypeMedication:
			page.CurrentMedications = append(page.CurrentMedications, r)
		}
	}
	recent := len(records)
	if recent > RecentLimit {
		recent = RecentLimit
	}
	page.RecentRecords = append([]*record.HealthRecord{}, records[:recent]...)
	page.Stats = Stats{
		ActiveConditions:  len(page.ActiveConditions),
		ActiveMedications: len(page.CurrentMedications),
		Providers:         providers,
		Records:           len(records),
	}
	return page, nil
}
