package brief

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helix/phr/internal/domain/profile"
	"github.com/helix/phr/internal/domain/record"
	"github.com/helix/phr/internal/platform/auth"
	"github.com/helix/phr/internal/platform/llm"
	"github.com/helix/phr/internal/platform/viewcache"
)

var (
	ErrNoRecords        = errors.New("No health records found. Add some records first to generate a brief.")
	ErrGenerationFailed = errors.New("Failed to generate AI brief. Please try again.")
	ErrValidation       = errors.New("invalid brief request")
)

type Service struct {
	summaries Repository
	records   record.Repository
	profiles  profile.Repository
	model     llm.Completer
	views     *viewcache.Cache
	inv       viewcache.Invalidator
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(summaries Repository, records record.Repository, profiles profile.Repository, model llm.Completer, logger zerolog.Logger) *Service {
	return &Service{
		summaries: summaries,
		records:   records,
		profiles:  profiles,
		model:     model,
		inv:       viewcache.Nop{},
		logger:    logger,
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

// Generate writes a brief for specialty from who's records. The model is not
// called when who has no records. A summary that cannot be stored is still
// returned, with Saved false.
func (s *Service) Generate(ctx context.Context, who auth.Identity, specialty string) (*GenerateResult, error) {
	if err := who.Require(); err != nil {
		return nil, err
	}
	if !isSpecialty(specialty) {
		return nil, fmt.Errorf("%w: unknown specialty %q", ErrValidation, specialty)
	}

	records, err := s.records.ListByUser(ctx, who.UserID)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	if len(records) == 0 {
		generations.WithLabelValues("no_records").Inc()
		return nil, ErrNoRecords
	}

	p, err := s.profiles.GetByID(ctx, who.UserID)
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	f := gather(specialty, p, records, s.now())
	text, err := s.model.Complete(ctx, f.prompt())
	if err != nil {
		generations.WithLabelValues("failed").Inc()
		s.logger.Error().Err(err).Str("user_id", who.UserID.String()).Str("specialty", specialty).Msg("ai brief generation failed")
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	res := &GenerateResult{Specialty: specialty, Summary: text}
	sum := f.extract(specialty, text)
	sum.UserID = who.UserID
	if err := s.summaries.Create(ctx, sum); err != nil {
		generations.WithLabelValues("unsaved").Inc()
		s.logger.Error().Err(err).Str("user_id", who.UserID.String()).Msg("failed to save ai summary")
		return res, nil
	}
	res.Saved = true
	res.ID = &sum.ID
	generations.WithLabelValues("generated").Inc()
	s.inv.Invalidate(ctx, who.UserID, viewcache.PageAIBrief)
	return res, nil
}

func (s *Service) List(ctx context.Context, who auth.Identity) ([]*Summary, error) {
	if err := who.Require(); err != nil {
		return nil, err
	}
	out, err := viewcache.Load(ctx, s.views, who.UserID, viewcache.PageAIBrief, func(ctx context.Context) ([]*Summary, error) {
		return s.summaries.ListByUser(ctx, who.UserID)
	})
	if err != nil {
		return nil, fmt.Errorf("list ai summaries: %w", err)
	}
	return out, nil
}

// Delete removes one of who's summaries. Unknown ids are ignored.
func (s *Service) Delete(ctx context.Context, who auth.Identity, id uuid.UUID) error {
	if err := who.Require(); err != nil {
		return err
	}
	if err := s.summaries.Delete(ctx, who.UserID, id); err != nil {
		return fmt.Errorf("delete ai summary: %w", err)
	}
	s.inv.Invalidate(ctx, who.UserID, viewcache.PageAIBrief)
	return nil
}

// Page is the model of the AI brief page. Result is set right after a
// generation.
type Page struct {
	Summaries   []*Summary      `json:"summaries"`
	Result      *GenerateResult `json:"result,omitempty"`
	Error       string          `json:"-"`
	Specialties []string        `json:"-"`
}

func (s *Service) Page(ctx context.Context, who auth.Identity) (*Page, error) {
	summaries, err := s.List(ctx, who)
	if err != nil {
		return nil, err
	}
	return &Page{Summaries: summaries, Specialties: Specialties}, nil
}
