package record

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helix/phr/internal/platform/auth"
	"github.com/helix/phr/internal/platform/viewcache"
	"github.com/helix/phr/pkg/pagination"
)

// ErrValidation wraps every rejected record form.
var ErrValidation = errors.New("invalid health record")

const dateLayout = "2006-01-02"

// pages shows health records.
var pages = []viewcache.Page{
	viewcache.PageDashboard, viewcache.PageRecords, viewcache.PageTimeline, viewcache.PageShare,
}

type Service struct {
	records Repository
	views   *viewcache.Cache
	inv     viewcache.Invalidator
}

func NewService(records Repository) *Service {
	return &Service{records: records, inv: viewcache.Nop{}}
}

// SetViewCache enables cached page reads and invalidation on writes.
func (s *Service) SetViewCache(c *viewcache.Cache) {
	s.views = c
	if c != nil {
		s.inv = c
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Create validates the submitted form and stores a new record for who.
// Metadata is built for the submitted type.
func (s *Service) Create(ctx context.Context, who auth.Identity, form url.Values) (*HealthRecord, error) {
	if err := who.Require(); err != nil {
		return nil, err
	}

	recordType := strings.TrimSpace(form.Get("type"))
	if !validTypes[recordType] {
		return nil, invalid("type must be one of: %s", strings.Join(Types, ", "))
	}
	title := strings.TrimSpace(form.Get("title"))
	if title == "" {
		return nil, invalid("title is required")
	}
	date, err := parseDate("date", form.Get("date"))
	if err != nil {
		return nil, err
	}
	if date == nil {
		return nil, invalid("date is required")
	}
	endDate, err := parseDate("end_date", form.Get("end_date"))
	if err != nil {
		return nil, err
	}
	status := strings.TrimSpace(form.Get("status"))
	if status == "" {
		status = StatusActive
	}
	if !validStatuses[status] {
		return nil, invalid("status must be one of: %s", strings.Join(Statuses, ", "))
	}

	r := &HealthRecord{
		UserID:       who.UserID,
		Type:         recordType,
		Title:        title,
		Description:  nullable(form.Get("description")),
		Date:         *date,
		EndDate:      endDate,
		Status:       status,
		ProviderName: nullable(form.Get("provider_name")),
		Specialty:    nullable(form.Get("specialty")),
		Notes:        nullable(form.Get("notes")),
		Metadata:     BuildMetadata(recordType, form),
	}
	if err := s.records.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	s.inv.Invalidate(ctx, who.UserID, pages...)
	return r, nil
}

// Update copies the allow-listed fields present in form onto the record.
// A submitted empty value clears a nullable column. Metadata is always
// rebuilt for the resulting type, so values shaped for a previous type are
// discarded.
func (s *Service) Update(ctx context.Context, who auth.Identity, id uuid.UUID, form url.Values) (*HealthRecord, error) {
	if err := who.Require(); err != nil {
		return nil, err
	}

	p := Patch{Set: make(map[string]interface{})}
	for _, field := range updatableCols {
		if _, ok := form[field]; !ok {
			continue
		}
		v := strings.TrimSpace(form.Get(field))
		switch field {
		case "type":
			if !validTypes[v] {
				return nil, invalid("type must be one of: %s", strings.Join(Types, ", "))
			}
			p.Set[field] = v
		case "status":
			if !validStatuses[v] {
				return nil, invalid("status must be one of: %s", strings.Join(Statuses, ", "))
			}
			p.Set[field] = v
		case "title":
			if v == "" {
				return nil, invalid("title is required")
			}
			p.Set[field] = v
		case "date":
			d, err := parseDate(field, v)
			if err != nil {
				return nil, err
			}
			if d == nil {
				return nil, invalid("date is required")
			}
			p.Set[field] = *d
		case "end_date":
			d, err := parseDate(field, v)
			if err != nil {
				return nil, err
			}
			p.Set[field] = d
		default:
			p.Set[field] = nullable(v)
		}
	}

	recordType, _ := p.Set["type"].(string)
	if recordType == "" {
		existing, err := s.records.GetByID(ctx, who.UserID, id)
		if err != nil {
			return nil, s.wrap("load record", err)
		}
		recordType = existing.Type
	}
	p.Metadata = BuildMetadata(recordType, form)

	r, err := s.records.Update(ctx, who.UserID, id, p)
	if err != nil {
		return nil, s.wrap("update record", err)
	}
	s.inv.Invalidate(ctx, who.UserID, pages...)
	return r, nil
}

// Delete removes the record when it belongs to who. Unknown and foreign ids
// succeed without effect.
func (s *Service) Delete(ctx context.Context, who auth.Identity, id uuid.UUID) error {
	if err := who.Require(); err != nil {
		return err
	}
	if err := s.records.Delete(ctx, who.UserID, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	s.inv.Invalidate(ctx, who.UserID, pages...)
	return nil
}

func (s *Service) Get(ctx context.Context, who auth.Identity, id uuid.UUID) (*HealthRecord, error) {
	if err := who.Require(); err != nil {
		return nil, err
	}
	r, err := s.records.GetByID(ctx, who.UserID, id)
	if err != nil {
		return nil, s.wrap("get record", err)
	}
	return r, nil
}

// List returns all of who's records, newest first.
func (s *Service) List(ctx context.Context, who auth.Identity) ([]*HealthRecord, error) {
	if err := who.Require(); err != nil {
		return nil, err
	}
	return s.cachedList(ctx, who.UserID, viewcache.PageRecords)
}

// RecordsPage is the model of the records page.
type RecordsPage struct {
	Filter      Filter                             `json:"filter"`
	Records     pagination.Response[*HealthRecord] `json:"records"`
	Types       []string                           `json:"-"`
	Statuses    []string                           `json:"-"`
	Specialties []string                           `json:"-"`
}

func (s *Service) RecordsPage(ctx context.Context, who auth.Identity, f Filter, p pagination.Params, base *url.URL) (*RecordsPage, error) {
	all, err := s.List(ctx, who)
	if err != nil {
		return nil, err
	}
	matched := make([]*HealthRecord, 0, len(all))
	for _, r := range all {
		if f.Match(r) {
			matched = append(matched, r)
		}
	}
	return &RecordsPage{
		Filter:      f,
		Records:     pagination.Apply(matched, p, base),
		Types:       Types,
		Statuses:    Statuses,
		Specialties: Specialties,
	}, nil
}

// TimelinePage is the model of the timeline page.
type TimelinePage struct {
	Filter TimelineFilter `json:"filter"`
	Total  int            `json:"total"`
	Years  []YearGroup    `json:"years"`
	Types  []string       `json:"-"`
}

func (s *Service) Timeline(ctx context.Context, who auth.Identity, f TimelineFilter) (*TimelinePage, error) {
	if err := who.Require(); err != nil {
		return nil, err
	}
	all, err := s.cachedList(ctx, who.UserID, viewcache.PageTimeline)
	if err != nil {
		return nil, err
	}
	var matched []*HealthRecord
	for _, r := range all {
		if f.Match(r) {
			matched = append(matched, r)
		}
	}
	return &TimelinePage{
		Filter: f,
		Total:  len(matched),
		Years:  GroupByYear(matched),
		Types:  Types,
	}, nil
}

func (s *Service) cachedList(ctx context.Context, userID uuid.UUID, page viewcache.Page) ([]*HealthRecord, error) {
	records, err := viewcache.Load(ctx, s.views, userID, page, func(ctx context.Context) ([]*HealthRecord, error) {
		return s.records.ListByUser(ctx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

func (s *Service) wrap(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func parseDate(field, v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, invalid("%s must be a date (YYYY-MM-DD)", field)
	}
	return &d, nil
}
