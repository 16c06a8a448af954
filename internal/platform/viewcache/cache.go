// Package viewcache caches per-user page data and drops it when the user's
// data changes.
package viewcache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Page names a cached view. Mutations invalidate the pages that display the
// entity they touched.
type Page string

const (
	PageDashboard Page = "dashboard"
	PageRecords   Page = "records"
	PageTimeline  Page = "timeline"
	PageProviders Page = "providers"
	PageShare     Page = "share"
	PageAIBrief   Page = "ai-brief"
	PageSettings  Page = "settings"
)

// Invalidator drops cached pages for one user.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID, pages ...Page)
}

// Nop is an Invalidator that does nothing.
type Nop struct{}

func (Nop) Invalidate(context.Context, uuid.UUID, ...Page) {}

type Cache struct {
	store  Store
	ttl    time.Duration
	genTTL time.Duration
	logger zerolog.Logger
}

func New(store Store, ttl time.Duration, logger zerolog.Logger) *Cache {
	genTTL := minGenerationTTL
	if 2*ttl > genTTL {
		genTTL = 2 * ttl
	}
	return &Cache{store: store, ttl: ttl, genTTL: genTTL, logger: logger}
}

// minGenerationTTL is how long an untouched generation counter is kept. It is
// raised to twice the view TTL so a counter never resets while a view stored
// under an older value is still readable.
const minGenerationTTL = 24 * time.Hour

func generationKey(userID uuid.UUID, page Page) string {
	return "helix:viewgen:" + userID.String() + ":" + string(page)
}

func key(userID uuid.UUID, page Page, gen int64) string {
	return "helix:view:" + userID.String() + ":" + string(page) + ":" + strconv.FormatInt(gen, 10)
}

// generation reads the page's current generation. Views are stored under it,
// so a view built before an Invalidate lands under a key no reader uses.
func (c *Cache) generation(ctx context.Context, userID uuid.UUID, page Page) (int64, error) {
	raw, ok, err := c.store.Get(ctx, generationKey(userID, page))
	if err != nil || !ok {
		return 0, err
	}
	gen, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse view generation: %w", err)
	}
	return gen, nil
}

// Invalidate moves the given pages to a new generation and drops the views of
// the one they leave. Backend errors are logged, not returned: the mutation
// that triggered them has already been committed.
func (c *Cache) Invalidate(ctx context.Context, userID uuid.UUID, pages ...Page) {
	if c == nil || len(pages) == 0 {
		return
	}
	var stale []string
	for _, p := range pages {
		gen, err := c.store.Incr(ctx, generationKey(userID, p), c.genTTL)
		if err != nil {
			c.logger.Error().Err(err).Str("user_id", userID.String()).Str("page", string(p)).Msg("view cache invalidation failed")
			continue
		}
		stale = append(stale, key(userID, p, gen-1))
	}
	if len(stale) == 0 {
		return
	}
	if err := c.store.Delete(ctx, stale...); err != nil {
		c.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to drop superseded views")
	}
}

// Ping checks the backend.
func (c *Cache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Load returns the cached value for the page or builds and stores it.
// The generation is read before building, so a build that races an
// Invalidate is never served afterwards. A nil cache always builds.
func Load[T any](ctx context.Context, c *Cache, userID uuid.UUID, page Page, build func(ctx context.Context) (T, error)) (T, error) {
	if c == nil {
		return build(ctx)
	}

	gen, err := c.generation(ctx, userID, page)
	if err != nil {
		c.logger.Warn().Err(err).Str("user_id", userID.String()).Str("page", string(page)).Msg("view cache generation unavailable")
		return build(ctx)
	}
	k := key(userID, page, gen)
	if raw, ok, err := c.store.Get(ctx, k); err != nil {
		c.logger.Warn().Err(err).Str("key", k).Msg("view cache read failed")
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		c.logger.Warn().Str("key", k).Msg("discarding undecodable cached view")
	}

	v, err := build(ctx)
	if err != nil {
		return v, err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", k).Msg("view not cacheable")
		return v, nil
	}
	if err := c.store.Set(ctx, k, raw, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", k).Msg("view cache write failed")
	}
	return v, nil
}
