package scrape

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/company-profiler/internal/metrics"
	"github.com/sells-group/company-profiler/internal/model"
)

// PageCache persists successfully loaded pages.
type PageCache interface {
	// GetCachedPage returns nil and no error on a miss.
	GetCachedPage(ctx context.Context, url string) (*model.CachedPage, error)
	SetCachedPage(ctx context.Context, page model.CachedPage) error
}

// CachingSession serves loads from a PageCache when a fresh entry exists and
// records successful loads of the wrapped Session. Cache failures are logged
// and never fail a load.
type CachingSession struct {
	Session
	cache PageCache
	ttl   time.Duration
	now   func() time.Time
	hit   *model.CachedPage
}

// NewCachingSession wraps inner. Entries older than ttl are ignored.
func NewCachingSession(inner Session, cache PageCache, ttl time.Duration) *CachingSession {
	return &CachingSession{Session: inner, cache: cache, ttl: ttl, now: time.Now}
}

func (c *CachingSession) SetTarget(rawURL string) error {
	c.hit = nil
	return c.Session.SetTarget(rawURL)
}

func (c *CachingSession) Load(ctx context.Context) error {
	c.hit = nil
	target := c.Session.Target()

	if page, err := c.cache.GetCachedPage(ctx, target); err != nil {
		zap.L().Warn("scrape: page cache read failed", zap.String("url", target), zap.Error(err))
	} else if page != nil && c.now().Sub(page.FetchedAt) < c.ttl {
		c.hit = page
		metrics.ObserveCacheHit()
		return nil
	}

	if err := c.Session.Load(ctx); err != nil {
		return err
	}

	page := model.CachedPage{
		URL:       target,
		FinalURL:  c.Session.RedirectedURL(),
		Text:      c.Session.Text(),
		Links:     c.Session.Links(),
		FetchedAt: c.now().UTC(),
	}
	if err := c.cache.SetCachedPage(ctx, page); err != nil {
		zap.L().Warn("scrape: page cache write failed", zap.String("url", target), zap.Error(err))
	}
	return nil
}

func (c *CachingSession) Text() string {
	if c.hit != nil {
		return c.hit.Text
	}
	return c.Session.Text()
}

func (c *CachingSession) Links() []string {
	if c.hit != nil {
		return c.hit.Links
	}
	return c.Session.Links()
}

func (c *CachingSession) RedirectedURL() string {
	if c.hit != nil {
		return c.hit.FinalURL
	}
	return c.Session.RedirectedURL()
}

func (c *CachingSession) Reset() {
	c.hit = nil
	c.Session.Reset()
}
