package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/company-profiler/internal/model"
	"github.com/sells-group/company-profiler/internal/scrape"
)

// collectPages produces one content item per crawl target. The homepage text
// loaded earlier is reused for the first target. Padding to K happens only
// when the row is built, so the summary never sees filler entries.
func (p *Pipeline) collectPages(ctx context.Context, log *zap.Logger, sess scrape.Session, targets []string, homeText string) []string {
	pages := make([]string, 0, len(targets))
	for i, target := range targets {
		text := homeText
		if i > 0 {
			var ok bool
			if text, ok = p.fetchPage(ctx, log, sess, target); !ok {
				pages = append(pages, text)
				continue
			}
		}
		pages = append(pages, p.shortenPage(ctx, log, target, text))
	}
	return pages
}

// fetchPage loads one additional target. On failure it returns the sentinel
// to record and false.
func (p *Pipeline) fetchPage(ctx context.Context, log *zap.Logger, sess scrape.Session, target string) (string, bool) {
	if _, err := scrape.ValidateURL(target); err != nil {
		log.Debug("pipeline: unusable link", zap.String("stage", "pages"), zap.String("link", target), zap.Error(err))
		return model.PageErrNoLinkFound, false
	}
	if err := p.loadPage(ctx, sess, target); err != nil {
		log.Debug("pipeline: page load failed", zap.String("stage", "pages"), zap.String("link", target), zap.Error(err))
		if text := strings.TrimSpace(sess.Text()); model.IsPageError(text) {
			return text, false
		}
		return model.PageErrCouldNotAccessPage, false
	}
	return sess.Text(), true
}

// shortenPage condenses one page with the shortener model. Sentinel input is
// passed through without a model call.
func (p *Pipeline) shortenPage(ctx context.Context, log *zap.Logger, target, text string) string {
	if model.IsPageError(text) {
		return strings.TrimSpace(text)
	}
	text = scrape.CleanText(text)
	if p.maxPageChars > 0 {
		text = scrape.Truncate(text, p.maxPageChars)
	}
	short, err := p.invoke(ctx, "shorten", p.models.Shortener, p.prompts.ShortenPage(text))
	if err != nil {
		log.Warn("pipeline: shortening failed", zap.String("stage", "pages"), zap.String("link", target), zap.Error(err))
		return model.PageErrCouldNotAccessPage
	}
	return short
}
