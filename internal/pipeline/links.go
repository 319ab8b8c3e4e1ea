package pipeline

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/company-profiler/internal/metrics"
	"github.com/sells-group/company-profiler/internal/parse"
	"github.com/sells-group/company-profiler/internal/scrape"
)

// discoverLinks asks the main model which homepage links to crawl and
// returns the crawl targets, homepage first. An empty reply is retried with
// the identical prompt up to linkRetries times in total; when every attempt
// comes back empty only the homepage is crawled. Model errors are returned.
func (p *Pipeline) discoverLinks(ctx context.Context, log *zap.Logger, homepage string, homeLinks []string) ([]string, error) {
	maxLinks := p.prompts.MaxLinks()
	candidates := p.candidateLinks(homepage, homeLinks)
	if maxLinks == 0 || len(candidates) == 0 {
		log.Info("pipeline: no candidate links, crawling homepage only",
			zap.String("stage", "links"),
			zap.Int("candidates", len(candidates)),
		)
		return []string{homepage}, nil
	}

	text := p.prompts.SelectLinks(candidates)
	var selected []string
	for attempt := 1; attempt <= p.linkRetries; attempt++ {
		metrics.ObserveLinkAttempt()
		reply, err := p.invoke(ctx, "select_links", p.models.Main, text)
		if err != nil {
			return nil, err
		}
		selected = parse.StringItems(parse.ExtractList(reply))
		if len(selected) > 0 {
			break
		}
		log.Debug("pipeline: empty link selection", zap.String("stage", "links"), zap.Int("attempt", attempt))
	}
	if len(selected) == 0 {
		log.Warn("pipeline: link selection exhausted, crawling homepage only",
			zap.String("stage", "links"),
			zap.Int("attempts", p.linkRetries),
		)
	}
	return crawlTargets(homepage, selected, maxLinks), nil
}

// candidateLinks filters the homepage links down to what the selection
// prompt sees: absolute http(s), deduplicated, not excluded, not the
// homepage itself, capped at maxCandidateLinks.
func (p *Pipeline) candidateLinks(homepage string, links []string) []string {
	home := linkKey(homepage)
	var out []string
	for _, l := range p.exclude.Filter(scrape.FilterLinks(homepage, links)) {
		if linkKey(l) == home {
			continue
		}
		out = append(out, l)
		if p.maxCandidateLinks > 0 && len(out) >= p.maxCandidateLinks {
			break
		}
	}
	return out
}

// crawlTargets resolves the selected links against the homepage, drops
// duplicates and caps them at maxLinks. The homepage always comes first.
// Links that cannot be resolved are kept verbatim so the page slot can
// report them.
func crawlTargets(homepage string, selected []string, maxLinks int) []string {
	out := []string{homepage}
	seen := map[string]bool{linkKey(homepage): true}
	for _, raw := range selected {
		if len(out) > maxLinks {
			break
		}
		target := resolveLink(homepage, raw)
		if target == "" {
			continue
		}
		k := linkKey(target)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, target)
	}
	return out
}

func resolveLink(base, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u := b.ResolveReference(ref)
	u.Fragment = ""
	return u.String()
}

// linkKey compares URLs ignoring a trailing slash.
func linkKey(u string) string {
	return strings.TrimSuffix(u, "/")
}
