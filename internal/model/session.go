package model

import "github.com/sells-group/company-profiler/internal/cost"

// CrawlSession is the per-company scratch state. One value is reused across
// the whole batch and must be Reset between companies so nothing leaks from
// one company into the next.
type CrawlSession struct {
	HomepageURL   string
	RedirectedURL string
	Links         []string
	Pages         []string
	Description   string
	Ledger        *cost.Ledger
}

// NewCrawlSession creates an empty session charging model calls to ledger.
func NewCrawlSession(ledger *cost.Ledger) *CrawlSession {
	return &CrawlSession{Ledger: ledger}
}

// Reset clears every field and zeroes the ledger.
func (s *CrawlSession) Reset() {
	s.HomepageURL = ""
	s.RedirectedURL = ""
	s.Links = nil
	s.Pages = nil
	s.Description = ""
	if s.Ledger != nil {
		s.Ledger.Reset()
	}
}

// AdditionalURLs returns the crawl targets after the homepage.
func (s *CrawlSession) AdditionalURLs() []string {
	var out []string
	for _, l := range s.Links {
		if l == s.HomepageURL {
			continue
		}
		out = append(out, l)
	}
	return out
}
