// Package scrape loads company web pages and exposes their visible text and
// outbound links to the profiling pipeline.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-profiler/internal/model"
)

// Session is a long-lived page fetcher. It holds at most one loaded page at
// a time and is owned by a single goroutine.
type Session interface {
	// SetTarget validates and stores the next URL to load.
	SetTarget(rawURL string) error
	Target() string
	// Load fetches the current target. Typed failures are *PageError.
	Load(ctx context.Context) error
	// Text is the visible text of the last load, or a page-error sentinel
	// when it failed.
	Text() string
	Links() []string
	// RedirectedURL is the final URL of the last successful load.
	RedirectedURL() string
	// Reset forgets the target and everything loaded from it.
	Reset()
	// Recycle tears down and recreates the underlying client.
	Recycle(ctx context.Context) error
	Close() error
}

// Reason classifies a failed page load.
type Reason string

const (
	ReasonTimeout    Reason = "timeout"
	ReasonDNS        Reason = "dns"
	ReasonBadContent Reason = "bad_content"
	ReasonBlocked    Reason = "blocked"
	ReasonInternal   Reason = "internal"
)

// PageError is returned by Session.Load when a page cannot be used.
type PageError struct {
	Reason Reason
	URL    string
	Err    error
}

func (e *PageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("scrape: %s loading %s", e.Reason, e.URL)
	}
	return fmt.Sprintf("scrape: %s loading %s: %v", e.Reason, e.URL, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// ValidateURL parses rawURL and requires an absolute http(s) URL.
func ValidateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: parse url %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, eris.Errorf("scrape: unsupported scheme in %q", rawURL)
	}
	if u.Host == "" {
		return nil, eris.Errorf("scrape: missing host in %q", rawURL)
	}
	return u, nil
}

// classifyErr maps a transport error to a PageError reason.
func classifyErr(targetURL string, err error) *PageError {
	var pe *PageError
	if errors.As(err, &pe) {
		return pe
	}
	reason := ReasonInternal
	var dnsErr *net.DNSError
	var netErr net.Error
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout(),
		strings.Contains(msg, "net::ERR_TIMED_OUT"):
		reason = ReasonTimeout
	case errors.As(err, &dnsErr),
		strings.Contains(msg, "net::ERR_NAME_NOT_RESOLVED"):
		reason = ReasonDNS
	case strings.Contains(msg, "net::ERR_"):
		reason = ReasonBadContent
	}
	return &PageError{Reason: reason, URL: targetURL, Err: err}
}

// loaded is the page state shared by Session implementations.
type loaded struct {
	target   string
	text     string
	links    []string
	redirect string
}

func (p *loaded) setTarget(rawURL string) error {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return err
	}
	p.clear()
	p.target = u.String()
	return nil
}

func (p *loaded) clear() {
	p.text = ""
	p.links = nil
	p.redirect = ""
}

func (p *loaded) fail(err *PageError) error {
	p.clear()
	p.text = model.PageErrCouldNotAccessPage
	return err
}

func (p *loaded) reset() {
	p.clear()
	p.target = ""
}

// finish validates extracted content and stores it.
func (p *loaded) finish(finalURL, text string, links []string) error {
	text = CleanText(text)
	if blocked, bt := DetectBlockText(text); blocked {
		return p.fail(&PageError{Reason: ReasonBlocked, URL: p.target, Err: eris.Errorf("scrape: %s page", bt)})
	}
	if text == "" {
		return p.fail(&PageError{Reason: ReasonBadContent, URL: p.target, Err: eris.New("scrape: empty page body")})
	}
	p.text = text
	p.links = FilterLinks(finalURL, links)
	if redirected(p.target, finalURL) {
		p.redirect = finalURL
	}
	return nil
}

// redirected reports whether the fetcher ended up somewhere other than
// target. A trailing slash alone is not a redirect.
func redirected(target, finalURL string) bool {
	if finalURL == "" {
		return false
	}
	return strings.TrimSuffix(finalURL, "/") != strings.TrimSuffix(target, "/")
}

// FilterLinks resolves hrefs against base and keeps unique http(s) URLs
// without their fragments, in first-seen order.
func FilterLinks(base string, hrefs []string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}
	seen := make(map[string]bool, len(hrefs))
	out := make([]string, 0, len(hrefs))
	for _, h := range hrefs {
		h = strings.TrimSpace(h)
		if h == "" || strings.HasPrefix(h, "#") {
			continue
		}
		ref, err := url.Parse(h)
		if err != nil {
			continue
		}
		u := baseURL.ResolveReference(ref)
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		u.Fragment = ""
		s := u.String()
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
