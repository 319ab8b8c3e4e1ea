package scrape

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/sells-group/company-profiler/internal/resilience"
)

const (
	defaultUserAgent = "Mozilla/5.0 (compatible; CompanyProfiler/1.0)"
	maxBodyBytes     = 2 << 20
)

// HTTPConfig configures an HTTPSession.
type HTTPConfig struct {
	Timeout   time.Duration
	UserAgent string
	// Attempts is the number of tries per load for transient network errors.
	Attempts int
}

// HTTPSession loads pages with a plain HTTP client and extracts text with
// goquery. It does not run JavaScript.
type HTTPSession struct {
	cfg    HTTPConfig
	client *http.Client
	loaded
}

// NewHTTPSession creates an HTTPSession with sensible defaults.
func NewHTTPSession(cfg HTTPConfig) *HTTPSession {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 2
	}
	return &HTTPSession{cfg: cfg, client: newHTTPClient(cfg.Timeout)}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConnsPerHost: 2,
		},
	}
}

func (s *HTTPSession) SetTarget(rawURL string) error { return s.setTarget(rawURL) }
func (s *HTTPSession) Target() string                { return s.target }
func (s *HTTPSession) Text() string                  { return s.text }
func (s *HTTPSession) Links() []string               { return s.links }
func (s *HTTPSession) RedirectedURL() string         { return s.redirect }
func (s *HTTPSession) Reset()                        { s.reset() }

// Load fetches the target, rejects block and error pages, and extracts
// visible text and anchor hrefs.
func (s *HTTPSession) Load(ctx context.Context) error {
	if s.target == "" {
		return s.fail(&PageError{Reason: ReasonInternal, Err: eris.New("scrape: no target set")})
	}
	s.clear()

	type fetched struct {
		resp *http.Response
		body []byte
	}
	policy := resilience.Policy{
		MaxAttempts:    s.cfg.Attempts,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		OnRetry:        resilience.LogRetry("page fetch", zap.String("url", s.target)),
	}
	f, err := resilience.Retry(ctx, policy, func(ctx context.Context) (fetched, error) {
		resp, body, err := s.fetch(ctx)
		return fetched{resp, body}, err
	})
	if err != nil {
		return s.fail(classifyErr(s.target, err))
	}

	if blocked, bt := DetectBlock(f.resp, f.body); blocked {
		return s.fail(&PageError{Reason: ReasonBlocked, URL: s.target, Err: eris.Errorf("scrape: %s", bt)})
	}
	if f.resp.StatusCode >= http.StatusBadRequest {
		return s.fail(&PageError{Reason: ReasonBadContent, URL: s.target, Err: eris.Errorf("scrape: status %d", f.resp.StatusCode)})
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(f.body))
	if err != nil {
		return s.fail(&PageError{Reason: ReasonBadContent, URL: s.target, Err: eris.Wrap(err, "scrape: parse html")})
	}

	finalURL := f.resp.Request.URL.String()
	return s.finish(finalURL, VisibleText(doc), Hrefs(doc))
}

func (s *HTTPSession) fetch(ctx context.Context) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.target, nil)
	if err != nil {
		return nil, nil, eris.Wrap(err, "scrape: create request")
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, eris.Wrap(err, "scrape: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, eris.Wrap(err, "scrape: read body")
	}
	return resp, body, nil
}

// Recycle drops pooled connections.
func (s *HTTPSession) Recycle(context.Context) error {
	s.client.CloseIdleConnections()
	s.client = newHTTPClient(s.cfg.Timeout)
	return nil
}

func (s *HTTPSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// hiddenTags never contribute visible text.
var hiddenTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"svg": true, "iframe": true, "head": true,
}

// blockTags end a line of text, approximating innerText layout.
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"footer": true, "form": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "hr": true, "li": true, "main": true,
	"nav": true, "ol": true, "p": true, "pre": true, "section": true, "table": true,
	"td": true, "th": true, "tr": true, "ul": true,
}

// VisibleText approximates document.body.innerText for a parsed document.
func VisibleText(doc *goquery.Document) string {
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	var sb strings.Builder
	for _, n := range root.Nodes {
		writeText(&sb, n)
	}
	return sb.String()
}

func writeText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		if hiddenTags[n.Data] {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(sb, c)
	}
	if n.Type == html.ElementNode && blockTags[n.Data] {
		sb.WriteByte('\n')
	}
}

// Hrefs returns the raw href of every anchor in document order.
func Hrefs(doc *goquery.Document) []string {
	var out []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			out = append(out, href)
		}
	})
	return out
}
