package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sells-group/company-profiler/internal/scrape"
	"github.com/sells-group/company-profiler/pkg/anthropic"
)

// Compile-time interface checks.
var (
	_ Invoker        = (*StubInvoker)(nil)
	_ scrape.Session = (*StubSession)(nil)
)

// --- Invoker Stub ---

// StubInvoker answers every prompt with a canned reply shaped for the stage
// that sent it. It lets the whole batch run offline.
type StubInvoker struct {
	InputTokens  int64
	OutputTokens int64
}

// Invoke implements Invoker.
func (s *StubInvoker) Invoke(_ context.Context, _, text string, _ []anthropic.Message) (string, int64, int64, error) {
	in, out := s.InputTokens, s.OutputTokens
	if in == 0 && out == 0 {
		in, out = 150, 50
	}

	switch {
	case strings.Contains(text, "Links: ["):
		return stubLinkReply(text), in, out, nil
	case strings.Contains(text, "Return a single JSON object"):
		return `{"short_description": "Stub company offering software products.", "focus_type": "Uncertain", "industry": "Uncertain", "revenue_models": ["Uncertain"]}`, in, out, nil
	case strings.Contains(text, "Respond with either 'Yes' or 'No'"):
		return "No", in, out, nil
	case strings.Contains(text, "Contents of the pages:"):
		return "Stub description generated offline from the collected pages.", in, out, nil
	default:
		return "Stub page summary.", in, out, nil
	}
}

// stubLinkReply echoes the first candidate link back as a one-item list.
func stubLinkReply(text string) string {
	_, list, _ := strings.Cut(text, "Links: ")
	if i := strings.Index(list, "]"); i >= 0 {
		list = list[:i+1]
	}
	first, _, _ := strings.Cut(strings.Trim(list, "[]"), ",")
	first = strings.TrimSpace(first)
	if first == "" {
		return "[]"
	}
	return "[" + first + "]"
}

// --- Session Stub ---

// StubSession serves a synthetic page for any target: a short text naming
// the host and two links under it.
type StubSession struct {
	target string
	loaded bool
}

func (s *StubSession) SetTarget(rawURL string) error {
	if _, err := scrape.ValidateURL(rawURL); err != nil {
		return err
	}
	s.target = rawURL
	s.loaded = false
	return nil
}

func (s *StubSession) Target() string { return s.target }

func (s *StubSession) Load(context.Context) error {
	s.loaded = true
	return nil
}

func (s *StubSession) Text() string {
	if !s.loaded {
		return ""
	}
	return fmt.Sprintf("Welcome to %s. We build software products for businesses.", s.host())
}

func (s *StubSession) Links() []string {
	if !s.loaded {
		return nil
	}
	base := strings.TrimSuffix(s.target, "/")
	return []string{base + "/product", base + "/solutions"}
}

// RedirectedURL is always empty: the stub never redirects.
func (s *StubSession) RedirectedURL() string { return "" }

func (s *StubSession) Reset() {
	s.target = ""
	s.loaded = false
}

func (s *StubSession) Recycle(context.Context) error { return nil }
func (s *StubSession) Close() error                  { return nil }

func (s *StubSession) host() string {
	u, err := url.Parse(s.target)
	if err != nil {
		return s.target
	}
	return u.Hostname()
}
