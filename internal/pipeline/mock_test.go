package pipeline

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/company-profiler/internal/config"
	"github.com/sells-group/company-profiler/internal/cost"
	"github.com/sells-group/company-profiler/internal/model"
	"github.com/sells-group/company-profiler/internal/prompt"
	"github.com/sells-group/company-profiler/internal/scrape"
	"github.com/sells-group/company-profiler/pkg/anthropic"
)

// --- Invoker Mock ---

type mockInvoker struct {
	mock.Mock
}

func (m *mockInvoker) Invoke(ctx context.Context, modelName, text string, history []anthropic.Message) (string, int64, int64, error) {
	args := m.Called(ctx, modelName, text, history)
	return args.String(0), args.Get(1).(int64), args.Get(2).(int64), args.Error(3)
}

// Each model call in tests costs 1000 input and 500 output tokens, priced so
// that one call is exactly $0.002.
const (
	callIn   int64 = 1000
	callOut  int64 = 500
	callCost       = 0.002
)

func promptContaining(marker string) any {
	return mock.MatchedBy(func(p string) bool { return strings.Contains(p, marker) })
}

func onLinks(m *mockInvoker, reply string) *mock.Call {
	return m.On("Invoke", mock.Anything, "main", promptContaining("Links: ["), mock.Anything).
		Return(reply, callIn, callOut, nil)
}

func onShorten(m *mockInvoker, reply string) *mock.Call {
	return m.On("Invoke", mock.Anything, "short", promptContaining("Page Content:"), mock.Anything).
		Return(reply, callIn, callOut, nil)
}

func onSummary(m *mockInvoker, reply string) *mock.Call {
	return m.On("Invoke", mock.Anything, "main", promptContaining("Contents of the pages:"), mock.Anything).
		Return(reply, callIn, callOut, nil)
}

func onClassify(m *mockInvoker, reply string) *mock.Call {
	return m.On("Invoke", mock.Anything, "cls", promptContaining("Return a single JSON object"), mock.Anything).
		Return(reply, callIn, callOut, nil)
}

func onCheckAI(m *mockInvoker, reply string) *mock.Call {
	return m.On("Invoke", mock.Anything, "cls", promptContaining("Respond with either 'Yes' or 'No'"), mock.Anything).
		Return(reply, callIn, callOut, nil)
}

// --- Session Fake ---

type fakePage struct {
	text     string
	links    []string
	redirect string
	err      error
}

// fakeSession serves pages from a map. Targets missing from the map fail
// with a DNS error.
type fakeSession struct {
	pages      map[string]fakePage
	target     string
	cur        *fakePage
	failed     bool
	loads      []string
	resets     int
	recycles   int
	recycleErr error
}

var _ scrape.Session = (*fakeSession)(nil)

func newFakeSession(pages map[string]fakePage) *fakeSession {
	return &fakeSession{pages: pages}
}

func (s *fakeSession) SetTarget(rawURL string) error {
	if _, err := scrape.ValidateURL(rawURL); err != nil {
		return err
	}
	s.target = rawURL
	s.cur, s.failed = nil, false
	return nil
}

func (s *fakeSession) Target() string { return s.target }

func (s *fakeSession) Load(context.Context) error {
	s.loads = append(s.loads, s.target)
	p, ok := s.pages[s.target]
	if !ok {
		s.failed = true
		return &scrape.PageError{Reason: scrape.ReasonDNS, URL: s.target}
	}
	if p.err != nil {
		s.failed = true
		return p.err
	}
	s.cur = &p
	return nil
}

func (s *fakeSession) Text() string {
	if s.failed {
		return model.PageErrCouldNotAccessPage
	}
	if s.cur == nil {
		return ""
	}
	return s.cur.text
}

func (s *fakeSession) Links() []string {
	if s.cur == nil {
		return nil
	}
	return s.cur.links
}

func (s *fakeSession) RedirectedURL() string {
	if s.cur == nil {
		return ""
	}
	return s.cur.redirect
}

func (s *fakeSession) Reset() {
	s.resets++
	s.target, s.cur, s.failed = "", nil, false
}

func (s *fakeSession) Recycle(context.Context) error {
	s.recycles++
	return s.recycleErr
}

func (s *fakeSession) Close() error { return nil }

// --- Helpers ---

func testConfig() *config.Config {
	return &config.Config{
		Anthropic: config.AnthropicConfig{
			MainModel:           "main",
			ShortenerModel:      "short",
			ClassificationModel: "cls",
		},
		Pipeline: config.PipelineConfig{
			TotalPages:        4,
			LinkRetries:       8,
			MaxCandidateLinks: 200,
			MaxPageChars:      20000,
			Schema:            "full",
		},
	}
}

func testCalculator() *cost.Calculator {
	rate := cost.ModelRate{Input: 1, Output: 2}
	return cost.NewCalculator(cost.Rates{Models: map[string]cost.ModelRate{
		"main":  rate,
		"short": rate,
		"cls":   rate,
	}})
}

func newTestPipeline(cfg *config.Config, inv Invoker) *Pipeline {
	p, err := New(cfg, inv, testCalculator(), prompt.DefaultTaxonomies())
	if err != nil {
		panic(err)
	}
	return p
}

// acmeSite is a reachable company with three useful links and one excluded.
func acmeSite() map[string]fakePage {
	return map[string]fakePage{
		"https://acme.ai": {
			text:     "Acme AI builds computer vision models for retail.",
			redirect: "https://www.acme.ai/",
			links: []string{
				"https://acme.ai/platform",
				"https://acme.ai/pricing",
				"https://acme.ai/customers",
				"https://acme.ai/blog/launch",
			},
		},
		"https://acme.ai/platform":  {text: "The Acme platform detects shelf gaps."},
		"https://acme.ai/pricing":   {text: "Acme is sold as a per-store subscription."},
		"https://acme.ai/customers": {text: "Acme serves grocery chains."},
	}
}

func acmeCompany() model.Company {
	return model.Company{Row: 2, Name: "Acme AI", RawURL: "acme.ai"}
}
