package scrape

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// linksJS collects anchor hrefs, skipping pseudo-links.
const linksJS = `(() => Array.from(document.querySelectorAll('a'))
	.map(a => a.href)
	.filter(href => href &&
		!href.startsWith('javascript:') &&
		!href.startsWith('mailto:') &&
		!href.startsWith('tel:') &&
		!href.startsWith('#')))()`

const textJS = `document.body ? document.body.innerText : ""`

// BrowserConfig configures a BrowserSession.
type BrowserConfig struct {
	Headless          bool
	NavigationTimeout time.Duration
	UserAgent         string
	// Settle is an extra wait after the body is ready, for client-side
	// rendering to finish.
	Settle time.Duration
}

// BrowserSession renders pages in headless Chrome via chromedp. One browser
// process lives across loads; each load runs in a fresh tab.
type BrowserSession struct {
	cfg           BrowserConfig
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	loaded
}

// NewBrowserSession starts Chrome and returns a session bound to it.
func NewBrowserSession(ctx context.Context, cfg BrowserConfig) (*BrowserSession, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	s := &BrowserSession{cfg: cfg}
	if err := s.start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *BrowserSession) start(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.UserAgent(s.cfg.UserAgent),
	)
	// The browser outlives any single caller context.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	warm, cancelWarm := context.WithTimeout(browserCtx, s.cfg.NavigationTimeout)
	defer cancelWarm()
	stop := context.AfterFunc(ctx, cancelWarm)
	defer stop()
	if err := chromedp.Run(warm); err != nil {
		browserCancel()
		allocCancel()
		return eris.Wrap(err, "scrape: start browser")
	}

	s.allocCancel = allocCancel
	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	return nil
}

func (s *BrowserSession) SetTarget(rawURL string) error { return s.setTarget(rawURL) }
func (s *BrowserSession) Target() string                { return s.target }
func (s *BrowserSession) Text() string                  { return s.text }
func (s *BrowserSession) Links() []string               { return s.links }
func (s *BrowserSession) RedirectedURL() string         { return s.redirect }
func (s *BrowserSession) Reset()                        { s.reset() }

// Load navigates a new tab to the target and reads innerText, links and the
// final location.
func (s *BrowserSession) Load(ctx context.Context) error {
	if s.target == "" {
		return s.fail(&PageError{Reason: ReasonInternal, Err: eris.New("scrape: no target set")})
	}
	if s.browserCtx == nil {
		return s.fail(&PageError{Reason: ReasonInternal, URL: s.target, Err: eris.New("scrape: browser closed")})
	}
	s.clear()

	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()
	taskCtx, cancelTask := context.WithTimeout(tabCtx, s.cfg.NavigationTimeout)
	defer cancelTask()
	stop := context.AfterFunc(ctx, cancelTask)
	defer stop()

	status := documentStatus(tabCtx)

	var text, location string
	var hrefs []string
	tasks := chromedp.Tasks{
		network.Enable(),
		chromedp.Navigate(s.target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if s.cfg.Settle > 0 {
		tasks = append(tasks, chromedp.Sleep(s.cfg.Settle))
	}
	tasks = append(tasks,
		chromedp.Evaluate(textJS, &text),
		chromedp.Evaluate(linksJS, &hrefs),
		chromedp.Location(&location),
	)

	if err := chromedp.Run(taskCtx, tasks); err != nil {
		if errors.Is(taskCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = eris.Wrap(context.DeadlineExceeded, err.Error())
		}
		return s.fail(classifyErr(s.target, err))
	}
	if code := status(); code >= 400 {
		return s.fail(&PageError{Reason: ReasonBadContent, URL: s.target, Err: eris.Errorf("scrape: status %d", code)})
	}
	if location == "" {
		location = s.target
	}
	return s.finish(location, text, hrefs)
}

// documentStatus records the HTTP status of the first document response in
// the tab and returns a getter for it.
func documentStatus(tabCtx context.Context) func() int {
	var (
		mu   sync.Mutex
		code int
	)
	chromedp.ListenTarget(tabCtx, func(ev any) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		mu.Lock()
		if code == 0 {
			code = int(resp.Response.Status)
		}
		mu.Unlock()
	})
	return func() int {
		mu.Lock()
		defer mu.Unlock()
		return code
	}
}

// Recycle kills the browser process and launches a new one.
func (s *BrowserSession) Recycle(ctx context.Context) error {
	s.shutdown()
	zap.L().Info("scrape: recycling browser")
	return s.start(ctx)
}

func (s *BrowserSession) Close() error {
	s.shutdown()
	return nil
}

func (s *BrowserSession) shutdown() {
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.browserCtx = nil
	s.browserCancel = nil
	s.allocCancel = nil
}
