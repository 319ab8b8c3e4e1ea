// Package pipeline runs the per-company crawl, summarize and classify stages
// and the batch loop that feeds them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-profiler/internal/config"
	"github.com/sells-group/company-profiler/internal/cost"
	"github.com/sells-group/company-profiler/internal/metrics"
	"github.com/sells-group/company-profiler/internal/model"
	"github.com/sells-group/company-profiler/internal/prompt"
	"github.com/sells-group/company-profiler/internal/scrape"
	"github.com/sells-group/company-profiler/pkg/anthropic"
)

// Invoker sends one prompt to a model and reports token usage. Token counts
// are meaningful even when err is non-nil.
type Invoker interface {
	Invoke(ctx context.Context, model, prompt string, history []anthropic.Message) (string, int64, int64, error)
}

var _ Invoker = (*anthropic.Invoker)(nil)

// Models names the model used by each stage.
type Models struct {
	Main           string
	Shortener      string
	Classification string
}

// Pipeline runs companies one at a time. It owns a single CrawlSession that
// is reset around every company, so it must not be shared between
// goroutines.
type Pipeline struct {
	invoker           Invoker
	prompts           *prompt.Builder
	models            Models
	exclude           *scrape.PathMatcher
	crawl             *model.CrawlSession
	schema            model.Schema
	totalPages        int
	linkRetries       int
	maxCandidateLinks int
	maxPageChars      int
}

// New creates a Pipeline from configuration.
func New(cfg *config.Config, inv Invoker, calc *cost.Calculator, tax prompt.Taxonomies) (*Pipeline, error) {
	schema, err := model.ParseSchema(cfg.Pipeline.Schema)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: new")
	}
	if cfg.Pipeline.TotalPages < 1 {
		return nil, eris.Errorf("pipeline: total pages must be >= 1, got %d", cfg.Pipeline.TotalPages)
	}
	return &Pipeline{
		invoker: inv,
		prompts: prompt.New(cfg.Pipeline.TotalPages, tax),
		models: Models{
			Main:           cfg.Anthropic.MainModel,
			Shortener:      cfg.Anthropic.ShortenerModel,
			Classification: cfg.Anthropic.ClassificationModel,
		},
		exclude:           scrape.NewPathMatcher(cfg.Pipeline.ExcludePaths),
		crawl:             model.NewCrawlSession(cost.NewLedger(calc)),
		schema:            schema,
		totalPages:        cfg.Pipeline.TotalPages,
		linkRetries:       max(cfg.Pipeline.LinkRetries, 1),
		maxCandidateLinks: cfg.Pipeline.MaxCandidateLinks,
		maxPageChars:      cfg.Pipeline.MaxPageChars,
	}, nil
}

// Schema returns the output schema rows are built for.
func (p *Pipeline) Schema() model.Schema { return p.schema }

// TotalPages returns K, the number of page slots in every row.
func (p *Pipeline) TotalPages() int { return p.totalPages }

// Run profiles one company using sess for page loads. It returns false only
// when the company has no usable URL and is skipped. Every other outcome,
// including model errors and panics, produces a row.
func (p *Pipeline) Run(ctx context.Context, sess scrape.Session, company model.Company) (row *model.OutputRow, ok bool) {
	homepage, ok := CompanyURL(company)
	if !ok {
		zap.L().Info("pipeline: skipping company without url",
			zap.Int("row", company.Row),
			zap.String("company", company.Name),
		)
		return nil, false
	}

	log := zap.L().With(
		zap.Int("row", company.Row),
		zap.String("company", company.Name),
		zap.String("url", homepage),
	)
	start := time.Now()
	cs := p.crawl

	cs.Reset()
	sess.Reset()
	defer func() {
		cs.Reset()
		sess.Reset()
	}()

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline: recovered panic", zap.Any("panic", r), zap.Stack("stack"))
			row, ok = p.failedRow(company, eris.Errorf("panic: %v", r)), true
		}
		metrics.ObserveCompany(string(row.Status), time.Since(start))
		log.Info("pipeline: company complete",
			zap.String("status", string(row.Status)),
			zap.Float64("cost", row.TotalCost),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()

	cs.HomepageURL = homepage
	log.Info("pipeline: starting company")

	// Homepage
	if err := p.loadPage(ctx, sess, homepage); err != nil {
		log.Warn("pipeline: homepage not accessible", zap.String("stage", "homepage"), zap.Error(err))
		return p.unreachableRow(company), true
	}
	cs.RedirectedURL = sess.RedirectedURL()
	homeText := sess.Text()
	homeLinks := sess.Links()

	// Links
	links, err := p.discoverLinks(ctx, log, homepage, homeLinks)
	if err != nil {
		log.Error("pipeline: link selection failed", zap.String("stage", "links"), zap.Error(err))
		return p.failedRow(company, err), true
	}
	cs.Links = links

	// Pages
	cs.Pages = p.collectPages(ctx, log, sess, links, homeText)

	// Description
	cs.Description = p.synthesize(ctx, log, cs.Pages)

	// Classification
	cls, err := p.classify(ctx, log, cs.Description)
	if err != nil {
		log.Error("pipeline: classification failed", zap.String("stage", "classify"), zap.Error(err))
		return p.failedRow(company, err), true
	}

	status := model.RunStatusComplete
	if model.IsPageError(cs.Description) {
		status = model.RunStatusDegraded
	}
	return p.buildRow(company, cs.Description, cls, status), true
}

// loadPage points sess at target and loads it. A load that succeeds but
// leaves a sentinel as the body text counts as a failure.
func (p *Pipeline) loadPage(ctx context.Context, sess scrape.Session, target string) error {
	if err := sess.SetTarget(target); err != nil {
		metrics.ObservePageLoad(string(scrape.ReasonBadContent))
		return err
	}
	if err := sess.Load(ctx); err != nil {
		metrics.ObservePageLoad(loadResult(err))
		return err
	}
	if text := sess.Text(); model.IsPageError(text) {
		metrics.ObservePageLoad(string(scrape.ReasonBadContent))
		return eris.Errorf("pipeline: %s", text)
	}
	metrics.ObservePageLoad("ok")
	return nil
}

func loadResult(err error) string {
	var pe *scrape.PageError
	if errors.As(err, &pe) {
		return string(pe.Reason)
	}
	return string(scrape.ReasonInternal)
}

// invoke calls the model and charges the ledger, whether or not the call
// succeeded.
func (p *Pipeline) invoke(ctx context.Context, stage, modelName, text string) (string, error) {
	reply, in, out, err := p.invoker.Invoke(ctx, modelName, text, nil)
	c := p.crawl.Ledger.Add(in, out, modelName)
	metrics.ObserveModelCall(stage, modelName, c)
	if err != nil {
		return "", eris.Wrapf(err, "pipeline: %s", stage)
	}
	return reply, nil
}

// synthesize combines the page contents into one description.
func (p *Pipeline) synthesize(ctx context.Context, log *zap.Logger, pages []string) string {
	if model.AllPageErrors(pages) {
		log.Warn("pipeline: no page content to summarize", zap.String("stage", "summarize"))
		return model.PageErrNoPagesAccessible
	}
	desc, err := p.invoke(ctx, "summarize", p.models.Main, p.prompts.Summarize(pages))
	if err != nil {
		log.Warn("pipeline: summary failed", zap.String("stage", "summarize"), zap.Error(err))
		return model.PageErrCombiningFailed
	}
	return desc
}

// buildRow snapshots the crawl session into an output row.
func (p *Pipeline) buildRow(company model.Company, desc string, cls model.Classification, status model.RunStatus) *model.OutputRow {
	cs := p.crawl
	return &model.OutputRow{
		Company:         company,
		HomepageURL:     cs.HomepageURL,
		RedirectedURL:   cs.RedirectedURL,
		AdditionalURLs:  cs.AdditionalURLs(),
		Pages:           model.NormalizePages(cs.Pages, p.totalPages),
		FullDescription: desc,
		Classification:  cls,
		TotalCost:       cs.Ledger.Total(),
		Status:          status,
	}
}

// unreachableRow is the row for a company whose homepage never loaded. No
// model has been called, so the cost is zero.
func (p *Pipeline) unreachableRow(company model.Company) *model.OutputRow {
	pages := make([]string, p.totalPages)
	for i := range pages {
		pages[i] = model.PageErrWebsiteNotAccessible
	}
	p.crawl.Pages = pages
	p.crawl.RedirectedURL = ""
	return p.buildRow(company, model.PageErrWebsiteNotAccessible, model.UncertainClassification(), model.RunStatusDegraded)
}

// failedRow keeps whatever the stages produced before err and fills the
// rest with sentinels.
func (p *Pipeline) failedRow(company model.Company, err error) *model.OutputRow {
	desc := p.crawl.Description
	if desc == "" {
		desc = model.PageErrUnexpected
	}
	row := p.buildRow(company, desc, model.UncertainClassification(), model.RunStatusFailed)
	zap.L().Debug("pipeline: built failure row",
		zap.Int("row", company.Row),
		zap.String("reason", fmt.Sprint(err)),
	)
	return row
}
