package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/company-profiler/internal/config"
	"github.com/sells-group/company-profiler/internal/cost"
	"github.com/sells-group/company-profiler/internal/metrics"
	"github.com/sells-group/company-profiler/internal/model"
	"github.com/sells-group/company-profiler/internal/pipeline"
	"github.com/sells-group/company-profiler/internal/prompt"
	"github.com/sells-group/company-profiler/internal/scrape"
	"github.com/sells-group/company-profiler/internal/sheet"
	"github.com/sells-group/company-profiler/internal/store"
	"github.com/sells-group/company-profiler/pkg/anthropic"
)

// profileOptions are the per-invocation settings of the profile command.
type profileOptions struct {
	Input       string
	Output      string
	Sheet       string
	Schema      string
	StartRow    int
	Limit       int
	Offline     bool
	NoBrowser   bool
	MetricsAddr string
}

var profileOpts profileOptions

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Profile every company in an input workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts := profileOpts
		if !cmd.Flags().Changed("schema") {
			opts.Schema = cfg.Pipeline.Schema
		}
		if !cmd.Flags().Changed("sheet") {
			opts.Sheet = cfg.Input.Sheet
		}
		if !cmd.Flags().Changed("metrics-addr") {
			opts.MetricsAddr = cfg.Metrics.Addr
		}
		return runProfile(ctx, cfg, opts, os.Stdout)
	},
}

func init() {
	f := profileCmd.Flags()
	f.StringVar(&profileOpts.Input, "input", "", "input workbook (.xlsx)")
	f.StringVar(&profileOpts.Output, "output", "", "output workbook (.xlsx), appended to if it exists")
	f.StringVar(&profileOpts.Sheet, "sheet", "", "input sheet name (default: first sheet)")
	f.StringVar(&profileOpts.Schema, "schema", "full", "output schema: full or reduced")
	f.IntVar(&profileOpts.StartRow, "start-row", 0, "first input row to process")
	f.IntVar(&profileOpts.Limit, "limit", 0, "max number of rows to process (0 = all)")
	f.BoolVar(&profileOpts.Offline, "offline", false, "use canned pages and model replies")
	f.BoolVar(&profileOpts.NoBrowser, "no-browser", false, "fetch pages over plain HTTP instead of headless Chrome")
	f.StringVar(&profileOpts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	_ = profileCmd.MarkFlagRequired("input")
	_ = profileCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(profileCmd)
}

// runProfile wires config into a Batch and runs it, alongside the metrics
// server when one is configured.
func runProfile(ctx context.Context, cfg *config.Config, opts profileOptions, out io.Writer) error {
	runCfg := *cfg
	runCfg.Pipeline.Schema = opts.Schema
	schema, err := model.ParseSchema(opts.Schema)
	if err != nil {
		return err
	}

	readOpts := sheet.ReadOptions{
		SheetName:         opts.Sheet,
		HeaderRows:        cfg.Input.HeaderRows,
		NameColumn:        cfg.Input.NameColumn,
		URLColumn:         cfg.Input.URLColumn,
		EmailColumn:       cfg.Input.EmailColumn,
		DescriptionColumn: cfg.Input.DescriptionColumn,
	}
	companies, err := sheet.ReadCompanies(opts.Input, readOpts)
	if err != nil {
		return eris.Wrap(err, "profile: read input")
	}
	zap.L().Info("profile: loaded companies", zap.Int("count", len(companies)), zap.String("input", opts.Input))

	sink, err := sheet.NewXLSXSink(opts.Output, cfg.Output.Sheet, schema, cfg.Pipeline.TotalPages,
		sheet.WithBlankPadding(cfg.Pipeline.BlankPadding))
	if err != nil {
		return eris.Wrap(err, "profile: open output")
	}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return eris.Wrap(err, "profile: open store")
	}
	if st != nil {
		defer st.Close() //nolint:errcheck
	}

	tax := prompt.DefaultTaxonomies()
	if cfg.Pipeline.TaxonomyFile != "" {
		if tax, err = prompt.LoadTaxonomies(cfg.Pipeline.TaxonomyFile); err != nil {
			return err
		}
	}

	inv, err := newInvoker(cfg, opts.Offline)
	if err != nil {
		return err
	}
	calc := cost.NewCalculator(cost.Merge(cost.DefaultRates(), cfg.Pricing))

	p, err := pipeline.New(&runCfg, inv, calc, tax)
	if err != nil {
		return err
	}

	sess, err := newSession(ctx, cfg, opts, st)
	if err != nil {
		return err
	}
	defer sess.Close() //nolint:errcheck

	var rec pipeline.RunRecorder
	if st != nil {
		rec = st
	}
	batchOpts := pipeline.BatchOptions{
		StartRow:     opts.StartRow,
		Limit:        opts.Limit,
		RecycleEvery: cfg.Pipeline.RecycleEvery,
		CompanyDelay: cfg.Pipeline.CompanyDelay(),
	}
	if opts.Offline {
		batchOpts.CompanyDelay = 0
	}
	batch := pipeline.NewBatch(p, sess, sink, rec, batchOpts)

	var sum *pipeline.BatchSummary
	g, gctx := errgroup.WithContext(ctx)
	metricsCtx, stopMetrics := context.WithCancel(gctx)
	defer stopMetrics()

	if opts.MetricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(metricsCtx, opts.MetricsAddr)
		})
	}
	g.Go(func() error {
		defer stopMetrics()
		var runErr error
		sum, runErr = batch.Run(gctx, companies)
		return runErr
	})

	err = g.Wait()
	if sum != nil {
		printSummary(out, sum, sink.Written(), opts.Output)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			zap.L().Warn("profile: interrupted, rows written so far are saved")
			return nil
		}
		return err
	}
	return nil
}

func newInvoker(cfg *config.Config, offline bool) (pipeline.Invoker, error) {
	if offline {
		zap.L().Info("profile: offline mode, using stub model replies")
		return &pipeline.StubInvoker{}, nil
	}
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("profile: anthropic.key is required (set PROFILER_ANTHROPIC_KEY)")
	}
	return anthropic.NewInvoker(
		anthropic.NewClient(cfg.Anthropic.Key),
		anthropic.WithMaxRetries(cfg.Anthropic.MaxRetries),
		anthropic.WithMaxTokens(cfg.Anthropic.MaxTokens),
		anthropic.WithRateLimit(cfg.Anthropic.RequestsPerSecond),
	), nil
}

// newSession picks the page fetcher. Real fetchers are wrapped with the page
// cache when a store is configured.
func newSession(ctx context.Context, cfg *config.Config, opts profileOptions, st store.Store) (scrape.Session, error) {
	if opts.Offline {
		return &pipeline.StubSession{}, nil
	}

	timeout := time.Duration(cfg.Browser.NavigationTimeoutSecs) * time.Second
	var sess scrape.Session
	if opts.NoBrowser {
		sess = scrape.NewHTTPSession(scrape.HTTPConfig{
			Timeout:   timeout,
			UserAgent: cfg.Browser.UserAgent,
		})
	} else {
		bs, err := scrape.NewBrowserSession(ctx, scrape.BrowserConfig{
			Headless:          cfg.Browser.Headless,
			NavigationTimeout: timeout,
			UserAgent:         cfg.Browser.UserAgent,
			Settle:            time.Duration(cfg.Browser.SettleMS) * time.Millisecond,
		})
		if err != nil {
			return nil, eris.Wrap(err, "profile: start browser")
		}
		sess = bs
	}

	if st != nil && cfg.Store.CacheTTLHours > 0 {
		sess = scrape.NewCachingSession(sess, st, cfg.Store.CacheTTL())
	}
	return sess, nil
}

func printSummary(out io.Writer, sum *pipeline.BatchSummary, written int, output string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Batch:\t%s\n", sum.BatchID)
	_, _ = fmt.Fprintf(w, "Rows written:\t%d (%s)\n", written, output)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", sum.Complete)
	_, _ = fmt.Fprintf(w, "Degraded:\t%d\n", sum.Degraded)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", sum.Failed)
	_, _ = fmt.Fprintf(w, "Skipped:\t%d\n", sum.Skipped)
	_, _ = fmt.Fprintf(w, "Total cost:\t$%.4f\n", sum.TotalCost)
	_ = w.Flush()
}
