// Package metrics exposes Prometheus collectors for profiling batches.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	companiesTotal     *prometheus.CounterVec
	pageLoadsTotal     *prometheus.CounterVec
	modelCallsTotal    *prometheus.CounterVec
	modelCostDollars   *prometheus.CounterVec
	companyDuration    prometheus.Histogram
	linkAttemptsTotal  prometheus.Counter
	browserRecycles    prometheus.Counter
	pageCacheHitsTotal prometheus.Counter

	once sync.Once
)

// Init registers the collectors with the default registry. It is safe to call
// more than once.
func Init() {
	once.Do(func() {
		companiesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profiler_companies_total",
				Help: "Companies processed, labeled by outcome status.",
			},
			[]string{"status"},
		)

		pageLoadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profiler_page_loads_total",
				Help: "Page loads, labeled by result (ok or a failure reason).",
			},
			[]string{"result"},
		)

		modelCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profiler_model_calls_total",
				Help: "Model invocations, labeled by stage and model.",
			},
			[]string{"stage", "model"},
		)

		modelCostDollars = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profiler_model_cost_dollars_total",
				Help: "Token cost in USD, labeled by model.",
			},
			[]string{"model"},
		)

		companyDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "profiler_company_duration_seconds",
				Help:    "Wall time spent on one company.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
			},
		)

		linkAttemptsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "profiler_link_selection_attempts_total",
				Help: "Link-selection prompts issued, including retries.",
			},
		)

		browserRecycles = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "profiler_session_recycles_total",
				Help: "Fetcher session teardowns and restarts.",
			},
		)

		pageCacheHitsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "profiler_page_cache_hits_total",
				Help: "Page loads served from the page cache.",
			},
		)
	})
}

// ObserveCompany records one finished company.
func ObserveCompany(status string, d time.Duration) {
	Init()
	companiesTotal.WithLabelValues(status).Inc()
	companyDuration.Observe(d.Seconds())
}

// ObservePageLoad records a page load result: "ok" or a failure reason.
func ObservePageLoad(result string) {
	Init()
	pageLoadsTotal.WithLabelValues(result).Inc()
}

// ObserveModelCall records one model call and its cost.
func ObserveModelCall(stage, model string, dollars float64) {
	Init()
	modelCallsTotal.WithLabelValues(stage, model).Inc()
	if dollars > 0 {
		modelCostDollars.WithLabelValues(model).Add(dollars)
	}
}

// ObserveLinkAttempt counts one link-selection prompt.
func ObserveLinkAttempt() {
	Init()
	linkAttemptsTotal.Inc()
}

// ObserveRecycle counts one session recycle.
func ObserveRecycle() {
	Init()
	browserRecycles.Inc()
}

// ObserveCacheHit counts one page served from cache.
func ObserveCacheHit() {
	Init()
	pageCacheHitsTotal.Inc()
}

// Router returns the metrics HTTP routes: /metrics and /healthz.
func Router() http.Handler {
	Init()
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Serve runs the metrics server on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("metrics: listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if eris.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "metrics: listen")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return eris.Wrap(srv.Shutdown(shutdownCtx), "metrics: shutdown")
	}
}
