package metrics

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Idempotent(t *testing.T) {
	Init()
	first := companiesTotal
	Init()
	assert.Same(t, first, companiesTotal)
}

func TestObserveCompany(t *testing.T) {
	before := testutil.ToFloat64(companiesTotalFor("degraded"))
	ObserveCompany("degraded", 2*time.Second)
	assert.InDelta(t, before+1, testutil.ToFloat64(companiesTotalFor("degraded")), 1e-9)
}

func TestObserveModelCall(t *testing.T) {
	Init()
	calls := modelCallsTotal.WithLabelValues("summarize", "claude-test")
	cost := modelCostDollars.WithLabelValues("claude-test")
	c0, d0 := testutil.ToFloat64(calls), testutil.ToFloat64(cost)

	ObserveModelCall("summarize", "claude-test", 0.25)
	ObserveModelCall("summarize", "claude-test", 0)

	assert.InDelta(t, c0+2, testutil.ToFloat64(calls), 1e-9)
	assert.InDelta(t, d0+0.25, testutil.ToFloat64(cost), 1e-9)
}

func TestCounters(t *testing.T) {
	Init()
	p0 := testutil.ToFloat64(pageLoadsTotal.WithLabelValues("timeout"))
	l0 := testutil.ToFloat64(linkAttemptsTotal)
	r0 := testutil.ToFloat64(browserRecycles)
	h0 := testutil.ToFloat64(pageCacheHitsTotal)

	ObservePageLoad("timeout")
	ObserveLinkAttempt()
	ObserveRecycle()
	ObserveCacheHit()

	assert.InDelta(t, p0+1, testutil.ToFloat64(pageLoadsTotal.WithLabelValues("timeout")), 1e-9)
	assert.InDelta(t, l0+1, testutil.ToFloat64(linkAttemptsTotal), 1e-9)
	assert.InDelta(t, r0+1, testutil.ToFloat64(browserRecycles), 1e-9)
	assert.InDelta(t, h0+1, testutil.ToFloat64(pageCacheHitsTotal), 1e-9)
}

func TestRouter(t *testing.T) {
	ObservePageLoad("ok")
	srv := httptest.NewServer(Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func companiesTotalFor(status string) prometheus.Counter {
	Init()
	return companiesTotal.WithLabelValues(status)
}
