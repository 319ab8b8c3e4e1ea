package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-profiler/internal/model"
)

type memSink struct {
	rows    []*model.OutputRow
	failAt  int // 1-based append that fails; 0 never fails
	appends int
}

func (s *memSink) Append(row *model.OutputRow) error {
	s.appends++
	if s.failAt > 0 && s.appends == s.failAt {
		return errors.New("disk full")
	}
	s.rows = append(s.rows, row)
	return nil
}

type memRecorder struct {
	runs []*model.Run
	err  error
}

func (r *memRecorder) RecordRun(_ context.Context, run *model.Run) error {
	if r.err != nil {
		return r.err
	}
	r.runs = append(r.runs, run)
	return nil
}

// unreachableCompanies returns companies whose homepages all fail, so no
// model is needed to profile them.
func unreachableCompanies(n int) []model.Company {
	out := make([]model.Company, n)
	for i := range out {
		out[i] = model.Company{Row: i + 2, Name: fmt.Sprintf("Co %d", i), RawURL: fmt.Sprintf("co%d.example", i)}
	}
	return out
}

func newTestBatch(sess *fakeSession, sink Sink, rec RunRecorder, opts BatchOptions) *Batch {
	p := newTestPipeline(testConfig(), &mockInvoker{})
	return NewBatch(p, sess, sink, rec, opts)
}

func TestBatch_WritesRowsInOrderAndSkips(t *testing.T) {
	companies := unreachableCompanies(3)
	companies = append(companies[:1], append([]model.Company{{Row: 10, Name: "No URL", RawURL: "nan"}}, companies[1:]...)...)

	sink := &memSink{}
	rec := &memRecorder{}
	b := newTestBatch(newFakeSession(nil), sink, rec, BatchOptions{BatchID: "batch-1"})

	sum, err := b.Run(context.Background(), companies)
	require.NoError(t, err)

	require.Len(t, sink.rows, 3)
	assert.Equal(t, "Co 0", sink.rows[0].Company.Name)
	assert.Equal(t, "Co 1", sink.rows[1].Company.Name)
	assert.Equal(t, "Co 2", sink.rows[2].Company.Name)
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 3, sum.Degraded)
	assert.Equal(t, "batch-1", sum.BatchID)

	require.Len(t, rec.runs, 3)
	assert.Equal(t, "batch-1", rec.runs[0].BatchID)
	assert.Equal(t, model.RunStatusDegraded, rec.runs[0].Status)
	assert.Same(t, sink.rows[0], rec.runs[0].Result)
}

func TestBatch_RecyclesSession(t *testing.T) {
	sess := newFakeSession(nil)
	b := newTestBatch(sess, &memSink{}, nil, BatchOptions{RecycleEvery: 4})

	sum, err := b.Run(context.Background(), unreachableCompanies(9))
	require.NoError(t, err)
	assert.Equal(t, 9, sum.Processed)
	assert.Equal(t, 2, sess.recycles)
}

func TestBatch_RecycleDisabled(t *testing.T) {
	sess := newFakeSession(nil)
	b := newTestBatch(sess, &memSink{}, nil, BatchOptions{})

	_, err := b.Run(context.Background(), unreachableCompanies(9))
	require.NoError(t, err)
	assert.Zero(t, sess.recycles)
}

func TestBatch_RecycleErrorAborts(t *testing.T) {
	sess := newFakeSession(nil)
	sess.recycleErr = errors.New("chrome crashed")
	sink := &memSink{}
	b := newTestBatch(sess, sink, nil, BatchOptions{RecycleEvery: 2})

	_, err := b.Run(context.Background(), unreachableCompanies(5))
	require.Error(t, err)
	assert.Len(t, sink.rows, 2)
}

func TestBatch_StartRowAndLimit(t *testing.T) {
	sink := &memSink{}
	b := newTestBatch(newFakeSession(nil), sink, nil, BatchOptions{StartRow: 4, Limit: 2})

	sum, err := b.Run(context.Background(), unreachableCompanies(6))
	require.NoError(t, err)
	require.Len(t, sink.rows, 2)
	assert.Equal(t, 4, sink.rows[0].Company.Row)
	assert.Equal(t, 5, sink.rows[1].Company.Row)
	assert.Equal(t, 2, sum.Processed)
}

func TestBatch_SinkErrorAborts(t *testing.T) {
	sink := &memSink{failAt: 2}
	b := newTestBatch(newFakeSession(nil), sink, nil, BatchOptions{})

	sum, err := b.Run(context.Background(), unreachableCompanies(4))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write row 3")
	assert.Len(t, sink.rows, 1)
	assert.Equal(t, 1, sum.Processed)
}

func TestBatch_RecorderErrorIgnored(t *testing.T) {
	sink := &memSink{}
	b := newTestBatch(newFakeSession(nil), sink, &memRecorder{err: errors.New("db down")}, BatchOptions{})

	sum, err := b.Run(context.Background(), unreachableCompanies(3))
	require.NoError(t, err)
	assert.Len(t, sink.rows, 3)
	assert.Equal(t, 3, sum.Processed)
}

func TestBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &memSink{}
	b := newTestBatch(newFakeSession(nil), sink, nil, BatchOptions{})

	_, err := b.Run(ctx, unreachableCompanies(3))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.rows)
}

func TestBatch_CompanyDelay(t *testing.T) {
	var slept []time.Duration
	b := newTestBatch(newFakeSession(nil), &memSink{}, nil, BatchOptions{CompanyDelay: time.Second})
	b.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	_, err := b.Run(context.Background(), unreachableCompanies(3))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, slept)
}

func TestBatch_GeneratesBatchID(t *testing.T) {
	b := newTestBatch(newFakeSession(nil), &memSink{}, nil, BatchOptions{})
	sum, err := b.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, sum.BatchID, 36)
}

func TestSleepCtx(t *testing.T) {
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
