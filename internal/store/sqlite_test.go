package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-profiler/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testRun(batch string, row int, status model.RunStatus) *model.Run {
	return &model.Run{
		BatchID:   batch,
		Company:   model.Company{Row: row, Name: "Acme AI", RawURL: "acme.ai"},
		Status:    status,
		TotalCost: 0.02,
		Result: &model.OutputRow{
			HomepageURL:     "https://acme.ai",
			Pages:           []string{"home"},
			FullDescription: "Acme AI builds vision models.",
			Status:          status,
		},
	}
}

func TestSQLite_RecordAndListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := testRun("b1", 2, model.RunStatusComplete)
	require.NoError(t, st.RecordRun(ctx, first))
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	require.NoError(t, st.RecordRun(ctx, testRun("b1", 3, model.RunStatusDegraded)))
	noResult := testRun("b2", 2, model.RunStatusFailed)
	noResult.Result = nil
	require.NoError(t, st.RecordRun(ctx, noResult))

	runs, err := st.ListRuns(ctx, RunFilter{BatchID: "b1"})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, "b1", r.BatchID)
		require.NotNil(t, r.Result)
		assert.Equal(t, "Acme AI builds vision models.", r.Result.FullDescription)
	}

	degraded, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusDegraded})
	require.NoError(t, err)
	require.Len(t, degraded, 1)
	assert.Equal(t, 3, degraded[0].Company.Row)
	assert.InDelta(t, 0.02, degraded[0].TotalCost, 1e-9)

	all, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	failed, err := st.ListRuns(ctx, RunFilter{BatchID: "b2"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Nil(t, failed[0].Result)
}

func TestSQLite_RecordRun_DuplicateID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	r := testRun("b1", 2, model.RunStatusComplete)
	require.NoError(t, st.RecordRun(ctx, r))
	dup := testRun("b1", 2, model.RunStatusComplete)
	dup.ID = r.ID
	assert.Error(t, st.RecordRun(ctx, dup))
}

func TestSQLite_PageCache(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	miss, err := st.GetCachedPage(ctx, "https://acme.ai")
	require.NoError(t, err)
	assert.Nil(t, miss)

	fetched := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	page := model.CachedPage{
		URL:       "https://acme.ai",
		FinalURL:  "https://www.acme.ai/",
		Text:      "Acme AI",
		Links:     []string{"https://acme.ai/platform"},
		FetchedAt: fetched,
	}
	require.NoError(t, st.SetCachedPage(ctx, page))

	got, err := st.GetCachedPage(ctx, "https://acme.ai")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, page, *got)

	page.Text = "Acme AI v2"
	page.FetchedAt = fetched.Add(time.Hour)
	require.NoError(t, st.SetCachedPage(ctx, page))
	got, err = st.GetCachedPage(ctx, "https://acme.ai")
	require.NoError(t, err)
	assert.Equal(t, "Acme AI v2", got.Text)
}

func TestSQLite_DeleteExpiredPages(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, st.SetCachedPage(ctx, model.CachedPage{URL: "old", FetchedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, st.SetCachedPage(ctx, model.CachedPage{URL: "new", FetchedAt: now}))

	n, err := st.DeleteExpiredPages(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	old, err := st.GetCachedPage(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, old)
	kept, err := st.GetCachedPage(ctx, "new")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, DriverNone, "")
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = Open(ctx, "mysql", "")
	assert.Error(t, err)

	s, err = Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.NoError(t, s.Close())
}
