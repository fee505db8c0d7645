package store_test

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minleaf/sieve/internal/core"
	"github.com/minleaf/sieve/internal/store"
)

func openStore(t *testing.T) *store.KlineStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "kline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func bar(code, date string, close float64) core.Bar {
	return core.Bar{
		Code:     code,
		Date:     date,
		Open:     close - 0.1,
		High:     close + 0.2,
		Low:      close - 0.2,
		Close:    close,
		Volume:   1000,
		Amount:   close * 1000,
		Turnover: 5.5,
		PctChg:   1.0,
	}
}

func TestOpen_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "kline.db")

	s, err := store.Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.FileExists(t, path)
}

func TestUpsertBars_RoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	in := []core.Bar{
		bar("600001", "2024-01-02", 10.0),
		bar("600001", "2024-01-03", 10.5),
		bar("000001", "2024-01-02", 8.0),
	}
	n, err := s.UpsertBars(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := s.Load(ctx, "600001", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "2024-01-02", got[0].Date, "bars should come back date-ascending")
	assert.Equal(t, "2024-01-03", got[1].Date)
	assert.Equal(t, 10.5, got[1].Close)
	assert.Equal(t, 5.5, got[1].Turnover)
}

func TestUpsertBars_NaNRoundTrips(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	b := bar("600001", "2024-01-02", 10.0)
	b.Turnover = math.NaN()
	b.PctChg = math.NaN()

	_, err := s.UpsertBars(ctx, []core.Bar{b})
	require.NoError(t, err)

	got, err := s.Load(ctx, "600001", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.True(t, math.IsNaN(got[0].Turnover), "NULL turnover should read back as NaN")
	assert.True(t, math.IsNaN(got[0].PctChg), "NULL pct_chg should read back as NaN")
	assert.Equal(t, 10.0, got[0].Close)
}

func TestUpsertBars_ReplacesExisting(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.UpsertBars(ctx, []core.Bar{bar("600001", "2024-01-02", 10.0)})
	require.NoError(t, err)
	_, err = s.UpsertBars(ctx, []core.Bar{bar("600001", "2024-01-02", 11.0)})
	require.NoError(t, err)

	got, err := s.Load(ctx, "600001", 0)
	require.NoError(t, err)
	require.Len(t, got, 1, "same code+date should replace, not duplicate")
	assert.Equal(t, 11.0, got[0].Close)
}

func TestUpsertBars_Empty(t *testing.T) {
	s := openStore(t)

	n, err := s.UpsertBars(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestUpsertBars_SpansBatches(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]core.Bar, 1200)
	for i := range bars {
		bars[i] = bar("600001", base.AddDate(0, 0, i).Format("2006-01-02"), 10.0)
	}

	n, err := s.UpsertBars(ctx, bars)
	require.NoError(t, err)
	assert.Equal(t, 1200, n)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1200, st.Records)
}

func TestLatestDates(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.UpsertBars(ctx, []core.Bar{
		bar("600001", "2024-01-02", 10.0),
		bar("600001", "2024-01-03", 10.5),
		bar("000001", "2024-01-02", 8.0),
	})
	require.NoError(t, err)

	latest, err := s.LatestDates(ctx)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"600001": "2024-01-03",
		"000001": "2024-01-02",
	}, latest)

	overall, err := s.LatestDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-03", overall)
}

func TestLatestDate_Empty(t *testing.T) {
	s := openStore(t)

	d, err := s.LatestDate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", d)
}

func TestLoad_Limit(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.UpsertBars(ctx, []core.Bar{
		bar("600001", "2024-01-02", 10.0),
		bar("600001", "2024-01-03", 10.1),
		bar("600001", "2024-01-04", 10.2),
		bar("600001", "2024-01-05", 10.3),
	})
	require.NoError(t, err)

	got, err := s.Load(ctx, "600001", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "2024-01-04", got[0].Date, "limit should keep the most recent days")
	assert.Equal(t, "2024-01-05", got[1].Date)
}

func TestLoad_UnknownCode(t *testing.T) {
	s := openStore(t)

	got, err := s.Load(context.Background(), "999999", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadAll_GroupsByCode(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.UpsertBars(ctx, []core.Bar{
		bar("600001", "2024-01-03", 10.5),
		bar("600001", "2024-01-02", 10.0),
		bar("000001", "2024-01-02", 8.0),
	})
	require.NoError(t, err)

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.Len(t, all["600001"], 2)
	assert.Equal(t, "2024-01-02", all["600001"][0].Date)
	assert.Equal(t, "2024-01-03", all["600001"][1].Date)
	require.Len(t, all["000001"], 1)
}

func TestCleanup(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.UpsertBars(ctx, []core.Bar{
		bar("600001", "2024-01-02", 10.0),
		bar("600001", "2024-01-03", 10.1),
		bar("600001", "2024-01-04", 10.2),
		bar("000001", "2024-01-02", 8.0),
		bar("000001", "2024-01-04", 8.2),
	})
	require.NoError(t, err)

	deleted, err := s.Cleanup(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted, "both 2024-01-02 rows fall outside the window")

	got, err := s.Load(ctx, "600001", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01-03", got[0].Date)
}

func TestCleanup_KeepsEverythingWithinWindow(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.UpsertBars(ctx, []core.Bar{
		bar("600001", "2024-01-02", 10.0),
		bar("600001", "2024-01-03", 10.1),
	})
	require.NoError(t, err)

	deleted, err := s.Cleanup(ctx, 250)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestCleanup_EmptyStore(t *testing.T) {
	s := openStore(t)

	deleted, err := s.Cleanup(context.Background(), 250)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestStats(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.UpsertBars(ctx, []core.Bar{
		bar("600001", "2024-01-02", 10.0),
		bar("600001", "2024-01-03", 10.5),
		bar("000001", "2024-01-02", 8.0),
	})
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, st.Stocks)
	assert.Equal(t, 3, st.Records)
	assert.Equal(t, "2024-01-03", st.LatestDate)
	assert.Greater(t, st.SizeBytes, int64(0))
}
