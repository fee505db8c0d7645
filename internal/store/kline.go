package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/minleaf/sieve/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS daily_kline (
	code    TEXT NOT NULL,
	date    TEXT NOT NULL,
	open    REAL,
	high    REAL,
	low     REAL,
	close   REAL,
	volume  REAL,
	amount  REAL,
	turn    REAL,
	pct_chg REAL,
	PRIMARY KEY (code, date)
);
CREATE INDEX IF NOT EXISTS idx_kline_date ON daily_kline(date);
CREATE INDEX IF NOT EXISTS idx_kline_code ON daily_kline(code);
`

// upsertBatch is the number of rows written per transaction. Keeps
// statements well under the SQLite variable limit and makes an
// interrupted download resumable at batch granularity.
const upsertBatch = 500

// KlineStore is the local daily-bar cache, one SQLite file holding a
// rolling window of history per stock. The file is what CI caches
// between runs, so interrupted downloads resume instead of restarting.
type KlineStore struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the k-line database at path and ensures the
// schema exists. Parent directories are created as needed.
func Open(path string) (*KlineStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("create db dir: %w", err))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("open db: %w", err))
	}
	// SQLite allows a single writer; one connection serializes access
	// and avoids SQLITE_BUSY from the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("init schema: %w", err))
	}

	return &KlineStore{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *KlineStore) Close() error {
	return s.db.Close()
}

// UpsertBars inserts or replaces daily bars, in batches of one
// transaction each. Returns the number of rows written.
func (s *KlineStore) UpsertBars(ctx context.Context, bars []core.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	total := 0
	for start := 0; start < len(bars); start += upsertBatch {
		end := start + upsertBatch
		if end > len(bars) {
			end = len(bars)
		}
		if err := s.upsertChunk(ctx, bars[start:end]); err != nil {
			return total, core.WrapError(core.ErrStoreFailed, err)
		}
		total += end - start
	}
	return total, nil
}

func (s *KlineStore) upsertChunk(ctx context.Context, bars []core.Bar) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		b    strings.Builder
		args = make([]any, 0, len(bars)*10)
	)
	b.WriteString("INSERT OR REPLACE INTO daily_kline (code, date, open, high, low, close, volume, amount, turn, pct_chg) VALUES ")
	for i, bar := range bars {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, bar.Code, bar.Date,
			toDB(bar.Open), toDB(bar.High), toDB(bar.Low), toDB(bar.Close),
			toDB(bar.Volume), toDB(bar.Amount), toDB(bar.Turnover), toDB(bar.PctChg))
	}

	if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("upsert %d bars: %w", len(bars), err)
	}
	return tx.Commit()
}

// LatestDate returns the most recent date across all stocks, or ""
// when the database is empty.
func (s *KlineStore) LatestDate(ctx context.Context) (string, error) {
	var d sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT MAX(date) FROM daily_kline").Scan(&d)
	if err != nil {
		return "", core.WrapError(core.ErrStoreFailed, fmt.Errorf("latest date: %w", err))
	}
	return d.String, nil
}

// LatestDates returns each stock's most recent stored date.
func (s *KlineStore) LatestDates(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT code, MAX(date) FROM daily_kline GROUP BY code")
	if err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("latest dates: %w", err))
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var code, date string
		if err := rows.Scan(&code, &date); err != nil {
			return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("scan latest date: %w", err))
		}
		out[code] = date
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, err)
	}
	return out, nil
}

// Load returns the most recent days bars for one stock in ascending
// date order. days <= 0 loads the full stored history.
func (s *KlineStore) Load(ctx context.Context, code string, days int) ([]core.Bar, error) {
	query := `SELECT code, date, open, high, low, close, volume, amount, turn, pct_chg
		FROM daily_kline WHERE code = ? ORDER BY date DESC`
	args := []any{code}
	if days > 0 {
		query += " LIMIT ?"
		args = append(args, days)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("load %s: %w", code, err))
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, err)
	}

	// Query is newest-first for the LIMIT; callers want ascending.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// LoadAll returns every stock's bars keyed by code, each slice in
// ascending date order.
func (s *KlineStore) LoadAll(ctx context.Context) (map[string][]core.Bar, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, date, open, high, low, close, volume, amount, turn, pct_chg
		FROM daily_kline ORDER BY code, date`)
	if err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("load all: %w", err))
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, err)
	}

	out := make(map[string][]core.Bar)
	for _, b := range bars {
		out[b.Code] = append(out[b.Code], b)
	}
	return out, nil
}

// Cleanup keeps the most recent keepDays distinct trading dates and
// deletes everything older. Returns the number of deleted rows.
func (s *KlineStore) Cleanup(ctx context.Context, keepDays int) (int64, error) {
	var cutoff sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(date) FROM (
			SELECT DISTINCT date FROM daily_kline ORDER BY date DESC LIMIT ?
		)`, keepDays).Scan(&cutoff)
	if err != nil {
		return 0, core.WrapError(core.ErrStoreFailed, fmt.Errorf("find cutoff: %w", err))
	}
	if !cutoff.Valid {
		return 0, nil
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM daily_kline WHERE date < ?", cutoff.String)
	if err != nil {
		return 0, core.WrapError(core.ErrStoreFailed, fmt.Errorf("delete old rows: %w", err))
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, core.WrapError(core.ErrStoreFailed, err)
	}
	return deleted, nil
}

// Stats summarizes the cache contents.
type Stats struct {
	Path       string
	SizeBytes  int64
	Stocks     int
	Records    int
	LatestDate string
}

// Stats reports cache size and coverage, for startup logging.
func (s *KlineStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Path: s.path}

	if fi, err := os.Stat(s.path); err == nil {
		st.SizeBytes = fi.Size()
	}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT code), COUNT(*) FROM daily_kline").Scan(&st.Stocks, &st.Records)
	if err != nil {
		return Stats{}, core.WrapError(core.ErrStoreFailed, fmt.Errorf("count rows: %w", err))
	}

	latest, err := s.LatestDate(ctx)
	if err != nil {
		return Stats{}, err
	}
	st.LatestDate = latest
	return st, nil
}

// toDB maps NaN to NULL so missing fields (tencent has no turnover)
// round-trip instead of failing the driver.
func toDB(f float64) any {
	if math.IsNaN(f) {
		return nil
	}
	return f
}

func fromDB(f sql.NullFloat64) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}

func scanBars(rows *sql.Rows) ([]core.Bar, error) {
	var bars []core.Bar
	for rows.Next() {
		var b core.Bar
		var open, high, low, clos, vol, amt, tn, pc sql.NullFloat64
		if err := rows.Scan(&b.Code, &b.Date, &open, &high, &low, &clos, &vol, &amt, &tn, &pc); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Open = fromDB(open)
		b.High = fromDB(high)
		b.Low = fromDB(low)
		b.Close = fromDB(clos)
		b.Volume = fromDB(vol)
		b.Amount = fromDB(amt)
		b.Turnover = fromDB(tn)
		b.PctChg = fromDB(pc)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}
