// Package history implements the historical climate data store: a durable
// SQLite cache of daily records keyed by location, backed by the external
// historical-climate provider on cache miss. A cache hit returns instantly;
// a miss triggers one bounded, retried provider fetch. Results are
// deterministic per (location, years) for a fixed retrieval date.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"fairweather/internal/metrics"
	"fairweather/internal/types"
)

// Fetcher abstracts the external historical-climate provider. Implemented
// by providers.HistoryClient; mocked in tests. The second return value is
// the number of days dropped for missing variables.
type Fetcher interface {
	FetchDaily(ctx context.Context, loc types.Location, startYear, endYear int) ([]types.HistoricalRecord, int, error)
}

// Options tunes store behavior.
type Options struct {
	// MaxDroppedRatio is the dropped-record fraction above which a fetch
	// fails entirely rather than silently corrupting label thresholds.
	MaxDroppedRatio float64
}

// Store is the historical data store. It implements types.HistorySource.
type Store struct {
	db      *sql.DB
	fetcher Fetcher
	opts    Options
	clock   types.Clock
	logger  *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS history_records (
	location_key  TEXT NOT NULL,
	date          TEXT NOT NULL,
	temp_mean_c   REAL NOT NULL,
	temp_min_c    REAL NOT NULL,
	temp_max_c    REAL NOT NULL,
	wind_kmh      REAL NOT NULL,
	gust_kmh      REAL NOT NULL,
	precip_mm     REAL NOT NULL,
	humidity_pct  REAL NOT NULL,
	PRIMARY KEY (location_key, date)
);
CREATE TABLE IF NOT EXISTS history_fetches (
	location_key  TEXT PRIMARY KEY,
	years         INTEGER NOT NULL,
	record_count  INTEGER NOT NULL,
	fetched_at    TEXT NOT NULL
);`

// NewStore opens (or creates) the SQLite cache at path and returns a Store.
func NewStore(path string, fetcher Fetcher, opts Options, clock types.Clock, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if opts.MaxDroppedRatio <= 0 {
		opts.MaxDroppedRatio = 0.2
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStorage, "failed to open history cache", err)
	}
	// SQLite allows a single writer; serialize access through one conn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, types.NewAppError(types.ErrCodeInternalStorage, "failed to initialize history cache schema", err)
	}

	return &Store{
		db:      db,
		fetcher: fetcher,
		opts:    opts,
		clock:   clock,
		logger:  logger,
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetHistory returns at least the requested number of years of daily
// records for the location. The cache is consulted first; on a miss (or a
// cache covering fewer years than requested) the provider is fetched with
// bounded retries and the result is cached durably.
//
// Error policy:
//   - provider unreachable and no cache at all: history_unavailable
//   - more than MaxDroppedRatio of the fetched days malformed:
//     history_insufficient_data (nothing is cached)
//   - provider unreachable but a previous cache exists: the cached records
//     are returned, with a warning logged
func (s *Store) GetHistory(ctx context.Context, loc types.Location, years int) ([]types.HistoricalRecord, error) {
	key := loc.Key()

	cachedYears, cachedCount, err := s.fetchMeta(ctx, key)
	if err != nil {
		return nil, err
	}
	if cachedCount > 0 && cachedYears >= years {
		metrics.HistoryCacheHitsTotal.WithLabelValues("hit").Inc()
		return s.loadRecords(ctx, key)
	}
	metrics.HistoryCacheHitsTotal.WithLabelValues("miss").Inc()

	// History ends at the last complete calendar year.
	endYear := s.clock.Now().Year() - 1
	startYear := endYear - years + 1

	records, dropped, fetchErr := s.fetcher.FetchDaily(ctx, loc, startYear, endYear)
	if fetchErr != nil {
		if cachedCount > 0 {
			s.logger.WarnContext(ctx, "history provider unreachable, serving cached records",
				"location_key", key,
				"cached_years", cachedYears,
				"error", fetchErr,
			)
			return s.loadRecords(ctx, key)
		}
		return nil, types.NewAppError(
			types.ErrCodeHistoryUnavailable,
			fmt.Sprintf("historical provider unreachable for %s and no cache exists", key),
			fetchErr,
		)
	}

	total := len(records) + dropped
	if total == 0 {
		return nil, types.NewAppError(
			types.ErrCodeHistoryInsufficient,
			fmt.Sprintf("historical provider returned no usable days for %s", key),
			nil,
		)
	}
	if ratio := float64(dropped) / float64(total); ratio > s.opts.MaxDroppedRatio {
		return nil, types.NewAppError(
			types.ErrCodeHistoryInsufficient,
			fmt.Sprintf("%.0f%% of historical days for %s were malformed", ratio*100, key),
			nil,
		).WithDetails(map[string]any{"dropped": dropped, "total": total})
	}

	if err := s.saveRecords(ctx, key, years, records); err != nil {
		// The fetch succeeded; a cache write failure should not fail the
		// caller. The next request will fetch again.
		s.logger.ErrorContext(ctx, "failed to cache historical records",
			"location_key", key,
			"error", err,
		)
	}

	return records, nil
}

func (s *Store) fetchMeta(ctx context.Context, key string) (years, count int, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT years, record_count FROM history_fetches WHERE location_key = ?`, key)
	switch err := row.Scan(&years, &count); err {
	case nil:
		return years, count, nil
	case sql.ErrNoRows:
		return 0, 0, nil
	default:
		return 0, 0, types.NewAppError(types.ErrCodeInternalStorage, "failed to read history cache metadata", err)
	}
}

func (s *Store) loadRecords(ctx context.Context, key string) ([]types.HistoricalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, temp_mean_c, temp_min_c, temp_max_c, wind_kmh, gust_kmh, precip_mm, humidity_pct
		FROM history_records WHERE location_key = ? ORDER BY date`, key)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStorage, "failed to read cached history", err)
	}
	defer rows.Close()

	var records []types.HistoricalRecord
	for rows.Next() {
		var rec types.HistoricalRecord
		var date string
		if err := rows.Scan(&date, &rec.TempMeanC, &rec.TempMinC, &rec.TempMaxC,
			&rec.WindSpeedKmh, &rec.WindGustKmh, &rec.PrecipMM, &rec.HumidityPct); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalStorage, "failed to scan cached history row", err)
		}
		rec.Date, err = time.Parse("2006-01-02", date)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalStorage, "corrupt date in history cache", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStorage, "failed to iterate cached history", err)
	}
	return records, nil
}

// saveRecords replaces the cached records for a location in one
// transaction so that readers never observe a partial refresh.
func (s *Store) saveRecords(ctx context.Context, key string, years int, records []types.HistoricalRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM history_records WHERE location_key = ?`, key); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO history_records
		(location_key, date, temp_mean_c, temp_min_c, temp_max_c, wind_kmh, gust_kmh, precip_mm, humidity_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, key, rec.Date.Format("2006-01-02"),
			rec.TempMeanC, rec.TempMinC, rec.TempMaxC,
			rec.WindSpeedKmh, rec.WindGustKmh, rec.PrecipMM, rec.HumidityPct); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO history_fetches (location_key, years, record_count, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(location_key) DO UPDATE SET
			years = excluded.years,
			record_count = excluded.record_count,
			fetched_at = excluded.fetched_at`,
		key, years, len(records), s.clock.Now().Format(time.RFC3339)); err != nil {
		return err
	}

	return tx.Commit()
}
