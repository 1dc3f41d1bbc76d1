package timetable

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/masjid-network/masjidctl/internal/api"
)

// ErrNotCached means the cache has no usable copy for the request.
var ErrNotCached = errors.New("timetable: month not cached")

const schema = `
CREATE TABLE IF NOT EXISTS months (
	location   TEXT NOT NULL,
	year       INTEGER NOT NULL,
	month      INTEGER NOT NULL,
	days       TEXT NOT NULL,
	fetched_at INTEGER NOT NULL,
	PRIMARY KEY (location, year, month)
);
`

// Cache is a sqlite-backed store of monthly timetables.
type Cache struct {
	db     *sql.DB
	maxAge time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// OpenCache opens (and if needed creates) the cache database at path.
// Entries older than maxAge are treated as absent; zero means keep forever.
func OpenCache(path string, maxAge time.Duration, logger *slog.Logger) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open timetable cache: %w", err)
	}
	// The cache is a single-user local file; one connection avoids
	// SQLITE_BUSY under concurrent CLI invocations sharing a process.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init timetable cache schema: %w", err)
	}
	return &Cache{db: db, maxAge: maxAge, logger: logger, now: time.Now}, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Put stores or replaces one month.
func (c *Cache) Put(ctx context.Context, tt *api.MonthlyTimetable) error {
	days, err := json.Marshal(tt.Days)
	if err != nil {
		return fmt.Errorf("encode timetable days: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO months (location, year, month, days, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (location, year, month) DO UPDATE SET
			days = excluded.days,
			fetched_at = excluded.fetched_at`,
		tt.Location, tt.Year, tt.Month, string(days), c.now().Unix())
	if err != nil {
		return fmt.Errorf("store timetable month: %w", err)
	}
	c.logger.Debug("timetable month cached",
		"location", tt.Location, "year", tt.Year, "month", tt.Month, "days", len(tt.Days))
	return nil
}

// Get returns the cached month, or ErrNotCached when missing or stale.
func (c *Cache) Get(ctx context.Context, location string, year, month int) (*api.MonthlyTimetable, error) {
	var (
		daysJSON  string
		fetchedAt int64
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT days, fetched_at FROM months
		WHERE location = ? AND year = ? AND month = ?`,
		location, year, month).Scan(&daysJSON, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("read timetable cache: %w", err)
	}
	if c.maxAge > 0 && c.now().Sub(time.Unix(fetchedAt, 0)) > c.maxAge {
		return nil, ErrNotCached
	}

	var days []api.PrayerDay
	if err := json.Unmarshal([]byte(daysJSON), &days); err != nil {
		return nil, fmt.Errorf("decode cached timetable: %w", err)
	}
	return &api.MonthlyTimetable{
		Location: location,
		Year:     year,
		Month:    month,
		Days:     days,
	}, nil
}

// Prune removes every entry older than maxAge. A no-op when maxAge is zero.
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	if c.maxAge <= 0 {
		return 0, nil
	}
	cutoff := c.now().Add(-c.maxAge).Unix()
	res, err := c.db.ExecContext(ctx, `DELETE FROM months WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune timetable cache: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		c.logger.Debug("timetable cache pruned", "removed", n)
	}
	return n, nil
}

// Fetch returns the month for a location, preferring the network and falling
// back to the cache when the backend is unreachable. Fresh responses are
// written through.
func Fetch(ctx context.Context, client *api.Client, cache *Cache, location string, year, month int) (*api.MonthlyTimetable, bool, error) {
	tt, err := client.PrayerTimesMonthly(ctx, location, year, month)
	if err == nil {
		if cache != nil {
			if perr := cache.Put(ctx, tt); perr != nil {
				cache.logger.Warn("could not cache timetable", "error", perr)
			}
		}
		return tt, false, nil
	}
	if cache == nil {
		return nil, false, err
	}
	if api.IsAuthRejected(err) {
		// An auth verdict is not a connectivity problem; do not mask it
		// with stale data.
		return nil, false, err
	}
	cached, cerr := cache.Get(ctx, location, year, month)
	if cerr != nil {
		return nil, false, err
	}
	return cached, true, nil
}
