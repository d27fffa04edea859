package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/DimasIb47/google-trend-notification/pkg/trend"
)

// ClaimResult is the outcome of a dedupe claim. A duplicate is expected
// data in this pipeline, not an error.
type ClaimResult int

const (
	AlreadyExists ClaimResult = iota
	Claimed
)

func (r ClaimResult) String() string {
	if r == Claimed {
		return "claimed"
	}
	return "already-exists"
}

// Event is one accepted trend observation in the append-only log.
type Event struct {
	ID                 int64     `db:"id" json:"id"`
	Region             string    `db:"region" json:"region"`
	Title              string    `db:"title" json:"title"`
	NormalizedTitle    string    `db:"normalized_title" json:"normalized_title"`
	Rank               int       `db:"rank" json:"rank"`
	SearchVolume       string    `db:"search_volume" json:"search_volume"`
	GrowthPercent      string    `db:"growth_percent" json:"growth_percent"`
	StartedTime        string    `db:"started_time" json:"started_time"`
	Status             string    `db:"status" json:"status"`
	Duration           string    `db:"duration" json:"duration"`
	RelatedQueriesJSON string    `db:"related_queries" json:"-"`
	RelatedQueries     []string  `db:"-" json:"related_queries"`
	RawPayload         string    `db:"raw_payload" json:"-"`
	FetchedAt          time.Time `db:"fetched_at" json:"fetched_at"`
}

// Stats aggregates store counters for the health surface.
type Stats struct {
	TotalEvents      int64            `json:"total_events"`
	ActiveDedupeKeys int64            `json:"active_dedupe_keys"`
	EventsByRegion   map[string]int64 `json:"events_by_region"`
}

// Store is the persistence interface.
type Store interface {
	TryClaim(ctx context.Context, region, dateKey, normalizedTitle string) (ClaimResult, error)
	SweepExpired(ctx context.Context) (int64, error)

	AppendEvent(ctx context.Context, rec *trend.Record, rawPayload string, fetchedAt time.Time) (int64, error)
	RecentEvents(ctx context.Context, region string, limit int) ([]Event, error)
	Stats(ctx context.Context) (*Stats, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sqlx.DB
	ttl time.Duration

	// now is swappable so expiry behavior can be tested with a moved clock.
	now func() time.Time
}

// New opens a SQLite database, runs migrations, and sets the dedupe TTL.
func New(path string, ttl time.Duration) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// TryClaim durably records the triple unless a live entry already holds it.
// The unique index makes the insert itself the membership test, so concurrent
// claims for the same triple admit exactly one winner.
func (s *SQLiteStore) TryClaim(ctx context.Context, region, dateKey, normalizedTitle string) (ClaimResult, error) {
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dedupe_keys (region, date_key, normalized_title, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, region, dateKey, normalizedTitle, now, now.Add(s.ttl))
	if err != nil {
		if isUniqueViolation(err) {
			return AlreadyExists, nil
		}
		return AlreadyExists, fmt.Errorf("claim %s/%s/%s: %w", region, dateKey, normalizedTitle, err)
	}
	return Claimed, nil
}

// SweepExpired removes dedupe entries whose TTL has passed and reports how
// many were deleted. Runs concurrently with claims; it only touches rows
// strictly in the past.
func (s *SQLiteStore) SweepExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM dedupe_keys WHERE expires_at < ?", s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep expired dedupe keys: %w", err)
	}
	return res.RowsAffected()
}

// AppendEvent writes one accepted observation to the event log and returns
// its assigned id.
func (s *SQLiteStore) AppendEvent(ctx context.Context, rec *trend.Record, rawPayload string, fetchedAt time.Time) (int64, error) {
	relatedJSON, _ := json.Marshal(rec.RelatedQueries)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trend_events
			(region, title, normalized_title, rank, search_volume, growth_percent,
			 started_time, status, duration, related_queries, raw_payload, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Region, rec.Title, rec.NormalizedTitle, rec.Rank, rec.SearchVolume,
		rec.GrowthPercent, rec.StartedTime, string(rec.Status), rec.Duration,
		string(relatedJSON), rawPayload, fetchedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("append event %s/%s: %w", rec.Region, rec.NormalizedTitle, err)
	}
	return res.LastInsertId()
}

// RecentEvents lists logged events most-recent-first, optionally filtered to
// one region.
func (s *SQLiteStore) RecentEvents(ctx context.Context, region string, limit int) ([]Event, error) {
	query := "SELECT * FROM trend_events WHERE 1=1"
	var args []any

	if region != "" {
		query += " AND region = ?"
		args = append(args, region)
	}

	query += " ORDER BY fetched_at DESC, id DESC"

	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var events []Event
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}

	for i := range events {
		json.Unmarshal([]byte(events[i].RelatedQueriesJSON), &events[i].RelatedQueries)
	}
	return events, nil
}

// Stats reports aggregate counters across both tables.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{EventsByRegion: make(map[string]int64)}

	if err := s.db.GetContext(ctx, &stats.TotalEvents, "SELECT COUNT(*) FROM trend_events"); err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	if err := s.db.GetContext(ctx, &stats.ActiveDedupeKeys,
		"SELECT COUNT(*) FROM dedupe_keys WHERE expires_at > ?", s.now().UTC()); err != nil {
		return nil, fmt.Errorf("count dedupe keys: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, "SELECT region, COUNT(*) AS cnt FROM trend_events GROUP BY region")
	if err != nil {
		return nil, fmt.Errorf("count events by region: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var region string
		var cnt int64
		if err := rows.Scan(&region, &cnt); err != nil {
			return nil, err
		}
		stats.EventsByRegion[region] = cnt
	}
	return stats, rows.Err()
}

// isUniqueViolation reports whether err is a SQLite uniqueness-constraint
// failure, the expected signal for an already-claimed triple.
func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Code() == sqlite3.SQLITE_CONSTRAINT || serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
