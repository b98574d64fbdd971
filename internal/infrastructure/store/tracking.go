package store

import (
	"context"
	"database/sql"
	"time"
)

// TrackingEvent is one projected conversion event row.
type TrackingEvent struct {
	EventID   string    `json:"event_id"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Currency  string    `json:"currency"`
	SourceURL string    `json:"source_url"`
	TrackedAt time.Time `json:"tracked_at"`
}

// DailyCount is one row of the conversion report: events of one name on one
// day, with their summed value.
type DailyCount struct {
	Day   string  `json:"day"`
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

// TrackingStore is the conversion-stats read table fed by the projector.
type TrackingStore struct {
	db *sql.DB
}

func NewTrackingStore(db *sql.DB) *TrackingStore {
	return &TrackingStore{db: db}
}

// Insert records a projected event. Replays are idempotent: the event ID is
// the primary key and conflicts are ignored.
func (s *TrackingStore) Insert(ctx context.Context, e TrackingEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tracking_events (event_id, name, value, currency, source_url, tracked_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, e.Name, e.Value, e.Currency, e.SourceURL, e.TrackedAt,
	)
	return err
}

// DailyCounts returns per-event-name daily counts and value sums since a
// cutoff, newest day first.
func (s *TrackingStore) DailyCounts(ctx context.Context, since time.Time) ([]DailyCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT to_char(date_trunc('day', tracked_at), 'YYYY-MM-DD') AS day,
		        name, COUNT(*), COALESCE(SUM(value), 0)
		 FROM tracking_events
		 WHERE tracked_at >= $1
		 GROUP BY day, name
		 ORDER BY day DESC, name ASC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []DailyCount
	for rows.Next() {
		var dc DailyCount
		if err := rows.Scan(&dc.Day, &dc.Name, &dc.Count, &dc.Value); err != nil {
			return nil, err
		}
		counts = append(counts, dc)
	}
	return counts, rows.Err()
}
