package migrate

import (
	"context"
	"fmt"
	"time"
)

// HistoryEntry is one recorded version change.
type HistoryEntry struct {
	Version     int64     `db:"version"`
	Description string    `db:"description"`
	AppliedAt   Timestamp `db:"applied_at"`
}

// timestampLayouts are the formats drivers hand back for text timestamps.
// SQLite stores CURRENT_TIMESTAMP as text.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

// Timestamp scans timestamps from drivers that return either time.Time or
// text.
type Timestamp struct {
	time.Time
}

// Scan implements sql.Scanner.
func (t *Timestamp) Scan(value any) error {
	switch v := value.(type) {
	case time.Time:
		t.Time = v
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("failed to scan timestamp from %T", value)
	}
}

func (t *Timestamp) parse(text string) error {
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, text)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("failed to parse timestamp %q", text)
}

// historyDB is the subset of sqlx.DB the history repository needs.
type historyDB interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type historyRepository struct {
	db    historyDB
	query string
}

func newHistoryRepository(db historyDB, query string) *historyRepository {
	return &historyRepository{db: db, query: query}
}

func (r *historyRepository) entries(ctx context.Context) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	err := r.db.SelectContext(ctx, &entries, r.query)
	if err != nil {
		return nil, fmt.Errorf("failed to read version history: %w", err)
	}

	return entries, nil
}
