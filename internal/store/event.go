package store

import (
	"database/sql"
	"time"
)

// DefaultEventLimit bounds List when no limit is given.
const DefaultEventLimit = 100

// Event is a classified gesture stored in the history.
type Event struct {
	ID         string
	Kind       string
	Code       uint8
	SourceID   string
	OccurredAt time.Time
}

// EventRepository stores gesture history.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create inserts a new event. A zero OccurredAt is set to now.
func (r *EventRepository) Create(e *Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO gesture_events (id, kind, code, source_id, occurred_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Kind, int(e.Code), e.SourceID, e.OccurredAt,
	)
	return err
}

// List returns up to limit events, most recent first. A limit <= 0 uses
// DefaultEventLimit.
func (r *EventRepository) List(limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}

	rows, err := r.db.Query(
		`SELECT id, kind, code, source_id, occurred_at
		 FROM gesture_events ORDER BY occurred_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var code int
		if err := rows.Scan(&e.ID, &e.Kind, &code, &e.SourceID, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Code = uint8(code)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// Count returns the number of stored events.
func (r *EventRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM gesture_events`).Scan(&n)
	return n, err
}
