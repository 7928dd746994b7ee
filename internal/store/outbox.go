package store

import (
	"context"
	"fmt"

	"github.com/edtacey/jsonmapper/internal/event"
)

// Publish implements event.Publisher by appending ev to the outbox.
// Publishing an id twice is a no-op.
func (s *Store) Publish(ctx context.Context, ev event.CloudEvent) error {
	payload, err := marshalEvent(ev)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO events (id, type, subject, payload) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`), ev.ID, ev.Type, ev.Subject, payload)
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.ID, err)
	}
	return nil
}

// OutboxEvent is an outbox row.
type OutboxEvent struct {
	Seq   int64
	Event event.CloudEvent
}

// PendingEvents returns up to limit unpublished events in seq order.
func (s *Store) PendingEvents(ctx context.Context, limit int) ([]OutboxEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT seq, payload FROM events
		WHERE published = 0
		ORDER BY seq ASC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("pending events: %w", err)
	}
	defer rows.Close()

	var out []OutboxEvent
	for rows.Next() {
		var (
			seq     int64
			payload string
		)
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev, err := unmarshalEvent(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, OutboxEvent{Seq: seq, Event: ev})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// MarkPublished flags the event at seq as delivered.
func (s *Store) MarkPublished(ctx context.Context, seq int64) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE events SET published = 1 WHERE seq = ?`), seq)
	if err != nil {
		return fmt.Errorf("mark published %d: %w", seq, err)
	}
	return nil
}

// Relay delivers up to limit pending events to pub in seq order, marking
// each one published after pub accepts it. It stops at the first delivery
// failure and returns the number delivered.
func (s *Store) Relay(ctx context.Context, pub event.Publisher, limit int) (int, error) {
	pending, err := s.PendingEvents(ctx, limit)
	if err != nil {
		return 0, err
	}
	for i, ob := range pending {
		if err := pub.Publish(ctx, ob.Event); err != nil {
			return i, fmt.Errorf("relay event %s: %w", ob.Event.ID, err)
		}
		if err := s.MarkPublished(ctx, ob.Seq); err != nil {
			return i, err
		}
	}
	return len(pending), nil
}
