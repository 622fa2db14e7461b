package repository

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/ecoride/carpool/internal/model"
)

// maxErrorLen matches outbox_events.last_error.
const maxErrorLen = 512

// Enqueue writes ev to the outbox inside the caller's transaction, so the
// event exists exactly when the state change that produced it commits.
func (t *txRepo) Enqueue(ctx context.Context, ev *model.Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = t.now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	_, err = t.q.ExecContext(ctx,
		`INSERT INTO outbox_events (id, type, payload, status, attempts, next_attempt_at, created_at)
		 VALUES (?,?,?,?,0,?,?)`,
		ev.ID, ev.Type, payload, model.OutboxPending, ev.OccurredAt, t.now())
	return mapError(err)
}

// DueEvents returns pending events whose next attempt is due, in the
// order they were enqueued.
func (s *Store) DueEvents(ctx context.Context, now time.Time, limit int) ([]model.OutboxRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload, status, attempts, next_attempt_at, last_error FROM outbox_events
		 WHERE status=? AND next_attempt_at <= ? ORDER BY seq LIMIT ?`,
		model.OutboxPending, now.UTC(), limitOr(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OutboxRecord
	for rows.Next() {
		var (
			rec     model.OutboxRecord
			payload []byte
		)
		if err := rows.Scan(&payload, &rec.Status, &rec.Attempts, &rec.NextAttemptAt, &rec.LastError); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &rec.Event); err != nil {
			return nil, fmt.Errorf("decode outbox payload: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) MarkSent(ctx context.Context, eventID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE outbox_events SET status=?, last_error='' WHERE id=?", model.OutboxSent, eventID)
	if err != nil {
		return mapError(err)
	}
	return affected(res)
}

func (s *Store) MarkFailed(ctx context.Context, eventID string, attempts int, next time.Time, lastErr string, parked bool) error {
	status := model.OutboxPending
	if parked {
		status = model.OutboxParked
	}
	lastErr = truncateError(lastErr)
	res, err := s.db.ExecContext(ctx,
		"UPDATE outbox_events SET status=?, attempts=?, next_attempt_at=?, last_error=? WHERE id=?",
		status, attempts, next.UTC(), lastErr, eventID)
	if err != nil {
		return mapError(err)
	}
	return affected(res)
}

// truncateError cuts s to maxErrorLen bytes without splitting a rune.
func truncateError(s string) string {
	if len(s) <= maxErrorLen {
		return s
	}
	cut := maxErrorLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
