package repository

import (
	"context"
	"database/sql"

	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/store"
)

// InsertNotification relies on uq_notifications_event_recipient: a
// redelivered event hits INSERT IGNORE and writes nothing.
func (s *Store) InsertNotification(ctx context.Context, n *model.Notification) (bool, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT IGNORE INTO notifications (recipient_id, ride_id, event_id, kind, message, is_read, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		n.RecipientID, nullID(n.RideID), n.EventID, n.Kind, n.Message, n.Read, n.CreatedAt)
	if err != nil {
		return false, mapError(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}
	n.ID, err = lastID(res)
	return err == nil, err
}

// Feed lists unread notifications first, then newest first.
func (s *Store) Feed(ctx context.Context, recipientID uint64, limit int) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, recipient_id, ride_id, event_id, kind, message, is_read, created_at
		 FROM notifications WHERE recipient_id=?
		 ORDER BY is_read ASC, created_at DESC, id DESC LIMIT ?`, recipientID, limitOr(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var (
			n    model.Notification
			ride sql.NullInt64
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &ride, &n.EventID, &n.Kind, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.RideID = idOf(ride)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead only touches rows owned by recipientID.
func (s *Store) MarkRead(ctx context.Context, recipientID, notificationID uint64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read=TRUE WHERE id=? AND recipient_id=?", notificationID, recipientID)
	if err != nil {
		return mapError(err)
	}
	if err := affected(res); err != nil {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context, recipientID uint64) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read=TRUE WHERE recipient_id=? AND is_read=FALSE", recipientID)
	if err != nil {
		return 0, mapError(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
