package notify

import (
	"context"
	"errors"

	"github.com/ecoride/carpool/internal/apperr"
	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/store"
)

const (
	defaultFeedSize = 50
	maxFeedSize     = 200
)

// Feed is the per-user notification inbox.
type Feed struct {
	store store.NotificationStore
}

func NewFeed(s store.NotificationStore) *Feed { return &Feed{store: s} }

// List returns unread notifications first, then the newest.
func (f *Feed) List(ctx context.Context, userID uint64, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = defaultFeedSize
	}
	if limit > maxFeedSize {
		limit = maxFeedSize
	}
	return f.store.Feed(ctx, userID, limit)
}

// MarkRead flags one notification of the user as read.
func (f *Feed) MarkRead(ctx context.Context, userID, notificationID uint64) error {
	err := f.store.MarkRead(ctx, userID, notificationID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrNotificationNotFound
	}
	return err
}

// MarkAllRead flags every notification of the user as read.
func (f *Feed) MarkAllRead(ctx context.Context, userID uint64) (int, error) {
	return f.store.MarkAllRead(ctx, userID)
}
