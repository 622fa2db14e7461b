package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ecoride/carpool/internal/apperr"
	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/store"
)

func slogStatus(s model.HoldStatus) slog.Attr { return slog.String("hold_status", string(s)) }

// Statement is a user's balance with their most recent ledger entries.
type Statement struct {
	UserID  uint64              `json:"user_id"`
	Balance int64               `json:"balance"`
	Entries []model.LedgerEntry `json:"entries"`
}

// StatementOf reads the balance and the last limit entries of a user.
func StatementOf(ctx context.Context, r store.Reader, userID uint64, limit int) (Statement, error) {
	u, err := r.FindUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return Statement{}, apperr.ErrUserNotFound
	}
	if err != nil {
		return Statement{}, err
	}
	entries, err := r.ListLedger(ctx, userID, limit)
	if err != nil {
		return Statement{}, err
	}
	return Statement{UserID: userID, Balance: u.Credits, Entries: entries}, nil
}
