package repository

import (
	"context"
	"database/sql"

	"github.com/ecoride/carpool/internal/model"
)

const holdColumns = "id, user_id, ride_id, participation_id, amount, status, created_at, settled_at"

func scanHold(sc scanner) (*model.CreditHold, error) {
	var (
		h       model.CreditHold
		settled sql.NullTime
	)
	err := sc.Scan(&h.ID, &h.UserID, &h.RideID, &h.ParticipationID, &h.Amount, &h.Status, &h.CreatedAt, &settled)
	if err != nil {
		return nil, mapError(err)
	}
	h.SettledAt = timePtr(settled)
	return &h, nil
}

func (t *txRepo) CreateHold(ctx context.Context, h *model.CreditHold) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = t.now()
	}
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO credit_holds (user_id, ride_id, participation_id, amount, status, created_at, settled_at)
		 VALUES (?,?,?,?,?,?,?)`,
		h.UserID, h.RideID, h.ParticipationID, h.Amount, h.Status, h.CreatedAt, nullTime(h.SettledAt))
	if err != nil {
		return mapError(err)
	}
	h.ID, err = lastID(res)
	return err
}

func (t *txRepo) GetHold(ctx context.Context, id uint64) (*model.CreditHold, error) {
	return scanHold(t.q.QueryRowContext(ctx,
		"SELECT "+holdColumns+" FROM credit_holds WHERE id=? FOR UPDATE", id))
}

func (t *txRepo) GetHoldByParticipation(ctx context.Context, participationID uint64) (*model.CreditHold, error) {
	return scanHold(t.q.QueryRowContext(ctx,
		"SELECT "+holdColumns+" FROM credit_holds WHERE participation_id=? FOR UPDATE", participationID))
}

func (t *txRepo) UpdateHold(ctx context.Context, h *model.CreditHold) error {
	res, err := t.q.ExecContext(ctx,
		"UPDATE credit_holds SET status=?, settled_at=? WHERE id=?", h.Status, nullTime(h.SettledAt), h.ID)
	if err != nil {
		return mapError(err)
	}
	return affected(res)
}

func (t *txRepo) AppendLedger(ctx context.Context, e *model.LedgerEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = t.now()
	}
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO ledger_entries (user_id, hold_id, kind, amount, balance_after, note, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		e.UserID, nullID(e.HoldID), e.Kind, e.Amount, e.BalanceAfter, e.Note, e.CreatedAt)
	if err != nil {
		return mapError(err)
	}
	e.ID, err = lastID(res)
	return err
}

// ListLedger returns the user's most recent entries first.
func (s *Store) ListLedger(ctx context.Context, userID uint64, limit int) ([]model.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, hold_id, kind, amount, balance_after, note, created_at
		 FROM ledger_entries WHERE user_id=? ORDER BY id DESC LIMIT ?`, userID, limitOr(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LedgerEntry
	for rows.Next() {
		var (
			e    model.LedgerEntry
			hold sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &hold, &e.Kind, &e.Amount, &e.BalanceAfter, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.HoldID = idOf(hold)
		out = append(out, e)
	}
	return out, rows.Err()
}
