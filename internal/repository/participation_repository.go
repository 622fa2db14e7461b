package repository

import (
	"context"
	"database/sql"

	"github.com/ecoride/carpool/internal/model"
)

const participationColumns = "id, passenger_id, ride_id, status, registered_at, valide_par_passager, avis_depose, cancelled_at"

func scanParticipation(sc scanner) (*model.Participation, error) {
	var (
		p         model.Participation
		cancelled sql.NullTime
	)
	err := sc.Scan(&p.ID, &p.PassengerID, &p.RideID, &p.Status, &p.RegisteredAt,
		&p.ConfirmedByPassenger, &p.ReviewSubmitted, &cancelled)
	if err != nil {
		return nil, mapError(err)
	}
	p.CancelledAt = timePtr(cancelled)
	return &p, nil
}

func scanParticipations(ctx context.Context, q querier, query string, args ...any) ([]model.Participation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []model.Participation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ListParticipationsByPassenger returns every booking of the passenger,
// newest first.
func (s *Store) ListParticipationsByPassenger(ctx context.Context, passengerID uint64) ([]model.Participation, error) {
	return scanParticipations(ctx, s.db,
		"SELECT "+participationColumns+" FROM participations WHERE passenger_id=? ORDER BY id DESC", passengerID)
}

func (t *txRepo) FindParticipation(ctx context.Context, passengerID, rideID uint64, status model.ParticipationStatus) (*model.Participation, error) {
	return scanParticipation(t.q.QueryRowContext(ctx,
		"SELECT "+participationColumns+` FROM participations
		 WHERE passenger_id=? AND ride_id=? AND status=? ORDER BY id DESC LIMIT 1 FOR UPDATE`,
		passengerID, rideID, status))
}

func (t *txRepo) ListParticipations(ctx context.Context, rideID uint64, status model.ParticipationStatus) ([]model.Participation, error) {
	return scanParticipations(ctx, t.q,
		"SELECT "+participationColumns+" FROM participations WHERE ride_id=? AND status=? ORDER BY id FOR UPDATE",
		rideID, status)
}

func (t *txRepo) CreateParticipation(ctx context.Context, p *model.Participation) error {
	if p.RegisteredAt.IsZero() {
		p.RegisteredAt = t.now()
	}
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO participations (passenger_id, ride_id, status, registered_at, valide_par_passager, avis_depose, cancelled_at)
		 VALUES (?,?,?,?,?,?,?)`,
		p.PassengerID, p.RideID, p.Status, p.RegisteredAt, p.ConfirmedByPassenger, p.ReviewSubmitted, nullTime(p.CancelledAt))
	if err != nil {
		return mapError(err)
	}
	p.ID, err = lastID(res)
	return err
}

func (t *txRepo) UpdateParticipation(ctx context.Context, p *model.Participation) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE participations SET status=?, valide_par_passager=?, avis_depose=?, cancelled_at=? WHERE id=?`,
		p.Status, p.ConfirmedByPassenger, p.ReviewSubmitted, nullTime(p.CancelledAt), p.ID)
	if err != nil {
		return mapError(err)
	}
	return affected(res)
}
