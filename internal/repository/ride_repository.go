package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/ecoride/carpool/internal/model"
)

const rideColumns = `id, driver_id, vehicle_id, departure_city, arrival_city, departure_at, arrival_at,
	price, seats_offered, seats_available, status, notes, moderation, cancel_reason, created_at, updated_at`

func scanRide(sc scanner) (*model.Ride, error) {
	var (
		r   model.Ride
		mod []byte
	)
	err := sc.Scan(&r.ID, &r.DriverID, &r.VehicleID, &r.DepartureCity, &r.ArrivalCity, &r.DepartureAt, &r.ArrivalAt,
		&r.Price, &r.SeatsOffered, &r.SeatsAvailable, &r.Status, &r.Notes, &mod, &r.CancelReason, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	if len(mod) > 0 {
		if err := json.Unmarshal(mod, &r.Moderation); err != nil {
			return nil, fmt.Errorf("ride %d moderation: %w", r.ID, err)
		}
	}
	return &r, nil
}

func scanRides(ctx context.Context, q querier, query string, args ...any) ([]model.Ride, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// FindRide fetches a ride without locking it.
func (s *Store) FindRide(ctx context.Context, id uint64) (*model.Ride, error) {
	return scanRide(s.db.QueryRowContext(ctx, "SELECT "+rideColumns+" FROM rides WHERE id=?", id))
}

// ListRidesByDriver returns the driver's rides, latest departure first.
func (s *Store) ListRidesByDriver(ctx context.Context, driverID uint64) ([]model.Ride, error) {
	return scanRides(ctx, s.db,
		"SELECT "+rideColumns+" FROM rides WHERE driver_id=? ORDER BY departure_at DESC, id DESC", driverID)
}

// ListRidesByStatus returns up to limit rides in status, oldest first.
func (s *Store) ListRidesByStatus(ctx context.Context, status model.RideStatus, limit int) ([]model.Ride, error) {
	return scanRides(ctx, s.db,
		"SELECT "+rideColumns+" FROM rides WHERE status=? ORDER BY id LIMIT ?", status, limitOr(limit))
}

// DueRides lists rides whose departure (published) or arrival (ongoing)
// is at or before t.
func (s *Store) DueRides(ctx context.Context, status model.RideStatus, t time.Time, limit int) ([]uint64, error) {
	column := "departure_at"
	if status == model.RideOngoing {
		column = "arrival_at"
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM rides WHERE status=? AND "+column+" <= ? ORDER BY id LIMIT ?", status, t.UTC(), limitOr(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *txRepo) GetRide(ctx context.Context, id uint64) (*model.Ride, error) {
	return scanRide(t.q.QueryRowContext(ctx, "SELECT "+rideColumns+" FROM rides WHERE id=? FOR UPDATE", id))
}

func (t *txRepo) CreateRide(ctx context.Context, r *model.Ride) error {
	mod, err := json.Marshal(r.Moderation)
	if err != nil {
		return err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = t.now()
	}
	r.UpdatedAt = r.CreatedAt
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO rides (driver_id, vehicle_id, departure_city, arrival_city, departure_at, arrival_at,
			price, seats_offered, seats_available, status, notes, moderation, cancel_reason, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.DriverID, r.VehicleID, r.DepartureCity, r.ArrivalCity, r.DepartureAt.UTC(), r.ArrivalAt.UTC(),
		r.Price, r.SeatsOffered, r.SeatsAvailable, r.Status, r.Notes, mod, r.CancelReason, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	r.ID, err = lastID(res)
	return err
}

func (t *txRepo) UpdateRide(ctx context.Context, r *model.Ride) error {
	mod, err := json.Marshal(r.Moderation)
	if err != nil {
		return err
	}
	r.UpdatedAt = t.now()
	res, err := t.q.ExecContext(ctx,
		`UPDATE rides SET vehicle_id=?, departure_city=?, arrival_city=?, departure_at=?, arrival_at=?,
			price=?, seats_offered=?, seats_available=?, status=?, notes=?, moderation=?, cancel_reason=?, updated_at=?
		 WHERE id=?`,
		r.VehicleID, r.DepartureCity, r.ArrivalCity, r.DepartureAt.UTC(), r.ArrivalAt.UTC(),
		r.Price, r.SeatsOffered, r.SeatsAvailable, r.Status, r.Notes, mod, r.CancelReason, r.UpdatedAt, r.ID)
	if err != nil {
		return mapError(err)
	}
	return affected(res)
}

const maxLimit = 1000

// limitOr bounds list queries; non-positive means the maximum.
func limitOr(limit int) int {
	if limit <= 0 || limit > maxLimit {
		return maxLimit
	}
	return limit
}
