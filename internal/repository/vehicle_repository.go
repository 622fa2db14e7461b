package repository

import (
	"context"

	"github.com/ecoride/carpool/internal/model"
)

const vehicleColumns = "id, owner_id, brand, model, plate, seats, created_at"

func scanVehicle(sc scanner) (*model.Vehicle, error) {
	var v model.Vehicle
	if err := sc.Scan(&v.ID, &v.OwnerID, &v.Brand, &v.Model, &v.Plate, &v.Seats, &v.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &v, nil
}

// ListVehiclesByOwner returns the owner's vehicles in creation order.
func (s *Store) ListVehiclesByOwner(ctx context.Context, ownerID uint64) ([]model.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+vehicleColumns+" FROM vehicles WHERE owner_id=? ORDER BY id", ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (t *txRepo) GetVehicle(ctx context.Context, id uint64) (*model.Vehicle, error) {
	return scanVehicle(t.q.QueryRowContext(ctx,
		"SELECT "+vehicleColumns+" FROM vehicles WHERE id=? FOR UPDATE", id))
}

func (t *txRepo) CreateVehicle(ctx context.Context, v *model.Vehicle) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = t.now()
	}
	res, err := t.q.ExecContext(ctx,
		"INSERT INTO vehicles (owner_id, brand, model, plate, seats, created_at) VALUES (?,?,?,?,?,?)",
		v.OwnerID, v.Brand, v.Model, v.Plate, v.Seats, v.CreatedAt)
	if err != nil {
		return mapError(err)
	}
	v.ID, err = lastID(res)
	return err
}

func (t *txRepo) UpdateVehicleSeats(ctx context.Context, id uint64, seats int) error {
	res, err := t.q.ExecContext(ctx, "UPDATE vehicles SET seats=? WHERE id=?", seats, id)
	if err != nil {
		return mapError(err)
	}
	return affected(res)
}

func (t *txRepo) CountNonDraftRides(ctx context.Context, vehicleID uint64) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM rides WHERE vehicle_id=? AND status<>?", vehicleID, model.RideDraft).Scan(&n)
	return n, mapError(err)
}
