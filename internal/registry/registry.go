// Package registry keeps drivers' vehicles and answers whether a vehicle
// can carry the seats a ride offers.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ecoride/carpool/internal/apperr"
	"github.com/ecoride/carpool/internal/logging"
	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/store"
)

type Registry struct {
	store    store.Store
	attempts int
}

// New returns a registry running its units with at most attempts tries.
func New(s store.Store, attempts int) *Registry {
	return &Registry{store: s, attempts: attempts}
}

// VehicleInput describes a vehicle to register.
type VehicleInput struct {
	Brand string
	Model string
	Plate string
	Seats int
}

// RegisterVehicle stores a vehicle for owner and grants them the driver role.
func (r *Registry) RegisterVehicle(ctx context.Context, ownerID uint64, in VehicleInput) (*model.Vehicle, error) {
	if in.Seats <= 0 {
		return nil, apperr.ErrInvalidSeatCount
	}
	if strings.TrimSpace(in.Brand) == "" || strings.TrimSpace(in.Plate) == "" {
		return nil, apperr.Validation("brand and plate are required")
	}
	var v *model.Vehicle
	err := store.Run(ctx, r.store, r.attempts, func(ctx context.Context, tx store.Tx) error {
		owner, err := tx.GetUser(ctx, ownerID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		if !owner.CanTravel() {
			return apperr.ErrUserNotAllowed
		}
		v = &model.Vehicle{
			OwnerID: ownerID,
			Brand:   strings.TrimSpace(in.Brand),
			Model:   strings.TrimSpace(in.Model),
			Plate:   strings.ToUpper(strings.TrimSpace(in.Plate)),
			Seats:   in.Seats,
		}
		if err := tx.CreateVehicle(ctx, v); err != nil {
			return fmt.Errorf("create vehicle: %w", err)
		}
		if !owner.Roles.Has(model.RoleDriver) {
			return tx.UpdateUserRoles(ctx, ownerID, owner.Roles.Add(model.RoleDriver))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.Info(ctx, "vehicle registered", logging.Component("registry"), logging.UserID(ownerID))
	return v, nil
}

// UpdateSeats changes a vehicle's seat count. The count is frozen once a
// ride past the draft stage references the vehicle.
func (r *Registry) UpdateSeats(ctx context.Context, ownerID, vehicleID uint64, seats int) error {
	if seats <= 0 {
		return apperr.ErrInvalidSeatCount
	}
	return store.Run(ctx, r.store, r.attempts, func(ctx context.Context, tx store.Tx) error {
		v, err := ownedVehicle(ctx, tx, ownerID, vehicleID)
		if err != nil {
			return err
		}
		n, err := tx.CountNonDraftRides(ctx, v.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.ErrVehicleLocked
		}
		return tx.UpdateVehicleSeats(ctx, v.ID, seats)
	})
}

// ValidateSeats checks, inside the caller's unit, that the vehicle
// belongs to driverID and can carry seats passengers.
func ValidateSeats(ctx context.Context, tx store.VehicleTx, driverID, vehicleID uint64, seats int) error {
	if seats <= 0 {
		return apperr.ErrInvalidSeatCount
	}
	v, err := ownedVehicle(ctx, tx, driverID, vehicleID)
	if err != nil {
		return err
	}
	if v.Seats < seats {
		return fmt.Errorf("%w: vehicle %d has %d seats, %d offered", apperr.ErrVehicleTooSmall, v.ID, v.Seats, seats)
	}
	return nil
}

// Vehicles lists the vehicles of an owner.
func (r *Registry) Vehicles(ctx context.Context, ownerID uint64) ([]model.Vehicle, error) {
	return r.store.ListVehiclesByOwner(ctx, ownerID)
}

func ownedVehicle(ctx context.Context, tx store.VehicleTx, ownerID, vehicleID uint64) (*model.Vehicle, error) {
	v, err := tx.GetVehicle(ctx, vehicleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrVehicleNotFound
	}
	if err != nil {
		return nil, err
	}
	if v.OwnerID != ownerID {
		return nil, apperr.ErrForbidden
	}
	return v, nil
}
