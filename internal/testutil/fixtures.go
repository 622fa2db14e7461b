// Package testutil seeds an in-memory store for package tests.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/store"
	"github.com/ecoride/carpool/internal/store/memstore"
)

// Now is the fixed clock used by fixtures and the services under test.
var Now = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

// Clock returns Now.
func Clock() time.Time { return Now }

var seq atomic.Uint64

// User creates an active user with the given balance and roles
// (passenger when none are given).
func User(t *testing.T, s *memstore.Store, credits int64, roles ...model.Role) model.User {
	t.Helper()
	if len(roles) == 0 {
		roles = []model.Role{model.RolePassenger}
	}
	n := seq.Add(1)
	u := model.User{
		Email:     fmt.Sprintf("user%d@example.com", n),
		Pseudo:    fmt.Sprintf("user%d", n),
		Status:    model.UserActive,
		Roles:     model.NewRoles(roles...),
		Credits:   credits,
		CreatedAt: Now,
	}
	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.CreateUser(ctx, &u)
	})
	require.NoError(t, err)
	return u
}

// Vehicle registers a vehicle with the given passenger seats.
func Vehicle(t *testing.T, s *memstore.Store, ownerID uint64, seats int) model.Vehicle {
	t.Helper()
	v := model.Vehicle{OwnerID: ownerID, Brand: "Renault", Model: "Zoe", Plate: fmt.Sprintf("AB-%03d-CD", seq.Add(1)), Seats: seats, CreatedAt: Now}
	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.CreateVehicle(ctx, &v)
	})
	require.NoError(t, err)
	return v
}

// RideOption adjusts a ride before it is stored.
type RideOption func(*model.Ride)

func WithStatus(s model.RideStatus) RideOption { return func(r *model.Ride) { r.Status = s } }

func WithPrice(p int64) RideOption { return func(r *model.Ride) { r.Price = p } }

func WithDeparture(at time.Time) RideOption {
	return func(r *model.Ride) {
		d := r.ArrivalAt.Sub(r.DepartureAt)
		r.DepartureAt = at
		r.ArrivalAt = at.Add(d)
	}
}

// Ride stores a published ride from Paris to Lyon departing two days
// after Now, with every offered seat available.
func Ride(t *testing.T, s *memstore.Store, driverID, vehicleID uint64, seats int, opts ...RideOption) model.Ride {
	t.Helper()
	r := model.Ride{
		DriverID:       driverID,
		VehicleID:      vehicleID,
		DepartureCity:  "Paris",
		ArrivalCity:    "Lyon",
		DepartureAt:    Now.Add(48 * time.Hour),
		ArrivalAt:      Now.Add(52 * time.Hour),
		Price:          10,
		SeatsOffered:   seats,
		SeatsAvailable: seats,
		Status:         model.RidePublished,
		CreatedAt:      Now,
	}
	for _, opt := range opts {
		opt(&r)
	}
	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.CreateRide(ctx, &r)
	})
	require.NoError(t, err)
	return r
}

// Balance reads a user's balance.
func Balance(t *testing.T, s *memstore.Store, userID uint64) int64 {
	t.Helper()
	u, err := s.FindUser(context.Background(), userID)
	require.NoError(t, err)
	return u.Credits
}

// FetchRide reads a ride.
func FetchRide(t *testing.T, s *memstore.Store, id uint64) model.Ride {
	t.Helper()
	r, err := s.FindRide(context.Background(), id)
	require.NoError(t, err)
	return *r
}
