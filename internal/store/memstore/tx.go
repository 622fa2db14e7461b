package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/store"
)

// tx operates on a private copy of the state owned by one WithTx call.
type tx struct {
	st *state
}

var _ store.Tx = (*tx)(nil)

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now().UTC()
	}
}

func (t *tx) GetUser(_ context.Context, id uint64) (*model.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (t *tx) CreateUser(_ context.Context, u *model.User) error {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if _, dup := t.st.emails[email]; dup {
		return store.ErrDuplicate
	}
	if u.Credits < 0 {
		return fmt.Errorf("memstore: negative balance for %s", email)
	}
	u.ID = t.st.nextID()
	u.Email = email
	stamp(&u.CreatedAt)
	u.UpdatedAt = u.CreatedAt
	t.st.users[u.ID] = *u
	t.st.emails[email] = u.ID
	return nil
}

func (t *tx) UpdateUserBalance(_ context.Context, id uint64, credits int64) error {
	u, ok := t.st.users[id]
	if !ok {
		return store.ErrNotFound
	}
	if credits < 0 {
		return fmt.Errorf("memstore: negative balance for user %d", id)
	}
	u.Credits = credits
	u.UpdatedAt = time.Now().UTC()
	t.st.users[id] = u
	return nil
}

func (t *tx) UpdateUserStatus(_ context.Context, id uint64, status model.UserStatus) error {
	u, ok := t.st.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Status = status
	t.st.users[id] = u
	return nil
}

func (t *tx) UpdateUserRoles(_ context.Context, id uint64, roles model.Roles) error {
	u, ok := t.st.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Roles = roles
	t.st.users[id] = u
	return nil
}

func (t *tx) GetVehicle(_ context.Context, id uint64) (*model.Vehicle, error) {
	v, ok := t.st.vehicles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &v, nil
}

func (t *tx) CreateVehicle(_ context.Context, v *model.Vehicle) error {
	if _, ok := t.st.users[v.OwnerID]; !ok {
		return fmt.Errorf("memstore: vehicle owner %d: %w", v.OwnerID, store.ErrNotFound)
	}
	v.ID = t.st.nextID()
	stamp(&v.CreatedAt)
	t.st.vehicles[v.ID] = *v
	return nil
}

func (t *tx) UpdateVehicleSeats(_ context.Context, id uint64, seats int) error {
	v, ok := t.st.vehicles[id]
	if !ok {
		return store.ErrNotFound
	}
	v.Seats = seats
	t.st.vehicles[id] = v
	return nil
}

func (t *tx) CountNonDraftRides(_ context.Context, vehicleID uint64) (int, error) {
	n := 0
	for _, r := range t.st.rides {
		if r.VehicleID == vehicleID && r.Status != model.RideDraft {
			n++
		}
	}
	return n, nil
}

func (t *tx) GetRide(_ context.Context, id uint64) (*model.Ride, error) {
	r, ok := t.st.rides[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r = r.Clone()
	return &r, nil
}

func (t *tx) CreateRide(_ context.Context, r *model.Ride) error {
	if _, ok := t.st.vehicles[r.VehicleID]; !ok {
		return fmt.Errorf("memstore: ride vehicle %d: %w", r.VehicleID, store.ErrNotFound)
	}
	r.ID = t.st.nextID()
	stamp(&r.CreatedAt)
	r.UpdatedAt = r.CreatedAt
	t.st.rides[r.ID] = r.Clone()
	return nil
}

func (t *tx) UpdateRide(_ context.Context, r *model.Ride) error {
	if _, ok := t.st.rides[r.ID]; !ok {
		return store.ErrNotFound
	}
	if r.SeatsAvailable < 0 || r.SeatsAvailable > r.SeatsOffered {
		return fmt.Errorf("memstore: ride %d seats %d/%d out of bounds", r.ID, r.SeatsAvailable, r.SeatsOffered)
	}
	r.UpdatedAt = time.Now().UTC()
	t.st.rides[r.ID] = r.Clone()
	return nil
}

func (t *tx) FindParticipation(_ context.Context, passengerID, rideID uint64, status model.ParticipationStatus) (*model.Participation, error) {
	var found *model.Participation
	for _, p := range t.st.parts {
		if p.PassengerID == passengerID && p.RideID == rideID && p.Status == status {
			if found == nil || p.ID > found.ID {
				p := p
				found = &p
			}
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (t *tx) ListParticipations(_ context.Context, rideID uint64, status model.ParticipationStatus) ([]model.Participation, error) {
	var out []model.Participation
	for _, p := range t.st.parts {
		if p.RideID == rideID && p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) activeExists(passengerID, rideID, except uint64) bool {
	for _, p := range t.st.parts {
		if p.ID != except && p.PassengerID == passengerID && p.RideID == rideID && p.Status == model.ParticipationActive {
			return true
		}
	}
	return false
}

func (t *tx) CreateParticipation(_ context.Context, p *model.Participation) error {
	if p.Status == model.ParticipationActive && t.activeExists(p.PassengerID, p.RideID, 0) {
		return store.ErrDuplicate
	}
	p.ID = t.st.nextID()
	stamp(&p.RegisteredAt)
	t.st.parts[p.ID] = *p
	return nil
}

func (t *tx) UpdateParticipation(_ context.Context, p *model.Participation) error {
	if _, ok := t.st.parts[p.ID]; !ok {
		return store.ErrNotFound
	}
	if p.Status == model.ParticipationActive && t.activeExists(p.PassengerID, p.RideID, p.ID) {
		return store.ErrDuplicate
	}
	t.st.parts[p.ID] = *p
	return nil
}

func (t *tx) CreateHold(_ context.Context, h *model.CreditHold) error {
	for _, existing := range t.st.holds {
		if existing.ParticipationID == h.ParticipationID {
			return store.ErrDuplicate
		}
	}
	h.ID = t.st.nextID()
	stamp(&h.CreatedAt)
	t.st.holds[h.ID] = *h
	return nil
}

func (t *tx) GetHold(_ context.Context, id uint64) (*model.CreditHold, error) {
	h, ok := t.st.holds[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &h, nil
}

func (t *tx) GetHoldByParticipation(_ context.Context, participationID uint64) (*model.CreditHold, error) {
	for _, h := range t.st.holds {
		if h.ParticipationID == participationID {
			h := h
			return &h, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) UpdateHold(_ context.Context, h *model.CreditHold) error {
	if _, ok := t.st.holds[h.ID]; !ok {
		return store.ErrNotFound
	}
	t.st.holds[h.ID] = *h
	return nil
}

func (t *tx) AppendLedger(_ context.Context, e *model.LedgerEntry) error {
	e.ID = t.st.nextID()
	stamp(&e.CreatedAt)
	t.st.ledger = append(t.st.ledger, *e)
	return nil
}

func (t *tx) GetReview(_ context.Context, id uint64) (*model.Review, error) {
	r, ok := t.st.reviews[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (t *tx) CreateReview(_ context.Context, r *model.Review) error {
	for _, existing := range t.st.reviews {
		if existing.AuthorID == r.AuthorID && existing.RideID == r.RideID && existing.SubjectID == r.SubjectID {
			return store.ErrDuplicate
		}
	}
	r.ID = t.st.nextID()
	stamp(&r.CreatedAt)
	r.UpdatedAt = r.CreatedAt
	t.st.reviews[r.ID] = *r
	return nil
}

func (t *tx) UpdateReview(_ context.Context, r *model.Review) error {
	if _, ok := t.st.reviews[r.ID]; !ok {
		return store.ErrNotFound
	}
	r.UpdatedAt = time.Now().UTC()
	t.st.reviews[r.ID] = *r
	return nil
}

func (t *tx) Enqueue(_ context.Context, ev *model.Event) error {
	if _, dup := t.st.outbox[ev.ID]; dup {
		return store.ErrDuplicate
	}
	stamp(&ev.OccurredAt)
	rec := model.OutboxRecord{
		Event:         *ev,
		Status:        model.OutboxPending,
		NextAttemptAt: ev.OccurredAt,
	}
	rec.Recipients = append([]uint64(nil), ev.Recipients...)
	t.st.outbox[ev.ID] = rec
	t.st.outboxOrder = append(t.st.outboxOrder, ev.ID)
	return nil
}
