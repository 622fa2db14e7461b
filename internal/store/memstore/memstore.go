// Package memstore is an in-memory store.Store. Units run one at a time
// against a private copy of the state that replaces the shared state
// only when the unit succeeds, which gives serializable isolation and
// all-or-nothing writes. It backs unit tests and STORE_DRIVER=memory.
//
// Every unit copies the whole state, so the cost of a write grows with
// the amount of data held. Use it for tests and small single-process
// deployments; anything long-running belongs on the MySQL store.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/store"
)

type notifKey struct {
	eventID     string
	recipientID uint64
}

type state struct {
	users         map[uint64]model.User
	emails        map[string]uint64
	vehicles      map[uint64]model.Vehicle
	rides         map[uint64]model.Ride
	parts         map[uint64]model.Participation
	holds         map[uint64]model.CreditHold
	ledger        []model.LedgerEntry
	reviews       map[uint64]model.Review
	notifications map[uint64]model.Notification
	notifKeys     map[notifKey]uint64
	outbox        map[string]model.OutboxRecord
	outboxOrder   []string
	tokens        map[string]refreshToken
	seq           uint64
}

type refreshToken struct {
	userID    uint64
	expiresAt time.Time
	revoked   bool
}

func newState() *state {
	return &state{
		users:         map[uint64]model.User{},
		emails:        map[string]uint64{},
		vehicles:      map[uint64]model.Vehicle{},
		rides:         map[uint64]model.Ride{},
		parts:         map[uint64]model.Participation{},
		holds:         map[uint64]model.CreditHold{},
		reviews:       map[uint64]model.Review{},
		notifications: map[uint64]model.Notification{},
		notifKeys:     map[notifKey]uint64{},
		outbox:        map[string]model.OutboxRecord{},
		tokens:        map[string]refreshToken{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	c := &state{
		users:         copyMap(s.users),
		emails:        copyMap(s.emails),
		vehicles:      copyMap(s.vehicles),
		rides:         make(map[uint64]model.Ride, len(s.rides)),
		parts:         copyMap(s.parts),
		holds:         copyMap(s.holds),
		ledger:        append([]model.LedgerEntry(nil), s.ledger...),
		reviews:       copyMap(s.reviews),
		notifications: copyMap(s.notifications),
		notifKeys:     copyMap(s.notifKeys),
		outbox:        copyMap(s.outbox),
		outboxOrder:   append([]string(nil), s.outboxOrder...),
		tokens:        copyMap(s.tokens),
		seq:           s.seq,
	}
	for id, r := range s.rides {
		c.rides[id] = r.Clone()
	}
	return c
}

func (s *state) nextID() uint64 {
	s.seq++
	return s.seq
}

// Store implements store.Store in memory.
type Store struct {
	mu        sync.Mutex
	st        *state
	conflicts int
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store { return &Store{st: newState()} }

// InjectConflicts makes the next n units fail with store.ErrConflict
// before running, as a lost lock race would.
func (s *Store) InjectConflicts(n int) {
	s.mu.Lock()
	s.conflicts = n
	s.mu.Unlock()
}

func (s *Store) WithTx(ctx context.Context, fn store.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflicts > 0 {
		s.conflicts--
		return store.ErrConflict
	}
	work := s.st.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Ledger returns a copy of every ledger entry, oldest first.
func (s *Store) Ledger() []model.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.LedgerEntry(nil), s.st.ledger...)
}

// Holds returns a copy of every credit hold.
func (s *Store) Holds() []model.CreditHold {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CreditHold, 0, len(s.st.holds))
	for _, h := range s.st.holds {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Outbox returns a copy of every outbox record in insertion order.
func (s *Store) Outbox() []model.OutboxRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.OutboxRecord, 0, len(s.st.outboxOrder))
	for _, id := range s.st.outboxOrder {
		out = append(out, s.st.outbox[id])
	}
	return out
}

func (s *Store) FindUser(_ context.Context, id uint64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.st.emails[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := s.st.users[id]
	return &u, nil
}

func (s *Store) FindRide(_ context.Context, id uint64) (*model.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.st.rides[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r = r.Clone()
	return &r, nil
}

func (s *Store) SearchRides(_ context.Context, q model.RideSearch) ([]model.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Ride
	for _, r := range s.st.rides {
		if r.Status != model.RidePublished || r.SeatsAvailable <= 0 {
			continue
		}
		if q.DepartureCity != "" && !strings.EqualFold(r.DepartureCity, q.DepartureCity) {
			continue
		}
		if q.ArrivalCity != "" && !strings.EqualFold(r.ArrivalCity, q.ArrivalCity) {
			continue
		}
		if !q.Date.IsZero() && !sameDay(r.DepartureAt, q.Date) {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DepartureAt.Equal(out[j].DepartureAt) {
			return out[i].DepartureAt.Before(out[j].DepartureAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, q.Page, q.PageSize), nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func page[T any](items []T, p, size int) []T {
	if size <= 0 {
		return items
	}
	if p < 1 {
		p = 1
	}
	start := (p - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func (s *Store) ListRidesByDriver(_ context.Context, driverID uint64) ([]model.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Ride
	for _, r := range s.st.rides {
		if r.DriverID == driverID {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureAt.After(out[j].DepartureAt) })
	return out, nil
}

func (s *Store) ListRidesByStatus(_ context.Context, status model.RideStatus, limit int) ([]model.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Ride
	for _, r := range s.st.rides {
		if r.Status == status {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, 1, limit), nil
}

func (s *Store) DueRides(_ context.Context, status model.RideStatus, t time.Time, limit int) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	for _, r := range s.st.rides {
		if r.Status != status {
			continue
		}
		ref := r.DepartureAt
		if status == model.RideOngoing {
			ref = r.ArrivalAt
		}
		if !ref.After(t) {
			ids = append(ids, r.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return page(ids, 1, limit), nil
}

func (s *Store) ListVehiclesByOwner(_ context.Context, ownerID uint64) ([]model.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Vehicle
	for _, v := range s.st.vehicles {
		if v.OwnerID == ownerID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListParticipationsByPassenger(_ context.Context, passengerID uint64) ([]model.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Participation
	for _, p := range s.st.parts {
		if p.PassengerID == passengerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) ListReviewsByStatus(_ context.Context, limit int, statuses ...model.ReviewStatus) ([]model.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[model.ReviewStatus]bool{}
	for _, st := range statuses {
		want[st] = true
	}
	var out []model.Review
	for _, r := range s.st.reviews {
		if want[r.Status] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, 1, limit), nil
}

func (s *Store) RatingOf(_ context.Context, userID uint64) (model.RatingSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := model.RatingSummary{UserID: userID}
	total := 0
	for _, r := range s.st.reviews {
		if r.SubjectID == userID && r.Counts() {
			total += r.Rating
			sum.Count++
		}
	}
	if sum.Count > 0 {
		sum.Average = float64(total) / float64(sum.Count)
	}
	return sum, nil
}

func (s *Store) ListLedger(_ context.Context, userID uint64, limit int) ([]model.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.LedgerEntry
	for i := len(s.st.ledger) - 1; i >= 0; i-- {
		if e := s.st.ledger[i]; e.UserID == userID {
			out = append(out, e)
		}
	}
	return page(out, 1, limit), nil
}

func (s *Store) InsertNotification(_ context.Context, n *model.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := notifKey{eventID: n.EventID, recipientID: n.RecipientID}
	if _, dup := s.st.notifKeys[key]; dup {
		return false, nil
	}
	n.ID = s.st.nextID()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.st.notifications[n.ID] = *n
	s.st.notifKeys[key] = n.ID
	return true, nil
}

func (s *Store) Feed(_ context.Context, recipientID uint64, limit int) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Notification
	for _, n := range s.st.notifications {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Read != out[j].Read {
			return !out[i].Read
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, 1, limit), nil
}

func (s *Store) MarkRead(_ context.Context, recipientID, notificationID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.st.notifications[notificationID]
	if !ok || n.RecipientID != recipientID {
		return store.ErrNotFound
	}
	n.Read = true
	s.st.notifications[notificationID] = n
	return nil
}

func (s *Store) MarkAllRead(_ context.Context, recipientID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, n := range s.st.notifications {
		if n.RecipientID == recipientID && !n.Read {
			n.Read = true
			s.st.notifications[id] = n
			count++
		}
	}
	return count, nil
}

func (s *Store) DueEvents(_ context.Context, now time.Time, limit int) ([]model.OutboxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.OutboxRecord
	for _, id := range s.st.outboxOrder {
		rec := s.st.outbox[id]
		if rec.Status == model.OutboxPending && !rec.NextAttemptAt.After(now) {
			rec.Recipients = append([]uint64(nil), rec.Recipients...)
			out = append(out, rec)
		}
	}
	return page(out, 1, limit), nil
}

func (s *Store) MarkSent(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.st.outbox[eventID]
	if !ok {
		return store.ErrNotFound
	}
	rec.Status = model.OutboxSent
	s.st.outbox[eventID] = rec
	return nil
}

func (s *Store) MarkFailed(_ context.Context, eventID string, attempts int, next time.Time, lastErr string, parked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.st.outbox[eventID]
	if !ok {
		return store.ErrNotFound
	}
	rec.Attempts = attempts
	rec.NextAttemptAt = next
	rec.LastError = lastErr
	if parked {
		rec.Status = model.OutboxParked
	}
	s.st.outbox[eventID] = rec
	return nil
}

func (s *Store) StoreRefresh(_ context.Context, userID uint64, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.st.tokens[tokenHash]; dup {
		return store.ErrDuplicate
	}
	s.st.tokens[tokenHash] = refreshToken{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *Store) ValidateRefresh(_ context.Context, tokenHash string, now time.Time) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.st.tokens[tokenHash]
	if !ok || t.revoked || now.After(t.expiresAt) {
		return 0, store.ErrNotFound
	}
	return t.userID, nil
}

func (s *Store) RevokeRefresh(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.st.tokens[tokenHash]; ok {
		t.revoked = true
		s.st.tokens[tokenHash] = t
	}
	return nil
}

func (s *Store) RevokeAllRefresh(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h, t := range s.st.tokens {
		if t.userID == userID {
			t.revoked = true
			s.st.tokens[h] = t
		}
	}
	return nil
}
