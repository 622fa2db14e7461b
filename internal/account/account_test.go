package account_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecoride/carpool/internal/account"
	"github.com/ecoride/carpool/internal/apperr"
	"github.com/ecoride/carpool/internal/ledger"
	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/store/memstore"
	"github.com/ecoride/carpool/internal/testutil"
)

func newService(t *testing.T, bonus int64) (*account.Service, *memstore.Store) {
	t.Helper()
	s := memstore.New()
	l, err := ledger.New(2, ledger.WithClock(testutil.Clock))
	require.NoError(t, err)
	return account.New(s, l, bcrypt.MinCost, bonus, 3), s
}

func TestRegisterGrantsBonusThroughLedger(t *testing.T) {
	svc, s := newService(t, 20)
	ctx := context.Background()

	u, err := svc.Register(ctx, account.Registration{Email: " Alice@Example.com ", Password: "longenough", Pseudo: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.True(t, u.Roles.Has(model.RolePassenger))
	assert.False(t, u.Roles.Has(model.RoleDriver))
	assert.Equal(t, int64(20), u.Credits)
	assert.Equal(t, int64(20), testutil.Balance(t, s, u.ID))

	entries := s.Ledger()
	require.Len(t, entries, 1)
	assert.Equal(t, model.LedgerGrant, entries[0].Kind)
	assert.Equal(t, u.ID, entries[0].UserID)

	_, err = svc.Register(ctx, account.Registration{Email: "alice@example.com", Password: "longenough"})
	assert.ErrorIs(t, err, apperr.ErrEmailTaken)
	assert.Len(t, s.Ledger(), 1)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService(t, 0)
	ctx := context.Background()

	_, err := svc.Register(ctx, account.Registration{Email: "not-an-email", Password: "longenough"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Register(ctx, account.Registration{Email: "bob@example.com", Password: "short"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	u, err := svc.Register(ctx, account.Registration{Email: "bob@example.com", Password: "longenough", Driver: true})
	require.NoError(t, err)
	assert.True(t, u.Roles.Has(model.RoleDriver))
	assert.Zero(t, u.Credits)
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newService(t, 0)
	ctx := context.Background()
	_, err := svc.Register(ctx, account.Registration{Email: "carol@example.com", Password: "longenough"})
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "CAROL@example.com", "longenough")
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", u.Email)

	_, err = svc.Authenticate(ctx, "carol@example.com", "wrong-password")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@example.com", "longenough")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
}

func TestSetStatusNeedsStaff(t *testing.T) {
	svc, s := newService(t, 0)
	ctx := context.Background()
	staff := testutil.User(t, s, 0, model.RoleEmployee)
	user := testutil.User(t, s, 0)
	other := testutil.User(t, s, 0)

	_, err := svc.SetStatus(ctx, other.ID, user.ID, model.UserSuspended)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.SetStatus(ctx, staff.ID, staff.ID, model.UserBanned)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.SetStatus(ctx, staff.ID, user.ID, model.UserStatus("frozen"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	u, err := svc.SetStatus(ctx, staff.ID, user.ID, model.UserBanned)
	require.NoError(t, err)
	assert.Equal(t, model.UserBanned, u.Status)

	got, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.CanTravel())
}

func TestBannedUserCannotSignIn(t *testing.T) {
	svc, s := newService(t, 0)
	ctx := context.Background()
	staff := testutil.User(t, s, 0, model.RoleAdmin)
	u, err := svc.Register(ctx, account.Registration{Email: "dave@example.com", Password: "longenough"})
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, staff.ID, u.ID, model.UserBanned)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "dave@example.com", "longenough")
	assert.ErrorIs(t, err, apperr.ErrUserNotAllowed)
}

func TestGrantCredits(t *testing.T) {
	svc, s := newService(t, 0)
	ctx := context.Background()
	staff := testutil.User(t, s, 0, model.RoleEmployee)
	user := testutil.User(t, s, 5)

	require.NoError(t, svc.GrantCredits(ctx, staff.ID, user.ID, 15, ""))
	assert.Equal(t, int64(20), testutil.Balance(t, s, user.ID))

	assert.ErrorIs(t, svc.GrantCredits(ctx, user.ID, user.ID, 15, "self"), apperr.ErrForbidden)
	assert.ErrorIs(t, svc.GrantCredits(ctx, staff.ID, user.ID, 0, "nothing"), apperr.ErrInvalidAmount)
	assert.Equal(t, int64(20), testutil.Balance(t, s, user.ID))
}
