// Package account registers users, checks credentials and lets staff
// change an account's status or top up its credits.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/ecoride/carpool/internal/apperr"
	"github.com/ecoride/carpool/internal/ledger"
	"github.com/ecoride/carpool/internal/logging"
	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/store"
	"github.com/ecoride/carpool/internal/utils"
)

type Service struct {
	store    store.Store
	ledger   *ledger.Ledger
	cost     int
	bonus    int64
	attempts int
}

// New returns a service hashing passwords with bcrypt cost and granting
// bonus credits to every new account.
func New(s store.Store, l *ledger.Ledger, cost int, bonus int64, attempts int) *Service {
	if bonus < 0 {
		bonus = 0
	}
	return &Service{store: s, ledger: l, cost: cost, bonus: bonus, attempts: attempts}
}

// Registration is a signup request. Driver adds the driver role up front;
// registering a vehicle grants it later otherwise.
type Registration struct {
	Email    string
	Password string
	Pseudo   string
	Driver   bool
}

// Register creates an active passenger account and credits the signup
// bonus through the ledger in the same unit.
func (s *Service) Register(ctx context.Context, in Registration) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, apperr.Validation("invalid email")
	}
	if len(in.Password) < utils.MinPasswordLen {
		return nil, apperr.Validation("password must have at least %d characters", utils.MinPasswordLen)
	}
	hash, err := utils.HashPassword(in.Password, s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	roles := model.NewRoles(model.RolePassenger)
	if in.Driver {
		roles = roles.Add(model.RoleDriver)
	}
	u := &model.User{
		Email:        email,
		Pseudo:       strings.TrimSpace(in.Pseudo),
		PasswordHash: hash,
		Status:       model.UserActive,
		Roles:        roles,
	}
	err = store.Run(ctx, s.store, s.attempts, func(ctx context.Context, tx store.Tx) error {
		u.ID, u.Credits = 0, 0
		if err := tx.CreateUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.ErrEmailTaken
			}
			return fmt.Errorf("create user: %w", err)
		}
		if s.bonus == 0 {
			return nil
		}
		if err := s.ledger.Grant(ctx, tx, u.ID, s.bonus, "signup bonus"); err != nil {
			return err
		}
		u.Credits = s.bonus
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.Info(ctx, "user registered", logging.Component("account"), logging.UserID(u.ID))
	return u, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords
// both yield ErrInvalidCredentials; banned accounts cannot sign in.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.store.FindUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, apperr.ErrInvalidCredentials
	}
	if u.Status == model.UserBanned {
		return nil, apperr.ErrUserNotAllowed
	}
	return u, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id uint64) (*model.User, error) {
	u, err := s.store.FindUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	return u, err
}

// SetStatus suspends, bans or reactivates a user. Only active staff may
// do it and nobody may change their own status.
func (s *Service) SetStatus(ctx context.Context, staffID, userID uint64, status model.UserStatus) (*model.User, error) {
	if !status.Valid() {
		return nil, apperr.Validation("unknown status %q", status)
	}
	if staffID == userID {
		return nil, apperr.ErrForbidden
	}
	var out *model.User
	err := store.Run(ctx, s.store, s.attempts, func(ctx context.Context, tx store.Tx) error {
		if err := requireStaff(ctx, tx, staffID); err != nil {
			return err
		}
		u, err := tx.GetUser(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.UpdateUserStatus(ctx, userID, status); err != nil {
			return err
		}
		u.Status = status
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.Info(ctx, "user status changed", logging.Component("account"),
		logging.UserID(userID), logging.Status(string(status)))
	return out, nil
}

// GrantCredits tops up a user's balance on behalf of staff.
func (s *Service) GrantCredits(ctx context.Context, staffID, userID uint64, amount int64, note string) error {
	if strings.TrimSpace(note) == "" {
		note = "staff grant"
	}
	return store.Run(ctx, s.store, s.attempts, func(ctx context.Context, tx store.Tx) error {
		if err := requireStaff(ctx, tx, staffID); err != nil {
			return err
		}
		return s.ledger.Grant(ctx, tx, userID, amount, note)
	})
}

func requireStaff(ctx context.Context, tx store.UserTx, id uint64) error {
	u, err := tx.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrForbidden
	}
	if err != nil {
		return err
	}
	if !u.Roles.Staff() || u.Status != model.UserActive {
		return apperr.ErrForbidden
	}
	return nil
}
