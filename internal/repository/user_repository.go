package repository

import (
	"context"
	"strings"

	"github.com/ecoride/carpool/internal/model"
)

const userColumns = "id, email, pseudo, password_hash, status, roles, credits, created_at, updated_at"

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(sc scanner) (*model.User, error) {
	var (
		u     model.User
		roles string
	)
	err := sc.Scan(&u.ID, &u.Email, &u.Pseudo, &u.PasswordHash, &u.Status, &roles, &u.Credits, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	u.Roles = model.ParseRoles(roles)
	return &u, nil
}

func normEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// FindUser fetches a user by id.
func (s *Store) FindUser(ctx context.Context, id uint64) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// FindUserByEmail fetches a user by normalized email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", normEmail(email)))
}

func (t *txRepo) GetUser(ctx context.Context, id uint64) (*model.User, error) {
	return scanUser(t.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? FOR UPDATE", id))
}

func (t *txRepo) CreateUser(ctx context.Context, u *model.User) error {
	u.Email = normEmail(u.Email)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = t.now()
	}
	u.UpdatedAt = u.CreatedAt
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO users (email, pseudo, password_hash, status, roles, credits, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		u.Email, u.Pseudo, u.PasswordHash, u.Status, u.Roles.String(), u.Credits, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	u.ID, err = lastID(res)
	return err
}

func (t *txRepo) UpdateUserBalance(ctx context.Context, id uint64, credits int64) error {
	res, err := t.q.ExecContext(ctx,
		"UPDATE users SET credits=?, updated_at=? WHERE id=?", credits, t.now(), id)
	if err != nil {
		return mapError(err)
	}
	return affected(res)
}

func (t *txRepo) UpdateUserStatus(ctx context.Context, id uint64, status model.UserStatus) error {
	res, err := t.q.ExecContext(ctx,
		"UPDATE users SET status=?, updated_at=? WHERE id=?", status, t.now(), id)
	if err != nil {
		return mapError(err)
	}
	return affected(res)
}

func (t *txRepo) UpdateUserRoles(ctx context.Context, id uint64, roles model.Roles) error {
	res, err := t.q.ExecContext(ctx,
		"UPDATE users SET roles=?, updated_at=? WHERE id=?", roles.String(), t.now(), id)
	if err != nil {
		return mapError(err)
	}
	return affected(res)
}
