package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ecoride/carpool/internal/store"
)

// StoreRefresh inserts a refresh token hash row.
func (s *Store) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at) VALUES (?,?,?,?)",
		userID, tokenHash, expiresAt.UTC(), s.now())
	return mapError(err)
}

// ValidateRefresh returns the owner of a non-revoked, non-expired token.
func (s *Store) ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error) {
	var (
		userID    uint64
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&userID, &expiresAt, &revokedAt)
	if err != nil {
		return 0, mapError(err)
	}
	if revokedAt.Valid || now.After(expiresAt) {
		return 0, store.ErrNotFound
	}
	return userID, nil
}

// RevokeRefresh marks a token as revoked.
func (s *Store) RevokeRefresh(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL",
		s.now(), tokenHash)
	return mapError(err)
}

// RevokeAllRefresh revokes all of the user's active tokens.
func (s *Store) RevokeAllRefresh(ctx context.Context, userID uint64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL",
		s.now(), userID)
	return mapError(err)
}
