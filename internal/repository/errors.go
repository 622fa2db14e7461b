// Package repository implements store.Store on MySQL. Every multi-row
// change runs inside a single *sql.Tx; rows read through a Tx are taken
// with SELECT ... FOR UPDATE so concurrent units queue on them.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/ecoride/carpool/internal/store"
)

// MySQL server error numbers the repository translates.
const (
	erDupEntry        = 1062
	erLockWaitTimeout = 1205
	erLockDeadlock    = 1213
)

// mapError translates driver errors into store sentinels so callers never
// match on MySQL codes. Anything else is returned unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case erDupEntry:
			return fmt.Errorf("%w: %s", store.ErrDuplicate, me.Message)
		case erLockDeadlock, erLockWaitTimeout:
			return fmt.Errorf("%w: %s", store.ErrConflict, me.Message)
		}
	}
	return err
}
