package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecoride/carpool/internal/apperr"
	"github.com/ecoride/carpool/internal/logging"
)

// DefaultAttempts bounds Run when the caller passes a non-positive count.
const DefaultAttempts = 3

// Run executes fn through s.WithTx, retrying the whole unit when it
// fails with ErrConflict. After attempts conflicts it gives up with
// apperr.ErrBusy. Any other error is returned as is.
func Run(ctx context.Context, s Store, attempts int, fn TxFunc) error {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = s.WithTx(ctx, fn)
		if !errors.Is(err, ErrConflict) {
			return err
		}
		logging.Debug(ctx, "transaction conflict, retrying",
			logging.Component("store"), logging.Err(err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return fmt.Errorf("%w: %d attempts: %v", apperr.ErrBusy, attempts, err)
}
