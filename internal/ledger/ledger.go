// Package ledger holds per-owner credit balances and the reserve/commit/refund
// protocol every generation path goes through.
//
// Reserve debits immediately. Commit never moves the balance; it only records
// that a reservation was consumed. Refund credits back exactly the reserved
// amount and must be called at most once per job by the caller.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

// ErrRefundFailed is joined onto the original failure when compensation
// itself fails. Refunds are not retried.
var ErrRefundFailed = errors.New("ledger: refund failed")

// EntryKind labels an accounting entry.
type EntryKind string

const (
	EntryReserve EntryKind = "reserve"
	EntryCommit  EntryKind = "commit"
	EntryRefund  EntryKind = "refund"
	EntryGrant   EntryKind = "grant"
)

// Store is a credit ledger. Reserve must check and debit as one atomic step and
// return domain.ErrInsufficientCredits when the balance does not cover amount.
type Store interface {
	Reserve(ctx context.Context, owner string, amount int64) error
	Refund(ctx context.Context, owner string, amount int64) error
	Commit(ctx context.Context, owner string, amount int64) error
	Balance(ctx context.Context, owner string) (int64, error)
	Grant(ctx context.Context, owner string, amount int64) error
}

func checkAmount(owner string, amount int64) error {
	if owner == "" {
		return domain.Invalid("owner is required")
	}
	if amount <= 0 {
		return domain.Invalid("credit amount must be positive")
	}
	return nil
}

// Saga wraps a Store with the compensation logic shared by every call site.
type Saga struct {
	store  Store
	logger *infra.Logger
}

func NewSaga(store Store, logger *infra.Logger) *Saga {
	return &Saga{store: store, logger: infra.OrDiscard(logger)}
}

// Store returns the underlying ledger.
func (s *Saga) Store() Store { return s.store }

// WithReservation reserves amount for owner and runs fn. If fn returns an error
// or panics, the reservation is refunded before the failure propagates.
//
// Between the debit and whatever fn persists there is a window where credits
// are gone but no job exists yet. A crash inside that window loses the credits.
func (s *Saga) WithReservation(ctx context.Context, owner string, amount int64, fn func(ctx context.Context) error) error {
	if err := s.store.Reserve(ctx, owner, amount); err != nil {
		return err
	}
	s.logger.Debug().Str("owner_id", owner).Int64("amount", amount).Msg("ledger: reserved")

	defer func() {
		if r := recover(); r != nil {
			_ = s.Compensate(ctx, owner, amount)
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		if rerr := s.Compensate(ctx, owner, amount); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return nil
}

// Compensate refunds a reservation. Failures are logged and reported with
// ErrRefundFailed; they are never retried.
func (s *Saga) Compensate(ctx context.Context, owner string, amount int64) error {
	if err := s.store.Refund(context.WithoutCancel(ctx), owner, amount); err != nil {
		s.logger.Error().Err(err).
			Str("owner_id", owner).
			Int64("amount", amount).
			Msg("ledger: refund failed")
		return fmt.Errorf("%w: %v", ErrRefundFailed, err)
	}
	s.logger.Info().Str("owner_id", owner).Int64("amount", amount).Msg("ledger: refunded")
	return nil
}

// Commit marks a reservation as spent. The balance is already debited, so a
// failure here only loses the accounting entry and is logged.
func (s *Saga) Commit(ctx context.Context, owner string, amount int64) error {
	if err := s.store.Commit(context.WithoutCancel(ctx), owner, amount); err != nil {
		s.logger.Warn().Err(err).
			Str("owner_id", owner).
			Int64("amount", amount).
			Msg("ledger: commit entry failed")
		return err
	}
	return nil
}

// Refunded reports whether err carries no refund failure, meaning the
// reservation behind it was restored.
func Refunded(err error) bool {
	return !errors.Is(err, ErrRefundFailed)
}
