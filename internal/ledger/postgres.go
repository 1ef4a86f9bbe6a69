package ledger

import (
	"context"
	"fmt"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// PostgresStore keeps balances in credit_accounts and writes one
// credit_entries row per movement in the same transaction.
type PostgresStore struct {
	db infra.Transactor
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db infra.Transactor) *PostgresStore {
	return &PostgresStore{db: db}
}

// Reserve relies on the conditional UPDATE for atomicity: the balance check and
// the debit are one statement, so concurrent reservations cannot both pass.
func (s *PostgresStore) Reserve(ctx context.Context, owner string, amount int64) error {
	if err := checkAmount(owner, amount); err != nil {
		return err
	}
	return s.db.InTx(ctx, func(tx infra.SQLExecutor) error {
		tag, err := tx.Exec(ctx, sqlinline.QReserveCredits, owner, amount)
		if err != nil {
			return fmt.Errorf("%w: reserve credits: %v", domain.ErrPersistence, err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrInsufficientCredits
		}
		return insertEntry(ctx, tx, owner, EntryReserve, amount)
	})
}

func (s *PostgresStore) Refund(ctx context.Context, owner string, amount int64) error {
	return s.add(ctx, owner, amount, EntryRefund)
}

func (s *PostgresStore) Grant(ctx context.Context, owner string, amount int64) error {
	return s.add(ctx, owner, amount, EntryGrant)
}

func (s *PostgresStore) Commit(ctx context.Context, owner string, amount int64) error {
	if err := checkAmount(owner, amount); err != nil {
		return err
	}
	return insertEntry(ctx, s.db, owner, EntryCommit, amount)
}

func (s *PostgresStore) Balance(ctx context.Context, owner string) (int64, error) {
	var balance int64
	if err := s.db.QueryRow(ctx, sqlinline.QSelectCreditBalance, owner).Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: select balance: %v", domain.ErrPersistence, err)
	}
	return balance, nil
}

func (s *PostgresStore) add(ctx context.Context, owner string, amount int64, kind EntryKind) error {
	if err := checkAmount(owner, amount); err != nil {
		return err
	}
	return s.db.InTx(ctx, func(tx infra.SQLExecutor) error {
		if _, err := tx.Exec(ctx, sqlinline.QAddCredits, owner, amount); err != nil {
			return fmt.Errorf("%w: %s credits: %v", domain.ErrPersistence, kind, err)
		}
		return insertEntry(ctx, tx, owner, kind, amount)
	})
}

func insertEntry(ctx context.Context, exec infra.SQLExecutor, owner string, kind EntryKind, amount int64) error {
	if _, err := exec.Exec(ctx, sqlinline.QInsertCreditEntry, owner, string(kind), amount); err != nil {
		return fmt.Errorf("%w: insert %s entry: %v", domain.ErrPersistence, kind, err)
	}
	return nil
}
