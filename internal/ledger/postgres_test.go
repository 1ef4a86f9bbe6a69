package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

type execCall struct {
	query string
	args  []any
}

type stubTx struct {
	calls      []execCall
	tags       map[string]pgconn.CommandTag
	execErr    error
	balance    int64
	rowErr     error
	txCount    int
	rolledBack bool
}

func (s *stubTx) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, execCall{query: query, args: args})
	if s.execErr != nil {
		return pgconn.CommandTag{}, s.execErr
	}
	if tag, ok := s.tags[query]; ok {
		return tag, nil
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (s *stubTx) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return balanceRow{balance: s.balance, err: s.rowErr}
}

func (s *stubTx) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (s *stubTx) InTx(ctx context.Context, fn func(tx infra.SQLExecutor) error) error {
	s.txCount++
	if err := fn(s); err != nil {
		s.rolledBack = true
		return err
	}
	return nil
}

type balanceRow struct {
	balance int64
	err     error
}

func (r balanceRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.balance
	return nil
}

func TestPostgresReserveWritesEntryInSameTx(t *testing.T) {
	tx := &stubTx{tags: map[string]pgconn.CommandTag{
		sqlinline.QReserveCredits: pgconn.NewCommandTag("UPDATE 1"),
	}}
	store := NewPostgresStore(tx)

	require.NoError(t, store.Reserve(context.Background(), "u1", 4))
	assert.Equal(t, 1, tx.txCount)
	require.Len(t, tx.calls, 2)
	assert.Equal(t, sqlinline.QReserveCredits, tx.calls[0].query)
	assert.Equal(t, []any{"u1", int64(4)}, tx.calls[0].args)
	assert.Equal(t, sqlinline.QInsertCreditEntry, tx.calls[1].query)
	assert.Equal(t, []any{"u1", "reserve", int64(4)}, tx.calls[1].args)
}

func TestPostgresReserveInsufficient(t *testing.T) {
	tx := &stubTx{tags: map[string]pgconn.CommandTag{
		sqlinline.QReserveCredits: pgconn.NewCommandTag("UPDATE 0"),
	}}
	store := NewPostgresStore(tx)

	err := store.Reserve(context.Background(), "u1", 4)
	require.ErrorIs(t, err, domain.ErrInsufficientCredits)
	assert.True(t, tx.rolledBack)
	assert.Len(t, tx.calls, 1)
}

func TestPostgresRefundAndGrantUpsert(t *testing.T) {
	tx := &stubTx{}
	store := NewPostgresStore(tx)

	require.NoError(t, store.Refund(context.Background(), "u1", 6))
	require.NoError(t, store.Grant(context.Background(), "u2", 20))
	require.Len(t, tx.calls, 4)
	assert.Equal(t, sqlinline.QAddCredits, tx.calls[0].query)
	assert.Equal(t, "refund", tx.calls[1].args[1])
	assert.Equal(t, sqlinline.QAddCredits, tx.calls[2].query)
	assert.Equal(t, "grant", tx.calls[3].args[1])
}

func TestPostgresCommitOnlyRecordsEntry(t *testing.T) {
	tx := &stubTx{}
	store := NewPostgresStore(tx)

	require.NoError(t, store.Commit(context.Background(), "u1", 4))
	assert.Zero(t, tx.txCount)
	require.Len(t, tx.calls, 1)
	assert.Equal(t, sqlinline.QInsertCreditEntry, tx.calls[0].query)
	assert.Equal(t, "commit", tx.calls[0].args[1])
}

func TestPostgresBalance(t *testing.T) {
	store := NewPostgresStore(&stubTx{balance: 42})
	bal, err := store.Balance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), bal)

	store = NewPostgresStore(&stubTx{rowErr: pgx.ErrNoRows})
	bal, err = store.Balance(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, bal)

	store = NewPostgresStore(&stubTx{rowErr: errors.New("conn reset")})
	_, err = store.Balance(context.Background(), "u1")
	require.ErrorIs(t, err, domain.ErrPersistence)
}

func TestPostgresExecFailureIsPersistenceError(t *testing.T) {
	store := NewPostgresStore(&stubTx{execErr: errors.New("conn reset")})
	err := store.Reserve(context.Background(), "u1", 1)
	require.ErrorIs(t, err, domain.ErrPersistence)
}
