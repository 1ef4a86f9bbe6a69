package ledger

import (
	"context"
	"sync"

	"genstudio/internal/domain"
)

// Entry is one recorded movement in a MemoryStore.
type Entry struct {
	Owner  string
	Kind   EntryKind
	Amount int64
}

// MemoryStore is an in-process ledger guarded by a mutex.
type MemoryStore struct {
	mu       sync.Mutex
	balances map[string]int64
	entries  []Entry

	// RefundErr, when set, is returned by Refund without touching the balance.
	RefundErr error
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{balances: make(map[string]int64)}
}

func (m *MemoryStore) Reserve(ctx context.Context, owner string, amount int64) error {
	if err := checkAmount(owner, amount); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[owner] < amount {
		return domain.ErrInsufficientCredits
	}
	m.balances[owner] -= amount
	m.entries = append(m.entries, Entry{Owner: owner, Kind: EntryReserve, Amount: amount})
	return nil
}

func (m *MemoryStore) Refund(ctx context.Context, owner string, amount int64) error {
	if err := checkAmount(owner, amount); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RefundErr != nil {
		return m.RefundErr
	}
	m.balances[owner] += amount
	m.entries = append(m.entries, Entry{Owner: owner, Kind: EntryRefund, Amount: amount})
	return nil
}

func (m *MemoryStore) Commit(ctx context.Context, owner string, amount int64) error {
	if err := checkAmount(owner, amount); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{Owner: owner, Kind: EntryCommit, Amount: amount})
	return nil
}

func (m *MemoryStore) Balance(ctx context.Context, owner string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[owner], nil
}

func (m *MemoryStore) Grant(ctx context.Context, owner string, amount int64) error {
	if err := checkAmount(owner, amount); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[owner] += amount
	m.entries = append(m.entries, Entry{Owner: owner, Kind: EntryGrant, Amount: amount})
	return nil
}

// Entries returns a copy of the movements recorded for owner.
func (m *MemoryStore) Entries(owner string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if e.Owner == owner {
			out = append(out, e)
		}
	}
	return out
}

// Totals sums the recorded movements for owner by kind.
func (m *MemoryStore) Totals(owner string) map[EntryKind]int64 {
	totals := make(map[EntryKind]int64)
	for _, e := range m.Entries(owner) {
		totals[e.Kind] += e.Amount
	}
	return totals
}
