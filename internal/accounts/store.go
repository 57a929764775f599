package accounts

import (
	"context"
	"sync"

	"github.com/transferd/transferd/pkg/types"
)

// AccountStore is the Settings Store contract (spec §6): an enumerated
// collection of account records, the Go rendition of settings.py's
// saved_panels()/saved_clients() generators. Panels and clients share
// the same record shape in the spec, so a single List is enough for
// both the Resolver's client-matching use and any future panel-listing
// consumer.
type AccountStore interface {
	// ListAccounts returns every configured account, in no particular
	// order. The Resolver re-reads this on Refresh, mirroring
	// find_client's "list changed, reload and retry once" behavior.
	ListAccounts(ctx context.Context) ([]types.Account, error)
}

// MemoryStore is an in-memory AccountStore, the reference
// implementation named in §6 for engine tests and single-process
// deployments that configure accounts programmatically rather than via
// a settings file.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts []types.Account
}

// NewMemoryStore returns a MemoryStore seeded with accounts.
func NewMemoryStore(accounts ...types.Account) *MemoryStore {
	return &MemoryStore{accounts: append([]types.Account(nil), accounts...)}
}

// ListAccounts implements AccountStore.
func (s *MemoryStore) ListAccounts(ctx context.Context) ([]types.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Account(nil), s.accounts...), nil
}

// Put adds or replaces (by Kind+AccessKey) an account, mirroring
// settings.py's update_saved_clients "replace if Type+Access Key
// match, else append" behavior.
func (s *MemoryStore) Put(acc types.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.accounts {
		if existing.Kind == acc.Kind && existing.AccessKey == acc.AccessKey {
			s.accounts[i] = acc
			return
		}
	}
	s.accounts = append(s.accounts, acc)
}
