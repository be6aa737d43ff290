// Package registry holds the immutable set of managed accounts loaded at
// startup.
package registry

import (
	"fmt"

	"github.com/betbot/golighter/pkg/config"
)

// Account is one managed exchange account with its signing material.
// L1Address, when present, is the account's on-chain address used for
// exchange-side lookups.
type Account struct {
	Index      int
	APIIndex   int
	L1Address  string
	PrivateKey string
}

// Registry is a read-only account lookup. Built once from config; no runtime
// mutation, so no locking.
type Registry struct {
	byIndex map[int]*Account
	indexes []int
}

// New builds the registry from the configured accounts. Duplicate indexes are
// rejected by config validation before this point.
func New(accounts []config.AccountConfig) *Registry {
	r := &Registry{byIndex: make(map[int]*Account, len(accounts))}
	for _, a := range accounts {
		acct := &Account{Index: a.Index, APIIndex: a.APIIndex, L1Address: a.L1Address, PrivateKey: a.PrivateKey}
		r.byIndex[a.Index] = acct
		r.indexes = append(r.indexes, a.Index)
	}
	return r
}

// Lookup returns the account for the given index.
func (r *Registry) Lookup(accountIndex int) (*Account, error) {
	acct, ok := r.byIndex[accountIndex]
	if !ok {
		return nil, fmt.Errorf("unknown account index %d", accountIndex)
	}
	return acct, nil
}

// Has reports whether the account index is managed.
func (r *Registry) Has(accountIndex int) bool {
	_, ok := r.byIndex[accountIndex]
	return ok
}

// Indexes returns all managed account indexes in configuration order.
func (r *Registry) Indexes() []int {
	out := make([]int, len(r.indexes))
	copy(out, r.indexes)
	return out
}

// Len is the number of managed accounts.
func (r *Registry) Len() int {
	return len(r.byIndex)
}
