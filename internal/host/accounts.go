// Package host models the hosting environment's value primitives: account
// balances and value transfer. The ledger's custody balance is whatever
// Balance reports for the custody account; the ledger keeps no separate
// counter.
package host

import (
	"fmt"
	"sort"

	"github.com/mesh-intelligence/cofund/pkg/types"
)

// DefaultCustodyAccount is the account that holds the ledger's custody
// balance unless configured otherwise.
const DefaultCustodyAccount types.Identity = "cofund:custody"

// Accounts maps identities to balances. The zero value is not usable; call
// NewAccounts or FromBalances.
type Accounts struct {
	balances map[types.Identity]types.Amount
}

// NewAccounts returns an empty account set.
func NewAccounts() *Accounts {
	return &Accounts{balances: make(map[types.Identity]types.Amount)}
}

// FromBalances builds an account set from a persisted balance map. The map
// is copied.
func FromBalances(balances map[types.Identity]types.Amount) *Accounts {
	a := NewAccounts()
	for id, amt := range balances {
		if amt > 0 {
			a.balances[id] = amt
		}
	}
	return a
}

// Balance returns the balance of id; unknown identities hold zero.
func (a *Accounts) Balance(id types.Identity) types.Amount {
	return a.balances[id]
}

// Credit adds amount to id out of thin air. It is the development faucet and
// the only way value enters the environment.
func (a *Accounts) Credit(id types.Identity, amount types.Amount) error {
	if err := id.Validate(); err != nil {
		return err
	}
	next, err := a.balances[id].Add(amount)
	if err != nil {
		return fmt.Errorf("crediting %s: %w", id, err)
	}
	a.balances[id] = next
	return nil
}

// Transfer moves amount from one account to another. It fails with
// ErrInsufficientFunds, leaving both balances unchanged, if from holds less
// than amount.
func (a *Accounts) Transfer(from, to types.Identity, amount types.Amount) error {
	if err := to.Validate(); err != nil {
		return err
	}
	have := a.balances[from]
	if have < amount {
		return fmt.Errorf("%w: %s holds %s, needs %s", types.ErrInsufficientFunds, from, have, amount)
	}
	credited, err := a.balances[to].Add(amount)
	if err != nil {
		return fmt.Errorf("transferring to %s: %w", to, err)
	}
	if from == to {
		return nil
	}
	a.set(from, have-amount)
	a.set(to, credited)
	return nil
}

// Clone returns an independent copy.
func (a *Accounts) Clone() *Accounts {
	return FromBalances(a.balances)
}

// Balances returns a copy of every non-zero balance.
func (a *Accounts) Balances() map[types.Identity]types.Amount {
	out := make(map[types.Identity]types.Amount, len(a.balances))
	for id, amt := range a.balances {
		out[id] = amt
	}
	return out
}

// Identities returns every identity holding a non-zero balance, sorted.
func (a *Accounts) Identities() []types.Identity {
	ids := make([]types.Identity, 0, len(a.balances))
	for id := range a.balances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// set stores amount, dropping zero balances so persisted snapshots stay small.
func (a *Accounts) set(id types.Identity, amount types.Amount) {
	if amount == 0 {
		delete(a.balances, id)
		return
	}
	a.balances[id] = amount
}
