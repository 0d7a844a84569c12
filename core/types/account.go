package types

import "math/big"

// Account holds the balances tracked for a single address: the chain's
// native currency and the Monorite token balance (18 decimals).
type Account struct {
	Nonce        uint64   `json:"nonce"`
	Balance      *big.Int `json:"balance"`
	TokenBalance *big.Int `json:"tokenBalance"`
}

// EnsureAccount normalizes a possibly-nil account so callers can operate on
// its balances without nil checks.
func EnsureAccount(acc *Account) *Account {
	if acc == nil {
		return &Account{Balance: big.NewInt(0), TokenBalance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	if acc.TokenBalance == nil {
		acc.TokenBalance = big.NewInt(0)
	}
	return acc
}

// Clone returns a deep copy so callers cannot mutate shared pointers.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{Nonce: a.Nonce}
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	if a.TokenBalance != nil {
		clone.TokenBalance = new(big.Int).Set(a.TokenBalance)
	}
	return EnsureAccount(clone)
}
