package token

import (
	"errors"
	"math/big"

	"github.com/Mr-H-E/Monorite/core/types"
)

var (
	// ErrNilState indicates the ledger was used before wiring a state backend.
	ErrNilState = errors.New("token ledger: state not configured")
	// ErrInvalidAmount indicates a zero, negative or nil amount.
	ErrInvalidAmount = errors.New("token ledger: amount must be positive")
	// ErrSupplyCapExceeded indicates a mint that would push total supply past the cap.
	ErrSupplyCapExceeded = errors.New("token ledger: mint exceeds max supply")
	// ErrInsufficientBalance indicates the sender does not hold the requested amount.
	ErrInsufficientBalance = errors.New("token ledger: insufficient balance")
	// ErrDirectTransferDisabled is returned by every public transfer path. Tokens
	// only move through the exchange's privileged internal transfer.
	ErrDirectTransferDisabled = errors.New("token ledger: direct transfers are disabled")
	// ErrUnauthorized indicates a privileged transfer without the capability
	// issued at ledger construction.
	ErrUnauthorized = errors.New("token ledger: privileged transfer requires the exchange capability")
)

var supplyKey = []byte("monorite/token/supply")

// MaxSupply is the hard cap on total Monorite supply: 21,000,000 whole
// tokens at 18 decimals.
var MaxSupply = func() *big.Int {
	v, ok := new(big.Int).SetString("21000000000000000000000000", 10)
	if !ok {
		panic("token: invalid max supply constant")
	}
	return v
}()

// State is the narrow slice of state-management functionality the ledger
// needs.
type State interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Ledger tracks Monorite balances and total supply. The public ERC-20 style
// transfer surface is permanently disabled; balance moves happen exclusively
// through InternalTransfer, which only the order engine is wired to call.
type Ledger struct {
	state State
}

// Capability authorizes calls to InternalTransfer. The only way to obtain a
// valid one is from NewLedger; the zero value is rejected. Because the ledger
// field is unexported, other packages cannot forge a capability for a ledger
// they did not construct.
type Capability struct {
	ledger *Ledger
}

// NewLedger constructs a ledger bound to the provided state backend, together
// with the capability that unlocks its privileged transfer path.
func NewLedger(state State) (*Ledger, Capability) {
	l := &Ledger{state: state}
	return l, Capability{ledger: l}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state State) { l.state = state }

// TotalSupply returns the total minted token supply.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	supply := new(big.Int)
	ok, err := l.state.KVGet(supplyKey, supply)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return supply, nil
}

// MaxSupply returns a copy of the immutable supply cap.
func (l *Ledger) MaxSupply() *big.Int {
	return new(big.Int).Set(MaxSupply)
}

// BalanceOf returns the token balance held by addr.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	account, err := l.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	account = types.EnsureAccount(account)
	return new(big.Int).Set(account.TokenBalance), nil
}

// Mint creates amount new tokens for the recipient. The mint fails if it
// would push total supply beyond MaxSupply.
func (l *Ledger) Mint(to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	newSupply := new(big.Int).Add(supply, amount)
	if newSupply.Cmp(MaxSupply) > 0 {
		return ErrSupplyCapExceeded
	}
	account, err := l.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	account = types.EnsureAccount(account)
	account.TokenBalance = new(big.Int).Add(account.TokenBalance, amount)
	if err := l.state.PutAccount(to[:], account); err != nil {
		return err
	}
	return l.state.KVPut(supplyKey, newSupply)
}

// InternalTransfer moves amount tokens between two addresses under the
// exchange's custody rules. Callers must present the capability handed out by
// NewLedger for this ledger instance.
func (l *Ledger) InternalTransfer(c Capability, from, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if c.ledger != l {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	sender, err := l.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	sender = types.EnsureAccount(sender)
	if sender.TokenBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	recipient, err := l.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	recipient = types.EnsureAccount(recipient)
	sender.TokenBalance = new(big.Int).Sub(sender.TokenBalance, amount)
	recipient.TokenBalance = new(big.Int).Add(recipient.TokenBalance, amount)
	if err := l.state.PutAccount(from[:], sender); err != nil {
		return err
	}
	return l.state.PutAccount(to[:], recipient)
}

// Transfer is the public ERC-20 style entry point. It always fails: Monorite
// can only change hands through exchange operations.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	return ErrDirectTransferDisabled
}

// TransferFrom mirrors Transfer and is equally disabled.
func (l *Ledger) TransferFrom(spender, from, to [20]byte, amount *big.Int) error {
	return ErrDirectTransferDisabled
}
