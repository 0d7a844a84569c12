package exchange

import (
	"fmt"
	"math/big"

	"github.com/Mr-H-E/Monorite/core/types"
)

// NativeSender performs the outward native-currency payment that concludes a
// fill. It is an interface so that tests can substitute a recipient that
// calls back into the engine while the payment is in flight.
type NativeSender interface {
	SendNative(from, to [20]byte, amount *big.Int) error
}

type senderState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// StateSender settles outward payments directly against state accounts. It
// validates recipient, amount and sender funds before moving anything and
// wraps backend failures as a transfer failure, which aborts the whole
// operation.
type StateSender struct {
	state senderState
}

// NewStateSender constructs a sender bound to the given account state.
func NewStateSender(state senderState) *StateSender {
	return &StateSender{state: state}
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

// SendNative implements NativeSender.
func (s *StateSender) SendNative(from, to [20]byte, amount *big.Int) error {
	if s == nil || s.state == nil {
		return fmt.Errorf("%w: sender not configured", ErrTransferFailed)
	}
	if isZeroAddress(to) {
		return ErrInvalidRecipient
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrAmountTooSmall
	}
	sender, err := s.state.GetAccount(from[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	sender = types.EnsureAccount(sender)
	if sender.Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	recipient, err := s.state.GetAccount(to[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	recipient = types.EnsureAccount(recipient)
	sender.Balance = new(big.Int).Sub(sender.Balance, amount)
	recipient.Balance = new(big.Int).Add(recipient.Balance, amount)
	if err := s.state.PutAccount(from[:], sender); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := s.state.PutAccount(to[:], recipient); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}
