package exchange

import "errors"

// Validation errors reject an operation before any state is touched.
var (
	ErrAmountTooSmall   = errors.New("exchange: amount too small")
	ErrInvalidRecipient = errors.New("exchange: invalid recipient")
	ErrWrongChain       = errors.New("exchange: wrong chain identity")
	ErrReentrantCall    = errors.New("exchange: reentrant call rejected")
	ErrDirectNativeSend = errors.New("exchange: direct native transfers are not allowed")
)

// Arithmetic errors surface overflow or degenerate inputs in the fixed-point
// conversions and counters. They always abort the whole operation.
var (
	ErrRateInvalid            = errors.New("exchange: exchange rate must be positive")
	ErrMultiplicationOverflow = errors.New("exchange: multiplication overflow")
	ErrRateOverflow           = errors.New("exchange: exchange rate overflow")
	ErrCounterOverflow        = errors.New("exchange: transaction counter overflow")
)

// Liquidity errors reflect pool or caller balances that cannot satisfy the
// requested operation at all.
var (
	ErrNoLiquidity         = errors.New("exchange: pool has no liquidity")
	ErrInsufficientBalance = errors.New("exchange: insufficient balance")
)

// Transfer errors wrap the outward native-currency payment step.
var (
	ErrInsufficientFunds = errors.New("exchange: insufficient funds")
	ErrTransferFailed    = errors.New("exchange: native transfer failed")
)
