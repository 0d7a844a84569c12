package exchange

import (
	"math/big"

	"github.com/holiman/uint256"
)

// The conversions below are the only arithmetic the exchange performs on
// user-supplied amounts. They operate on big.Int but enforce the 256-bit
// unsigned domain of the persisted balances: any intermediate product that
// leaves that domain is an error, never a silent wrap. The back-division
// check is kept alongside the width check so a bad product is caught even if
// an input already sat outside the expected range.

// TokensFor converts a native-currency amount into token units (18 decimals)
// at the given rate: floor(nativeAmount * 1e18 / rate).
func TokensFor(nativeAmount, rate *big.Int) (*big.Int, error) {
	if rate == nil || rate.Sign() <= 0 {
		return nil, ErrRateInvalid
	}
	if nativeAmount == nil || nativeAmount.Sign() <= 0 {
		return nil, ErrAmountTooSmall
	}
	product := new(big.Int).Mul(nativeAmount, tokenScale)
	if _, overflow := uint256.FromBig(product); overflow {
		return nil, ErrMultiplicationOverflow
	}
	if check := new(big.Int).Quo(product, tokenScale); check.Cmp(nativeAmount) != 0 {
		return nil, ErrMultiplicationOverflow
	}
	tokens := product.Quo(product, rate)
	if tokens.Sign() == 0 {
		return nil, ErrAmountTooSmall
	}
	return tokens, nil
}

// NativeFor converts a token amount (18 decimals) into native currency at
// the given rate: floor(tokenAmount * rate / 1e18).
func NativeFor(tokenAmount, rate *big.Int) (*big.Int, error) {
	if rate == nil || rate.Sign() <= 0 {
		return nil, ErrRateInvalid
	}
	if tokenAmount == nil || tokenAmount.Sign() <= 0 {
		return nil, ErrAmountTooSmall
	}
	product := new(big.Int).Mul(tokenAmount, rate)
	if _, overflow := uint256.FromBig(product); overflow {
		return nil, ErrMultiplicationOverflow
	}
	if check := new(big.Int).Quo(product, rate); check.Cmp(tokenAmount) != 0 {
		return nil, ErrMultiplicationOverflow
	}
	native := product.Quo(product, tokenScale)
	if native.Sign() == 0 {
		return nil, ErrAmountTooSmall
	}
	return native, nil
}
