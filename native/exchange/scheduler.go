package exchange

import (
	"math/big"

	"github.com/holiman/uint256"
)

var (
	maxUint256   = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	mintInterval = big.NewInt(MintInterval)
	two          = big.NewInt(2)
)

// advanceRate applies one completed operation to the scheduling state:
// increments the transaction counter, raises the rate by the current
// increment and, at each halving boundary, floors the increment by half and
// moves the boundary forward. The caller owns atomicity; any error here
// aborts the surrounding operation before the state is persisted.
func (e *Engine) advanceRate(st *State) error {
	if st.TxCount.Cmp(maxUint256) >= 0 {
		return ErrCounterOverflow
	}
	st.TxCount = new(big.Int).Add(st.TxCount, big.NewInt(1))

	oldRate := new(big.Int).Set(st.Rate)
	newRate := new(big.Int).Add(st.Rate, st.Increment)
	if _, overflow := uint256.FromBig(newRate); overflow {
		return ErrRateOverflow
	}
	st.Rate = newRate

	e.emit(rateUpdatedEvent(oldRate, newRate))
	e.emit(txCountIncrementedEvent(st.TxCount))

	if st.TxCount.Cmp(st.NextHalving) >= 0 {
		st.Increment = new(big.Int).Quo(st.Increment, two)
		st.NextHalving = new(big.Int).Add(st.NextHalving, halvingInterval)
		remaining := new(big.Int).Sub(st.NextHalving, st.TxCount)
		e.emit(halvingOccurredEvent(st.TxCount, st.Increment))
		e.emit(halvingCountdownEvent(remaining, st.Increment))
		e.metrics.RecordHalving()
	}
	return nil
}

// maybeMint runs the batch-mint schedule after a successful advanceRate.
// Every MintInterval completed operations it mints min(MintBatch, remaining
// capacity) into the pool. Once the cap is reached the trigger degrades to a
// silent no-op; the max-supply observation fires exactly once.
func (e *Engine) maybeMint(st *State) error {
	if new(big.Int).Mod(st.TxCount, mintInterval).Sign() != 0 {
		return nil
	}
	supply, err := e.ledger.TotalSupply()
	if err != nil {
		return err
	}
	remaining := new(big.Int).Sub(e.ledger.MaxSupply(), supply)
	if remaining.Sign() <= 0 {
		return nil
	}
	amount := new(big.Int).Set(MintBatch)
	if amount.Cmp(remaining) > 0 {
		amount.Set(remaining)
	}
	if err := e.ledger.Mint(PoolAddress, amount); err != nil {
		return err
	}
	e.emit(mintedEvent(PoolAddress, amount))
	e.metrics.RecordMint(amount)

	total := new(big.Int).Add(supply, amount)
	if total.Cmp(e.ledger.MaxSupply()) == 0 && !st.CapReached {
		st.CapReached = true
		e.emit(maxSupplyReachedEvent(total))
	}
	return nil
}
