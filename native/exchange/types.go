package exchange

import "math/big"

// Scheduling constants for the bonding curve. The increment halves every
// HalvingInterval completed operations; MintBatch tokens are minted into the
// pool every MintInterval completed operations until the supply cap.
const (
	HalvingInterval = 400_000_000
	MintInterval    = 100
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("exchange: invalid big integer constant")
	}
	return v
}

var (
	// tokenScale is the fixed-point scale of one whole token (18 decimals).
	tokenScale = mustBigInt("1000000000000000000")
	// MintBatch is the token amount minted into the pool at each mint trigger.
	MintBatch = mustBigInt("7000000000000000000")

	halvingInterval = big.NewInt(HalvingInterval)
)

// PoolAddress is the exchange's own custody address. The pool holds the
// native-currency and token liquidity that backs every operation.
var PoolAddress = func() [20]byte {
	var addr [20]byte
	copy(addr[:], "monorite/exchange/po")
	return addr
}()

// State is the persisted scheduling state of the exchange: the current
// bonding-curve rate, the per-operation increment, the completed-operation
// counter and the next halving boundary. CapReached latches once total
// supply hits the cap so the max-supply observation fires exactly once.
type State struct {
	Rate        *big.Int
	Increment   *big.Int
	TxCount     *big.Int
	NextHalving *big.Int
	CapReached  bool
}

// NewState returns the genesis scheduling state for the given initial rate
// and increment.
func NewState(rate, increment *big.Int) *State {
	s := &State{
		Rate:        new(big.Int),
		Increment:   new(big.Int),
		TxCount:     big.NewInt(0),
		NextHalving: big.NewInt(HalvingInterval),
	}
	if rate != nil {
		s.Rate.Set(rate)
	}
	if increment != nil {
		s.Increment.Set(increment)
	}
	return s
}

// ensure normalizes nil fields so decoded or hand-built states are safe to use.
func (s *State) ensure() *State {
	if s == nil {
		return NewState(nil, nil)
	}
	if s.Rate == nil {
		s.Rate = big.NewInt(0)
	}
	if s.Increment == nil {
		s.Increment = big.NewInt(0)
	}
	if s.TxCount == nil {
		s.TxCount = big.NewInt(0)
	}
	if s.NextHalving == nil {
		s.NextHalving = big.NewInt(HalvingInterval)
	}
	return s
}

// Clone returns a deep copy of the scheduling state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := &State{CapReached: s.CapReached}
	if s.Rate != nil {
		clone.Rate = new(big.Int).Set(s.Rate)
	}
	if s.Increment != nil {
		clone.Increment = new(big.Int).Set(s.Increment)
	}
	if s.TxCount != nil {
		clone.TxCount = new(big.Int).Set(s.TxCount)
	}
	if s.NextHalving != nil {
		clone.NextHalving = new(big.Int).Set(s.NextHalving)
	}
	return clone.ensure()
}

// Receipt summarizes a completed buy or sell for the caller.
type Receipt struct {
	Kind        string   `json:"kind"`
	Caller      [20]byte `json:"-"`
	NativeValue *big.Int `json:"nativeValue"`
	TokenValue  *big.Int `json:"tokenValue"`
	Rate        *big.Int `json:"rate"`
	Partial     bool     `json:"partial"`
	Refund      *big.Int `json:"refund,omitempty"`
	Untaken     *big.Int `json:"untaken,omitempty"`
}
