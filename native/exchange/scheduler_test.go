package exchange

import (
	"errors"
	"math/big"
	"testing"
)

func TestAdvanceRateAccumulatesIncrements(t *testing.T) {
	env := newTestEnv(t, big.NewInt(0), big.NewInt(0))
	st := NewState(testRate, testIncrement)

	const steps = 1000
	for i := 0; i < steps; i++ {
		if err := env.engine.advanceRate(st); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}
	want := new(big.Int).Add(testRate, new(big.Int).Mul(testIncrement, big.NewInt(steps)))
	if st.Rate.Cmp(want) != 0 {
		t.Fatalf("rate after %d operations: want %s, got %s", steps, want, st.Rate)
	}
	if st.TxCount.Cmp(big.NewInt(steps)) != 0 {
		t.Fatalf("count: want %d, got %s", steps, st.TxCount)
	}
	if st.NextHalving.Cmp(big.NewInt(HalvingInterval)) != 0 {
		t.Fatalf("halving threshold moved early: %s", st.NextHalving)
	}
}

func TestHalvingAtThreshold(t *testing.T) {
	env := newTestEnv(t, big.NewInt(0), big.NewInt(0))
	st := NewState(testRate, testIncrement)
	st.TxCount = big.NewInt(HalvingInterval - 1)
	env.recorder.Reset()

	if err := env.engine.advanceRate(st); err != nil {
		t.Fatalf("advance: %v", err)
	}
	env.engine.flushEvents()
	wantIncrement := new(big.Int).Quo(testIncrement, big.NewInt(2))
	if st.Increment.Cmp(wantIncrement) != 0 {
		t.Fatalf("increment after halving: want %s, got %s", wantIncrement, st.Increment)
	}
	wantThreshold := big.NewInt(2 * HalvingInterval)
	if st.NextHalving.Cmp(wantThreshold) != 0 {
		t.Fatalf("next threshold: want %s, got %s", wantThreshold, st.NextHalving)
	}
	if !env.hasEvent(EventTypeHalvingOccurred) || !env.hasEvent(EventTypeHalvingCountdown) {
		t.Fatalf("expected halving events, got %v", env.eventTypes())
	}
	// The rate update for the boundary operation still used the old increment.
	wantRate := new(big.Int).Add(testRate, testIncrement)
	if st.Rate.Cmp(wantRate) != 0 {
		t.Fatalf("rate at boundary: want %s, got %s", wantRate, st.Rate)
	}
}

func TestHalvingFloorsIncrementToZero(t *testing.T) {
	env := newTestEnv(t, big.NewInt(0), big.NewInt(0))
	st := NewState(testRate, big.NewInt(1))
	st.TxCount = big.NewInt(HalvingInterval - 1)

	if err := env.engine.advanceRate(st); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if st.Increment.Sign() != 0 {
		t.Fatalf("increment should floor to zero, got %s", st.Increment)
	}
	// With a zero increment the rate stays flat but operations keep counting.
	rate := new(big.Int).Set(st.Rate)
	if err := env.engine.advanceRate(st); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if st.Rate.Cmp(rate) != 0 {
		t.Fatalf("rate moved with a zero increment: %s -> %s", rate, st.Rate)
	}
}

func TestAdvanceRateCounterOverflow(t *testing.T) {
	env := newTestEnv(t, big.NewInt(0), big.NewInt(0))
	st := NewState(testRate, testIncrement)
	st.TxCount = new(big.Int).Set(maxUint256)

	if err := env.engine.advanceRate(st); !errors.Is(err, ErrCounterOverflow) {
		t.Fatalf("expected ErrCounterOverflow, got %v", err)
	}
}

func TestAdvanceRateRateOverflow(t *testing.T) {
	env := newTestEnv(t, big.NewInt(0), big.NewInt(0))
	st := NewState(maxUint256, big.NewInt(1))

	if err := env.engine.advanceRate(st); !errors.Is(err, ErrRateOverflow) {
		t.Fatalf("expected ErrRateOverflow, got %v", err)
	}
}

func TestMaybeMintSkipsOffInterval(t *testing.T) {
	env := newTestEnv(t, big.NewInt(0), big.NewInt(0))
	st := NewState(testRate, testIncrement)
	st.TxCount = big.NewInt(101)
	env.recorder.Reset()

	if err := env.engine.maybeMint(st); err != nil {
		t.Fatalf("maybe mint: %v", err)
	}
	env.engine.flushEvents()
	if len(env.recorder.Events) != 0 {
		t.Fatalf("off-interval mint emitted events: %v", env.eventTypes())
	}
	supply, err := env.ledger.TotalSupply()
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	if supply.Sign() != 0 {
		t.Fatalf("off-interval mint created supply: %s", supply)
	}
}

func TestMintClampsToRemainingCapacity(t *testing.T) {
	env := newTestEnv(t, big.NewInt(0), big.NewInt(0))
	// Leave less than one batch of headroom under the cap.
	headroom := big.NewInt(3)
	seeded := new(big.Int).Sub(env.ledger.MaxSupply(), headroom)
	if err := env.ledger.Mint(sellerAddr, seeded); err != nil {
		t.Fatalf("seed supply: %v", err)
	}
	st := NewState(testRate, testIncrement)
	st.TxCount = big.NewInt(100)
	env.recorder.Reset()

	if err := env.engine.maybeMint(st); err != nil {
		t.Fatalf("maybe mint: %v", err)
	}
	env.engine.flushEvents()
	supply, err := env.ledger.TotalSupply()
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	if supply.Cmp(env.ledger.MaxSupply()) != 0 {
		t.Fatalf("clamped mint should land exactly on the cap, got %s", supply)
	}
	if !env.hasEvent(EventTypeMinted) {
		t.Fatalf("expected a mint event, got %v", env.eventTypes())
	}
	if !env.hasEvent(EventTypeMaxSupplyReached) {
		t.Fatalf("expected the max-supply event, got %v", env.eventTypes())
	}
	if !st.CapReached {
		t.Fatalf("cap latch not set")
	}
}

func TestMaxSupplyEventFiresOnce(t *testing.T) {
	env := newTestEnv(t, big.NewInt(0), big.NewInt(0))
	if err := env.ledger.Mint(sellerAddr, env.ledger.MaxSupply()); err != nil {
		t.Fatalf("seed supply: %v", err)
	}
	st := NewState(testRate, testIncrement)
	st.TxCount = big.NewInt(100)
	st.CapReached = true
	env.recorder.Reset()

	// At the cap the trigger is a silent no-op: no mint, no repeat event.
	if err := env.engine.maybeMint(st); err != nil {
		t.Fatalf("maybe mint: %v", err)
	}
	env.engine.flushEvents()
	if len(env.recorder.Events) != 0 {
		t.Fatalf("no-op mint emitted events: %v", env.eventTypes())
	}
}
