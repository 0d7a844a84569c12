package exchange

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/Mr-H-E/Monorite/core/events"
	"github.com/Mr-H-E/Monorite/core/types"
	"github.com/Mr-H-E/Monorite/native/token"
	"github.com/Mr-H-E/Monorite/observability/metrics"
)

var (
	errNilState       = errors.New("exchange engine: state not configured")
	errNotInitialized = errors.New("exchange engine: genesis state missing")
)

var stateKey = []byte("monorite/exchange/state")

// Operation kinds reported in receipts and metrics.
const (
	OpBuy  = "buy"
	OpSell = "sell"
)

type engineState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	Snapshot() int
	RevertToSnapshot(revision int)
}

// TokenLedger is the slice of token ledger functionality the engine uses.
type TokenLedger interface {
	TotalSupply() (*big.Int, error)
	MaxSupply() *big.Int
	BalanceOf(addr [20]byte) (*big.Int, error)
	Mint(to [20]byte, amount *big.Int) error
	InternalTransfer(c token.Capability, from, to [20]byte, amount *big.Int) error
}

// Engine executes buy and sell orders against the exchange's own liquidity
// pool. Every operation is all-or-nothing: a state snapshot is taken at
// entry and any failure rolls every mutation back. Events are buffered for
// the duration of an operation and reach the emitter only once the
// operation has committed, so subscribers never observe rolled-back work.
// The entered flag rejects re-entrant invocations triggered from inside the
// outward payment step.
type Engine struct {
	state      engineState
	ledger     TokenLedger
	sender     NativeSender
	emitter    events.Emitter
	metrics    *metrics.ExchangeMetrics
	capability token.Capability
	pending    []*types.Event
	chainID    uint64
	chainFn    func() uint64
	entered    bool
}

// NewEngine constructs an order engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the token ledger used by the engine.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetCapability configures the privileged-transfer capability issued by the
// token ledger. Without it every fill fails authorization.
func (e *Engine) SetCapability(c token.Capability) { e.capability = c }

// SetSender configures the outward native-currency sender.
func (e *Engine) SetSender(sender NativeSender) { e.sender = sender }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetMetrics configures the prometheus collectors updated on each operation.
func (e *Engine) SetMetrics(m *metrics.ExchangeMetrics) { e.metrics = m }

// SetChainID configures the chain identity this engine is bound to.
func (e *Engine) SetChainID(id uint64) { e.chainID = id }

// SetChainFunc overrides the ambient chain identity source. The default
// reports the configured chain id, i.e. a matching environment.
func (e *Engine) SetChainFunc(fn func() uint64) { e.chainFn = fn }

// emit queues an event for the in-flight operation. Buffered events are
// published by flushEvents once the operation commits and dropped by
// discardEvents when it rolls back, keeping the observation stream atomic
// with the state.
func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil {
		return
	}
	e.pending = append(e.pending, evt)
}

func (e *Engine) flushEvents() {
	if e.emitter != nil {
		for _, evt := range e.pending {
			e.emitter.Emit(WrapEvent(evt))
		}
	}
	e.pending = nil
}

func (e *Engine) discardEvents() { e.pending = nil }

func (e *Engine) checkChain() error {
	if e.chainFn == nil {
		return nil
	}
	if e.chainFn() != e.chainID {
		return ErrWrongChain
	}
	return nil
}

func (e *Engine) enter() error {
	if e.entered {
		return ErrReentrantCall
	}
	e.entered = true
	return nil
}

func (e *Engine) exit() { e.entered = false }

func (e *Engine) loadState() (*State, error) {
	st := new(State)
	ok, err := e.state.KVGet(stateKey, st)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNotInitialized
	}
	return st.ensure(), nil
}

func (e *Engine) saveState(st *State) error {
	return e.state.KVPut(stateKey, st.ensure())
}

// InitGenesis seeds the scheduling state and the pool's opening liquidity.
// The token side is created through a cap-checked mint. It is a one-shot
// bootstrap; reinitializing an existing exchange is an error.
func (e *Engine) InitGenesis(rate, increment, poolNative, poolTokens *big.Int) error {
	if e == nil || e.state == nil || e.ledger == nil {
		return errNilState
	}
	if rate == nil || rate.Sign() <= 0 {
		return ErrRateInvalid
	}
	existing := new(State)
	if ok, err := e.state.KVGet(stateKey, existing); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("exchange engine: already initialized")
	}
	if err := e.saveState(NewState(rate, increment)); err != nil {
		return err
	}
	if poolNative != nil && poolNative.Sign() > 0 {
		pool, err := e.state.GetAccount(PoolAddress[:])
		if err != nil {
			return err
		}
		pool = types.EnsureAccount(pool)
		pool.Balance = new(big.Int).Add(pool.Balance, poolNative)
		if err := e.state.PutAccount(PoolAddress[:], pool); err != nil {
			return err
		}
	}
	if poolTokens != nil && poolTokens.Sign() > 0 {
		if err := e.ledger.Mint(PoolAddress, poolTokens); err != nil {
			return err
		}
	}
	return nil
}

// ReceiveNative rejects unsolicited inbound native transfers. Native
// currency only enters the exchange through Buy.
func (e *Engine) ReceiveNative(from [20]byte, amount *big.Int) error {
	return ErrDirectNativeSend
}

// Initialized reports whether genesis state has been written.
func (e *Engine) Initialized() (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	return e.state.KVGet(stateKey, new(State))
}

// State returns a copy of the current scheduling state.
func (e *Engine) State() (*State, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	st, err := e.loadState()
	if err != nil {
		return nil, err
	}
	return st.Clone(), nil
}

// PoolBalances returns the pool's native and token holdings.
func (e *Engine) PoolBalances() (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil || e.ledger == nil {
		return nil, nil, errNilState
	}
	pool, err := e.state.GetAccount(PoolAddress[:])
	if err != nil {
		return nil, nil, err
	}
	pool = types.EnsureAccount(pool)
	tokens, err := e.ledger.BalanceOf(PoolAddress)
	if err != nil {
		return nil, nil, err
	}
	return new(big.Int).Set(pool.Balance), tokens, nil
}

// Buy swaps attached native currency for tokens from the pool at the rate in
// effect before this operation. Pool liquidity short of the request results
// in a partial fill with the unspent native amount refunded last.
func (e *Engine) Buy(buyer [20]byte, nativeIn *big.Int) (*Receipt, error) {
	if e == nil || e.state == nil || e.ledger == nil || e.sender == nil {
		return nil, errNilState
	}
	if err := e.checkChain(); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	snapshot := e.state.Snapshot()
	receipt, err := e.buy(buyer, nativeIn)
	if err != nil {
		e.state.RevertToSnapshot(snapshot)
		e.discardEvents()
		e.metrics.RecordOperation(OpBuy, "error")
		return nil, err
	}
	e.flushEvents()
	e.metrics.RecordOperation(OpBuy, "ok")
	return receipt, nil
}

func (e *Engine) buy(buyer [20]byte, nativeIn *big.Int) (*Receipt, error) {
	if nativeIn == nil || nativeIn.Sign() <= 0 {
		return nil, ErrAmountTooSmall
	}
	st, err := e.loadState()
	if err != nil {
		return nil, err
	}
	rate := new(big.Int).Set(st.Rate)
	requested, err := TokensFor(nativeIn, rate)
	if err != nil {
		return nil, err
	}
	poolTokens, err := e.ledger.BalanceOf(PoolAddress)
	if err != nil {
		return nil, err
	}
	if poolTokens.Sign() == 0 {
		return nil, ErrNoLiquidity
	}
	// The attached value moves into the pool's custody first; partial fills
	// return the unspent remainder through the guarded outward payment.
	if err := e.moveNative(buyer, PoolAddress, nativeIn); err != nil {
		return nil, err
	}

	receipt := &Receipt{Kind: OpBuy, Caller: buyer, Rate: rate}
	if requested.Cmp(poolTokens) <= 0 {
		if err := e.ledger.InternalTransfer(e.capability, PoolAddress, buyer, requested); err != nil {
			return nil, err
		}
		receipt.NativeValue = new(big.Int).Set(nativeIn)
		receipt.TokenValue = requested
		e.emit(purchaseEvent(buyer, nativeIn, requested, rate))
	} else {
		available := new(big.Int).Set(poolTokens)
		nativeNeeded, err := NativeFor(available, rate)
		if err != nil {
			return nil, err
		}
		refund := new(big.Int).Sub(nativeIn, nativeNeeded)
		if err := e.ledger.InternalTransfer(e.capability, PoolAddress, buyer, available); err != nil {
			return nil, err
		}
		receipt.NativeValue = nativeNeeded
		receipt.TokenValue = available
		receipt.Partial = true
		e.emit(purchaseEvent(buyer, nativeNeeded, available, rate))
		if refund.Sign() > 0 {
			if err := e.sender.SendNative(PoolAddress, buyer, refund); err != nil {
				return nil, err
			}
			receipt.Refund = refund
			e.emit(partialBuyRefundedEvent(buyer, refund))
		}
		e.metrics.RecordPartialFill(OpBuy)
	}

	if err := e.finishOperation(st); err != nil {
		return nil, err
	}
	return receipt, nil
}

// Sell swaps caller tokens for native currency from the pool at the rate in
// effect before this operation. If the pool cannot pay for the full amount
// only the affordable portion is pulled from the caller; the remainder never
// leaves their custody.
func (e *Engine) Sell(seller [20]byte, tokenIn *big.Int) (*Receipt, error) {
	if e == nil || e.state == nil || e.ledger == nil || e.sender == nil {
		return nil, errNilState
	}
	if err := e.checkChain(); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	snapshot := e.state.Snapshot()
	receipt, err := e.sell(seller, tokenIn)
	if err != nil {
		e.state.RevertToSnapshot(snapshot)
		e.discardEvents()
		e.metrics.RecordOperation(OpSell, "error")
		return nil, err
	}
	e.flushEvents()
	e.metrics.RecordOperation(OpSell, "ok")
	return receipt, nil
}

func (e *Engine) sell(seller [20]byte, tokenIn *big.Int) (*Receipt, error) {
	if tokenIn == nil || tokenIn.Sign() <= 0 {
		return nil, ErrAmountTooSmall
	}
	balance, err := e.ledger.BalanceOf(seller)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(tokenIn) < 0 {
		return nil, fmt.Errorf("%w: need %s, have %s", ErrInsufficientBalance, tokenIn, balance)
	}
	st, err := e.loadState()
	if err != nil {
		return nil, err
	}
	rate := new(big.Int).Set(st.Rate)
	pool, err := e.state.GetAccount(PoolAddress[:])
	if err != nil {
		return nil, err
	}
	pool = types.EnsureAccount(pool)
	poolNative := new(big.Int).Set(pool.Balance)
	if poolNative.Sign() == 0 {
		return nil, ErrNoLiquidity
	}
	owed, err := NativeFor(tokenIn, rate)
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{Kind: OpSell, Caller: seller, Rate: rate}
	if owed.Cmp(poolNative) <= 0 {
		if err := e.ledger.InternalTransfer(e.capability, seller, PoolAddress, tokenIn); err != nil {
			return nil, err
		}
		receipt.TokenValue = new(big.Int).Set(tokenIn)
		receipt.NativeValue = owed
		e.emit(saleEvent(seller, tokenIn, owed, rate))
		if err := e.sender.SendNative(PoolAddress, seller, owed); err != nil {
			return nil, err
		}
	} else {
		accepted, err := TokensFor(poolNative, rate)
		if err != nil {
			return nil, err
		}
		untaken := new(big.Int).Sub(tokenIn, accepted)
		if err := e.ledger.InternalTransfer(e.capability, seller, PoolAddress, accepted); err != nil {
			return nil, err
		}
		receipt.TokenValue = accepted
		receipt.NativeValue = poolNative
		receipt.Partial = true
		receipt.Untaken = untaken
		e.emit(saleEvent(seller, accepted, poolNative, rate))
		e.emit(partialFillEvent(seller, accepted, untaken))
		if err := e.sender.SendNative(PoolAddress, seller, poolNative); err != nil {
			return nil, err
		}
		e.metrics.RecordPartialFill(OpSell)
	}

	if err := e.finishOperation(st); err != nil {
		return nil, err
	}
	return receipt, nil
}

// finishOperation runs the schedulers, persists the scheduling state and
// snapshots pool liquidity. It is shared by both order paths.
func (e *Engine) finishOperation(st *State) error {
	if err := e.advanceRate(st); err != nil {
		return err
	}
	if err := e.maybeMint(st); err != nil {
		return err
	}
	if err := e.saveState(st); err != nil {
		return err
	}
	poolNative, poolTokens, err := e.PoolBalances()
	if err != nil {
		return err
	}
	e.emit(liquidityChangedEvent(poolNative, poolTokens))
	e.metrics.SetPool(poolNative, poolTokens)
	return nil
}

// moveNative shifts native currency between two state accounts as internal
// bookkeeping. The guarded outward path is NativeSender, not this.
func (e *Engine) moveNative(from, to [20]byte, amount *big.Int) error {
	sender, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	sender = types.EnsureAccount(sender)
	if sender.Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	recipient, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	recipient = types.EnsureAccount(recipient)
	sender.Balance = new(big.Int).Sub(sender.Balance, amount)
	recipient.Balance = new(big.Int).Add(recipient.Balance, amount)
	if err := e.state.PutAccount(from[:], sender); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], recipient)
}
