package exchange

import (
	"encoding/hex"
	"math/big"

	"github.com/Mr-H-E/Monorite/core/events"
	"github.com/Mr-H-E/Monorite/core/types"
)

const (
	// EventTypeRateUpdated is emitted once per completed operation with the
	// old and new exchange rate.
	EventTypeRateUpdated = "exchange.rate.updated"
	// EventTypePurchase is emitted when a buy completes (full or partial).
	EventTypePurchase = "exchange.purchase"
	// EventTypeSale is emitted when a sell completes (full or partial).
	EventTypeSale = "exchange.sale"
	// EventTypeLiquidityChanged snapshots pool balances after an operation.
	EventTypeLiquidityChanged = "exchange.liquidity.changed"
	// EventTypeMinted is emitted when the mint scheduler adds pool tokens.
	EventTypeMinted = "exchange.minted"
	// EventTypePartialFill is emitted on the sell side when only part of the
	// offered tokens could be accepted.
	EventTypePartialFill = "exchange.partial.fill"
	// EventTypeMaxSupplyReached fires exactly once, when total supply hits the cap.
	EventTypeMaxSupplyReached = "exchange.supply.max"
	// EventTypeTxCountIncremented reports the counter after each operation.
	EventTypeTxCountIncremented = "exchange.txcount.incremented"
	// EventTypeHalvingOccurred is emitted when the increment halves.
	EventTypeHalvingOccurred = "exchange.halving.occurred"
	// EventTypeHalvingCountdown reports the distance to the next halving.
	EventTypeHalvingCountdown = "exchange.halving.countdown"
	// EventTypePartialBuyRefunded is emitted after the unspent native amount
	// of a partial buy has been returned.
	EventTypePartialBuyRefunded = "exchange.refund.partialbuy"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func rateUpdatedEvent(oldRate, newRate *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeRateUpdated,
		Attributes: map[string]string{
			"oldRate": bigString(oldRate),
			"newRate": bigString(newRate),
		},
	}
}

func purchaseEvent(buyer [20]byte, nativeSpent, tokensBought, rate *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypePurchase,
		Attributes: map[string]string{
			"buyer":        hexAddr(buyer),
			"nativeSpent":  bigString(nativeSpent),
			"tokensBought": bigString(tokensBought),
			"rate":         bigString(rate),
		},
	}
}

func saleEvent(seller [20]byte, tokensSold, nativeReceived, rate *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeSale,
		Attributes: map[string]string{
			"seller":         hexAddr(seller),
			"tokensSold":     bigString(tokensSold),
			"nativeReceived": bigString(nativeReceived),
			"rate":           bigString(rate),
		},
	}
}

func liquidityChangedEvent(poolNative, poolTokens *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeLiquidityChanged,
		Attributes: map[string]string{
			"poolNative": bigString(poolNative),
			"poolTokens": bigString(poolTokens),
		},
	}
}

func mintedEvent(destination [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeMinted,
		Attributes: map[string]string{
			"destination": hexAddr(destination),
			"amount":      bigString(amount),
		},
	}
}

func partialFillEvent(user [20]byte, fulfilled, returned *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypePartialFill,
		Attributes: map[string]string{
			"user":      hexAddr(user),
			"fulfilled": bigString(fulfilled),
			"returned":  bigString(returned),
		},
	}
}

func maxSupplyReachedEvent(totalSupply *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeMaxSupplyReached,
		Attributes: map[string]string{
			"totalSupply": bigString(totalSupply),
		},
	}
}

func txCountIncrementedEvent(count *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTxCountIncremented,
		Attributes: map[string]string{
			"count": bigString(count),
		},
	}
}

func halvingOccurredEvent(count, newIncrement *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeHalvingOccurred,
		Attributes: map[string]string{
			"count":        bigString(count),
			"newIncrement": bigString(newIncrement),
		},
	}
}

func halvingCountdownEvent(remaining, increment *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeHalvingCountdown,
		Attributes: map[string]string{
			"remaining": bigString(remaining),
			"increment": bigString(increment),
		},
	}
}

func partialBuyRefundedEvent(buyer [20]byte, refund *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypePartialBuyRefunded,
		Attributes: map[string]string{
			"buyer":  hexAddr(buyer),
			"refund": bigString(refund),
		},
	}
}
