package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ExchangeMetrics aggregates the prometheus collectors for the exchange
// engine. Methods are nil-safe so the engine can run without metrics wired.
type ExchangeMetrics struct {
	operations   *prometheus.CounterVec
	partialFills *prometheus.CounterVec
	halvings     prometheus.Counter
	mintedTokens prometheus.Counter
	poolNative   prometheus.Gauge
	poolTokens   prometheus.Gauge
}

var (
	exchangeOnce     sync.Once
	exchangeRegistry *ExchangeMetrics
)

// Exchange returns the process-wide exchange metrics registry.
func Exchange() *ExchangeMetrics {
	exchangeOnce.Do(func() {
		exchangeRegistry = &ExchangeMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "exchange_operations_total",
				Help: "Count of buy/sell operations by kind and outcome.",
			}, []string{"kind", "outcome"}),
			partialFills: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "exchange_partial_fills_total",
				Help: "Count of partially filled operations by kind.",
			}, []string{"kind"}),
			halvings: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "exchange_halvings_total",
				Help: "Count of increment halvings applied by the rate scheduler.",
			}),
			mintedTokens: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "exchange_minted_tokens",
				Help: "Whole tokens minted into the pool by the mint scheduler.",
			}),
			poolNative: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "exchange_pool_native_balance",
				Help: "Native currency held by the exchange pool.",
			}),
			poolTokens: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "exchange_pool_token_balance",
				Help: "Token units held by the exchange pool.",
			}),
		}
		prometheus.MustRegister(
			exchangeRegistry.operations,
			exchangeRegistry.partialFills,
			exchangeRegistry.halvings,
			exchangeRegistry.mintedTokens,
			exchangeRegistry.poolNative,
			exchangeRegistry.poolTokens,
		)
	})
	return exchangeRegistry
}

// RecordOperation counts a completed or failed operation.
func (m *ExchangeMetrics) RecordOperation(kind, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(kind, outcome).Inc()
}

// RecordPartialFill counts an operation settled against exhausted liquidity.
func (m *ExchangeMetrics) RecordPartialFill(kind string) {
	if m == nil {
		return
	}
	m.partialFills.WithLabelValues(kind).Inc()
}

// RecordHalving counts an increment halving.
func (m *ExchangeMetrics) RecordHalving() {
	if m == nil {
		return
	}
	m.halvings.Inc()
}

// RecordMint adds the minted amount, reported in whole tokens to stay within
// float64 precision.
func (m *ExchangeMetrics) RecordMint(amount *big.Int) {
	if m == nil || amount == nil {
		return
	}
	tokens, _ := new(big.Float).Quo(
		new(big.Float).SetInt(amount),
		big.NewFloat(1e18),
	).Float64()
	m.mintedTokens.Add(tokens)
}

// SetPool updates the pool balance gauges, reported in base units.
func (m *ExchangeMetrics) SetPool(native, tokens *big.Int) {
	if m == nil {
		return
	}
	if native != nil {
		v, _ := new(big.Float).SetInt(native).Float64()
		m.poolNative.Set(v)
	}
	if tokens != nil {
		v, _ := new(big.Float).SetInt(tokens).Float64()
		m.poolTokens.Set(v)
	}
}
