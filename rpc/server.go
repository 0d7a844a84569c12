package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/Mr-H-E/Monorite/core/events"
	"github.com/Mr-H-E/Monorite/core/state"
	"github.com/Mr-H-E/Monorite/core/types"
	"github.com/Mr-H-E/Monorite/native/exchange"
	"github.com/Mr-H-E/Monorite/native/token"
)

// Server exposes the exchange over HTTP. It is the host environment of the
// order engine: it serializes operations, commits state after each success
// and returns the events an operation emitted.
type Server struct {
	mu       sync.Mutex
	engine   *exchange.Engine
	ledger   *token.Ledger
	state    *state.StateDB
	recorder *events.Recorder
	log      *slog.Logger
	limiter  *rate.Limiter
}

// NewServer wires a server around an engine whose emitter it owns.
func NewServer(engine *exchange.Engine, ledger *token.Ledger, st *state.StateDB, log *slog.Logger) *Server {
	s := &Server{
		engine:   engine,
		ledger:   ledger,
		state:    st,
		recorder: &events.Recorder{},
		log:      log,
		limiter:  rate.NewLimiter(rate.Limit(50), 100),
	}
	engine.SetEmitter(s.recorder)
	return s
}

// Handler builds the chi router for the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.rateLimit)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/exchange", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/balance/{address}", s.handleBalance)
		r.Post("/buy", s.handleBuy)
		r.Post("/sell", s.handleSell)
		r.Post("/transfer", s.handleTransfer)
		r.Post("/deposit", s.handleDeposit)
	})
	return r
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type operationRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type operationResponse struct {
	Receipt *exchange.Receipt `json:"receipt"`
	Events  []*types.Event    `json:"events"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func parseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil || len(raw) != 20 {
		return addr, errors.New("address must be 20 hex-encoded bytes")
	}
	copy(addr[:], raw)
	return addr, nil
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || amount.Sign() < 0 {
		return nil, errors.New("amount must be a non-negative decimal integer")
	}
	return amount, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, exchange.ErrAmountTooSmall),
		errors.Is(err, exchange.ErrInvalidRecipient),
		errors.Is(err, exchange.ErrRateInvalid),
		errors.Is(err, exchange.ErrMultiplicationOverflow):
		return http.StatusBadRequest
	case errors.Is(err, exchange.ErrWrongChain),
		errors.Is(err, exchange.ErrDirectNativeSend),
		errors.Is(err, token.ErrDirectTransferDisabled):
		return http.StatusForbidden
	case errors.Is(err, exchange.ErrNoLiquidity),
		errors.Is(err, exchange.ErrInsufficientBalance),
		errors.Is(err, exchange.ErrInsufficientFunds),
		errors.Is(err, exchange.ErrReentrantCall):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request, run func(caller [20]byte, amount *big.Int) (*exchange.Receipt, error)) {
	var req operationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder.Reset()
	receipt, err := run(caller, amount)
	if err != nil {
		s.log.Warn("operation rejected", "caller", req.Caller, "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	if err := s.state.Commit(); err != nil {
		s.log.Error("state commit failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	emitted := make([]*types.Event, 0, len(s.recorder.Events))
	for _, evt := range s.recorder.Events {
		if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
			emitted = append(emitted, carrier.Event())
		}
	}
	writeJSON(w, http.StatusOK, operationResponse{Receipt: receipt, Events: emitted})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	s.handleOperation(w, r, s.engine.Buy)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	s.handleOperation(w, r, s.engine.Sell)
}

// handleTransfer documents the disabled public token transfer surface.
func (s *Server) handleTransfer(w http.ResponseWriter, _ *http.Request) {
	writeError(w, statusFor(token.ErrDirectTransferDisabled), token.ErrDirectTransferDisabled)
}

// handleDeposit rejects unsolicited native-currency deposits. Malformed
// requests fail validation first so they surface as bad requests rather than
// policy refusals.
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req operationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err = s.engine.ReceiveNative(caller, amount)
	writeError(w, statusFor(err), err)
}

type stateResponse struct {
	ExchangeRate         string `json:"exchangeRate"`
	TransactionCount     string `json:"transactionCount"`
	CurrentIncrement     string `json:"currentIncrement"`
	NextHalvingThreshold string `json:"nextHalvingThreshold"`
	TotalSupply          string `json:"totalSupply"`
	PoolNative           string `json:"poolNative"`
	PoolTokens           string `json:"poolTokens"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.engine.State()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	supply, err := s.ledger.TotalSupply()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	poolNative, poolTokens, err := s.engine.PoolBalances()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{
		ExchangeRate:         st.Rate.String(),
		TransactionCount:     st.TxCount.String(),
		CurrentIncrement:     st.Increment.String(),
		NextHalvingThreshold: st.NextHalving.String(),
		TotalSupply:          supply.String(),
		PoolNative:           poolNative.String(),
		PoolTokens:           poolTokens.String(),
	})
}

type balanceResponse struct {
	Address      string `json:"address"`
	Balance      string `json:"balance"`
	TokenBalance string `json:"tokenBalance"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	account, err := s.state.GetAccount(addr[:])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	account = types.EnsureAccount(account)
	writeJSON(w, http.StatusOK, balanceResponse{
		Address:      "0x" + hex.EncodeToString(addr[:]),
		Balance:      account.Balance.String(),
		TokenBalance: account.TokenBalance.String(),
	})
}
