package rpc

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Mr-H-E/Monorite/core/state"
	"github.com/Mr-H-E/Monorite/core/types"
	"github.com/Mr-H-E/Monorite/native/exchange"
	"github.com/Mr-H-E/Monorite/native/token"
	"github.com/Mr-H-E/Monorite/storage"
)

const (
	testBuyer = "0x0000000000000000000000000000000000000001"
	testRate  = "41000000000000"
)

func newTestServer(t *testing.T) (*Server, *state.StateDB) {
	t.Helper()
	st := state.NewStateDB(storage.NewMemDB())
	ledger, capability := token.NewLedger(st)

	engine := exchange.NewEngine()
	engine.SetState(st)
	engine.SetLedger(ledger)
	engine.SetCapability(capability)
	engine.SetSender(exchange.NewStateSender(st))

	rate, _ := new(big.Int).SetString(testRate, 10)
	poolTokens := new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18))
	require.NoError(t, engine.InitGenesis(rate, big.NewInt(1_000_000_000), big.NewInt(0), poolTokens))

	// Seed the buyer with enough native currency for one whole token.
	var buyer [20]byte
	buyer[19] = 0x01
	account := &types.Account{Balance: rate, TokenBalance: big.NewInt(0)}
	require.NoError(t, st.PutAccount(buyer[:], account))
	require.NoError(t, st.Commit())

	return NewServer(engine, ledger, st, slog.Default()), st
}

func postJSON(t *testing.T, handler http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestBuyEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	rec := postJSON(t, handler, "/v1/exchange/buy", operationRequest{Caller: testBuyer, Amount: testRate})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp operationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, exchange.OpBuy, resp.Receipt.Kind)
	require.Equal(t, "1000000000000000000", resp.Receipt.TokenValue.String())
	require.False(t, resp.Receipt.Partial)
	require.NotEmpty(t, resp.Events)
}

func TestBuyEndpointRejectsBadAddress(t *testing.T) {
	server, _ := newTestServer(t)
	rec := postJSON(t, server.Handler(), "/v1/exchange/buy", operationRequest{Caller: "not-an-address", Amount: "1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSellEndpointInsufficientBalance(t *testing.T) {
	server, _ := newTestServer(t)
	rec := postJSON(t, server.Handler(), "/v1/exchange/sell", operationRequest{Caller: testBuyer, Amount: "1000000000000000000"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestStateEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/exchange/state", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp stateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, testRate, resp.ExchangeRate)
	require.Equal(t, "0", resp.TransactionCount)
	require.Equal(t, "100000000000000000000", resp.PoolTokens)
}

func TestBalanceEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/exchange/balance/"+testBuyer, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp balanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, testRate, resp.Balance)
}

func TestTransferEndpointDisabled(t *testing.T) {
	server, _ := newTestServer(t)
	rec := postJSON(t, server.Handler(), "/v1/exchange/transfer", operationRequest{Caller: testBuyer, Amount: "1"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDepositEndpointRejected(t *testing.T) {
	server, _ := newTestServer(t)
	rec := postJSON(t, server.Handler(), "/v1/exchange/deposit", operationRequest{Caller: testBuyer, Amount: "1"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDepositEndpointRejectsMalformedRequest(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/exchange/deposit", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, handler, "/v1/exchange/deposit", operationRequest{Caller: "not-an-address", Amount: "1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, handler, "/v1/exchange/deposit", operationRequest{Caller: testBuyer, Amount: "-1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOperationCommitsDurably(t *testing.T) {
	server, st := newTestServer(t)
	rec := postJSON(t, server.Handler(), "/v1/exchange/buy", operationRequest{Caller: testBuyer, Amount: testRate})
	require.Equal(t, http.StatusOK, rec.Code)

	var buyer [20]byte
	buyer[19] = 0x01
	account, err := st.GetAccount(buyer[:])
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000", account.TokenBalance.String())
	require.Equal(t, "0", account.Balance.String())
}
