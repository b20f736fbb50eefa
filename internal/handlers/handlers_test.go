package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Krchnk/valutatrade-wallet/internal/auth"
	"github.com/Krchnk/valutatrade-wallet/internal/domain"
	"github.com/Krchnk/valutatrade-wallet/internal/logging"
	"github.com/Krchnk/valutatrade-wallet/internal/rates"
	"github.com/Krchnk/valutatrade-wallet/internal/storages/jsonfile"
	"github.com/Krchnk/valutatrade-wallet/internal/trading"
	"github.com/Krchnk/valutatrade-wallet/internal/valuation"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logging.Discard()

	store, err := jsonfile.Open(t.TempDir(), logger)
	require.NoError(t, err)
	currencies := domain.DefaultRegistry()
	rateStore := rates.NewStore(store.Rates, logger)
	h := NewHandler(
		auth.NewService(store.Users, store.Portfolios, "test-secret", time.Hour, logger, auth.WithCost(bcrypt.MinCost)),
		trading.NewEngine(store.Portfolios, rateStore, currencies, logger),
		valuation.NewReporter(rateStore, currencies, logger),
		rateStore,
		currencies,
		logger,
	)
	return NewRouter(h, []string{"http://localhost:3000"}, logger)
}

func do(t *testing.T, router *gin.Engine, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func login(t *testing.T, router *gin.Engine) string {
	t.Helper()
	code, _ := do(t, router, http.MethodPost, "/api/v1/register", "", credentials{Username: "alice", Password: "pass1234"})
	require.Equal(t, http.StatusCreated, code)
	code, body := do(t, router, http.MethodPost, "/api/v1/login", "", credentials{Username: "alice", Password: "pass1234"})
	require.Equal(t, http.StatusOK, code)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestRegisterAndLogin(t *testing.T) {
	router := newTestRouter(t)
	login(t, router)

	code, _ := do(t, router, http.MethodPost, "/api/v1/register", "", credentials{Username: "alice", Password: "other"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, router, http.MethodPost, "/api/v1/register", "", credentials{Username: "al", Password: "pass1234"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, router, http.MethodPost, "/api/v1/login", "", credentials{Username: "alice", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	router := newTestRouter(t)

	code, _ := do(t, router, http.MethodGet, "/api/v1/portfolio", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = do(t, router, http.MethodGet, "/api/v1/portfolio", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestTradingFlow(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router)

	code, body := do(t, router, http.MethodPost, "/api/v1/buy", token, gin.H{"currency": "BTC", "amount": "0.01"})
	assert.Equal(t, http.StatusNotFound, code, body)

	code, body = do(t, router, http.MethodPost, "/api/v1/wallet/deposit", token, gin.H{"currency": "USD", "amount": 1000})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "1000", body["new_balance"])

	code, body = do(t, router, http.MethodPost, "/api/v1/buy", token, gin.H{"currency": "btc", "amount": "0.01"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "BTC", body["currency"])
	assert.Equal(t, "1000", body["total_cost"])
	assert.Equal(t, "0", body["usd_after"])
	assert.NotEmpty(t, body["trade_id"])

	code, _ = do(t, router, http.MethodPost, "/api/v1/sell", token, gin.H{"currency": "BTC", "amount": "1"})
	assert.Equal(t, http.StatusPaymentRequired, code)

	code, _ = do(t, router, http.MethodPost, "/api/v1/buy", token, gin.H{"currency": "XYZ", "amount": "1"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, router, http.MethodPost, "/api/v1/buy", token, gin.H{"currency": "EUR", "amount": "-1"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, router, http.MethodPost, "/api/v1/sell", token, gin.H{"currency": "BTC", "amount": "0.01"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "1000", body["total_income"])
	assert.Equal(t, "1000", body["usd_after"])

	code, body = do(t, router, http.MethodGet, "/api/v1/portfolio?base=usd", token, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "USD", body["base"])
	assert.Equal(t, "1000", body["total"])
	wallets, ok := body["wallets"].([]any)
	require.True(t, ok)
	assert.Len(t, wallets, 2)

	code, _ = do(t, router, http.MethodGet, "/api/v1/portfolio?base=XYZ", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetRate(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router)

	code, body := do(t, router, http.MethodGet, "/api/v1/rates?from=usd&to=usd", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1", body["rate"])
	assert.Equal(t, string(rates.OriginIdentity), body["origin"])

	code, body = do(t, router, http.MethodGet, "/api/v1/rates?from=BTC&to=USD", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "100000", body["rate"])
	assert.Equal(t, string(rates.OriginDirect), body["origin"])
	assert.NotEmpty(t, body["updated_at"])

	code, _ = do(t, router, http.MethodGet, "/api/v1/rates?from=CHF&to=USD", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = do(t, router, http.MethodGet, "/api/v1/rates?from=USD", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetCurrencies(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router)

	code, body := do(t, router, http.MethodGet, "/api/v1/currencies", token, nil)
	require.Equal(t, http.StatusOK, code)
	list, ok := body["currencies"].([]any)
	require.True(t, ok)
	assert.Len(t, list, len(domain.DefaultRegistry().All()))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusPaymentRequired, statusFor(&domain.TradeError{Op: "buy", Currency: "BTC", Err: domain.ErrInsufficientFunds}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
