package trading

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krchnk/valutatrade-wallet/internal/domain"
)

type memoryPortfolios struct {
	balances map[int]map[string]decimal.Decimal
	saves    int
	saveErr  error
}

func newMemoryPortfolios() *memoryPortfolios {
	return &memoryPortfolios{balances: make(map[int]map[string]decimal.Decimal)}
}

func (m *memoryPortfolios) Load(_ context.Context, userID int) (*domain.Portfolio, error) {
	return domain.RestorePortfolio(userID, m.balances[userID])
}

func (m *memoryPortfolios) Save(_ context.Context, p *domain.Portfolio) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.balances[p.UserID()] = p.Balances()
	return nil
}

type stubRates struct {
	rates map[string]decimal.Decimal
	calls int
}

func (s *stubRates) GetRate(from, to string) (decimal.Decimal, error) {
	s.calls++
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if r, ok := s.rates[domain.PairKey(from, to)]; ok {
		return r, nil
	}
	return decimal.Zero, errors.Wrapf(domain.ErrRateUnavailable, "%s→%s", from, to)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setup(t *testing.T, balances map[string]string) (*Engine, *memoryPortfolios, *stubRates) {
	t.Helper()
	store := newMemoryPortfolios()
	if balances != nil {
		store.balances[1] = make(map[string]decimal.Decimal)
		for code, b := range balances {
			store.balances[1][code] = d(b)
		}
	}
	rates := &stubRates{rates: map[string]decimal.Decimal{
		"BTC_USD": d("100000"),
		"EUR_USD": d("1.1"),
	}}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewEngine(store, rates, domain.DefaultRegistry(), logger), store, rates
}

func TestEngine_BuyThenSellRoundTrip(t *testing.T) {
	e, store, _ := setup(t, map[string]string{"USD": "1000"})
	ctx := context.Background()

	r, err := e.Buy(ctx, 1, "btc", d("0.01"))
	require.NoError(t, err)
	assert.Equal(t, "BTC", r.Currency)
	assert.True(t, r.Rate.Equal(d("100000")))
	assert.True(t, r.Total.Equal(d("1000")))
	assert.True(t, r.OldBalance.IsZero())
	assert.True(t, r.NewBalance.Equal(d("0.01")))
	assert.True(t, r.USDBefore.Equal(d("1000")))
	assert.True(t, r.USDAfter.IsZero())
	assert.NotEmpty(t, r.TradeID)
	assert.True(t, store.balances[1]["USD"].IsZero())

	r, err = e.Sell(ctx, 1, "BTC", d("0.01"))
	require.NoError(t, err)
	assert.True(t, r.Total.Equal(d("1000")))
	assert.True(t, r.OldBalance.Equal(d("0.01")))
	assert.True(t, r.NewBalance.IsZero())
	assert.True(t, store.balances[1]["USD"].Equal(d("1000")))
	assert.Equal(t, 2, store.saves)
}

func TestEngine_BuyFailures(t *testing.T) {
	tests := []struct {
		name     string
		balances map[string]string
		code     string
		amount   string
		want     error
	}{
		{"non-positive amount", map[string]string{"USD": "10"}, "BTC", "0", domain.ErrInvalidArgument},
		{"malformed code", map[string]string{"USD": "10"}, "B", "1", domain.ErrInvalidArgument},
		{"unknown code", map[string]string{"USD": "10"}, "XYZ", "1", domain.ErrCurrencyUnknown},
		{"no usd wallet", map[string]string{"EUR": "10"}, "BTC", "1", domain.ErrMissingWallet},
		{"insufficient usd", map[string]string{"USD": "10"}, "BTC", "1", domain.ErrInsufficientFunds},
		{"no rate", map[string]string{"USD": "10"}, "CHF", "1", domain.ErrRateUnavailable},
		{"funding currency", map[string]string{"USD": "10"}, "USD", "1", domain.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, store, _ := setup(t, tt.balances)
			_, err := e.Buy(context.Background(), 1, tt.code, d(tt.amount))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrTradingFailed))
			assert.True(t, errors.Is(err, tt.want), err.Error())
			assert.Zero(t, store.saves)
		})
	}
}

func TestEngine_SellChecksFundsBeforeRate(t *testing.T) {
	e, store, rates := setup(t, map[string]string{"EUR": "5"})
	ctx := context.Background()

	_, err := e.Sell(ctx, 1, "EUR", d("6"))
	assert.True(t, errors.Is(err, domain.ErrInsufficientFunds))
	assert.Zero(t, rates.calls)

	_, err = e.Sell(ctx, 1, "BTC", d("1"))
	assert.True(t, errors.Is(err, domain.ErrMissingWallet))
	assert.Zero(t, rates.calls)
	assert.Zero(t, store.saves)

	r, err := e.Sell(ctx, 1, "EUR", d("5"))
	require.NoError(t, err)
	assert.Equal(t, 1, rates.calls)
	assert.True(t, r.Total.Equal(d("5.5")))
	assert.True(t, store.balances[1]["USD"].Equal(d("5.5")))
	assert.True(t, store.balances[1]["EUR"].IsZero())
}

func TestEngine_SellWithoutRate(t *testing.T) {
	e, store, _ := setup(t, map[string]string{"CHF": "5"})
	_, err := e.Sell(context.Background(), 1, "CHF", d("1"))
	assert.True(t, errors.Is(err, domain.ErrRateUnavailable))
	assert.Zero(t, store.saves)
}

func TestEngine_SaveFailureIsReported(t *testing.T) {
	e, store, _ := setup(t, map[string]string{"USD": "1000"})
	store.saveErr = errors.New("disk full")

	_, err := e.Buy(context.Background(), 1, "EUR", d("1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTradingFailed))
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, store.balances[1]["USD"].Equal(d("1000")))
}

func TestEngine_Deposit(t *testing.T) {
	e, store, rates := setup(t, nil)

	r, err := e.Deposit(context.Background(), 1, "usd", d("250"))
	require.NoError(t, err)
	assert.Equal(t, domain.SideDeposit, r.Side)
	assert.True(t, r.NewBalance.Equal(d("250")))
	assert.True(t, store.balances[1]["USD"].Equal(d("250")))
	assert.Zero(t, rates.calls)

	_, err = e.Deposit(context.Background(), 1, "USD", d("-1"))
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestReceiptJSONNamesTotalBySide(t *testing.T) {
	e, _, _ := setup(t, map[string]string{"USD": "100", "EUR": "10"})
	ctx := context.Background()

	buy, err := e.Buy(ctx, 1, "EUR", d("1"))
	require.NoError(t, err)
	payload, err := json.Marshal(buy)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"total_cost"`)
	assert.NotContains(t, string(payload), `"total_income"`)

	sell, err := e.Sell(ctx, 1, "EUR", d("1"))
	require.NoError(t, err)
	payload, err = json.Marshal(sell)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"total_income"`)
}

func TestEngine_Portfolio(t *testing.T) {
	e, _, _ := setup(t, map[string]string{"USD": "12.5"})

	p, err := e.Portfolio(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, p.GetWallet("USD"))
	assert.True(t, p.GetWallet("USD").Balance().Equal(d("12.5")))

	p, err = e.Portfolio(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, p.Wallets())
}
