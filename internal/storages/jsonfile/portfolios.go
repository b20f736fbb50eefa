package jsonfile

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Krchnk/valutatrade-wallet/internal/domain"
)

type walletRecord struct {
	CurrencyCode string      `json:"currency_code"`
	Balance      json.Number `json:"balance"`
}

type portfolioRecord struct {
	UserID  int                     `json:"user_id"`
	Wallets map[string]walletRecord `json:"wallets"`
}

// PortfolioFile keeps every portfolio in one JSON object keyed by user id.
type PortfolioFile struct {
	mu     sync.Mutex
	path   string
	logger logrus.FieldLogger
}

func NewPortfolioFile(path string, logger logrus.FieldLogger) *PortfolioFile {
	return &PortfolioFile{path: path, logger: logger}
}

func (f *PortfolioFile) load() (map[string]portfolioRecord, error) {
	records, err := readJSON[map[string]portfolioRecord](f.path, f.logger)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = make(map[string]portfolioRecord)
	}
	return records, nil
}

// Load returns the user's portfolio, writing an empty record first if the
// user has none.
func (f *PortfolioFile) Load(_ context.Context, userID int) (*domain.Portfolio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return nil, err
	}
	key := strconv.Itoa(userID)
	rec, ok := records[key]
	if !ok {
		records[key] = portfolioRecord{UserID: userID, Wallets: map[string]walletRecord{}}
		if err := writeJSON(f.path, records); err != nil {
			return nil, err
		}
		return domain.NewPortfolio(userID), nil
	}

	balances := make(map[string]decimal.Decimal, len(rec.Wallets))
	for code, w := range rec.Wallets {
		balance, err := decimal.NewFromString(w.Balance.String())
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s balance of user %d", code, userID)
		}
		balances[code] = balance
	}
	return domain.RestorePortfolio(userID, balances)
}

func (f *PortfolioFile) Save(_ context.Context, p *domain.Portfolio) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return err
	}
	rec := portfolioRecord{UserID: p.UserID(), Wallets: make(map[string]walletRecord)}
	for _, w := range p.Wallets() {
		rec.Wallets[w.Currency()] = walletRecord{
			CurrencyCode: w.Currency(),
			Balance:      json.Number(w.Balance().String()),
		}
	}
	records[strconv.Itoa(p.UserID())] = rec
	return writeJSON(f.path, records)
}
