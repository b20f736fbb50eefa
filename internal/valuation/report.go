// Package valuation prices a portfolio in a chosen base currency.
package valuation

import (
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Krchnk/valutatrade-wallet/internal/domain"
)

// Line is one wallet of the report. Value is meaningful only when Known.
type Line struct {
	Currency string
	Balance  decimal.Decimal
	Rate     decimal.Decimal
	Value    decimal.Decimal
	Known    bool
}

type Report struct {
	Base    string
	Lines   []Line
	Total   decimal.Decimal
	Skipped []string
}

type Reporter struct {
	rates      domain.RateSource
	currencies *domain.Registry
	logger     logrus.FieldLogger
}

func NewReporter(rates domain.RateSource, currencies *domain.Registry, logger logrus.FieldLogger) *Reporter {
	return &Reporter{rates: rates, currencies: currencies, logger: logger}
}

// Build values every wallet in base. A wallet whose rate cannot be resolved
// is reported as unknown; the rest of the report is still produced.
func (r *Reporter) Build(p *domain.Portfolio, base string) (*Report, error) {
	total, err := p.TotalValue(base, r.currencies, r.rates)
	if err != nil {
		return nil, err
	}
	report := &Report{Base: total.Base, Total: total.Total, Skipped: total.Skipped}

	for _, w := range p.Wallets() {
		line := Line{Currency: w.Currency(), Balance: w.Balance()}
		rate, err := r.rates.GetRate(w.Currency(), total.Base)
		if err != nil {
			r.logger.WithFields(logrus.Fields{
				"currency": w.Currency(),
				"base":     total.Base,
			}).WithError(err).Warn("wallet left out of valuation")
		} else {
			line.Rate = rate
			line.Value = w.Balance().Mul(rate)
			line.Known = true
		}
		report.Lines = append(report.Lines, line)
	}
	return report, nil
}
