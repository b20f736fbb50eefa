package jsonfile

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Krchnk/valutatrade-wallet/internal/domain"
)

const (
	keySource      = "source"
	keyLastRefresh = "last_refresh"
)

type quoteRecord struct {
	Rate      json.Number `json:"rate"`
	UpdatedAt string      `json:"updated_at"`
}

// RateFile is the rate cache. Pair entries are stored under "FROM_TO" keys
// next to the "source" and "last_refresh" bookkeeping keys.
type RateFile struct {
	mu     sync.Mutex
	path   string
	logger logrus.FieldLogger
}

func NewRateFile(path string, logger logrus.FieldLogger) *RateFile {
	return &RateFile{path: path, logger: logger}
}

func (f *RateFile) Load(_ context.Context) (domain.RateSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := domain.NewRateSnapshot()
	raw, err := readJSON[map[string]json.RawMessage](f.path, f.logger)
	if err != nil {
		return snap, err
	}

	for key, value := range raw {
		log := f.logger.WithField("key", key)
		switch key {
		case keySource:
			if err := json.Unmarshal(value, &snap.Source); err != nil {
				log.WithError(err).Warn("bad rate cache source")
			}
			continue
		case keyLastRefresh:
			var s string
			if err := json.Unmarshal(value, &s); err == nil {
				snap.LastRefresh, err = parseTime(s)
				if err != nil {
					log.WithError(err).Warn("bad rate cache refresh time")
				}
			}
			continue
		}

		from, to, ok := strings.Cut(key, "_")
		if !ok || from == "" || to == "" {
			log.Warn("skipping unrecognised rate cache key")
			continue
		}
		var rec quoteRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			log.WithError(err).Warn("skipping malformed quote")
			continue
		}
		rate, err := decimal.NewFromString(rec.Rate.String())
		if err != nil || !rate.IsPositive() {
			log.WithField("rate", rec.Rate).Warn("skipping non-positive quote")
			continue
		}
		observed, err := parseTime(rec.UpdatedAt)
		if err != nil {
			log.WithError(err).Warn("skipping quote without timestamp")
			continue
		}
		snap.Quotes[key] = domain.RateQuote{From: from, To: to, Rate: rate, ObservedAt: observed}
	}
	return snap, nil
}

func (f *RateFile) Save(_ context.Context, snap domain.RateSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]any, len(snap.Quotes)+2)
	for _, q := range snap.Quotes {
		out[domain.PairKey(q.From, q.To)] = quoteRecord{
			Rate:      json.Number(q.Rate.String()),
			UpdatedAt: formatTime(q.ObservedAt),
		}
	}
	out[keySource] = snap.Source
	if snap.LastRefresh.IsZero() {
		snap.LastRefresh = time.Now()
	}
	out[keyLastRefresh] = formatTime(snap.LastRefresh)
	return writeJSON(f.path, out)
}
