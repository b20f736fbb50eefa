// Package rates resolves exchange rates from the rate cache, falling back to a
// static USD-anchored table when no fresh quote exists.
package rates

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Krchnk/valutatrade-wallet/internal/domain"
	"github.com/Krchnk/valutatrade-wallet/internal/storages"
)

// DefaultTTL is how long a stored quote stays fresh.
const DefaultTTL = 5 * time.Minute

const defaultSource = "stub"

// Origin tells where a resolved rate came from.
type Origin string

const (
	OriginIdentity Origin = "identity"
	OriginDirect   Origin = "direct"
	OriginReverse  Origin = "reverse"
	OriginFallback Origin = "fallback"
)

// Resolution is a resolved rate together with its provenance. UpdatedAt is
// zero for identity and fallback rates.
type Resolution struct {
	From      string
	To        string
	Rate      decimal.Decimal
	Origin    Origin
	UpdatedAt time.Time
}

// DefaultFallback returns units of each currency per one USD.
func DefaultFallback() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"USD": decimal.NewFromInt(1),
		"EUR": decimal.RequireFromString("0.85"),
		"GBP": decimal.RequireFromString("0.73"),
		"JPY": decimal.NewFromInt(110),
		"RUB": decimal.NewFromInt(80),
		"BTC": decimal.RequireFromString("0.00001"),
		"ETH": decimal.NewFromInt(1).Div(decimal.NewFromInt(3000)),
	}
}

type Option func(*Store)

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithFallback replaces the static units-per-USD table.
func WithFallback(table map[string]decimal.Decimal) Option {
	return func(s *Store) { s.fallback = table }
}

func WithSource(source string) Option {
	return func(s *Store) { s.source = source }
}

// Store answers rate queries. Fresh quotes are memoised in process for the
// rest of their freshness window.
type Store struct {
	mu       sync.Mutex
	cache    storages.RateCache
	memo     *cache.Cache
	fallback map[string]decimal.Decimal
	ttl      time.Duration
	source   string
	now      func() time.Time
	logger   logrus.FieldLogger
}

func NewStore(rc storages.RateCache, logger logrus.FieldLogger, opts ...Option) *Store {
	s := &Store{
		cache:    rc,
		fallback: DefaultFallback(),
		ttl:      DefaultTTL,
		source:   defaultSource,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.memo = cache.New(s.ttl, 2*s.ttl)
	return s
}

// GetRate returns how many units of to one unit of from is worth.
func (s *Store) GetRate(from, to string) (decimal.Decimal, error) {
	res, err := s.Lookup(context.Background(), from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return res.Rate, nil
}

// Lookup resolves from→to: identity, then a fresh direct quote, then a fresh
// reverse quote, then the fallback table.
func (s *Store) Lookup(ctx context.Context, from, to string) (Resolution, error) {
	from, to, err := normalizePair(from, to)
	if err != nil {
		return Resolution{}, err
	}
	if from == to {
		return Resolution{From: from, To: to, Rate: decimal.NewFromInt(1), Origin: OriginIdentity}, nil
	}

	key := domain.PairKey(from, to)
	if cached, found := s.memo.Get(key); found {
		if res := cached.(Resolution); s.fresh(res.UpdatedAt) {
			s.logger.WithFields(logrus.Fields{"from": from, "to": to}).Debug("rate retrieved from memo")
			return res, nil
		}
		s.memo.Delete(key)
	}

	s.mu.Lock()
	snap := s.snapshot(ctx)
	s.mu.Unlock()

	if q, ok := snap.Quotes[key]; ok && s.fresh(q.ObservedAt) {
		res := Resolution{From: from, To: to, Rate: q.Rate, Origin: OriginDirect, UpdatedAt: q.ObservedAt}
		s.remember(key, res)
		return res, nil
	}
	if q, ok := snap.Quotes[domain.PairKey(to, from)]; ok && s.fresh(q.ObservedAt) {
		res := Resolution{
			From:      from,
			To:        to,
			Rate:      decimal.NewFromInt(1).Div(q.Rate),
			Origin:    OriginReverse,
			UpdatedAt: q.ObservedAt,
		}
		s.remember(key, res)
		return res, nil
	}

	fromUnits, okFrom := s.fallback[from]
	toUnits, okTo := s.fallback[to]
	if okFrom && okTo && fromUnits.IsPositive() {
		s.logger.WithFields(logrus.Fields{"from": from, "to": to}).Debug("no fresh quote, using fallback table")
		return Resolution{From: from, To: to, Rate: toUnits.Div(fromUnits), Origin: OriginFallback}, nil
	}

	return Resolution{}, errors.Wrapf(domain.ErrRateUnavailable, "no rate for %s→%s", from, to)
}

// SetRate stores a fresh quote for from→to. Any stored quote for the reverse
// direction is removed so a pair never has two diverging entries.
func (s *Store) SetRate(ctx context.Context, from, to string, rate decimal.Decimal) error {
	from, to, err := normalizePair(from, to)
	if err != nil {
		return err
	}
	if from == to {
		return errors.Wrap(domain.ErrInvalidArgument, "cannot set a rate between a currency and itself")
	}
	if !rate.IsPositive() {
		return errors.Wrap(domain.ErrInvalidArgument, "rate must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot(ctx)
	now := s.now()
	delete(snap.Quotes, domain.PairKey(to, from))
	snap.Quotes[domain.PairKey(from, to)] = domain.RateQuote{From: from, To: to, Rate: rate, ObservedAt: now}
	snap.Source = s.source
	snap.LastRefresh = now

	if err := s.cache.Save(ctx, snap); err != nil {
		return errors.Wrap(err, "save rate cache")
	}
	s.memo.Delete(domain.PairKey(from, to))
	s.memo.Delete(domain.PairKey(to, from))

	s.logger.WithFields(logrus.Fields{"from": from, "to": to, "rate": rate.String()}).Info("exchange rate updated")
	return nil
}

// snapshot loads the cache, seeding an empty one. Load failures degrade to
// an empty snapshot so the fallback table still answers.
func (s *Store) snapshot(ctx context.Context) domain.RateSnapshot {
	snap, err := s.cache.Load(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("failed to load rate cache, continuing without quotes")
		return domain.NewRateSnapshot()
	}
	if snap.Quotes == nil {
		snap.Quotes = make(map[string]domain.RateQuote)
	}
	if len(snap.Quotes) == 0 && snap.Source == "" {
		snap = s.seed()
		if err := s.cache.Save(ctx, snap); err != nil {
			s.logger.WithError(err).Warn("failed to seed rate cache")
		}
	}
	return snap
}

// seed builds an initial cache with a quote to USD for every fallback entry.
func (s *Store) seed() domain.RateSnapshot {
	now := s.now()
	snap := domain.NewRateSnapshot()
	snap.Source = s.source
	snap.LastRefresh = now
	usd, ok := s.fallback[domain.USD]
	if !ok {
		return snap
	}
	for code, units := range s.fallback {
		if code == domain.USD || !units.IsPositive() {
			continue
		}
		snap.Quotes[domain.PairKey(code, domain.USD)] = domain.RateQuote{
			From:       code,
			To:         domain.USD,
			Rate:       usd.Div(units).Round(8),
			ObservedAt: now,
		}
	}
	return snap
}

func (s *Store) fresh(observed time.Time) bool {
	return s.now().Sub(observed) < s.ttl
}

func (s *Store) remember(key string, res Resolution) {
	if left := s.ttl - s.now().Sub(res.UpdatedAt); left > 0 {
		s.memo.Set(key, res, left)
	}
}

func normalizePair(from, to string) (string, string, error) {
	f, err := domain.NormalizeCode(from)
	if err != nil {
		return "", "", err
	}
	t, err := domain.NormalizeCode(to)
	if err != nil {
		return "", "", err
	}
	return f, t, nil
}
