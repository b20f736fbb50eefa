package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Krchnk/valutatrade-wallet/internal/domain"
)

const uniqueViolation = "23505"

type UserStore struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.find(ctx, `
        SELECT id, username, password_hash, created_at
        FROM users
        WHERE username = $1`, username)
}

func (s *UserStore) FindByID(ctx context.Context, id int) (*domain.User, error) {
	return s.find(ctx, `
        SELECT id, username, password_hash, created_at
        FROM users
        WHERE id = $1`, id)
}

func (s *UserStore) find(ctx context.Context, query string, arg any) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logger.WithField("key", arg).WithError(err).Error("failed to get user")
		return nil, errors.Wrap(err, "query user")
	}
	return &u, nil
}

// Save inserts the user or updates its password hash. An id or username
// owned by another user is refused.
func (s *UserStore) Save(ctx context.Context, u *domain.User) error {
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO users (id, username, password_hash, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id)
        DO UPDATE SET password_hash = EXCLUDED.password_hash
        WHERE users.username = EXCLUDED.username`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return errors.Wrapf(domain.ErrUserExists, "username %q is already taken", u.Username)
		}
		s.logger.WithFields(logrus.Fields{
			"user_id":  u.ID,
			"username": u.Username,
		}).WithError(err).Error("failed to save user")
		return errors.Wrap(err, "save user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(domain.ErrUserExists, "user id %d belongs to another user", u.ID)
	}
	return nil
}

func (s *UserStore) NextID(ctx context.Context) (int, error) {
	var id int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM users`).Scan(&id); err != nil {
		s.logger.WithError(err).Error("failed to allocate user id")
		return 0, errors.Wrap(err, "next user id")
	}
	return id, nil
}

type PortfolioStore struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

// Load returns the user's balances. A user without rows has an empty
// portfolio, so there is nothing to record up front.
func (s *PortfolioStore) Load(ctx context.Context, userID int) (*domain.Portfolio, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT currency, amount
        FROM balances
        WHERE user_id = $1`,
		userID)
	if err != nil {
		s.logger.WithField("user_id", userID).WithError(err).Error("failed to query balances")
		return nil, errors.Wrap(err, "query balances")
	}
	defer rows.Close()

	balances := make(map[string]decimal.Decimal)
	for rows.Next() {
		var currency string
		var amount decimal.Decimal
		if err := rows.Scan(&currency, &amount); err != nil {
			s.logger.WithField("user_id", userID).WithError(err).Error("failed to scan balance")
			return nil, errors.Wrap(err, "scan balance")
		}
		balances[currency] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate balances")
	}
	return domain.RestorePortfolio(userID, balances)
}

// Save replaces every balance of the portfolio in one transaction.
func (s *PortfolioStore) Save(ctx context.Context, p *domain.Portfolio) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.WithError(err).Error("failed to begin transaction for portfolio")
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM balances WHERE user_id = $1`, p.UserID()); err != nil {
		s.logger.WithField("user_id", p.UserID()).WithError(err).Error("failed to clear balances")
		return errors.Wrap(err, "clear balances")
	}
	for _, w := range p.Wallets() {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO balances (user_id, currency, amount)
            VALUES ($1, $2, $3)`,
			p.UserID(), w.Currency(), w.Balance())
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"user_id":  p.UserID(),
				"currency": w.Currency(),
			}).WithError(err).Error("failed to write balance")
			return errors.Wrap(err, "write balance")
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.WithError(err).Error("failed to commit portfolio transaction")
		return errors.Wrap(err, "commit portfolio")
	}
	s.logger.WithField("user_id", p.UserID()).Debug("portfolio saved")
	return nil
}

type RateCache struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

func (c *RateCache) Load(ctx context.Context) (domain.RateSnapshot, error) {
	snap := domain.NewRateSnapshot()

	rows, err := c.db.QueryContext(ctx, `
        SELECT from_currency, to_currency, rate, updated_at
        FROM exchange_rates`)
	if err != nil {
		c.logger.WithError(err).Error("failed to query exchange rates")
		return snap, errors.Wrap(err, "query exchange rates")
	}
	defer rows.Close()

	for rows.Next() {
		var q domain.RateQuote
		if err := rows.Scan(&q.From, &q.To, &q.Rate, &q.ObservedAt); err != nil {
			c.logger.WithError(err).Error("failed to scan exchange rate")
			return snap, errors.Wrap(err, "scan exchange rate")
		}
		snap.Quotes[domain.PairKey(q.From, q.To)] = q
	}
	if err := rows.Err(); err != nil {
		return snap, errors.Wrap(err, "iterate exchange rates")
	}

	var refreshed sql.NullTime
	err = c.db.QueryRowContext(ctx, `SELECT source, last_refresh FROM rate_meta WHERE id = 1`).
		Scan(&snap.Source, &refreshed)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		c.logger.WithError(err).Error("failed to query rate metadata")
		return snap, errors.Wrap(err, "query rate metadata")
	}
	if refreshed.Valid {
		snap.LastRefresh = refreshed.Time
	}
	return snap, nil
}

// Save replaces the stored quotes with snap.
func (c *RateCache) Save(ctx context.Context, snap domain.RateSnapshot) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		c.logger.WithError(err).Error("failed to begin transaction for rates")
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM exchange_rates`); err != nil {
		return errors.Wrap(err, "clear exchange rates")
	}
	for _, q := range snap.Quotes {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO exchange_rates (from_currency, to_currency, rate, updated_at)
            VALUES ($1, $2, $3, $4)`,
			q.From, q.To, q.Rate, q.ObservedAt)
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"from": q.From,
				"to":   q.To,
				"rate": q.Rate.String(),
			}).WithError(err).Error("failed to write exchange rate")
			return errors.Wrap(err, "write exchange rate")
		}
	}

	var refreshed sql.NullTime
	if !snap.LastRefresh.IsZero() {
		refreshed = sql.NullTime{Time: snap.LastRefresh, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
        INSERT INTO rate_meta (id, source, last_refresh)
        VALUES (1, $1, $2)
        ON CONFLICT (id)
        DO UPDATE SET source = EXCLUDED.source, last_refresh = EXCLUDED.last_refresh`,
		snap.Source, refreshed)
	if err != nil {
		return errors.Wrap(err, "write rate metadata")
	}

	if err := tx.Commit(); err != nil {
		c.logger.WithError(err).Error("failed to commit rates transaction")
		return errors.Wrap(err, "commit rates")
	}
	c.logger.WithField("quotes", len(snap.Quotes)).Debug("exchange rates saved")
	return nil
}
