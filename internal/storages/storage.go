// Package storages declares the persistence interfaces used by the wallet
// services. The jsonfile and postgres subpackages implement them.
package storages

import (
	"context"

	"github.com/Krchnk/valutatrade-wallet/internal/domain"
)

// UserStore keeps registered accounts. Lookups return nil, nil when the user
// does not exist.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id int) (*domain.User, error)
	Save(ctx context.Context, user *domain.User) error
	NextID(ctx context.Context) (int, error)
}

// PortfolioStore loads and saves whole portfolios. Load returns an empty
// portfolio, and records it, when the user has none yet.
type PortfolioStore interface {
	Load(ctx context.Context, userID int) (*domain.Portfolio, error)
	Save(ctx context.Context, portfolio *domain.Portfolio) error
}

type RateCache interface {
	Load(ctx context.Context) (domain.RateSnapshot, error)
	Save(ctx context.Context, snapshot domain.RateSnapshot) error
}

// SessionStore remembers the token of the logged-in CLI user between runs.
type SessionStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

type Storage struct {
	Users      UserStore
	Portfolios PortfolioStore
	Rates      RateCache
	Close      func() error
}
