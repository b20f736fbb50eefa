// Package cli implements the wallet command set on google/subcommands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Krchnk/valutatrade-wallet/internal/auth"
	"github.com/Krchnk/valutatrade-wallet/internal/config"
	"github.com/Krchnk/valutatrade-wallet/internal/domain"
	"github.com/Krchnk/valutatrade-wallet/internal/rates"
	"github.com/Krchnk/valutatrade-wallet/internal/storages"
	"github.com/Krchnk/valutatrade-wallet/internal/storages/jsonfile"
	"github.com/Krchnk/valutatrade-wallet/internal/storages/postgres"
	"github.com/Krchnk/valutatrade-wallet/internal/trading"
	"github.com/Krchnk/valutatrade-wallet/internal/valuation"
)

// App holds the services shared by every command of one invocation.
type App struct {
	cfg        config.Config
	logger     *logrus.Logger
	storage    *storages.Storage
	session    storages.SessionStore
	currencies *domain.Registry
	rates      *rates.Store
	auth       *auth.Service
	engine     *trading.Engine
	reporter   *valuation.Reporter
	stdout     io.Writer
	stderr     io.Writer
}

type Option func(*options)

type options struct {
	stdout   io.Writer
	stderr   io.Writer
	authOpts []auth.Option
	rateOpts []rates.Option
	registry *domain.Registry
}

func WithOutput(stdout, stderr io.Writer) Option {
	return func(o *options) { o.stdout, o.stderr = stdout, stderr }
}

func WithAuthOptions(opts ...auth.Option) Option {
	return func(o *options) { o.authOpts = append(o.authOpts, opts...) }
}

func WithRateOptions(opts ...rates.Option) Option {
	return func(o *options) { o.rateOpts = append(o.rateOpts, opts...) }
}

// WithRegistry replaces the built-in currency registry.
func WithRegistry(r *domain.Registry) Option {
	return func(o *options) { o.registry = r }
}

// New opens the configured storage backend and wires the services.
func New(ctx context.Context, cfg config.Config, logger *logrus.Logger, opts ...Option) (*App, error) {
	o := options{stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = domain.DefaultRegistry()
	}

	var (
		store *storages.Storage
		err   error
	)
	switch cfg.Storage {
	case config.StoragePostgres:
		store, err = postgres.Open(ctx, cfg.DBConfig, logger)
	default:
		store, err = jsonfile.Open(cfg.DataDir, logger)
	}
	if err != nil {
		return nil, errors.Wrap(err, "open storage")
	}

	rateStore := rates.NewStore(store.Rates, logger, append([]rates.Option{rates.WithTTL(cfg.RateTTL)}, o.rateOpts...)...)
	return &App{
		cfg:        cfg,
		logger:     logger,
		storage:    store,
		session:    jsonfile.NewSessionFile(jsonfile.SessionPath(cfg.DataDir), logger),
		currencies: o.registry,
		rates:      rateStore,
		auth:       auth.NewService(store.Users, store.Portfolios, cfg.JWTSecret, cfg.SessionTTL, logger, o.authOpts...),
		engine:     trading.NewEngine(store.Portfolios, rateStore, o.registry, logger),
		reporter:   valuation.NewReporter(rateStore, o.registry, logger),
		stdout:     o.stdout,
		stderr:     o.stderr,
	}, nil
}

func (a *App) Close() error {
	if a.storage.Close == nil {
		return nil
	}
	return a.storage.Close()
}

func (a *App) Commands() []subcommands.Command {
	return []subcommands.Command{
		&registerCmd{app: a},
		&loginCmd{app: a},
		&logoutCmd{app: a},
		&whoamiCmd{app: a},
		&showPortfolioCmd{app: a},
		&depositCmd{app: a},
		&buyCmd{app: a},
		&sellCmd{app: a},
		&getRateCmd{app: a},
		&setRateCmd{app: a},
		&currenciesCmd{app: a},
		&serveCmd{app: a},
	}
}

// Register adds the built-in help commands and every wallet command to c.
func Register(c *subcommands.Commander, a *App) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")

	for _, cmd := range a.Commands() {
		group := "wallet"
		switch cmd.Name() {
		case "register", "login", "logout", "whoami":
			group = "account"
		case "get-rate", "set-rate", "currencies":
			group = "rates"
		case "serve":
			group = "server"
		}
		c.Register(cmd, group)
	}
}

// currentSession resolves the stored CLI session.
func (a *App) currentSession(ctx context.Context) (domain.Session, error) {
	token, err := a.session.Load()
	if err != nil {
		return domain.Session{}, errors.Wrap(err, "read session")
	}
	if token == "" {
		return domain.Session{}, errors.Wrap(domain.ErrNotLoggedIn, "run login first")
	}
	session, err := a.auth.Authenticate(ctx, token)
	if err != nil {
		return domain.Session{}, errors.Wrap(err, "run login again")
	}
	return session, nil
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.stdout, format, args...)
}

// fail prints err as a single line and returns the failure status.
func (a *App) fail(err error) subcommands.ExitStatus {
	a.logger.WithError(err).Debug("command failed")
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

func (a *App) usage(msg string) subcommands.ExitStatus {
	fmt.Fprintf(a.stderr, "Error: %s\n", msg)
	return subcommands.ExitUsageError
}
