// Package auth registers users, checks their passwords and issues the signed
// session tokens that identify them afterwards.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/Krchnk/valutatrade-wallet/internal/domain"
	"github.com/Krchnk/valutatrade-wallet/internal/storages"
)

// DefaultSessionTTL is how long a login stays valid.
const DefaultSessionTTL = 24 * time.Hour

type Option func(*Service)

// WithClock replaces time.Now when issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

type Service struct {
	mu         sync.Mutex
	users      storages.UserStore
	portfolios storages.PortfolioStore
	secret     []byte
	ttl        time.Duration
	cost       int
	now        func() time.Time
	logger     logrus.FieldLogger
}

type claims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	jwt.StandardClaims
}

func NewService(users storages.UserStore, portfolios storages.PortfolioStore, secret string, ttl time.Duration, logger logrus.FieldLogger, opts ...Option) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &Service{
		users:      users,
		portfolios: portfolios,
		secret:     []byte(secret),
		ttl:        ttl,
		cost:       bcrypt.DefaultCost,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user and an empty portfolio for it.
func (s *Service) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username, err := domain.NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, errors.Wrap(err, "check user existence")
	}
	if existing != nil {
		return nil, errors.Wrapf(domain.ErrUserExists, "username %q is already taken", username)
	}

	id, err := s.users.NextID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "allocate user id")
	}
	user := &domain.User{ID: id, Username: username, PasswordHash: string(hash), CreatedAt: s.now()}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, errors.Wrap(err, "save user")
	}
	if _, err := s.portfolios.Load(ctx, id); err != nil {
		return nil, errors.Wrap(err, "create portfolio")
	}

	s.logger.WithFields(logrus.Fields{"user_id": id, "username": username}).Info("user registered")
	return user, nil
}

// Login checks the credentials and returns a signed session token.
func (s *Service) Login(ctx context.Context, username, password string) (*domain.User, string, error) {
	username, err := domain.NormalizeUsername(username)
	if err != nil {
		return nil, "", errors.Wrap(domain.ErrAuthenticationFailed, err.Error())
	}
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, "", errors.Wrap(err, "find user")
	}
	if user == nil {
		s.logger.WithField("username", username).Warn("login for unknown user")
		return nil, "", errors.Wrapf(domain.ErrAuthenticationFailed, "user %q not found", username)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.WithField("username", username).Warn("invalid password")
		return nil, "", errors.Wrap(domain.ErrAuthenticationFailed, "wrong password")
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	s.logger.WithField("username", username).Info("login successful")
	return user, token, nil
}

func (s *Service) IssueToken(user *domain.User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID:   user.ID,
		Username: user.Username,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
			Subject:   fmt.Sprintf("%d", user.ID),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign session token")
	}
	return signed, nil
}

// ParseToken verifies the signature and expiry of a session token.
func (s *Service) ParseToken(token string) (domain.Session, error) {
	if token == "" {
		return domain.Session{}, domain.ErrNotLoggedIn
	}
	var c claims
	parser := jwt.Parser{SkipClaimsValidation: true}
	parsed, err := parser.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return domain.Session{}, errors.Wrap(domain.ErrAuthenticationFailed, "invalid session")
	}
	if !c.VerifyExpiresAt(s.now().Unix(), true) {
		return domain.Session{}, errors.Wrap(domain.ErrAuthenticationFailed, "session expired")
	}
	return domain.Session{
		UserID:    c.UserID,
		Username:  c.Username,
		IssuedAt:  time.Unix(c.IssuedAt, 0),
		ExpiresAt: time.Unix(c.ExpiresAt, 0),
	}, nil
}

// Authenticate parses token and checks that its user still exists.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.Session, error) {
	session, err := s.ParseToken(token)
	if err != nil {
		return domain.Session{}, err
	}
	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return domain.Session{}, errors.Wrap(err, "find session user")
	}
	if user == nil {
		return domain.Session{}, errors.Wrap(domain.ErrAuthenticationFailed, "session user no longer exists")
	}
	return session, nil
}
