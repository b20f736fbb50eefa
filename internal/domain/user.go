package domain

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	minUsernameLen = 3
	minPasswordLen = 4
)

// User is a registered account. PasswordHash is a bcrypt hash, which carries
// its own salt.
type User struct {
	ID           int       `json:"user_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"hashed_password"`
	CreatedAt    time.Time `json:"registration_date"`
}

// NormalizeUsername trims the name and enforces the minimum length.
func NormalizeUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.Wrap(ErrInvalidArgument, "username must not be empty")
	}
	if len([]rune(name)) < minUsernameLen {
		return "", errors.Wrapf(ErrInvalidArgument, "username must be at least %d characters", minUsernameLen)
	}
	return name, nil
}

func ValidatePassword(password string) error {
	if len([]rune(password)) < minPasswordLen {
		return errors.Wrapf(ErrInvalidArgument, "password must be at least %d characters", minPasswordLen)
	}
	return nil
}

// Session identifies the logged-in user for the duration of a request.
type Session struct {
	UserID    int
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
