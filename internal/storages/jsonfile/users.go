package jsonfile

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Krchnk/valutatrade-wallet/internal/domain"
)

type userRecord struct {
	UserID           int    `json:"user_id"`
	Username         string `json:"username"`
	HashedPassword   string `json:"hashed_password"`
	RegistrationDate string `json:"registration_date"`
}

// UserFile keeps every user in one JSON array.
type UserFile struct {
	mu     sync.Mutex
	path   string
	logger logrus.FieldLogger
}

func NewUserFile(path string, logger logrus.FieldLogger) *UserFile {
	return &UserFile{path: path, logger: logger}
}

func (f *UserFile) load() ([]userRecord, error) {
	return readJSON[[]userRecord](f.path, f.logger)
}

func (f *UserFile) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.Username == username {
			return f.toUser(r), nil
		}
	}
	return nil, nil
}

func (f *UserFile) FindByID(_ context.Context, id int) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.UserID == id {
			return f.toUser(r), nil
		}
	}
	return nil, nil
}

// Save inserts the user or updates its record. An id or username owned by
// another user is refused.
func (f *UserFile) Save(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return err
	}
	rec := userRecord{
		UserID:           user.ID,
		Username:         user.Username,
		HashedPassword:   user.PasswordHash,
		RegistrationDate: formatTime(user.CreatedAt),
	}
	replaced := false
	for i := range records {
		switch {
		case records[i].UserID == user.ID && records[i].Username != user.Username:
			return errors.Wrapf(domain.ErrUserExists, "user id %d already belongs to %q", user.ID, records[i].Username)
		case records[i].UserID != user.ID && records[i].Username == user.Username:
			return errors.Wrapf(domain.ErrUserExists, "username %q is already taken", user.Username)
		case records[i].UserID == user.ID:
			records[i] = rec
			replaced = true
		}
	}
	if !replaced {
		records = append(records, rec)
	}
	return writeJSON(f.path, records)
}

// NextID is one more than the highest id on file, starting at 1.
func (f *UserFile) NextID(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return 0, err
	}
	next := 1
	for _, r := range records {
		if r.UserID >= next {
			next = r.UserID + 1
		}
	}
	return next, nil
}

func (f *UserFile) toUser(r userRecord) *domain.User {
	u := &domain.User{ID: r.UserID, Username: r.Username, PasswordHash: r.HashedPassword}
	if r.RegistrationDate != "" {
		created, err := parseTime(r.RegistrationDate)
		if err != nil {
			f.logger.WithField("user_id", r.UserID).WithError(err).Warn("bad registration date")
		}
		u.CreatedAt = created
	}
	return u
}
