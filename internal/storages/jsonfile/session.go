package jsonfile

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type sessionRecord struct {
	Token string `json:"token,omitempty"`
}

// SessionFile keeps the signed session token of the CLI user.
type SessionFile struct {
	mu     sync.Mutex
	path   string
	logger logrus.FieldLogger
}

func NewSessionFile(path string, logger logrus.FieldLogger) *SessionFile {
	return &SessionFile{path: path, logger: logger}
}

// Load returns the stored token, or "" when nobody is logged in.
func (f *SessionFile) Load() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, err := readJSON[sessionRecord](f.path, f.logger)
	if err != nil {
		return "", err
	}
	return rec.Token, nil
}

func (f *SessionFile) Save(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return writeJSON(f.path, sessionRecord{Token: token})
}

func (f *SessionFile) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "clear session")
	}
	return nil
}
