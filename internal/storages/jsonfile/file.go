// Package jsonfile stores users, portfolios, rates and the CLI session as
// JSON documents in a data directory. Every write replaces the whole file
// through a temp file and a rename.
package jsonfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Krchnk/valutatrade-wallet/internal/storages"
)

const (
	usersFile      = "users.json"
	portfoliosFile = "portfolios.json"
	ratesFile      = "rates.json"
	sessionFile    = "session.json"
)

// Open prepares dataDir and returns the file-backed stores rooted there.
func Open(dataDir string, logger logrus.FieldLogger) (*storages.Storage, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}
	return &storages.Storage{
		Users:      NewUserFile(filepath.Join(dataDir, usersFile), logger),
		Portfolios: NewPortfolioFile(filepath.Join(dataDir, portfoliosFile), logger),
		Rates:      NewRateFile(filepath.Join(dataDir, ratesFile), logger),
		Close:      func() error { return nil },
	}, nil
}

// SessionPath is where the CLI session lives inside dataDir.
func SessionPath(dataDir string) string {
	return filepath.Join(dataDir, sessionFile)
}

// readJSON decodes path into a fresh T. A missing, empty or malformed file
// yields the zero T; malformed files are logged.
func readJSON[T any](path string, logger logrus.FieldLogger) (T, error) {
	var zero T
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return zero, nil
		}
		return zero, errors.Wrapf(err, "read %s", path)
	}
	if len(payload) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		logger.WithField("path", path).WithError(err).Warn("malformed store file, treating it as empty")
		return zero, nil
	}
	return v, nil
}

// writeJSON writes v to path atomically.
func writeJSON(path string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create dir for %s", path)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return errors.Wrapf(err, "write temp file for %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "persist %s", path)
	}
	return nil
}

// localISO is the timestamp layout of files written without a zone offset.
const localISO = "2006-01-02T15:04:05.999999999"

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(localISO, s, time.Local)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse timestamp %q", s)
	}
	return t, nil
}
