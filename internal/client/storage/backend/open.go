// Package backend selects a store implementation from a DSN.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/client/storage/boltdb"
	"github.com/iudanet/gophsync/internal/client/storage/filekv"
	"github.com/iudanet/gophsync/internal/client/storage/memory"
	"github.com/iudanet/gophsync/internal/client/storage/sqlite"
)

// Supported DSN schemes
const (
	SchemeBolt   = "bolt"
	SchemeSQLite = "sqlite"
	SchemeFile   = "file"
	SchemeMemory = "memory"
)

// Opened is an initialized store together with the DSN it was built from
type Opened struct {
	Store    storage.Store
	DSN      string
	Scheme   string
	Fallback bool
}

// ParseDSN splits a DSN into scheme and path.
// A bare path without scheme is treated as a bolt database file.
func ParseDSN(dsn string) (scheme, path string, err error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", "", errors.New("empty storage dsn")
	}

	scheme, path, ok := strings.Cut(dsn, "://")
	if !ok {
		return SchemeBolt, dsn, nil
	}

	scheme = strings.ToLower(strings.TrimSpace(scheme))
	path = strings.TrimSpace(path)

	switch scheme {
	case SchemeMemory, "mem", "inmem":
		return SchemeMemory, "", nil
	case SchemeBolt, "bbolt", "boltdb":
		scheme = SchemeBolt
	case SchemeSQLite, "sqlite3":
		scheme = SchemeSQLite
	case SchemeFile, "json":
		scheme = SchemeFile
	default:
		return "", "", fmt.Errorf("%w: %s", storage.ErrUnknownScheme, scheme)
	}

	if path == "" {
		return "", "", fmt.Errorf("storage dsn %q has no path", dsn)
	}
	return scheme, path, nil
}

// Build creates and initializes a single store from dsn
func Build(ctx context.Context, dsn string, logger *slog.Logger) (storage.Store, string, error) {
	scheme, path, err := ParseDSN(dsn)
	if err != nil {
		return nil, "", err
	}

	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, scheme, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	var store storage.Store
	switch scheme {
	case SchemeBolt:
		store, err = boltdb.New(ctx, path, logger)
	case SchemeSQLite:
		store, err = sqlite.New(ctx, path, logger)
	case SchemeFile:
		store, err = filekv.New(path, logger)
	case SchemeMemory:
		store = memory.New()
	}
	if err != nil {
		return nil, scheme, err
	}

	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, scheme, err
	}

	return store, scheme, nil
}

// Open builds the primary store and transparently falls back to fallbackDSN
// when the primary cannot be opened or initialized. The choice is made once.
func Open(ctx context.Context, primaryDSN, fallbackDSN string, logger *slog.Logger) (*Opened, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, scheme, err := Build(ctx, primaryDSN, logger)
	if err == nil {
		logger.Info("operation store opened", "scheme", scheme)
		return &Opened{Store: store, DSN: primaryDSN, Scheme: scheme}, nil
	}

	if strings.TrimSpace(fallbackDSN) == "" {
		return nil, fmt.Errorf("failed to open primary store: %w", err)
	}

	logger.Warn("primary store unavailable, using fallback",
		"primary_scheme", scheme,
		"error", err,
	)

	fbStore, fbScheme, fbErr := Build(ctx, fallbackDSN, logger)
	if fbErr != nil {
		return nil, fmt.Errorf("failed to open fallback store: %w", errors.Join(err, fbErr))
	}

	logger.Info("operation store opened", "scheme", fbScheme, "fallback", true)
	return &Opened{Store: fbStore, DSN: fallbackDSN, Scheme: fbScheme, Fallback: true}, nil
}
