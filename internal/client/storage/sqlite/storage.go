package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/iudanet/gophsync/internal/client/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// latestMigration номер последней встроенной миграции
const latestMigration = 1

// gooseMu защищает глобальное состояние goose (dialect, base FS)
var gooseMu sync.Mutex

// Storage represents SQLite storage implementation for the operation queue
type Storage struct {
	db          *sql.DB
	logger      *slog.Logger
	mu          sync.RWMutex
	corrupt     atomic.Int64
	initialized atomic.Bool
}

var _ storage.Store = (*Storage)(nil)

// New opens a SQLite database. Init must be called before use.
// Use ":memory:" for in-memory database (useful for testing)
func New(ctx context.Context, dbPath string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite с WAL mode поддерживает несколько читателей, но только одного писателя
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	return &Storage{db: db, logger: logger}, nil
}

// Init проверяет версию схемы и запускает миграции
func (s *Storage) Init(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	if err := runMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to initialize sqlite: %w", err)
	}

	s.initialized.Store(true)
	return nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Corrupt returns the number of undecodable records seen so far
func (s *Storage) Corrupt() int {
	return int(s.corrupt.Load())
}

// DB returns the underlying database connection for testing purposes
func (s *Storage) DB() *sql.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

func (s *Storage) handle() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}
	return s.db, nil
}

func (s *Storage) ready() (*sql.DB, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	if !s.initialized.Load() {
		return nil, storage.ErrNotInitialized
	}
	return db, nil
}

// runMigrations выполняет миграции из embedded FS
func runMigrations(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	// Схема новее, чем знает эта сборка: не трогаем
	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > latestMigration {
		return fmt.Errorf("%w: on disk %d, supported %d", storage.ErrSchemaVersion, version, latestMigration)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	return nil
}
