package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gophsync/internal/client/storage"
)

var (
	// BoltDB bucket names
	bucketMeta       = []byte("meta")
	bucketOperations = []byte("operations")
	bucketDead       = []byte("dead_letters")
	bucketWatermarks = []byte("watermarks")

	keySchemaVersion = []byte("schema_version")
)

// openTimeout ограничивает ожидание файловой блокировки:
// если файл занят другим процессом, лучше быстро уйти на fallback.
const openTimeout = time.Second

// Storage represents BoltDB storage implementation for the operation queue
type Storage struct {
	db          *bbolt.DB
	logger      *slog.Logger
	mu          sync.RWMutex
	corrupt     atomic.Int64
	initialized atomic.Bool
}

var _ storage.Store = (*Storage)(nil)

// New opens a BoltDB database file. Init must be called before use.
func New(ctx context.Context, dbPath string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	return &Storage{db: db, logger: logger}, nil
}

// Init создает buckets и проверяет версию схемы
func (s *Storage) Init(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketOperations, bucketDead, bucketWatermarks} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketMeta)
		raw := meta.Get(keySchemaVersion)
		if raw == nil {
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, storage.SchemaVersion)
			return meta.Put(keySchemaVersion, buf)
		}
		if len(raw) != 8 {
			return fmt.Errorf("%w: malformed version record", storage.ErrSchemaVersion)
		}
		if v := binary.BigEndian.Uint64(raw); v > storage.SchemaVersion {
			return fmt.Errorf("%w: on disk %d, supported %d", storage.ErrSchemaVersion, v, storage.SchemaVersion)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to initialize boltdb: %w", err)
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

// Corrupt returns the number of undecodable records seen by GetAll and GetDead
func (s *Storage) Corrupt() int {
	return int(s.corrupt.Load())
}

// handle returns the open database or a storage error
func (s *Storage) handle() (*bbolt.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}
	return s.db, nil
}

// ready returns the database if it is open and initialized
func (s *Storage) ready() (*bbolt.DB, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	if !s.initialized.Load() {
		return nil, storage.ErrNotInitialized
	}
	return db, nil
}
