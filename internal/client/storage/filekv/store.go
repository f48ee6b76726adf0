// Package filekv is a flat key-value fallback store kept in one JSON file.
// Every mutation rewrites the file atomically.
package filekv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/models"
)

// document формат файла на диске
type document struct {
	Operations    map[string]json.RawMessage `json:"operations"`
	DeadLetters   map[string]json.RawMessage `json:"dead_letters"`
	Watermarks    map[string]int64           `json:"watermarks"`
	SchemaVersion int                        `json:"schema_version"`
}

// Store is a flat JSON file store
type Store struct {
	logger  *slog.Logger
	doc     *document
	path    string
	mu      sync.Mutex
	corrupt int
	closed  bool
}

var _ storage.Store = (*Store)(nil)

// New returns a store backed by path. The file is created on first write.
func New(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("filekv: empty path")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Store{path: path, logger: logger}, nil
}

// Init loads the file and checks schema version
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrStorageClosed
	}

	doc := &document{SchemaVersion: storage.SchemaVersion}
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("failed to read store file: %w", err)
	default:
		if err := json.Unmarshal(data, doc); err != nil {
			return fmt.Errorf("failed to decode store file: %w", err)
		}
		if doc.SchemaVersion > storage.SchemaVersion {
			return fmt.Errorf("%w: on disk %d, supported %d", storage.ErrSchemaVersion, doc.SchemaVersion, storage.SchemaVersion)
		}
	}

	if doc.Operations == nil {
		doc.Operations = make(map[string]json.RawMessage)
	}
	if doc.DeadLetters == nil {
		doc.DeadLetters = make(map[string]json.RawMessage)
	}
	if doc.Watermarks == nil {
		doc.Watermarks = make(map[string]int64)
	}
	doc.SchemaVersion = storage.SchemaVersion
	s.doc = doc
	return nil
}

// Close marks the store closed
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.doc = nil
	return nil
}

// Corrupt returns the number of undecodable records seen so far
func (s *Store) Corrupt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corrupt
}

// Put stores or replaces an operation by ID
func (s *Store) Put(ctx context.Context, op *models.Operation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}
	return s.mutate(func(doc *document) error {
		doc.Operations[op.ID] = data
		return nil
	})
}

// Delete removes an operation by ID
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.mutate(func(doc *document) error {
		if _, ok := doc.Operations[id]; !ok {
			return storage.ErrOperationNotFound
		}
		delete(doc.Operations, id)
		return nil
	})
}

// GetAll returns all decodable operations
func (s *Store) GetAll(ctx context.Context) ([]*models.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return nil, err
	}

	ops := make([]*models.Operation, 0, len(s.doc.Operations))
	for _, key := range sortedKeys(s.doc.Operations) {
		var op models.Operation
		if err := json.Unmarshal(s.doc.Operations[key], &op); err != nil {
			s.corrupt++
			s.logger.Error("skipping corrupt operation record", "key", key, "error", err)
			continue
		}
		ops = append(ops, &op)
	}
	return ops, nil
}

// PutDead stores a dead letter keyed by operation ID
func (s *Store) PutDead(ctx context.Context, dl *models.DeadLetter) error {
	if dl == nil || dl.Operation == nil {
		return errors.New("dead letter without operation")
	}
	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}
	return s.mutate(func(doc *document) error {
		doc.DeadLetters[dl.Operation.ID] = data
		return nil
	})
}

// GetDead returns all decodable dead letters
func (s *Store) GetDead(ctx context.Context) ([]*models.DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return nil, err
	}

	out := make([]*models.DeadLetter, 0, len(s.doc.DeadLetters))
	for _, key := range sortedKeys(s.doc.DeadLetters) {
		var dl models.DeadLetter
		if err := json.Unmarshal(s.doc.DeadLetters[key], &dl); err != nil || dl.Operation == nil {
			s.corrupt++
			s.logger.Error("skipping corrupt dead letter record", "key", key, "error", err)
			continue
		}
		out = append(out, &dl)
	}
	return out, nil
}

// DeleteDead removes a dead letter by operation ID
func (s *Store) DeleteDead(ctx context.Context, id string) error {
	return s.mutate(func(doc *document) error {
		if _, ok := doc.DeadLetters[id]; !ok {
			return storage.ErrOperationNotFound
		}
		delete(doc.DeadLetters, id)
		return nil
	})
}

// SaveWatermark saves the delta-sync watermark for an entity
func (s *Store) SaveWatermark(ctx context.Context, entity string, ts time.Time) error {
	return s.mutate(func(doc *document) error {
		doc.Watermarks[entity] = ts.UnixNano()
		return nil
	})
}

// GetWatermark returns zero time if no watermark was saved yet
func (s *Store) GetWatermark(ctx context.Context, entity string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return time.Time{}, err
	}
	nanos, ok := s.doc.Watermarks[entity]
	if !ok {
		return time.Time{}, nil
	}
	return time.Unix(0, nanos).UTC(), nil
}

func (s *Store) readyLocked() error {
	if s.closed {
		return storage.ErrStorageClosed
	}
	if s.doc == nil {
		return storage.ErrNotInitialized
	}
	return nil
}

// mutate применяет fn к копии документа и сохраняет её на диск.
// Состояние в памяти меняется только после успешной записи.
func (s *Store) mutate(fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return err
	}

	next := s.doc.clone()
	if err := fn(next); err != nil {
		return err
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode store file: %w", err)
	}
	if err := writeFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}

	s.doc = next
	return nil
}

func (d *document) clone() *document {
	c := &document{
		SchemaVersion: d.SchemaVersion,
		Operations:    make(map[string]json.RawMessage, len(d.Operations)),
		DeadLetters:   make(map[string]json.RawMessage, len(d.DeadLetters)),
		Watermarks:    make(map[string]int64, len(d.Watermarks)),
	}
	for k, v := range d.Operations {
		c.Operations[k] = v
	}
	for k, v := range d.DeadLetters {
		c.DeadLetters[k] = v
	}
	for k, v := range d.Watermarks {
		c.Watermarks[k] = v
	}
	return c
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
