package backend

import (
	"context"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/client/storage/boltdb"
	"github.com/iudanet/gophsync/internal/client/storage/filekv"
	"github.com/iudanet/gophsync/internal/client/storage/memory"
	"github.com/iudanet/gophsync/internal/client/storage/sqlite"
)

func TestParseDSN(t *testing.T) {
	tests := []struct {
		name       string
		dsn        string
		wantScheme string
		wantPath   string
		wantErr    bool
	}{
		{name: "bolt", dsn: "bolt://data/queue.db", wantScheme: SchemeBolt, wantPath: "data/queue.db"},
		{name: "bolt absolute", dsn: "bolt:///var/lib/q.db", wantScheme: SchemeBolt, wantPath: "/var/lib/q.db"},
		{name: "bare path", dsn: "queue.db", wantScheme: SchemeBolt, wantPath: "queue.db"},
		{name: "sqlite alias", dsn: "sqlite3://q.sqlite", wantScheme: SchemeSQLite, wantPath: "q.sqlite"},
		{name: "file", dsn: "FILE://q.json", wantScheme: SchemeFile, wantPath: "q.json"},
		{name: "memory", dsn: "memory://", wantScheme: SchemeMemory},
		{name: "empty", dsn: " ", wantErr: true},
		{name: "missing path", dsn: "bolt://", wantErr: true},
		{name: "unknown scheme", dsn: "postgres://db", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheme, path, err := ParseDSN(tt.dsn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantScheme, scheme)
			assert.Equal(t, tt.wantPath, path)
		})
	}

	_, _, err := ParseDSN("redis://x")
	assert.ErrorIs(t, err, storage.ErrUnknownScheme)
}

func TestBuild_Backends(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	tests := []struct {
		name  string
		dsn   string
		check func(t *testing.T, s storage.Store)
	}{
		{name: "bolt", dsn: "bolt://" + filepath.Join(dir, "nested", "q.db"), check: func(t *testing.T, s storage.Store) {
			assert.IsType(t, &boltdb.Storage{}, s)
		}},
		{name: "sqlite", dsn: "sqlite://" + filepath.Join(dir, "q.sqlite"), check: func(t *testing.T, s storage.Store) {
			assert.IsType(t, &sqlite.Storage{}, s)
		}},
		{name: "file", dsn: "file://" + filepath.Join(dir, "q.json"), check: func(t *testing.T, s storage.Store) {
			assert.IsType(t, &filekv.Store{}, s)
		}},
		{name: "memory", dsn: "memory://", check: func(t *testing.T, s storage.Store) {
			assert.IsType(t, &memory.Store{}, s)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, err := Build(ctx, tt.dsn, nil)
			require.NoError(t, err)
			defer s.Close()
			tt.check(t, s)

			_, err = s.GetAll(ctx)
			assert.NoError(t, err)
		})
	}
}

func TestOpen_Primary(t *testing.T) {
	dir := t.TempDir()

	opened, err := Open(context.Background(),
		"bolt://"+filepath.Join(dir, "q.db"),
		"file://"+filepath.Join(dir, "q.json"),
		nil)
	require.NoError(t, err)
	defer opened.Store.Close()

	assert.Equal(t, SchemeBolt, opened.Scheme)
	assert.False(t, opened.Fallback)
}

func TestOpen_FallsBackWhenPrimaryRejectsSchema(t *testing.T) {
	dir := t.TempDir()
	boltPath := filepath.Join(dir, "q.db")

	// Файл от более новой версии: primary не проходит Init
	db, err := bbolt.Open(boltPath, 0600, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte("meta"))
		if err != nil {
			return err
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, storage.SchemaVersion+5)
		return b.Put([]byte("schema_version"), buf)
	}))
	require.NoError(t, db.Close())

	opened, err := Open(context.Background(), "bolt://"+boltPath, "file://"+filepath.Join(dir, "q.json"), nil)
	require.NoError(t, err)
	defer opened.Store.Close()

	assert.True(t, opened.Fallback)
	assert.Equal(t, SchemeFile, opened.Scheme)
}

func TestOpen_NoFallback(t *testing.T) {
	_, err := Open(context.Background(), "postgres://db", "", nil)
	assert.ErrorIs(t, err, storage.ErrUnknownScheme)
}

func TestOpen_BothFail(t *testing.T) {
	_, err := Open(context.Background(), "postgres://db", "redis://x", nil)
	assert.Error(t, err)
}
