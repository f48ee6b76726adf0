package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// SaveWatermark saves the delta-sync watermark for an entity
func (s *Storage) SaveWatermark(ctx context.Context, entity string, ts time.Time) error {
	db, err := s.ready()
	if err != nil {
		return err
	}

	// Храним UnixNano в big-endian
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(ts.UnixNano()))

	err = db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketWatermarks).Put([]byte(entity), buf)
	})
	if err != nil {
		return fmt.Errorf("failed to save watermark: %w", err)
	}
	return nil
}

// GetWatermark returns zero time if no watermark was saved yet
func (s *Storage) GetWatermark(ctx context.Context, entity string) (time.Time, error) {
	db, err := s.ready()
	if err != nil {
		return time.Time{}, err
	}

	var ts time.Time
	err = db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketWatermarks).Get([]byte(entity))
		if len(raw) != 8 {
			return nil
		}
		ts = time.Unix(0, int64(binary.BigEndian.Uint64(raw))).UTC()
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get watermark: %w", err)
	}
	return ts, nil
}
