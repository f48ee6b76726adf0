package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/models"
)

// PutDead stores a dead letter keyed by operation ID
func (s *Storage) PutDead(ctx context.Context, dl *models.DeadLetter) error {
	db, err := s.ready()
	if err != nil {
		return err
	}
	if dl == nil || dl.Operation == nil {
		return errors.New("dead letter without operation")
	}

	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDead).Put([]byte(dl.Operation.ID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save dead letter: %w", err)
	}
	return nil
}

// GetDead returns all decodable dead letters
func (s *Storage) GetDead(ctx context.Context) ([]*models.DeadLetter, error) {
	db, err := s.ready()
	if err != nil {
		return nil, err
	}

	var out []*models.DeadLetter
	err = db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDead).ForEach(func(k, v []byte) error {
			var dl models.DeadLetter
			if err := json.Unmarshal(v, &dl); err != nil || dl.Operation == nil {
				s.corrupt.Add(1)
				s.logger.Error("skipping corrupt dead letter record", "key", string(k), "error", err)
				return nil
			}
			out = append(out, &dl)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get dead letters: %w", err)
	}
	return out, nil
}

// DeleteDead removes a dead letter by operation ID
func (s *Storage) DeleteDead(ctx context.Context, id string) error {
	db, err := s.ready()
	if err != nil {
		return err
	}

	return db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketDead)
		if bucket.Get([]byte(id)) == nil {
			return storage.ErrOperationNotFound
		}
		return bucket.Delete([]byte(id))
	})
}
