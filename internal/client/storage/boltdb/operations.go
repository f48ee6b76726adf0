package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/models"
)

// Put stores or replaces an operation by ID
func (s *Storage) Put(ctx context.Context, op *models.Operation) error {
	db, err := s.ready()
	if err != nil {
		return err
	}

	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOperations).Put([]byte(op.ID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save operation: %w", err)
	}

	return nil
}

// Delete removes an operation by ID
func (s *Storage) Delete(ctx context.Context, id string) error {
	db, err := s.ready()
	if err != nil {
		return err
	}

	return db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOperations)
		if bucket.Get([]byte(id)) == nil {
			return storage.ErrOperationNotFound
		}
		if err := bucket.Delete([]byte(id)); err != nil {
			return fmt.Errorf("failed to delete operation: %w", err)
		}
		return nil
	})
}

// GetAll returns all decodable operations
func (s *Storage) GetAll(ctx context.Context) ([]*models.Operation, error) {
	db, err := s.ready()
	if err != nil {
		return nil, err
	}

	var ops []*models.Operation

	err = db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOperations).ForEach(func(k, v []byte) error {
			var op models.Operation
			if err := json.Unmarshal(v, &op); err != nil {
				// Битую запись оставляем на диске, но не отдаем в очередь
				s.corrupt.Add(1)
				s.logger.Error("skipping corrupt operation record", "key", string(k), "error", err)
				return nil
			}
			ops = append(ops, &op)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get all operations: %w", err)
	}

	return ops, nil
}
