package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

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

	query := `
		INSERT INTO operations (id, entity, priority, seq, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			entity = excluded.entity,
			priority = excluded.priority,
			seq = excluded.seq,
			data = excluded.data,
			updated_at = excluded.updated_at
	`

	_, err = db.ExecContext(ctx, query,
		op.ID,
		op.Entity,
		int(op.Priority),
		op.Seq,
		data,
		time.Now().UnixNano(),
	)
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

	res, err := db.ExecContext(ctx, `DELETE FROM operations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete operation: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrOperationNotFound
	}

	return nil
}

// GetAll returns all decodable operations ordered by priority and sequence
func (s *Storage) GetAll(ctx context.Context) ([]*models.Operation, error) {
	db, err := s.ready()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, data FROM operations ORDER BY priority, seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var ops []*models.Operation
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}

		var op models.Operation
		if err := json.Unmarshal(data, &op); err != nil {
			s.corrupt.Add(1)
			s.logger.Error("skipping corrupt operation record", "key", id, "error", err)
			continue
		}
		ops = append(ops, &op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return ops, nil
}
