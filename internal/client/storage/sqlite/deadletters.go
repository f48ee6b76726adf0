package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

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

	query := `
		INSERT INTO dead_letters (id, data, failed_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, failed_at = excluded.failed_at
	`
	if _, err := db.ExecContext(ctx, query, dl.Operation.ID, data, dl.FailedAt.UnixNano()); err != nil {
		return fmt.Errorf("failed to save dead letter: %w", err)
	}
	return nil
}

// GetDead returns all decodable dead letters, oldest first
func (s *Storage) GetDead(ctx context.Context) ([]*models.DeadLetter, error) {
	db, err := s.ready()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, data FROM dead_letters ORDER BY failed_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dead letters: %w", err)
	}
	defer rows.Close()

	var out []*models.DeadLetter
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}

		var dl models.DeadLetter
		if err := json.Unmarshal(data, &dl); err != nil || dl.Operation == nil {
			s.corrupt.Add(1)
			s.logger.Error("skipping corrupt dead letter record", "key", id, "error", err)
			continue
		}
		out = append(out, &dl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

// DeleteDead removes a dead letter by operation ID
func (s *Storage) DeleteDead(ctx context.Context, id string) error {
	db, err := s.ready()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM dead_letters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dead letter: %w", err)
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
