package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/server/storage"
)

type existingRecord struct {
	data    []byte
	deleted bool
}

// Apply applies mutations of one entity in a single transaction
func (s *Storage) Apply(ctx context.Context, entity string, muts []storage.Mutation) (changes []storage.Change, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, m := range muts {
		if m.OpID != "" {
			applied, err := isApplied(ctx, tx, m.OpID)
			if err != nil {
				return nil, err
			}
			if applied {
				s.logger.Debug("operation already applied", "op_id", m.OpID, "entity", entity)
				continue
			}
		}

		change, err := s.applyOne(ctx, tx, entity, m)
		if err != nil {
			return nil, err
		}
		if change != nil {
			changes = append(changes, *change)
		}

		if m.OpID != "" {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO applied_operations (op_id, entity, applied_at) VALUES (?, ?, ?)`,
				m.OpID, entity, s.now().Unix(),
			); err != nil {
				return nil, fmt.Errorf("failed to record operation: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return changes, nil
}

func (s *Storage) applyOne(ctx context.Context, tx *sql.Tx, entity string, m storage.Mutation) (*storage.Change, error) {
	id, err := storage.RecordID(m.Payload)
	if err != nil {
		return nil, err
	}

	existing, err := getRecord(ctx, tx, entity, id)
	if err != nil {
		return nil, err
	}
	live := existing != nil && !existing.deleted

	var data bytes.Buffer
	if err := json.Compact(&data, m.Payload); err != nil {
		return nil, fmt.Errorf("failed to compact payload: %w", err)
	}

	change := &storage.Change{Action: m.Action, Entity: entity, RecordID: id}

	switch m.Action {
	case models.ActionInsert, models.ActionUpdate:
		if m.Action == models.ActionInsert && live {
			return nil, fmt.Errorf("%w: %s/%s", storage.ErrRecordExists, entity, id)
		}
		if live {
			change.Old = existing.data
		}
		change.New = data.Bytes()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO records (entity, id, data, deleted, updated_at) VALUES (?, ?, ?, 0, ?)
			ON CONFLICT(entity, id) DO UPDATE SET data = excluded.data, deleted = 0, updated_at = excluded.updated_at
		`, entity, id, change.New, s.stamp())
	case models.ActionDelete:
		// удаление отсутствующей записи ничего не меняет
		if !live {
			return nil, nil
		}
		change.Old = existing.data
		_, err = tx.ExecContext(ctx,
			`UPDATE records SET deleted = 1, updated_at = ? WHERE entity = ? AND id = ?`,
			s.stamp(), entity, id,
		)
	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrInvalidAction, m.Action)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write record %s/%s: %w", entity, id, err)
	}
	return change, nil
}

// List returns records of an entity, see storage.RecordStore
func (s *Storage) List(ctx context.Context, entity string, since time.Time) (records []models.Record, err error) {
	var rows *sql.Rows
	if since.IsZero() {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, data, deleted, updated_at FROM records
			WHERE entity = ? AND deleted = 0
			ORDER BY id ASC
		`, entity)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, data, deleted, updated_at FROM records
			WHERE entity = ? AND updated_at > ?
			ORDER BY updated_at ASC
		`, entity, since.UnixNano())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	records = make([]models.Record, 0)
	for rows.Next() {
		var (
			rec       models.Record
			data      []byte
			deleted   int
			updatedAt int64
		)
		if err := rows.Scan(&rec.ID, &data, &deleted, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Data = json.RawMessage(data)
		rec.Deleted = deleted != 0
		rec.UpdatedAt = time.Unix(0, updatedAt).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return records, nil
}

func isApplied(ctx context.Context, tx *sql.Tx, opID string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM applied_operations WHERE op_id = ?`, opID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check operation %s: %w", opID, err)
	}
	return true, nil
}

func getRecord(ctx context.Context, tx *sql.Tx, entity, id string) (*existingRecord, error) {
	var (
		rec     existingRecord
		deleted int
	)
	err := tx.QueryRowContext(ctx,
		`SELECT data, deleted FROM records WHERE entity = ? AND id = ?`, entity, id,
	).Scan(&rec.data, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s/%s: %w", entity, id, err)
	}
	rec.deleted = deleted != 0
	return &rec, nil
}
