package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveWatermark saves the delta-sync watermark for an entity
func (s *Storage) SaveWatermark(ctx context.Context, entity string, ts time.Time) error {
	db, err := s.ready()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO watermarks (entity, ts) VALUES (?, ?)
		ON CONFLICT(entity) DO UPDATE SET ts = excluded.ts
	`
	if _, err := db.ExecContext(ctx, query, entity, ts.UnixNano()); err != nil {
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

	var nanos int64
	err = db.QueryRowContext(ctx, `SELECT ts FROM watermarks WHERE entity = ?`, entity).Scan(&nanos)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get watermark: %w", err)
	}

	return time.Unix(0, nanos).UTC(), nil
}
