package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/models"
)

// DeadLetters returns operations removed from dispatch after a terminal failure
func (q *Queue) DeadLetters(ctx context.Context) ([]*models.DeadLetter, error) {
	dead, err := q.store.GetDead(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load dead letters: %w", err)
	}
	return dead, nil
}

// Replay moves a dead letter back into the queue with a fresh retry budget.
// The dedup policy applies as for any new operation.
func (q *Queue) Replay(ctx context.Context, id string) (*models.Operation, error) {
	dead, err := q.DeadLetters(ctx)
	if err != nil {
		return nil, err
	}

	var found *models.DeadLetter
	for _, dl := range dead {
		if dl.Operation.ID == id {
			found = dl
			break
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}

	op := found.Operation.Clone()
	op.Retries = 0
	op.LastError = ""

	added, err := q.Add(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("failed to re-enqueue dead letter: %w", err)
	}

	if err := q.store.DeleteDead(ctx, id); err != nil && !errors.Is(err, storage.ErrOperationNotFound) {
		return added, fmt.Errorf("operation re-enqueued but dead letter not removed: %w", err)
	}

	q.logger.Info("dead letter replayed", "id", id, "entity", added.Entity)
	return added, nil
}
