// Package storage defines the record store behind the reference sync server.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/gophsync/internal/models"
)

// Mutation одна операция клиента, применяемая к записи сущности
type Mutation struct {
	Timestamp time.Time
	OpID      string
	Action    models.Action
	Payload   json.RawMessage
}

// Change результат применения мутации, рассылается realtime-подписчикам
type Change struct {
	Action   models.Action
	Entity   string
	RecordID string
	New      json.RawMessage
	Old      json.RawMessage
}

// RecordStore persists entity records
type RecordStore interface {
	// Apply applies mutations of one entity atomically. Mutations whose OpID
	// was already applied are skipped, so retries are idempotent.
	Apply(ctx context.Context, entity string, muts []Mutation) ([]Change, error)

	// List returns live records when since is zero, otherwise every record
	// (deleted included) changed strictly after since, oldest first.
	List(ctx context.Context, entity string, since time.Time) ([]models.Record, error)

	Close() error
}

// RecordID extracts the "id" field of a JSON object payload.
// String and number ids are accepted.
func RecordID(payload json.RawMessage) (string, error) {
	var doc map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMissingRecordID, err)
	}

	raw, ok := doc["id"]
	if !ok {
		return "", ErrMissingRecordID
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return s, nil
		}
		return "", ErrMissingRecordID
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", ErrMissingRecordID
}
