package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/server/storage"
	"github.com/iudanet/gophsync/pkg/api"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recordingNotifier struct {
	changes []storage.Change
	mu      sync.Mutex
}

func (n *recordingNotifier) Publish(changes []storage.Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, changes...)
}

func newRequest(t *testing.T, method, entity, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.SetPathValue("entity", entity)
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestSyncHandler_ApplyOperation(t *testing.T) {
	store := &RecordStorageMock{
		ApplyFunc: func(ctx context.Context, entity string, muts []storage.Mutation) ([]storage.Change, error) {
			return []storage.Change{{Action: muts[0].Action, Entity: entity, RecordID: "p1", New: muts[0].Payload}}, nil
		},
	}
	notifier := &recordingNotifier{}
	h := NewSyncHandler(setupTestLogger(), store, notifier)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	req := newRequest(t, http.MethodPost, "products", "/api/v1/entities/products/operations", api.OperationRequest{
		ID:        "op-1",
		Action:    "update",
		Payload:   json.RawMessage(`{"id":"p1","price":10}`),
		Timestamp: ts,
	})
	w := httptest.NewRecorder()

	h.ApplyOperation(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.ApplyResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Applied)

	calls := store.ApplyCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "products", calls[0].Entity)
	require.Len(t, calls[0].Muts, 1)
	assert.Equal(t, models.ActionUpdate, calls[0].Muts[0].Action)
	assert.Equal(t, "op-1", calls[0].Muts[0].OpID)
	assert.True(t, ts.Equal(calls[0].Muts[0].Timestamp))

	require.Len(t, notifier.changes, 1)
	assert.Equal(t, "p1", notifier.changes[0].RecordID)
}

func TestSyncHandler_ApplyOperation_Errors(t *testing.T) {
	tests := []struct {
		name       string
		entity     string
		body       any
		storeErr   error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid entity",
			entity:     "Bad Entity",
			body:       api.OperationRequest{Action: "INSERT", Payload: json.RawMessage(`{"id":1}`)},
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeBadRequest,
		},
		{
			name:       "malformed body",
			entity:     "products",
			body:       "not an object",
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeBadRequest,
		},
		{
			name:       "unknown action",
			entity:     "products",
			body:       api.OperationRequest{Action: "UPSERT", Payload: json.RawMessage(`{"id":1}`)},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   CodeInvalidOperation,
		},
		{
			name:       "empty payload",
			entity:     "products",
			body:       api.OperationRequest{Action: "INSERT"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   CodeInvalidOperation,
		},
		{
			name:       "conflict",
			entity:     "products",
			body:       api.OperationRequest{Action: "INSERT", Payload: json.RawMessage(`{"id":1}`)},
			storeErr:   storage.ErrRecordExists,
			wantStatus: http.StatusConflict,
			wantCode:   CodeConflict,
		},
		{
			name:       "missing record id",
			entity:     "products",
			body:       api.OperationRequest{Action: "INSERT", Payload: json.RawMessage(`{"name":"x"}`)},
			storeErr:   storage.ErrMissingRecordID,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   CodeInvalidOperation,
		},
		{
			name:       "storage failure",
			entity:     "products",
			body:       api.OperationRequest{Action: "INSERT", Payload: json.RawMessage(`{"id":1}`)},
			storeErr:   errors.New("disk full"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &RecordStorageMock{
				ApplyFunc: func(ctx context.Context, entity string, muts []storage.Mutation) ([]storage.Change, error) {
					return nil, tt.storeErr
				},
			}
			notifier := &recordingNotifier{}
			h := NewSyncHandler(setupTestLogger(), store, notifier)

			w := httptest.NewRecorder()
			h.ApplyOperation(w, newRequest(t, http.MethodPost, tt.entity, "/api/v1/entities/x/operations", tt.body))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, w).Code)
			assert.Empty(t, notifier.changes)
		})
	}
}

func TestSyncHandler_ApplyBatch(t *testing.T) {
	store := &RecordStorageMock{
		ApplyFunc: func(ctx context.Context, entity string, muts []storage.Mutation) ([]storage.Change, error) {
			return nil, nil
		},
	}
	h := NewSyncHandler(setupTestLogger(), store, nil)

	w := httptest.NewRecorder()
	h.ApplyBatch(w, newRequest(t, http.MethodPost, "products", "/api/v1/entities/products/operations/batch", api.BatchRequest{
		Operations: []api.OperationRequest{
			{ID: "a", Action: "INSERT", Payload: json.RawMessage(`{"id":"1"}`)},
			{ID: "b", Action: "DELETE", Payload: json.RawMessage(`{"id":"2"}`)},
		},
	}))

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, store.ApplyCalls(), 1)
	assert.Len(t, store.ApplyCalls()[0].Muts, 2, "a batch is applied in one call")

	// пустой пакет не доходит до хранилища
	w = httptest.NewRecorder()
	h.ApplyBatch(w, newRequest(t, http.MethodPost, "products", "/x", api.BatchRequest{}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, store.ApplyCalls(), 1)
}

func TestSyncHandler_ListRecords(t *testing.T) {
	updated := time.Date(2024, 5, 1, 10, 0, 0, 123, time.UTC)
	store := &RecordStorageMock{
		ListFunc: func(ctx context.Context, entity string, since time.Time) ([]models.Record, error) {
			return []models.Record{{ID: "p1", Data: json.RawMessage(`{"id":"p1"}`), UpdatedAt: updated, Deleted: !since.IsZero()}}, nil
		},
	}
	h := NewSyncHandler(setupTestLogger(), store, nil)

	w := httptest.NewRecorder()
	h.ListRecords(w, newRequest(t, http.MethodGet, "products", "/api/v1/entities/products/records", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.RecordsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "p1", resp.Records[0].ID)
	assert.False(t, resp.Records[0].Deleted)
	assert.True(t, updated.Equal(resp.Records[0].UpdatedAt))
	assert.True(t, store.ListCalls()[0].Since.IsZero())

	since := "2024-05-01T09:00:00.5Z"
	w = httptest.NewRecorder()
	h.ListRecords(w, newRequest(t, http.MethodGet, "products", "/api/v1/entities/products/records?since="+since, nil))
	require.Equal(t, http.StatusOK, w.Code)
	want, _ := time.Parse(time.RFC3339Nano, since)
	assert.True(t, want.Equal(store.ListCalls()[1].Since))

	w = httptest.NewRecorder()
	h.ListRecords(w, newRequest(t, http.MethodGet, "products", "/api/v1/entities/products/records?since=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	store.ListFunc = func(ctx context.Context, entity string, since time.Time) ([]models.Record, error) {
		return nil, errors.New("boom")
	}
	w = httptest.NewRecorder()
	h.ListRecords(w, newRequest(t, http.MethodGet, "products", "/api/v1/entities/products/records", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
