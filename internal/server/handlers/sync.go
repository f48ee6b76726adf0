package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/server/storage"
	"github.com/iudanet/gophsync/internal/validation"
	"github.com/iudanet/gophsync/pkg/api"
)

//go:generate moq -out storage_mock.go . RecordStorage

// maxBodyBytes ограничение на тело запроса с операциями
const maxBodyBytes = 4 << 20

// RecordStorage определяет интерфейс для работы с записями
type RecordStorage interface {
	Apply(ctx context.Context, entity string, muts []storage.Mutation) ([]storage.Change, error)
	List(ctx context.Context, entity string, since time.Time) ([]models.Record, error)
}

// ChangeNotifier получает примененные изменения (realtime hub)
type ChangeNotifier interface {
	Publish(changes []storage.Change)
}

// SyncHandler handles operation and record requests
type SyncHandler struct {
	logger   *slog.Logger
	storage  RecordStorage
	notifier ChangeNotifier
}

// NewSyncHandler creates a new sync handler. notifier may be nil.
func NewSyncHandler(logger *slog.Logger, storage RecordStorage, notifier ChangeNotifier) *SyncHandler {
	return &SyncHandler{
		logger:   logger,
		storage:  storage,
		notifier: notifier,
	}
}

// ApplyOperation обрабатывает POST /api/v1/entities/{entity}/operations
func (h *SyncHandler) ApplyOperation(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.entity(w, r)
	if !ok {
		return
	}

	var req api.OperationRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.apply(w, r, entity, []api.OperationRequest{req})
}

// ApplyBatch обрабатывает POST /api/v1/entities/{entity}/operations/batch.
// Пакет применяется атомарно.
func (h *SyncHandler) ApplyBatch(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.entity(w, r)
	if !ok {
		return
	}

	var req api.BatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Operations) == 0 {
		writeJSON(w, h.logger, http.StatusOK, api.ApplyResponse{Applied: true})
		return
	}

	h.apply(w, r, entity, req.Operations)
}

// ListRecords обрабатывает GET /api/v1/entities/{entity}/records[?since=RFC3339Nano]
func (h *SyncHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.entity(w, r)
	if !ok {
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		var err error
		since, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			h.logger.Warn("invalid since parameter", "since", raw, "error", err)
			writeError(w, h.logger, http.StatusBadRequest, CodeBadRequest, "since must be RFC3339")
			return
		}
	}

	records, err := h.storage.List(r.Context(), entity, since)
	if err != nil {
		h.logger.Error("failed to list records", "entity", entity, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, CodeInternal, "failed to list records")
		return
	}

	resp := api.RecordsResponse{ServerTime: time.Now().UTC(), Records: make([]api.Record, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, api.Record{
			ID:        rec.ID,
			Data:      rec.Data,
			Deleted:   rec.Deleted,
			UpdatedAt: rec.UpdatedAt,
		})
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
	h.logger.Debug("records listed", "entity", entity, "count", len(records), "delta", !since.IsZero())
}

func (h *SyncHandler) apply(w http.ResponseWriter, r *http.Request, entity string, reqs []api.OperationRequest) {
	muts := make([]storage.Mutation, 0, len(reqs))
	for _, req := range reqs {
		action, err := models.ParseAction(req.Action)
		if err != nil {
			writeError(w, h.logger, http.StatusUnprocessableEntity, CodeInvalidOperation, err.Error())
			return
		}
		if len(req.Payload) == 0 || !json.Valid(req.Payload) {
			writeError(w, h.logger, http.StatusUnprocessableEntity, CodeInvalidOperation, "payload must be a JSON object")
			return
		}
		muts = append(muts, storage.Mutation{
			OpID:      req.ID,
			Action:    action,
			Payload:   req.Payload,
			Timestamp: req.Timestamp,
		})
	}

	changes, err := h.storage.Apply(r.Context(), entity, muts)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrRecordExists):
		writeError(w, h.logger, http.StatusConflict, CodeConflict, err.Error())
		return
	case errors.Is(err, storage.ErrMissingRecordID), errors.Is(err, storage.ErrInvalidAction):
		writeError(w, h.logger, http.StatusUnprocessableEntity, CodeInvalidOperation, err.Error())
		return
	default:
		h.logger.Error("failed to apply operations", "entity", entity, "count", len(muts), "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, CodeInternal, "failed to apply operations")
		return
	}

	if h.notifier != nil && len(changes) > 0 {
		h.notifier.Publish(changes)
	}

	writeJSON(w, h.logger, http.StatusOK, api.ApplyResponse{Applied: true})
	h.logger.Info("operations applied", "entity", entity, "count", len(muts), "changes", len(changes))
}

func (h *SyncHandler) entity(w http.ResponseWriter, r *http.Request) (string, bool) {
	entity := r.PathValue("entity")
	if err := validation.ValidateEntity(entity); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, CodeBadRequest, err.Error())
		return "", false
	}
	return entity, true
}

func (h *SyncHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Warn("failed to decode request", "path", r.URL.Path, "error", err)
		writeError(w, h.logger, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return false
	}
	return true
}
