// Package api contains wire types shared by the sync client and a compatible server.
package api

import (
	"encoding/json"
	"time"
)

// API paths
const (
	PathEntityOperations = "/api/v1/entities/%s/operations"
	PathEntityBatch      = "/api/v1/entities/%s/operations/batch"
	PathEntityRecords    = "/api/v1/entities/%s/records"
	PathHealth           = "/api/v1/health"
	PathPing             = "/api/v1/ping"
	PathBandwidth        = "/api/v1/bandwidth"
	PathRealtime         = "/api/v1/realtime"
)

// OperationRequest представляет одну мутацию, отправляемую на сервер
type OperationRequest struct {
	Timestamp time.Time       `json:"timestamp"`
	ID        string          `json:"id"`     // ключ идемпотентности
	Action    string          `json:"action"` // INSERT, UPDATE, DELETE
	Payload   json.RawMessage `json:"payload"`
}

// BatchRequest представляет пакет мутаций одной сущности
type BatchRequest struct {
	Operations []OperationRequest `json:"operations"`
}

// ApplyResponse ответ сервера на мутацию или пакет.
// Applied=false означает, что сервер не применил изменение и его нужно повторить.
type ApplyResponse struct {
	Applied bool `json:"applied"`
}

// Record одна запись сущности на сервере
type Record struct {
	UpdatedAt time.Time       `json:"updated_at"`
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	Deleted   bool            `json:"deleted,omitempty"`
}

// RecordsResponse ответ на полную или дельта-выборку
type RecordsResponse struct {
	ServerTime time.Time `json:"server_time"`
	Records    []Record  `json:"records"`
}
