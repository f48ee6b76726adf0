package models

import (
	"encoding/json"
	"time"
)

// Record удаленная запись сущности, полученная при опросе
type Record struct {
	UpdatedAt time.Time       `json:"updated_at"`
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	Deleted   bool            `json:"deleted,omitempty"`
}
