package api

import "time"

// PingResponse ответ heartbeat-эндпоинтов
type PingResponse struct {
	ServerTime time.Time `json:"server_time"`
	Status     string    `json:"status"`
}
