package api

import "encoding/json"

// Realtime message types
const (
	MessageSubscribe   = "subscribe"
	MessageUnsubscribe = "unsubscribe"
	MessageSubscribed  = "subscribed"
	MessageChange      = "change"
	MessageError       = "error"
)

// RealtimeMessage кадр websocket-канала в обе стороны
type RealtimeMessage struct {
	Type      string          `json:"type"`
	Entity    string          `json:"entity,omitempty"`
	EventType string          `json:"eventType,omitempty"`
	Error     string          `json:"error,omitempty"`
	New       json.RawMessage `json:"new,omitempty"`
	Old       json.RawMessage `json:"old,omitempty"`
}
