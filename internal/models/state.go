package models

import (
	"encoding/json"
	"strings"
	"time"
)

// ConnectionStatus состояние транспортного соединения
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusError        ConnectionStatus = "error"
)

// ChannelStatus нормализованный статус realtime канала
type ChannelStatus string

const (
	ChannelSubscribed   ChannelStatus = "SUBSCRIBED"
	ChannelDisconnected ChannelStatus = "DISCONNECTED"
	ChannelError        ChannelStatus = "CHANNEL_ERROR"
	ChannelTimedOut     ChannelStatus = "TIMED_OUT"
)

// NormalizeChannelStatus maps transport status strings onto the channel vocabulary.
// Unknown values are treated as errors.
func NormalizeChannelStatus(raw string) ChannelStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUBSCRIBED", "CONNECTED", "OPEN", "JOINED":
		return ChannelSubscribed
	case "DISCONNECTED", "CLOSED", "UNSUBSCRIBED":
		return ChannelDisconnected
	case "TIMED_OUT", "TIMEOUT":
		return ChannelTimedOut
	default:
		return ChannelError
	}
}

// NetworkQuality дискретный уровень качества сети
type NetworkQuality string

const (
	QualityExcellent NetworkQuality = "excellent"
	QualityGood      NetworkQuality = "good"
	QualityFair      NetworkQuality = "fair"
	QualityPoor      NetworkQuality = "poor"
	QualityOffline   NetworkQuality = "offline"
)

// SyncStatus агрегированный статус синхронизации для UI
type SyncStatus string

const (
	SyncSynced  SyncStatus = "synced"
	SyncSyncing SyncStatus = "syncing"
	SyncPending SyncStatus = "pending"
	SyncError   SyncStatus = "error"
	SyncOffline SyncStatus = "offline"
)

// SyncMethod стратегия доставки данных
type SyncMethod string

const (
	MethodRealtime SyncMethod = "realtime"
	MethodPolling  SyncMethod = "polling"
	MethodOffline  SyncMethod = "offline"
)

// ConnectionMetrics измерения качества канала
type ConnectionMetrics struct {
	LastMeasured time.Time     `json:"last_measured"`
	Latency      time.Duration `json:"latency"`
	Jitter       time.Duration `json:"jitter"`
	PacketLoss   float64       `json:"packet_loss"` // доля потерянных проб, 0..1
	Bandwidth    float64       `json:"bandwidth"`   // байт в секунду
}

// ConnectionState снимок состояния Connection Monitor.
// IsRealtimeActive и IsPollingActive могут быть true одновременно,
// когда polling включен принудительно при backpressure.
type ConnectionState struct {
	LastConnected     time.Time         `json:"last_connected"`
	Metrics           ConnectionMetrics `json:"metrics"`
	Status            ConnectionStatus  `json:"status"`
	NetworkQuality    NetworkQuality    `json:"network_quality"`
	SyncStatus        SyncStatus        `json:"sync_status"`
	ReconnectAttempts int               `json:"reconnect_attempts"`
	IsRealtimeActive  bool              `json:"is_realtime_active"`
	IsPollingActive   bool              `json:"is_polling_active"`
}

// PollingState снимок состояния Polling Fallback Service
type PollingState struct {
	LastPollTime      time.Time     `json:"last_poll_time"`
	LastSuccessTime   time.Time     `json:"last_success_time"`
	PollingEntities   []string      `json:"polling_entities"`
	CurrentInterval   time.Duration `json:"current_interval"`
	ConsecutiveErrors int           `json:"consecutive_errors"`
	IsActive          bool          `json:"is_active"`
}

// Clone returns a copy that does not share the entity slice.
func (s PollingState) Clone() PollingState {
	c := s
	c.PollingEntities = append([]string(nil), s.PollingEntities...)
	return c
}

// SyncCoordinatorStatus снимок состояния координатора
type SyncCoordinatorStatus struct {
	LastSyncTime       time.Time     `json:"last_sync_time"`
	SyncMethod         SyncMethod    `json:"sync_method"`
	ForcedMethod       SyncMethod    `json:"forced_method,omitempty"`
	TickInterval       time.Duration `json:"tick_interval"`
	BacklogSize        int           `json:"backlog_size"`
	ErrorCount         int           `json:"error_count"`
	BackpressureActive bool          `json:"backpressure_active"`
}

// ChangeSource откуда пришло событие изменения
type ChangeSource string

const (
	SourceRealtime ChangeSource = "realtime"
	SourcePolling  ChangeSource = "polling"
)

// ChangeEvent нормализованное событие изменения удаленных данных.
// Polling fallback создает события той же формы, что и realtime канал.
type ChangeEvent struct {
	ReceivedAt time.Time       `json:"received_at"`
	EventType  Action          `json:"eventType"`
	Entity     string          `json:"entity"`
	Source     ChangeSource    `json:"source"`
	New        json.RawMessage `json:"new,omitempty"`
	Old        json.RawMessage `json:"old,omitempty"`
}
