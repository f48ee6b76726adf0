package models

import "time"

// DeadLetter операция, окончательно снятая с отправки.
// Хранится отдельно от очереди до ручного Replay.
type DeadLetter struct {
	FailedAt  time.Time  `json:"failed_at"`
	Operation *Operation `json:"operation"`
	Reason    string     `json:"reason"`
	Class     string     `json:"class"`
}
