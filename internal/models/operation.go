package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Action тип мутации, которую выполняет операция
type Action string

const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// ParseAction parses a case-insensitive action name.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case ActionInsert:
		return ActionInsert, nil
	case ActionUpdate:
		return ActionUpdate, nil
	case ActionDelete:
		return ActionDelete, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// Priority определяет порядок обработки операций.
// Меньшее значение обрабатывается раньше.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
)

var priorityNames = map[Priority]string{
	PriorityCritical: "critical",
	PriorityHigh:     "high",
	PriorityNormal:   "normal",
	PriorityLow:      "low",
}

// String returns the lower-case priority name.
func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority parses a case-insensitive priority name. Empty input means normal.
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PriorityNormal, nil
	}
	for p, name := range priorityNames {
		if name == s {
			return p, nil
		}
	}
	return PriorityNormal, fmt.Errorf("unknown priority %q", s)
}

// MarshalJSON stores priority by name so persisted records stay readable.
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts both the name and the numeric form.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		parsed, err := ParsePriority(name)
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid priority: %s", string(data))
	}
	if n < int(PriorityCritical) || n > int(PriorityLow) {
		return fmt.Errorf("priority out of range: %d", n)
	}
	*p = Priority(n)
	return nil
}

// DefaultMaxRetries потолок попыток, если операция не задала свой
const DefaultMaxRetries = 5

// Operation представляет локальную мутацию, ожидающую отправки на сервер.
type Operation struct {
	Timestamp     time.Time       `json:"timestamp"`                 // Timestamp время создания операции
	NextAttemptAt time.Time       `json:"next_attempt_at,omitempty"` // NextAttemptAt не раньше этого момента операция будет повторена
	ID            string          `json:"id"`                        // ID уникальный ключ идемпотентности
	Entity        string          `json:"entity"`                    // Entity логическое имя коллекции
	Action        Action          `json:"action"`                    // Action INSERT, UPDATE или DELETE
	DedupHash     string          `json:"dedup_hash"`                // DedupHash отпечаток entity+payload
	BatchGroup    string          `json:"batch_group,omitempty"`     // BatchGroup ключ группировки для пакетной отправки
	LastError     string          `json:"last_error,omitempty"`      // LastError текст последней ошибки отправки
	Payload       json.RawMessage `json:"payload"`                   // Payload непрозрачные данные мутации
	Seq           int64           `json:"seq"`                       // Seq монотонный счетчик для равных Timestamp
	Retries       int             `json:"retries"`                   // Retries количество неудачных попыток
	MaxRetries    int             `json:"max_retries"`               // MaxRetries потолок попыток
	Priority      Priority        `json:"priority"`                  // Priority critical, high, normal, low
}

// Clone returns a deep copy of the operation.
func (o *Operation) Clone() *Operation {
	if o == nil {
		return nil
	}
	c := *o
	if o.Payload != nil {
		c.Payload = make(json.RawMessage, len(o.Payload))
		copy(c.Payload, o.Payload)
	}
	return &c
}

// Before reports whether o should be dispatched before other within one group:
// higher priority first, then creation time, then sequence.
func (o *Operation) Before(other *Operation) bool {
	if o.Priority != other.Priority {
		return o.Priority < other.Priority
	}
	if !o.Timestamp.Equal(other.Timestamp) {
		return o.Timestamp.Before(other.Timestamp)
	}
	return o.Seq < other.Seq
}

// Due reports whether the operation may be attempted at now.
func (o *Operation) Due(now time.Time) bool {
	return o.NextAttemptAt.IsZero() || !now.Before(o.NextAttemptAt)
}
