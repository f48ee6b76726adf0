package validation

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/iudanet/gophsync/internal/models"
)

// EntityPattern определяет допустимый формат имени сущности (коллекции)
// Латинские буквы в нижнем регистре, цифры, '_' и '-', первый символ буква.
// Длина: 1-64 символа
var EntityPattern = regexp.MustCompile(`^[a-z][a-z0-9_\-]{0,63}$`)

const (
	// MaxOperationIDLen максимальная длина идентификатора операции
	MaxOperationIDLen = 128
	// MaxPayloadSize максимальный размер payload в байтах
	MaxPayloadSize = 1 << 20
)

// ValidateEntity проверяет имя сущности
func ValidateEntity(entity string) error {
	if entity == "" {
		return fmt.Errorf("entity cannot be empty")
	}
	if !EntityPattern.MatchString(entity) {
		return fmt.Errorf("entity %q must match %s", entity, EntityPattern.String())
	}
	return nil
}

// ValidateOperation проверяет операцию перед постановкой в очередь.
// ID может быть пустым: очередь сгенерирует его сама.
func ValidateOperation(op *models.Operation) error {
	if op == nil {
		return fmt.Errorf("operation cannot be nil")
	}

	if len(op.ID) > MaxOperationIDLen {
		return fmt.Errorf("operation id must not exceed %d characters", MaxOperationIDLen)
	}

	if err := ValidateEntity(op.Entity); err != nil {
		return err
	}

	switch op.Action {
	case models.ActionInsert, models.ActionUpdate, models.ActionDelete:
	default:
		return fmt.Errorf("unsupported action %q", op.Action)
	}

	if op.Priority < models.PriorityCritical || op.Priority > models.PriorityLow {
		return fmt.Errorf("unsupported priority %d", op.Priority)
	}

	if op.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	if len(op.Payload) > MaxPayloadSize {
		return fmt.Errorf("payload must not exceed %d bytes", MaxPayloadSize)
	}

	if len(op.Payload) > 0 && !json.Valid(op.Payload) {
		return fmt.Errorf("payload is not valid JSON")
	}

	return nil
}
