package fingerprint

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Canonical приводит JSON к каноничному виду: ключи объектов отсортированы,
// лишние пробелы удалены. Два payload с одинаковым содержимым дают одинаковые байты.
func Canonical(payload json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return []byte("null"), nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	// encoding/json сортирует ключи map при сериализации
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return out, nil
}

// Operation вычисляет отпечаток entity+payload для дедупликации операций.
// Используется BLAKE2b-256, результат в hex.
func Operation(entity string, payload json.RawMessage) (string, error) {
	if entity == "" {
		return "", fmt.Errorf("entity cannot be empty")
	}

	canonical, err := Canonical(payload)
	if err != nil {
		return "", err
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("failed to init hash: %w", err)
	}
	h.Write([]byte(entity))
	h.Write([]byte{0})
	h.Write(canonical)

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Bytes returns the hex BLAKE2b-256 digest of b. Used for snapshot change detection.
func Bytes(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}
