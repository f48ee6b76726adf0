package clock

import (
	"sync"

	"github.com/google/uuid"
)

// Sequence представляет логические часы Лампорта для упорядочивания операций
// с одинаковым временем создания. Значения строго возрастают в пределах процесса
// и восстанавливаются из хранилища после перезапуска через Observe.
type Sequence struct {
	nodeID  string     // уникальный идентификатор узла
	counter int64      // монотонно возрастающий счетчик
	mu      sync.Mutex // мьютекс для потокобезопасности
}

// NewSequence создает новые часы с уникальным идентификатором узла (UUID).
func NewSequence() *Sequence {
	return &Sequence{
		nodeID: uuid.New().String(),
	}
}

// NewSequenceWithNodeID создает часы с заданным идентификатором узла.
// Используется для тестирования или восстановления состояния.
func NewSequenceWithNodeID(nodeID string) *Sequence {
	return &Sequence{
		nodeID: nodeID,
	}
}

// Next увеличивает счетчик и возвращает новое значение.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	return s.counter
}

// Observe учитывает значение, прочитанное из хранилища или полученное от другого узла:
// counter = max(counter, seen). Следующий Next вернет значение больше seen.
func (s *Sequence) Observe(seen int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seen > s.counter {
		s.counter = seen
	}
}

// Current возвращает текущее значение счетчика без его изменения.
func (s *Sequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counter
}

// NodeID возвращает идентификатор узла.
func (s *Sequence) NodeID() string {
	return s.nodeID
}
