package entity

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrUnknownHandle дескриптор не выдавался или уже уничтожен
var ErrUnknownHandle = errors.New("unknown entity handle")

// Record данные, которые реестр хранит о живой сущности
type Record struct {
	Handle  Handle
	GUID    uuid.UUID   // Глобальный идентификатор, стабилен между сохранениями
	Payload interface{} // Прикреплённые данные хоста
}

// Registry простой хост сущностей в памяти. Реализует Host.
type Registry struct {
	entities map[Handle]*Record // Живые сущности
	nextID   uint64             // Счетчик для генерации дескрипторов
	mu       sync.RWMutex
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[Handle]*Record),
	}
}

// Create выдаёт новый дескриптор. Нулевой дескриптор никогда не выдаётся.
func (r *Registry) Create() (Handle, error) {
	h := Handle(atomic.AddUint64(&r.nextID, 1))

	r.mu.Lock()
	r.entities[h] = &Record{Handle: h, GUID: uuid.New()}
	r.mu.Unlock()

	return h, nil
}

// Destroy удаляет сущность из реестра
func (r *Registry) Destroy(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entities[h]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	delete(r.entities, h)
	return nil
}

// Attach прикрепляет данные к живой сущности
func (r *Registry) Attach(h Handle, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.entities[h]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	rec.Payload = payload
	return nil
}

func (r *Registry) Payload(h Handle) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.entities[h]
	if !ok {
		return nil, false
	}
	return rec.Payload, true
}

func (r *Registry) GUID(h Handle) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.entities[h]
	if !ok {
		return uuid.Nil, false
	}
	return rec.GUID, true
}

func (r *Registry) Alive(h Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entities[h]
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// Records копия записей, упорядоченная по дескриптору
func (r *Registry) Records() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Record, 0, len(r.entities))
	for _, rec := range r.entities {
		result = append(result, *rec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Handle < result[j].Handle })
	return result
}
