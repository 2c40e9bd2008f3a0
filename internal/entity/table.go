package entity

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/sparse-tilemap/internal/vec"
)

var (
	ErrEntityAlreadyExists = errors.New("entity already exists at cell")
	ErrNoEntityAtCell      = errors.New("no entity at cell")
)

// Association запись таблицы: клетка и живой дескриптор на ней
type Association struct {
	Cell   vec.Vec2
	Handle Handle
}

// Table разреженное соответствие клетка -> дескриптор.
// Один мьютекс удерживается и на время вызова Host, поэтому spawn/despawn
// одной клетки никогда не перемешиваются.
type Table struct {
	mu    sync.Mutex
	host  Host
	cells map[vec.Vec2]Handle
}

// NewTable создаёт пустую таблицу поверх host
func NewTable(host Host) *Table {
	return &Table{
		host:  host,
		cells: make(map[vec.Vec2]Handle),
	}
}

// Spawn создаёт сущность на клетке. Проверка границ карты - на стороне вызывающего.
func (t *Table) Spawn(cell vec.Vec2) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h, ok := t.cells[cell]; ok {
		return 0, fmt.Errorf("%w: %s holds %s", ErrEntityAlreadyExists, cell, h)
	}
	h, err := t.host.Create()
	if err != nil {
		return 0, fmt.Errorf("create entity at %s: %w", cell, err)
	}
	t.cells[cell] = h
	return h, nil
}

// Despawn уничтожает сущность на клетке. Если Host вернул ошибку, связь сохраняется.
func (t *Table) Despawn(cell vec.Vec2) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.cells[cell]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoEntityAtCell, cell)
	}
	if err := t.host.Destroy(h); err != nil {
		return fmt.Errorf("destroy %s at %s: %w", h, cell, err)
	}
	delete(t.cells, cell)
	return nil
}

// Get чистый поиск, никогда не падает
func (t *Table) Get(cell vec.Vec2) (Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.cells[cell]
	return h, ok
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cells)
}

// Snapshot копия всех связей в построчном порядке клеток
func (t *Table) Snapshot() []Association {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]Association, 0, len(t.cells))
	for cell, h := range t.cells {
		result = append(result, Association{Cell: cell, Handle: h})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Cell.Less(result[j].Cell) })
	return result
}

// DespawnAll уничтожает все сущности при разборе карты. Таблица очищается
// полностью, ошибки Host собираются в одну.
func (t *Table) DespawnAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for cell, h := range t.cells {
		if err := t.host.Destroy(h); err != nil {
			errs = append(errs, fmt.Errorf("destroy %s at %s: %w", h, cell, err))
		}
		delete(t.cells, cell)
	}
	return errors.Join(errs...)
}
