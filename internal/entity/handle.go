// Package entity связывает клетки карты с непрозрачными дескрипторами
// сущностей, которые выдаёт внешняя система управления сущностями (Host).
package entity

import "fmt"

// Handle непрозрачный дескриптор сущности. Карта не заглядывает внутрь.
type Handle uint64

func (h Handle) String() string {
	return fmt.Sprintf("entity#%d", uint64(h))
}

// Host внешняя система управления сущностями.
type Host interface {
	// Create создаёт сущность без полезной нагрузки и возвращает её дескриптор
	Create() (Handle, error)
	// Destroy уничтожает сущность
	Destroy(h Handle) error
}
