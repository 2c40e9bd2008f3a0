package logging

import (
	"sync"
)

// LoggerManager хранит логгеры компонентов, чтобы Configure мог
// поменять уровень всем уже выданным логгерам.
type LoggerManager struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = &LoggerManager{loggers: make(map[string]*Logger)}
	})
	return globalManager
}

// GetLogger возвращает логгер компонента, создавая его при первом обращении.
// Пустое имя - ошибка.
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.RLock()
	logger, ok := lm.loggers[component]
	lm.mu.RUnlock()
	if ok {
		return logger, nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if logger, ok := lm.loggers[component]; ok {
		return logger, nil
	}

	logger, err := NewLogger(component)
	if err != nil {
		return nil, err
	}
	lm.loggers[component] = logger
	return logger, nil
}

// relevel применяет текущие уровни вывода ко всем логгерам
func (lm *LoggerManager) relevel() {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	for component, logger := range lm.loggers {
		logger.SetLevel(output.levelFor(component))
	}
}

func (lm *LoggerManager) reset() {
	lm.mu.Lock()
	lm.loggers = make(map[string]*Logger)
	lm.mu.Unlock()
}

// GetComponentLogger логгер компонента; пустое имя даёт логгер "default"
func GetComponentLogger(component string) *Logger {
	if component == "" {
		component = "default"
	}
	logger, _ := GetLoggerManager().GetLogger(component)
	return logger
}

func GetTilemapLogger() *Logger {
	return GetComponentLogger("tilemap")
}

func GetStorageLogger() *Logger {
	return GetComponentLogger("storage")
}
