// Package logging даёт компонентные логгеры поверх logrus с ротацией
// файла через lumberjack. Все компоненты пишут в общий вывод: консоль и,
// если задан файл, ротируемый файл. Уровень общий, отдельные компоненты
// могут его переопределить.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) toLogrus() logrus.Level {
	switch l {
	case TRACE:
		return logrus.TraceLevel
	case DEBUG:
		return logrus.DebugLevel
	case WARN:
		return logrus.WarnLevel
	case ERROR:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// ParseLevel разбирает уровень из конфигурации. Пустая строка - INFO.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TRACE, nil
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", s)
	}
}

// Options настройки вывода, общие для всех компонентов
type Options struct {
	Level      LogLevel
	File       string              // путь к файлу логов, пусто - только консоль
	Components map[string]LogLevel // уровни отдельных компонентов поверх Level
}

// ParseOptions собирает Options из строк конфигурации
func ParseOptions(level, file string, components map[string]string) (Options, error) {
	opts := Options{File: file}
	var err error
	if opts.Level, err = ParseLevel(level); err != nil {
		return opts, err
	}
	if len(components) > 0 {
		opts.Components = make(map[string]LogLevel, len(components))
		for component, raw := range components {
			l, err := ParseLevel(raw)
			if err != nil {
				return opts, fmt.Errorf("component %s: %w", component, err)
			}
			opts.Components[component] = l
		}
	}
	return opts, nil
}

// sink общий вывод всех логгеров
type sink struct {
	mu         sync.RWMutex
	out        io.Writer
	file       *lumberjack.Logger
	level      LogLevel
	components map[string]LogLevel
	format     logrus.Formatter
}

// levelFor уровень компонента с учётом переопределений
func (s *sink) levelFor(component string) LogLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.components[component]; ok {
		return l
	}
	return s.level
}

var output = &sink{
	out:    os.Stdout,
	level:  INFO,
	format: &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"},
}

// Configure направляет все логгеры в консоль и, если задан файл, в ротируемый файл.
// Уровни применяются и к уже созданным логгерам компонентов.
func Configure(opts Options) error {
	if err := output.configure(opts); err != nil {
		return err
	}
	GetLoggerManager().relevel()
	return nil
}

func (s *sink) configure(opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		s.file.Close()
		s.file = nil
	}

	s.level = opts.Level
	s.components = opts.Components
	s.out = os.Stdout
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return fmt.Errorf("ошибка создания директории логов: %w", err)
		}
		s.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100, // МБ
			MaxBackups: 5,
			MaxAge:     14, // дней
			Compress:   true,
		}
		s.out = io.MultiWriter(os.Stdout, s.file)
	}
	return nil
}

// SetOutput перенаправляет вывод (используется в тестах)
func SetOutput(w io.Writer) {
	output.mu.Lock()
	defer output.mu.Unlock()
	output.out = w
}

func (s *sink) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.out.Write(p)
}

// Logger логгер одного компонента
type Logger struct {
	component string
	base      *logrus.Logger
	entry     *logrus.Entry
}

// NewLogger создаёт логгер компонента с текущим уровнем вывода
func NewLogger(component string) (*Logger, error) {
	if component == "" {
		return nil, fmt.Errorf("empty component name")
	}

	output.mu.RLock()
	format := output.format
	output.mu.RUnlock()

	base := logrus.New()
	base.SetOutput(output)
	base.SetFormatter(format)
	base.SetLevel(output.levelFor(component).toLogrus())

	return &Logger{
		component: component,
		base:      base,
		entry:     base.WithField("component", component),
	}, nil
}

// SetLevel меняет уровень только этого компонента
func (l *Logger) SetLevel(level LogLevel) {
	l.base.SetLevel(level.toLogrus())
}

// WithField возвращает логгер с дополнительным полем
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{component: l.component, base: l.base, entry: l.entry.WithField(key, value)}
}

func (l *Logger) Trace(format string, args ...interface{}) { l.entry.Tracef(format, args...) }
func (l *Logger) Debug(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

var defaultLogger *Logger

// InitDefaultLogger настраивает вывод и создаёт логгер по умолчанию для компонента
func InitDefaultLogger(component string, opts Options) error {
	if err := Configure(opts); err != nil {
		return err
	}
	logger, err := GetLoggerManager().GetLogger(component)
	if err != nil {
		return err
	}
	defaultLogger = logger
	return nil
}

// CloseDefaultLogger забывает логгеры компонентов, закрывает файл логов
// и возвращает вывод в консоль с уровнем INFO.
func CloseDefaultLogger() {
	GetLoggerManager().reset()

	output.mu.Lock()
	defer output.mu.Unlock()
	if output.file != nil {
		output.file.Close()
		output.file = nil
	}
	output.out = os.Stdout
	output.level = INFO
	output.components = nil
	defaultLogger = nil
}

func std() *Logger {
	if defaultLogger == nil {
		return GetComponentLogger("default")
	}
	return defaultLogger
}

func Trace(format string, args ...interface{}) { std().Trace(format, args...) }
func Debug(format string, args ...interface{}) { std().Debug(format, args...) }
func Info(format string, args ...interface{})  { std().Info(format, args...) }
func Warn(format string, args ...interface{})  { std().Warn(format, args...) }
func Error(format string, args ...interface{}) { std().Error(format, args...) }
