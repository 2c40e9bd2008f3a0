package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/annel0/sparse-tilemap/internal/chunk"
	"github.com/annel0/sparse-tilemap/internal/topology"
	"github.com/annel0/sparse-tilemap/internal/vec"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig конфигурация противоречива. Сообщается один раз при сборке карты.
var ErrInvalidConfig = errors.New("invalid config")

// Config корневая структура конфигурации приложения.
type Config struct {
	Map     MapConfig     `yaml:"map"`
	Storage StorageConfig `yaml:"storage"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// MapConfig описание карты: размер, топология и упорядоченный набор слоёв.
// Сохраняется вместе с данными, поэтому имеет и json-теги.
type MapConfig struct {
	Name        string        `yaml:"name" json:"name"`
	Width       int           `yaml:"width" json:"width"`
	Height      int           `yaml:"height" json:"height"`
	Topology    string        `yaml:"topology" json:"topology"`
	Orientation string        `yaml:"orientation" json:"orientation,omitempty"`
	Layers      []LayerConfig `yaml:"layers" json:"layers"`
}

type LayerConfig struct {
	Name        string `yaml:"name" json:"name"`
	ChunkWidth  int    `yaml:"chunk_width" json:"chunk_width"`
	ChunkHeight int    `yaml:"chunk_height" json:"chunk_height"`
	Storage     string `yaml:"storage" json:"storage"` // dense | sparse
}

type StorageConfig struct {
	Backend       string        `yaml:"backend"` // memory | badger | redis
	Path          string        `yaml:"path"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisPrefix   string        `yaml:"redis_prefix"`
	RedisTTL      time.Duration `yaml:"redis_ttl"` // 0 - без истечения
	Compression   string        `yaml:"compression"` // none | zstd
}

type MetricsConfig struct {
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

type LogConfig struct {
	Level      string            `yaml:"level"`
	File       string            `yaml:"file"`
	Components map[string]string `yaml:"components"` // компонент -> уровень
}

// Size размер карты
func (m MapConfig) Size() vec.Dims {
	return vec.Dims{W: m.Width, H: m.Height}
}

// ChunkDims размер чанка слоя
func (l LayerConfig) ChunkDims() vec.Dims {
	return vec.Dims{W: l.ChunkWidth, H: l.ChunkHeight}
}

// LayerNames имена слоёв в объявленном порядке
func (m MapConfig) LayerNames() []string {
	names := make([]string, 0, len(m.Layers))
	for _, l := range m.Layers {
		names = append(names, l.Name)
	}
	return names
}

// BuildTopology собирает топологию карты из строковых полей
func (m MapConfig) BuildTopology() (topology.Topology, error) {
	kind, err := topology.ParseKind(m.Topology)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	orientation, err := topology.ParseOrientation(m.Orientation)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return topology.New(kind, orientation)
}

// Validate проверяет карту целиком и возвращает все найденные противоречия разом.
func (m MapConfig) Validate() error {
	var errs []error
	invalid := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidConfig}, args...)...))
	}

	if m.Width <= 0 || m.Height <= 0 {
		invalid("map size %dx%d must be positive", m.Width, m.Height)
	}
	if _, err := topology.ParseKind(m.Topology); err != nil {
		invalid("%v", err)
	}
	if _, err := topology.ParseOrientation(m.Orientation); err != nil {
		invalid("%v", err)
	}
	if len(m.Layers) == 0 {
		invalid("map %q has no layers", m.Name)
	}

	seen := make(map[string]bool, len(m.Layers))
	for i, l := range m.Layers {
		name := strings.TrimSpace(l.Name)
		switch {
		case name == "":
			invalid("layer #%d has empty name", i)
		case seen[name]:
			invalid("duplicate layer %q", name)
		}
		seen[name] = true

		if !l.ChunkDims().Valid() {
			invalid("layer %q chunk size %dx%d must be positive", l.Name, l.ChunkWidth, l.ChunkHeight)
		}
		if _, err := chunk.ParseDiscipline(l.Storage); err != nil {
			invalid("layer %q: %v", l.Name, err)
		}
	}
	return errors.Join(errs...)
}

// Validate проверяет всю конфигурацию приложения
func (c *Config) Validate() error {
	errs := []error{c.Map.Validate()}

	switch c.Storage.Backend {
	case "", "memory", "badger", "redis":
	default:
		errs = append(errs, fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend))
	}
	if c.Storage.Backend == "redis" && c.Storage.RedisAddr == "" {
		errs = append(errs, fmt.Errorf("%w: redis storage requires redis_addr", ErrInvalidConfig))
	}
	if c.Storage.RedisTTL < 0 {
		errs = append(errs, fmt.Errorf("%w: negative redis_ttl %v", ErrInvalidConfig, c.Storage.RedisTTL))
	}
	switch c.Storage.Compression {
	case "", "none", "zstd":
	default:
		errs = append(errs, fmt.Errorf("%w: unknown compression %q", ErrInvalidConfig, c.Storage.Compression))
	}
	return errors.Join(errs...)
}

// Default конфигурация, если файл не задан: квадратная карта 1024x1024
// с плотным слоем Main и разреженным Secondary, хранение в памяти.
func Default() *Config {
	return &Config{
		Map: MapConfig{
			Name:     "default",
			Width:    1024,
			Height:   1024,
			Topology: "square",
			Layers: []LayerConfig{
				{Name: "Main", ChunkWidth: 64, ChunkHeight: 64, Storage: "dense"},
				{Name: "Secondary", ChunkWidth: 32, ChunkHeight: 32, Storage: "sparse"},
			},
		},
		Storage: StorageConfig{Backend: "memory", Compression: "zstd"},
		Metrics: MetricsConfig{Namespace: "tilemap"},
		Log:     LogConfig{Level: "info"},
	}
}

// GetAddr адрес HTTP-эндпоинта метрик с приоритетом: config -> env -> default
func (m *MetricsConfig) GetAddr() string {
	return getWithEnvFallback(m.Addr, "TILEMAP_METRICS_ADDR", ":2112")
}

// GetNamespace префикс имён метрик
func (m *MetricsConfig) GetNamespace() string {
	if m.Namespace == "" {
		return "tilemap"
	}
	return m.Namespace
}

// GetPath каталог данных badger с приоритетом: config -> env -> default
func (s *StorageConfig) GetPath() string {
	return getWithEnvFallback(s.Path, "TILEMAP_DATA_DIR", "./data")
}

// GetRedisPassword пароль Redis с приоритетом: config -> env -> пусто
func (s *StorageConfig) GetRedisPassword() string {
	return getWithEnvFallback(s.RedisPassword, "TILEMAP_REDIS_PASSWORD", "")
}

func getWithEnvFallback(value, envVar, def string) string {
	if value != "" {
		return value
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return def
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV TILEMAP_CONFIG или возвращает Default().
// Незаданные секции storage/metrics/log берутся из Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("TILEMAP_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse разбирает YAML и проверяет результат
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	cfg.Map = MapConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
