package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/sparse-tilemap/internal/config"
	"github.com/annel0/sparse-tilemap/internal/entity"
	"github.com/annel0/sparse-tilemap/internal/logging"
	"github.com/annel0/sparse-tilemap/internal/metrics"
	"github.com/annel0/sparse-tilemap/internal/storage"
	"github.com/annel0/sparse-tilemap/internal/tilemap"
	"github.com/annel0/sparse-tilemap/internal/util"
	"github.com/annel0/sparse-tilemap/internal/vec"
)

// Tile данные одной клетки демо-карты
type Tile struct {
	Terrain uint8 `json:"t"`
	Height  uint8 `json:"h,omitempty"`
}

const (
	TerrainWater uint8 = iota
	TerrainSand
	TerrainGrass
	TerrainRock
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или TILEMAP_CONFIG)")
	seed := flag.Int64("seed", 42, "сид шума рельефа")
	area := flag.Int("area", 256, "сторона заполняемого квадрата в клетках")
	serve := flag.Bool("serve", false, "держать /metrics до сигнала завершения")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	logOpts, err := logging.ParseOptions(cfg.Log.Level, cfg.Log.File, cfg.Log.Components)
	if err != nil {
		log.Fatalf("❌ Ошибка конфигурации логирования: %v", err)
	}
	if err := logging.InitDefaultLogger("tilemap-demo", logOpts); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	collector := metrics.NewCollector(cfg.Metrics.GetNamespace())
	if *serve {
		srv := collector.StartHTTP(cfg.Metrics.GetAddr())
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logging.Error("❌ Ошибка остановки /metrics: %v", err)
			}
		}()
	}

	registry := entity.NewRegistry()
	m, err := tilemap.Build(cfg.Map, Tile{}, registry, tilemap.WithMetrics(collector))
	if err != nil {
		logging.Error("❌ Ошибка сборки карты: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := m.Close(); err != nil {
			logging.Error("❌ Ошибка освобождения сущностей: %v", err)
		}
	}()

	if err := populate(m, registry, cfg.Map, *seed, *area); err != nil {
		logging.Error("❌ Ошибка заполнения карты: %v", err)
		os.Exit(1)
	}

	if err := persist(m, cfg); err != nil {
		logging.Error("❌ Ошибка сохранения карты: %v", err)
		os.Exit(1)
	}

	if !*serve {
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)
}

// populate заполняет первый слой рельефом из шума Перлина, второй - редкими
// деревьями на траве, и ставит сущности на вершины скал.
func populate(m *tilemap.Manager[Tile], registry *entity.Registry, cfg config.MapConfig, seed int64, area int) error {
	layers := m.Tilemap().Layers()
	ground := layers[0]
	decor := ""
	if len(layers) > 1 {
		decor = layers[1]
	}

	size := m.Tilemap().Size()
	w, h := min(area, size.W), min(area, size.H)
	terrain := util.NewNoise(seed, 32)
	scatter := util.NewNoise(seed+1, 3)

	start := time.Now()
	spawned := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cell := vec.Vec2{X: x, Y: y}
			tile := Tile{
				Terrain: uint8(terrain.Level(x, y, 4)),
				Height:  uint8(terrain.At(x, y) * 255),
			}
			if err := m.SetTileData(cell, ground, tile); err != nil {
				return err
			}

			if decor != "" && tile.Terrain == TerrainGrass && scatter.At(x, y) > 0.8 {
				if err := m.SetTileData(cell, decor, Tile{Terrain: tile.Terrain, Height: 1}); err != nil {
					return err
				}
			}

			if tile.Terrain == TerrainRock && x%16 == 0 && y%16 == 0 {
				handle, err := m.SpawnEntity(cell)
				if err != nil {
					return err
				}
				if err := registry.Attach(handle, "lookout"); err != nil {
					return err
				}
				spawned++
			}
		}
	}

	logging.Info("🌍 Карта %s заполнена: %dx%d клеток за %v, сущностей %d",
		cfg.Name, w, h, time.Since(start), spawned)
	for _, name := range layers {
		l, _ := m.Tilemap().Layer(name)
		logging.Info("   слой %s (%s, чанк %s): чанков %d/%d, клеток %d",
			name, l.Discipline(), l.ChunkDims(), l.MaterializedChunks(), l.ChunkCount(), l.MaterializedCells())
	}
	return nil
}

// persist сохраняет карту и проверяет, что она загружается обратно
func persist(m *tilemap.Manager[Tile], cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error("❌ Ошибка закрытия хранилища: %v", err)
		}
	}()

	codec, err := storage.NewCodec(cfg.Storage.Compression)
	if err != nil {
		return err
	}
	defer codec.Close()

	if err := tilemap.Save(ctx, m, store, codec); err != nil {
		return err
	}

	loaded, err := tilemap.Load[Tile](ctx, store, codec, cfg.Map.Name, entity.NewRegistry())
	if err != nil {
		return err
	}
	defer func() {
		if err := loaded.Close(); err != nil {
			logging.Error("❌ Ошибка освобождения сущностей загруженной карты: %v", err)
		}
	}()

	logging.Info("💾 Карта %s перечитана из %q: сущностей %d", cfg.Map.Name, cfg.Storage.Backend, loaded.EntityCount())
	return nil
}
