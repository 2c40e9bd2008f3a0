package tilemap

import (
	"github.com/annel0/sparse-tilemap/internal/chunk"
	"github.com/annel0/sparse-tilemap/internal/config"
	"github.com/annel0/sparse-tilemap/internal/entity"
	"github.com/annel0/sparse-tilemap/internal/layer"
	"github.com/annel0/sparse-tilemap/internal/logging"
)

// Build собирает карту по конфигурации и возвращает готовый Manager.
// Все противоречия конфигурации сообщаются здесь, один раз.
func Build[T any](cfg config.MapConfig, def T, host entity.Host, opts ...Option) (*Manager[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	topo, err := cfg.BuildTopology()
	if err != nil {
		return nil, err
	}

	layers := make([]layer.Config, 0, len(cfg.Layers))
	for _, lc := range cfg.Layers {
		d, err := chunk.ParseDiscipline(lc.Storage)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer.Config{
			Name:       lc.Name,
			ChunkDims:  lc.ChunkDims(),
			Discipline: d,
		})
	}

	tm, err := New(cfg.Name, cfg.Size(), topo, layers, def)
	if err != nil {
		return nil, err
	}

	logging.GetTilemapLogger().Info("карта %s собрана: %s, %s, слоёв %d",
		cfg.Name, cfg.Size(), topo.Kind(), len(layers))
	return NewManager(tm, host, opts...), nil
}
