package tilemap

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/annel0/sparse-tilemap/internal/chunk"
	"github.com/annel0/sparse-tilemap/internal/config"
	"github.com/annel0/sparse-tilemap/internal/entity"
	"github.com/annel0/sparse-tilemap/internal/layer"
	"github.com/annel0/sparse-tilemap/internal/logging"
	"github.com/annel0/sparse-tilemap/internal/metrics"
	"github.com/annel0/sparse-tilemap/internal/storage"
	"github.com/annel0/sparse-tilemap/internal/vec"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.MapConfig {
	return config.MapConfig{
		Name:     "test",
		Width:    10,
		Height:   10,
		Topology: "square",
		Layers: []config.LayerConfig{
			{Name: "Main", ChunkWidth: 4, ChunkHeight: 4, Storage: "sparse"},
			{Name: "Secondary", ChunkWidth: 3, ChunkHeight: 5, Storage: "dense"},
		},
	}
}

func buildTest(t *testing.T, opts ...Option) (*Manager[int], *entity.Registry) {
	t.Helper()
	reg := entity.NewRegistry()
	m, err := Build(testConfig(), 0, reg, opts...)
	require.NoError(t, err)
	return m, reg
}

func TestSparseScenario(t *testing.T) {
	m, _ := buildTest(t)

	require.NoError(t, m.SetTileData(vec.Vec2{X: 9, Y: 9}, "Main", 7))

	v, err := m.GetTileData(vec.Vec2{X: 9, Y: 9}, "Main")
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = m.GetTileData(vec.Vec2{X: 0, Y: 0}, "Main")
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	main, err := m.Tilemap().Layer("Main")
	require.NoError(t, err)
	assert.Equal(t, []vec.Vec2{{X: 2, Y: 2}}, main.ChunkPositions(), "материализован только чанк (8,8)-(11,11)")
}

func TestEntityScenario(t *testing.T) {
	m, reg := buildTest(t)
	cell := vec.Vec2{X: 3, Y: 3}
	require.NoError(t, m.SetTileData(cell, "Main", 5))

	h, err := m.SpawnEntity(cell)
	require.NoError(t, err)
	got, ok := m.GetEntity(cell)
	require.True(t, ok)
	assert.Equal(t, h, got)
	assert.True(t, reg.Alive(h))

	v, _ := m.GetTileData(cell, "Main")
	assert.Equal(t, 5, v, "spawn не трогает данные клетки")

	_, err = m.SpawnEntity(cell)
	assert.True(t, errors.Is(err, entity.ErrEntityAlreadyExists))

	require.NoError(t, m.DespawnEntity(cell))
	_, ok = m.GetEntity(cell)
	assert.False(t, ok)
	assert.False(t, reg.Alive(h))

	v, _ = m.GetTileData(cell, "Main")
	assert.Equal(t, 5, v, "despawn не трогает данные клетки")

	err = m.DespawnEntity(cell)
	assert.True(t, errors.Is(err, entity.ErrNoEntityAtCell))
}

func TestSpawnOutsideMap(t *testing.T) {
	m, reg := buildTest(t)
	_, err := m.SpawnEntity(vec.Vec2{X: 10, Y: 0})
	assert.True(t, errors.Is(err, layer.ErrOutOfBounds))
	assert.Equal(t, 0, reg.Count())
}

func TestOutOfBoundsAndUnknownLayer(t *testing.T) {
	m, _ := buildTest(t)

	for _, name := range []string{"Main", "Secondary"} {
		_, err := m.GetTileData(vec.Vec2{X: -1, Y: 0}, name)
		assert.True(t, errors.Is(err, layer.ErrOutOfBounds))
		assert.True(t, errors.Is(m.SetTileData(vec.Vec2{X: 0, Y: 10}, name, 1), layer.ErrOutOfBounds))
	}

	_, err := m.GetTileData(vec.Vec2{X: 1, Y: 1}, "Sky")
	assert.True(t, errors.Is(err, ErrUnknownLayer))
	assert.True(t, errors.Is(m.SetTileData(vec.Vec2{X: 1, Y: 1}, "Sky", 1), ErrUnknownLayer))
	assert.True(t, errors.Is(m.ResizeChunks("Sky", vec.Dims{W: 2, H: 2}), ErrUnknownLayer))
	assert.True(t, errors.Is(m.ConvertStorage("Sky", chunk.Dense), ErrUnknownLayer))
}

func TestLayersAreIndependent(t *testing.T) {
	m, _ := buildTest(t)
	require.NoError(t, m.SetTileData(vec.Vec2{X: 2, Y: 2}, "Main", 1))
	require.NoError(t, m.SetTileData(vec.Vec2{X: 2, Y: 2}, "Secondary", 2))

	v, _ := m.GetTileData(vec.Vec2{X: 2, Y: 2}, "Main")
	assert.Equal(t, 1, v)
	v, _ = m.GetTileData(vec.Vec2{X: 2, Y: 2}, "Secondary")
	assert.Equal(t, 2, v)

	require.NoError(t, m.UpdateTileData(vec.Vec2{X: 2, Y: 2}, "Main", func(p *int) { *p += 10 }))
	require.NoError(t, m.ClearTileData(vec.Vec2{X: 2, Y: 2}, "Secondary"))
	v, _ = m.GetTileData(vec.Vec2{X: 2, Y: 2}, "Main")
	assert.Equal(t, 11, v)
	v, _ = m.GetTileData(vec.Vec2{X: 2, Y: 2}, "Secondary")
	assert.Equal(t, 0, v)

	assert.Equal(t, []string{"Main", "Secondary"}, m.Tilemap().Layers())
}

func TestMaintenanceReflectedInConfig(t *testing.T) {
	m, _ := buildTest(t)
	require.NoError(t, m.SetTileData(vec.Vec2{X: 7, Y: 1}, "Main", 3))

	require.NoError(t, m.ResizeChunks("Main", vec.Dims{W: 5, H: 5}))
	require.NoError(t, m.ConvertStorage("Main", chunk.Dense))

	v, _ := m.GetTileData(vec.Vec2{X: 7, Y: 1}, "Main")
	assert.Equal(t, 3, v)

	cfg := m.Tilemap().MapConfig()
	assert.Equal(t, config.LayerConfig{Name: "Main", ChunkWidth: 5, ChunkHeight: 5, Storage: "dense"}, cfg.Layers[0])
	assert.Equal(t, testConfig().Layers[1], cfg.Layers[1])
	assert.Equal(t, "square", cfg.Topology)

	require.NoError(t, m.ConvertStorage("Main", chunk.Sparse))
	require.NoError(t, m.ClearTileData(vec.Vec2{X: 7, Y: 1}, "Main"))
	dropped, err := m.Compact("Main")
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Layers[1].Name = "Main"
	_, err := Build(cfg, 0, entity.NewRegistry())
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))

	cfg = testConfig()
	cfg.Layers[0].ChunkWidth = 0
	_, err = Build(cfg, 0, entity.NewRegistry())
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))

	cfg = testConfig()
	cfg.Layers = nil
	_, err = Build(cfg, 0, entity.NewRegistry())
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestBuildHex(t *testing.T) {
	cfg := testConfig()
	cfg.Topology = "hex"
	cfg.Orientation = "flat"
	m, err := Build(cfg, 0, entity.NewRegistry())
	require.NoError(t, err)

	main, _ := m.Tilemap().Layer("Main")
	n, err := main.Neighbors(vec.Vec2{X: 3, Y: 2})
	require.NoError(t, err)
	assert.Len(t, n, 6)
	assert.Equal(t, "flat", m.Tilemap().MapConfig().Orientation)
}

func TestCloseDespawnsEverything(t *testing.T) {
	m, reg := buildTest(t)
	for i := 0; i < 4; i++ {
		_, err := m.SpawnEntity(vec.Vec2{X: i, Y: i})
		require.NoError(t, err)
	}
	assert.Equal(t, 4, m.EntityCount())
	require.NoError(t, m.Close())
	assert.Equal(t, 0, reg.Count())
	assert.Empty(t, m.Entities())
}

func TestManagerMetrics(t *testing.T) {
	c := metrics.NewCollector("tilemap")
	m, _ := buildTest(t, WithMetrics(c))

	require.NoError(t, m.SetTileData(vec.Vec2{X: 9, Y: 9}, "Main", 1))
	_, _ = m.GetTileData(vec.Vec2{X: 0, Y: 0}, "Main")
	_, _ = m.GetTileData(vec.Vec2{X: 50, Y: 0}, "Main")
	_, err := m.SpawnEntity(vec.Vec2{X: 1, Y: 1})
	require.NoError(t, err)

	expected := `
# HELP tilemap_entities Количество клеток со связанной сущностью.
# TYPE tilemap_entities gauge
tilemap_entities 1
# HELP tilemap_errors_total Ошибки операций карты по видам.
# TYPE tilemap_errors_total counter
tilemap_errors_total{kind="out_of_bounds"} 1
# HELP tilemap_materialized_chunks Количество чанков слоя, находящихся в памяти.
# TYPE tilemap_materialized_chunks gauge
tilemap_materialized_chunks{layer="Main"} 1
tilemap_materialized_chunks{layer="Secondary"} 8
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected),
		"tilemap_entities", "tilemap_errors_total", "tilemap_materialized_chunks"))
	series, err := testutil.GatherAndCount(c.Registry(), "tilemap_tile_ops_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

func roundTrip(t *testing.T, store storage.Store) {
	t.Helper()
	ctx := context.Background()
	codec, err := storage.NewCodec("zstd")
	require.NoError(t, err)
	defer codec.Close()

	m, _ := buildTest(t)
	written := map[vec.Vec2]int{{X: 9, Y: 9}: 7, {X: 0, Y: 0}: 0, {X: 4, Y: 6}: -3}
	for c, v := range written {
		require.NoError(t, m.SetTileData(c, "Main", v))
	}
	require.NoError(t, m.SetTileData(vec.Vec2{X: 5, Y: 5}, "Secondary", 11))
	require.NoError(t, m.ResizeChunks("Main", vec.Dims{W: 3, H: 3}))
	_, err = m.SpawnEntity(vec.Vec2{X: 3, Y: 3})
	require.NoError(t, err)

	require.NoError(t, Save(ctx, m, store, codec))

	reg := entity.NewRegistry()
	loaded, err := Load[int](ctx, store, codec, "test", reg)
	require.NoError(t, err)

	assert.Equal(t, m.Tilemap().MapConfig(), loaded.Tilemap().MapConfig(), "конфигурация слоёв сохраняется точно")
	for c, v := range written {
		got, err := loaded.GetTileData(c, "Main")
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	got, _ := loaded.GetTileData(vec.Vec2{X: 5, Y: 5}, "Secondary")
	assert.Equal(t, 11, got)

	main, _ := loaded.Tilemap().Layer("Main")
	assert.Equal(t, len(written), main.MaterializedCells(), "явно записанный дефолт тоже восстанавливается")
	origMain, _ := m.Tilemap().Layer("Main")
	assert.Equal(t, origMain.ChunkPositions(), main.ChunkPositions())

	h, ok := loaded.GetEntity(vec.Vec2{X: 3, Y: 3})
	require.True(t, ok)
	assert.True(t, reg.Alive(h))

	_, err = Load[int](ctx, store, codec, "missing", entity.NewRegistry())
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestPersistenceMemory(t *testing.T) {
	roundTrip(t, storage.NewMemoryStore())
}

func TestPersistenceBadger(t *testing.T) {
	store, err := storage.NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	roundTrip(t, store)
}

func TestLoadRejectsDifferentLayerDefaults(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	codec, err := storage.NewCodec("none")
	require.NoError(t, err)
	defer codec.Close()

	m, _ := buildTest(t)
	require.NoError(t, Save(ctx, m, store, codec))

	var snap storage.LayerSnapshot[int]
	key := storage.LayerKey("test", "Secondary")
	require.NoError(t, storage.Load(ctx, store, codec, key, &snap))
	snap.Default = 5
	require.NoError(t, storage.Save(ctx, store, codec, key, snap))

	_, err = Load[int](ctx, store, codec, "test", entity.NewRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default")
}

// brokenHost выдаёт limit дескрипторов, дальше отказывает; Destroy всегда падает
type brokenHost struct {
	next  entity.Handle
	limit int
}

func (h *brokenHost) Create() (entity.Handle, error) {
	if int(h.next) >= h.limit {
		return 0, errors.New("host is full")
	}
	h.next++
	return h.next, nil
}

func (h *brokenHost) Destroy(entity.Handle) error {
	return errors.New("host is gone")
}

func TestLoadReportsCleanupFailure(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	defer logging.CloseDefaultLogger()

	ctx := context.Background()
	store := storage.NewMemoryStore()
	codec, err := storage.NewCodec("zstd")
	require.NoError(t, err)
	defer codec.Close()

	m, _ := buildTest(t)
	for _, c := range []vec.Vec2{{X: 1, Y: 1}, {X: 2, Y: 2}} {
		_, err := m.SpawnEntity(c)
		require.NoError(t, err)
	}
	require.NoError(t, Save(ctx, m, store, codec))

	_, err = Load[int](ctx, store, codec, "test", &brokenHost{limit: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "respawn entity")
	assert.Contains(t, buf.String(), "host is gone")
}
