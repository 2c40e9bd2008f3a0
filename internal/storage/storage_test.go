package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/annel0/sparse-tilemap/internal/config"
	"github.com/annel0/sparse-tilemap/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "tilemap:a:meta")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.Put(ctx, "tilemap:a:meta", []byte("meta")))
	require.NoError(t, s.Put(ctx, "tilemap:a:layer:Main", []byte("main")))
	require.NoError(t, s.Put(ctx, "tilemap:a:layer:Deco", []byte("deco")))
	require.NoError(t, s.Put(ctx, "tilemap:b:meta", []byte("other")))

	data, err := s.Get(ctx, "tilemap:a:layer:Main")
	require.NoError(t, err)
	assert.Equal(t, []byte("main"), data)

	require.NoError(t, s.Put(ctx, "tilemap:a:layer:Main", []byte("main2")))
	data, err = s.Get(ctx, "tilemap:a:layer:Main")
	require.NoError(t, err)
	assert.Equal(t, []byte("main2"), data)

	keys, err := s.Keys(ctx, MapPrefix("a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"tilemap:a:layer:Deco", "tilemap:a:layer:Main", "tilemap:a:meta"}, keys)

	require.NoError(t, s.Delete(ctx, "tilemap:a:layer:Deco"))
	require.NoError(t, s.Delete(ctx, "tilemap:a:layer:Deco"), "удаление отсутствующего ключа не ошибка")
	_, err = s.Get(ctx, "tilemap:a:layer:Deco")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	testStore(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Put(ctx, "k", nil), context.Canceled)
	_, err := s.Keys(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	value := []byte("abc")
	require.NoError(t, s.Put(context.Background(), "k", value))
	value[0] = 'x'

	data, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
}

func TestBadgerStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBadgerStore(dir)
	require.NoError(t, err)
	testStore(t, s)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "повторное закрытие безопасно")

	_, err = s.Get(context.Background(), "tilemap:a:meta")
	assert.Error(t, err)

	// данные переживают переоткрытие
	s, err = NewBadgerStore(dir)
	require.NoError(t, err)
	defer s.Close()
	data, err := s.Get(context.Background(), "tilemap:a:meta")
	require.NoError(t, err)
	assert.Equal(t, []byte("meta"), data)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TILEMAP_TEST_REDIS")
	if addr == "" {
		t.Skip("TILEMAP_TEST_REDIS не задан")
	}
	s, err := NewRedisStore(&RedisConfig{Addr: addr, KeyPrefix: "test:" + time.Now().Format("150405.000") + ":"})
	require.NoError(t, err)
	defer s.Close()
	testStore(t, s)
}

func TestOpen(t *testing.T) {
	s, err := Open(config.StorageConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(config.StorageConfig{Backend: "badger", Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(config.StorageConfig{Backend: "mongo"})
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestRedisConfigFromStorage(t *testing.T) {
	t.Setenv("TILEMAP_REDIS_PASSWORD", "")
	rc := redisConfig(config.StorageConfig{Backend: "redis"})
	assert.Equal(t, DefaultRedisConfig().Addr, rc.Addr)
	assert.Empty(t, rc.Password)

	rc = redisConfig(config.StorageConfig{
		Backend:       "redis",
		RedisAddr:     "cache:6380",
		RedisPassword: "secret",
		RedisDB:       2,
		RedisPrefix:   "maps:",
		RedisTTL:      time.Hour,
	})
	assert.Equal(t, &RedisConfig{Addr: "cache:6380", Password: "secret", DB: 2, KeyPrefix: "maps:", TTL: time.Hour}, rc)

	t.Setenv("TILEMAP_REDIS_PASSWORD", "fromenv")
	assert.Equal(t, "fromenv", redisConfig(config.StorageConfig{Backend: "redis"}).Password)
}

func TestCodec(t *testing.T) {
	snap := LayerSnapshot[int]{
		Name:       "Main",
		Size:       vec.Dims{W: 10, H: 10},
		ChunkDims:  vec.Dims{W: 4, H: 4},
		Discipline: "sparse",
		Default:    -1,
		Cells:      []CellValue[int]{{Cell: vec.Vec2{X: 9, Y: 9}, Value: 7}},
	}

	for _, compression := range []string{"none", "zstd"} {
		t.Run(compression, func(t *testing.T) {
			c, err := NewCodec(compression)
			require.NoError(t, err)
			defer c.Close()

			data, err := c.Marshal(snap)
			require.NoError(t, err)

			var got LayerSnapshot[int]
			require.NoError(t, c.Unmarshal(data, &got))
			assert.Equal(t, snap, got)
		})
	}
}

func TestCodecReadsEitherFormat(t *testing.T) {
	plain, err := NewCodec("")
	require.NoError(t, err)
	defer plain.Close()
	packed, err := NewCodec("zstd")
	require.NoError(t, err)
	defer packed.Close()

	data, err := packed.Marshal(map[string]int{"a": 1})
	require.NoError(t, err)
	var got map[string]int
	require.NoError(t, plain.Unmarshal(data, &got))
	assert.Equal(t, map[string]int{"a": 1}, got)

	assert.Error(t, plain.Unmarshal(nil, &got))
	assert.Error(t, plain.Unmarshal([]byte("?{}"), &got))

	_, err = NewCodec("lz4")
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	s := NewMemoryStore()
	c, err := NewCodec("zstd")
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	meta := MapSnapshot{
		Config:   config.Default().Map,
		Entities: []vec.Vec2{{X: 3, Y: 3}},
		SavedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, Save(ctx, s, c, MetaKey("overworld"), meta))

	var got MapSnapshot
	require.NoError(t, Load(ctx, s, c, MetaKey("overworld"), &got))
	assert.True(t, meta.SavedAt.Equal(got.SavedAt))
	got.SavedAt = meta.SavedAt
	assert.Equal(t, meta, got)

	err = Load(ctx, s, c, MetaKey("missing"), &got)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "tilemap:overworld:layer:Main", LayerKey("overworld", "Main"))
}
