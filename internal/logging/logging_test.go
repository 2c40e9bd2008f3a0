package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer CloseDefaultLogger()

	log := GetComponentLogger("tilemap-test")
	assert.Same(t, log, GetComponentLogger("tilemap-test"))

	log.Info("слой %s перестроен", "Main")
	log.Debug("не должно попасть в вывод")

	out := buf.String()
	assert.Contains(t, out, "слой Main перестроен")
	assert.Contains(t, out, "component=tilemap-test")
	assert.NotContains(t, out, "не должно попасть")

	log.SetLevel(DEBUG)
	log.WithField("layer", "Main").Debug("теперь видно")
	assert.Contains(t, buf.String(), "теперь видно")
	assert.Contains(t, buf.String(), "layer=Main")

	_, err := GetLoggerManager().GetLogger("")
	assert.Error(t, err)
	assert.NotNil(t, GetComponentLogger(""))
}

func TestConfigureRelevelsExistingLoggers(t *testing.T) {
	defer CloseDefaultLogger()

	// логгеры получены до настройки вывода, как у пакетов при инициализации
	tm := GetComponentLogger("tilemap-early")
	st := GetComponentLogger("storage-early")

	require.NoError(t, Configure(Options{
		Level:      DEBUG,
		Components: map[string]LogLevel{"storage-early": ERROR},
	}))
	var buf bytes.Buffer
	SetOutput(&buf)

	tm.Debug("отладка карты")
	st.Warn("предупреждение хранилища")
	st.Error("ошибка хранилища")

	out := buf.String()
	assert.Contains(t, out, "отладка карты")
	assert.NotContains(t, out, "предупреждение хранилища")
	assert.Contains(t, out, "ошибка хранилища")

	// новые логгеры тоже получают переопределённый уровень
	late := GetComponentLogger("storage-early-2")
	late.Debug("поздний логгер")
	assert.Contains(t, buf.String(), "поздний логгер")
}

func TestInitDefaultLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tilemap.log")
	require.NoError(t, InitDefaultLogger("demo", Options{Level: INFO, File: path}))
	Info("карта %s собрана", "overworld")
	Debug("отладка не пишется")
	CloseDefaultLogger()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "карта overworld собрана")
	assert.NotContains(t, string(data), "отладка не пишется")
}

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions("warn", "logs/x.log", map[string]string{"storage": "Debug"})
	require.NoError(t, err)
	assert.Equal(t, WARN, opts.Level)
	assert.Equal(t, "logs/x.log", opts.File)
	assert.Equal(t, map[string]LogLevel{"storage": DEBUG}, opts.Components)

	_, err = ParseOptions("info", "", map[string]string{"http": "loud"})
	assert.ErrorContains(t, err, "http")
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("Debug")
	require.NoError(t, err)
	assert.Equal(t, DEBUG, l)

	l, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, INFO, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, "WARN", WARN.String())
}
