package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("info"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestNewZapLogger(t *testing.T) {
	t.Run("writes to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "icosale.log")
		log, err := NewZapLogger("info", path)
		require.NoError(t, err)

		log.Info("purchase submitted", map[string]any{"tx": "0xabc", "err": errors.New("boom")})
		log.Debug("dropped", nil)
		log.Sync()

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "purchase submitted")
		assert.Contains(t, string(data), "boom")
		assert.NotContains(t, string(data), "dropped")
	})
}

func TestOrNoop(t *testing.T) {
	assert.IsType(t, NoopLogger{}, OrNoop(nil))

	path := filepath.Join(t.TempDir(), "x.log")
	zl, err := NewZapLogger("debug", path)
	require.NoError(t, err)
	assert.Same(t, zl, OrNoop(zl))
}
