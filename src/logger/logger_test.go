package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagram_engine/src/model"
)

func TestInitLogger_FileOutput(t *testing.T) {
	t.Cleanup(func() {
		Logger = zerolog.Nop()
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	})
	path := filepath.Join(t.TempDir(), "logs", "engine.log")

	require.NoError(t, InitLogger(model.LogConfig{Level: "info", Format: "json", Output: "file", FilePath: path}))
	Info().Str("token", "t1").Msg("hello")
	Debug().Msg("filtered out")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"token":"t1"`)
	assert.NotContains(t, string(data), "filtered out")
}

func TestInitLogger_Errors(t *testing.T) {
	t.Cleanup(func() { Logger = zerolog.Nop() })
	assert.Error(t, InitLogger(model.LogConfig{Level: "loud"}))
	assert.Error(t, InitLogger(model.LogConfig{Level: "info", Output: "file"}))
}
