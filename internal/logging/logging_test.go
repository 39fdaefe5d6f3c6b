package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProductionWritesJSON(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.log")

	logger, err := New(Config{Level: "debug", Environment: "production", OutputPaths: []string{out}})
	require.NoError(t, err)

	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "solana-rent-reclaim", entry["service"])
}

func TestNew_Levels(t *testing.T) {
	logger, err := New(Config{Environment: "development"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1), "debug disabled at default info level")

	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}
