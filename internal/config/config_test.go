package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerPort)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 100, cfg.InputSize)
	assert.Equal(t, 24*time.Hour, cfg.GeoRefreshInterval)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("INPUT_SIZE", "30")
	t.Setenv("GEO_REFRESH_INTERVAL", "1h30m")
	t.Setenv("GEO_TABLE_PATH", "/data/ip.csv")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerPort)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, 30, cfg.InputSize)
	assert.Equal(t, 90*time.Minute, cfg.GeoRefreshInterval)
	assert.Equal(t, "/data/ip.csv", cfg.GeoTablePath)
}

func TestLoad_InvalidInputSize(t *testing.T) {
	t.Setenv("INPUT_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INPUT_SIZE")
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		DatabaseDriver:     "sqlite",
		InputSize:          10,
		TabularModelPath:   "a.json",
		NeuralModelPath:    "b.json",
		GeoRefreshInterval: time.Hour,
	}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.DatabaseDriver = "mysql"
	bad.NeuralModelPath = ""
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_DRIVER")
	assert.Contains(t, err.Error(), "NEURAL_MODEL_PATH")
}
