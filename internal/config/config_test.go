package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "segredo")

	var cfg Config
	require.NoError(t, env.Parse(&cfg))

	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 10*time.Second, cfg.Evolution.Timeout())
	assert.True(t, cfg.Evolution.ConnectingHeuristic)
	assert.Equal(t, 120, cfg.Activation.LockTTLSeconds)
}

func TestDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "evo", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=evo sslmode=disable", cfg.DSN())

	cfg.URL = "postgres://u:p@db/evo"
	assert.Equal(t, "postgres://u:p@db/evo", cfg.DSN())
}

func TestEvolutionTimeoutFallback(t *testing.T) {
	assert.Equal(t, 10*time.Second, EvolutionConfig{}.Timeout())
	assert.Equal(t, 3*time.Second, EvolutionConfig{TimeoutSeconds: 3}.Timeout())
}
