package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig(t *testing.T) {
	cfg := defaultConfig()
	for _, o := range []ClientOption{
		WithDSN("postgres://forecast:secret@db:5432/sales?sslmode=disable"),
		WithMaxConns(4),
		WithConnectTimeout(2 * time.Second),
	} {
		o(cfg)
	}

	pc, err := poolConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(4), pc.MaxConns)
	assert.Equal(t, int32(1), pc.MinConns)
	assert.Equal(t, 2*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, "sales", pc.ConnConfig.Database)
	assert.Equal(t, "db", pc.ConnConfig.Host)
}

func TestPoolConfigRequiresDSN(t *testing.T) {
	_, err := poolConfig(defaultConfig())
	require.Error(t, err)
}
