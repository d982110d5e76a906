package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("ORDER_ETA", "")

	cfg := Load()

	require.Equal(t, 5000, cfg.AppPort)
	require.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	require.Equal(t, 45*time.Minute, cfg.OrderETA)
	require.Equal(t, "pizzaforpi:events", cfg.RedisChannel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "8081")
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("UNPAID_ORDER_TTL", "10m")
	t.Setenv("WS_SEND_BUFFER", "4")

	cfg := Load()

	require.Equal(t, 8081, cfg.AppPort)
	require.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	require.Equal(t, 10*time.Minute, cfg.UnpaidOrderTTL)
	require.Equal(t, 4, cfg.WSSendBuffer)
	require.Equal(t, "8081", Config("APP_PORT"))
}
