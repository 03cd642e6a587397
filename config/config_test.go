package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  carrier_updates_topic_name: "logistics.carrier_updates"
redis:
  host: "localhost"
  port: 6379
logibox:
  storage: "memory"
  http_addr: ":8080"
  kafka_consumer_group: "logistics-api"
  current_shipment_ttl_seconds: 600
  route_two_opt: true
  worker_carrier_rate_limits:
    EMU: 30
    FAST: 300
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "logistics.carrier_updates", cfg.Kafka.CarrierUpdatesTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.LogiBox.HTTPAddr)
	require.Equal(t, "memory", cfg.LogiBox.Storage)
	require.True(t, cfg.LogiBox.RouteTwoOpt)
	require.Equal(t, map[string]int{"EMU": 30, "FAST": 300}, cfg.LogiBox.WorkerCarrierRateLimits)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	p := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(p, []byte("database: [1, 2"), 0o600))
	_, err = LoadConfig(p)
	require.Error(t, err)
}

func TestAddresses(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{Host: "db", Port: 5432, Username: "u", Password: "p", DBName: "logibox"},
		Kafka:    KafkaConfig{Host: "kafka", Port: 9092},
		Redis:    RedisConfig{Host: "redis", Port: 6379},
	}
	require.Equal(t, "postgres://u:p@db:5432/logibox?sslmode=disable", cfg.Database.ConnString())
	require.Equal(t, []string{"kafka:9092"}, cfg.Kafka.Brokers())
	require.Equal(t, "redis:6379", cfg.Redis.Addr())

	cfg.Database.SSLMode = "require"
	require.Contains(t, cfg.Database.ConnString(), "sslmode=require")
}
