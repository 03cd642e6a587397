package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	LogiBox  LogiBoxConfig  `yaml:"logibox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`

	LockTimeoutMillis int `yaml:"lock_timeout_millis"`
}

// ConnString renders a pgx connection URL. An empty ssl_mode means disable.
func (c DatabaseConfig) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.DBName, sslMode)
}

type KafkaConfig struct {
	Host                    string `yaml:"host"`
	Port                    int    `yaml:"port"`
	CarrierUpdatesTopicName string `yaml:"carrier_updates_topic_name"`
}

func (c KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", c.Host, c.Port)}
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type LogiBoxConfig struct {
	// Storage is "postgres" (default) or "memory".
	Storage            string `yaml:"storage"`
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	CurrentShipmentTTLSeconds int     `yaml:"current_shipment_ttl_seconds"`
	RouteLockTTLSeconds       int     `yaml:"route_lock_ttl_seconds"`
	RouteAverageSpeedKmh      float64 `yaml:"route_average_speed_kmh"`
	RouteStopServiceMinutes   float64 `yaml:"route_stop_service_minutes"`
	RouteTwoOpt               bool    `yaml:"route_two_opt"`

	RetryAttempts              int `yaml:"retry_attempts"`
	RetryInitialIntervalMillis int `yaml:"retry_initial_interval_millis"`
	RetryMaxIntervalMillis     int `yaml:"retry_max_interval_millis"`

	WorkerPollIntervalSeconds int `yaml:"worker_poll_interval_seconds"`
	WorkerBatchSize           int `yaml:"worker_batch_size"`
	WorkerConcurrency         int `yaml:"worker_concurrency"`
	WorkerLeaseSeconds        int `yaml:"worker_lease_seconds"`
	WorkerRateLimitPerMinute  int `yaml:"worker_rate_limit_per_minute"`
	WorkerPublishAttempts     int `yaml:"worker_publish_attempts"`

	// Per carrier code overrides of worker_rate_limit_per_minute.
	WorkerCarrierRateLimits map[string]int `yaml:"worker_carrier_rate_limits"`

	WorkerHTTPAddr string `yaml:"worker_http_addr"`

	// Worker scheduling (optional). Unset values fall back to the poller
	// defaults: moving 30..120 minutes, unknown 90 minutes, backoff 5/15/30/60.
	WorkerNextCheckMovingMinSeconds      int `yaml:"worker_next_check_moving_min_seconds"`
	WorkerNextCheckMovingMaxSeconds      int `yaml:"worker_next_check_moving_max_seconds"`
	WorkerNextCheckOutForDeliverySeconds int `yaml:"worker_next_check_out_for_delivery_seconds"`
	WorkerNextCheckUnknownSeconds        int `yaml:"worker_next_check_unknown_seconds"`
	WorkerBackoff1Seconds                int `yaml:"worker_backoff_1_seconds"`
	WorkerBackoff2Seconds                int `yaml:"worker_backoff_2_seconds"`
	WorkerBackoff3Seconds                int `yaml:"worker_backoff_3_seconds"`
	WorkerBackoff4Seconds                int `yaml:"worker_backoff_4_seconds"`

	BreakerFailureThreshold int `yaml:"breaker_failure_threshold"`
	BreakerOpenSeconds      int `yaml:"breaker_open_seconds"`

	CarrierEmulatorBaseURL string `yaml:"carrier_emulator_base_url"`
	CarrierEmulatorMode    string `yaml:"carrier_emulator_mode"` // "v1" | "fake"
	CarrierEmulatorAPIKey  string `yaml:"carrier_emulator_api_key"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
