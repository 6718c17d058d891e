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
	ShipSync ShipSyncConfig `yaml:"shipsync"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	ShipmentUpdatedTopicName string `yaml:"shipment_updated_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ShipSyncConfig struct {
	HTTPAddr                string `yaml:"http_addr"`
	KafkaConsumerGroup      string `yaml:"kafka_consumer_group"`
	TrackingCacheTTLSeconds int    `yaml:"tracking_cache_ttl_seconds"`

	// Shared secret the carrier sends in x-api-key. Empty disables the check.
	WebhookToken string `yaml:"webhook_token"`

	WorkerHTTPAddr            string `yaml:"worker_http_addr"`
	WorkerPollIntervalSeconds int    `yaml:"worker_poll_interval_seconds"`
	WorkerPageSize            int    `yaml:"worker_page_size"`
	WorkerConcurrency         int    `yaml:"worker_concurrency"`
	WorkerRateLimitPerMinute  int    `yaml:"worker_rate_limit_per_minute"`

	CarrierBaseURL  string `yaml:"carrier_base_url"`
	CarrierEmail    string `yaml:"carrier_email"`
	CarrierPassword string `yaml:"carrier_password"`
	// "fake" swaps the HTTP carrier client for the deterministic emulator.
	CarrierMode string `yaml:"carrier_mode"`
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
