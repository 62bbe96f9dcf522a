// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/sems_project/internal/services/derive"
	"github.com/LeonardoBeccarini/sems_project/pkg/rabbitmq"
)

const (
	TransportMQTT   = "mqtt"
	TransportMemory = "memory"
)

type Config struct {
	Transport string
	Rabbit    rabbitmq.RabbitMQConfig
	Prefix    string // MQTT topic prefix of the installation
	QoS       int

	Derive     derive.Params
	TariffFile string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	HTTPPort     int
	GRPCPort     int
	WriteTimeout time.Duration

	BreakerFails    int
	BreakerOpen     time.Duration
	BreakerInterval time.Duration

	ShutdownGrace time.Duration
}

func Load() Config {
	return Config{
		Transport: strings.ToLower(env("TRANSPORT", TransportMQTT)),
		Rabbit: rabbitmq.RabbitMQConfig{
			Host:       env("RABBITMQ_HOST", "localhost"),
			Port:       envInt("RABBITMQ_PORT", 1883),
			User:       env("RABBITMQ_USER", "guest"),
			Password:   env("RABBITMQ_PASSWORD", "guest"),
			ClientID:   env("HOSTNAME", "sems-pipeline"),
			MaxRetries: envInt("RABBITMQ_MAX_RETRIES", 5),
			KeepAlive:  envDur("RABBITMQ_KEEPALIVE", 30*time.Second),
		},
		Prefix: env("MQTT_PREFIX", "sems/installation"),
		QoS:    envInt("MQTT_QOS", 1),

		Derive: derive.Params{
			SystemVoltage:        envFloat("SYSTEM_VOLTAGE", 5),
			MaxRatedAmps:         envFloat("MAX_RATED_AMPS", 0.5),
			FlatRatePerWh:        envFloat("FLAT_RATE_PER_WH", 0.000571),
			SolarSavingsFraction: envFloat("SOLAR_SAVINGS_FRACTION", 0.3),
		},
		TariffFile: env("TARIFF_FILE", ""),

		InfluxURL:    env("INFLUX_URL", ""),
		InfluxToken:  os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:    env("INFLUX_ORG", "sems"),
		InfluxBucket: env("INFLUX_BUCKET", "energy"),

		RedisAddr:     env("REDIS_ADDR", ""),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		RedisTTL:      envDur("REDIS_TTL", 45*24*time.Hour),

		HTTPPort:     envInt("HTTP_PORT", 8080),
		GRPCPort:     envInt("GRPC_PORT", 50051),
		WriteTimeout: envDur("WRITE_TIMEOUT", 5*time.Second),

		BreakerFails:    envInt("CB_FAILS", 3),
		BreakerOpen:     time.Duration(envInt("CB_OPEN_MS", 10000)) * time.Millisecond,
		BreakerInterval: time.Duration(envInt("CB_INTERVAL_MS", 60000)) * time.Millisecond,

		ShutdownGrace: envDur("SHUTDOWN_GRACE", 5*time.Second),
	}
}

var ErrInvalidConfig = errors.New("invalid config")

func (c Config) Validate() error {
	if c.Transport != TransportMQTT && c.Transport != TransportMemory {
		return fmt.Errorf("%w: TRANSPORT %q (want mqtt or memory)", ErrInvalidConfig, c.Transport)
	}
	if c.Transport == TransportMQTT && strings.TrimSpace(c.Prefix) == "" {
		return fmt.Errorf("%w: MQTT_PREFIX is empty", ErrInvalidConfig)
	}
	if c.QoS < 0 || c.QoS > 2 {
		return fmt.Errorf("%w: MQTT_QOS %d", ErrInvalidConfig, c.QoS)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("%w: HTTP_PORT %d", ErrInvalidConfig, c.HTTPPort)
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("%w: GRPC_PORT %d", ErrInvalidConfig, c.GRPCPort)
	}
	if err := c.Derive.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// envDur accepts Go durations ("90s") or plain milliseconds.
func envDur(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Millisecond
	}
	return def
}
