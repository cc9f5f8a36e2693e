package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPPort  = "8081"
	defaultRedisAddr = "localhost:6379"
	defaultMQTTHost  = "localhost"
	defaultMQTTPort  = 1883
)

// Config holds the server configuration
type Config struct {
	HTTPPort string
	SenderID string // identity stamped on every result this server produces

	LogMode  string
	LogLevel string

	RedisEnabled   bool
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisStatusTTL time.Duration

	MQTTEnabled        bool
	MQTTHost           string
	MQTTPort           int
	MQTTUsername       string
	MQTTPassword       string
	MQTTClientID       string
	MQTTQoS            byte
	MQTTRetained       bool
	MQTTTopicPrefix    string
	MQTTPublishTimeout time.Duration

	LockTimeout     time.Duration
	CommandTimeout  time.Duration
	PushTimeout     time.Duration
	PushParallelism int
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv builds the configuration from a lookup function
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	p := parser{lookup: lookup}

	cfg := &Config{
		HTTPPort: p.str("HTTP_PORT", defaultHTTPPort),
		SenderID: p.str("WWCP_SENDER_ID", "wwcp-server"),

		LogMode:  p.str("LOG_MODE", "development"),
		LogLevel: p.str("LOG_LEVEL", "info"),

		RedisEnabled:   p.boolean("REDIS_ENABLED", true),
		RedisAddr:      p.str("REDIS_ADDR", defaultRedisAddr),
		RedisPassword:  p.str("REDIS_PASSWORD", ""),
		RedisDB:        p.integer("REDIS_DB", 0),
		RedisStatusTTL: p.duration("REDIS_STATUS_TTL", 10*time.Minute),

		MQTTEnabled:        p.boolean("MQTT_ENABLED", false),
		MQTTHost:           p.str("MQTT_HOST", defaultMQTTHost),
		MQTTPort:           p.integer("MQTT_PORT", defaultMQTTPort),
		MQTTUsername:       p.str("MQTT_USERNAME", ""),
		MQTTPassword:       p.str("MQTT_PASSWORD", ""),
		MQTTClientID:       p.str("MQTT_CLIENT_ID", "wwcp-server"),
		MQTTQoS:            p.qos("MQTT_QOS", 0),
		MQTTRetained:       p.boolean("MQTT_RETAINED", false),
		MQTTTopicPrefix:    p.str("MQTT_TOPIC_PREFIX", "wwcp"),
		MQTTPublishTimeout: p.duration("MQTT_PUBLISH_TIMEOUT", 5*time.Second),

		LockTimeout:     p.duration("REGISTRY_LOCK_TIMEOUT", 3*time.Second),
		CommandTimeout:  p.duration("COMMAND_TIMEOUT", 30*time.Second),
		PushTimeout:     p.duration("PUSH_TIMEOUT", 10*time.Second),
		PushParallelism: p.integer("PUSH_PARALLELISM", 4),
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MQTTEnabled && (c.MQTTPort <= 0 || c.MQTTPort > 65535) {
		return fmt.Errorf("invalid MQTT_PORT: %d", c.MQTTPort)
	}
	if c.MQTTQoS > 2 {
		return fmt.Errorf("invalid MQTT_QOS: %d", c.MQTTQoS)
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("REGISTRY_LOCK_TIMEOUT must be positive")
	}
	if c.PushParallelism <= 0 {
		return fmt.Errorf("PUSH_PARALLELISM must be positive")
	}
	return nil
}

// parser keeps the first conversion error so Load can report it once
type parser struct {
	lookup func(string) (string, bool)
	err    error
}

// str returns environment variable value or default if not set
func (p *parser) str(key, def string) string {
	if value, ok := p.lookup(key); ok && value != "" {
		return value
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	value, ok := p.lookup(key)
	if !ok || value == "" {
		return def
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return i
}

// qos reads an MQTT QoS level; anything outside 0..2 is an error
func (p *parser) qos(key string, def byte) byte {
	i := p.integer(key, int(def))
	if i < 0 || i > 2 {
		p.fail(fmt.Errorf("invalid %s: %d", key, i))
		return def
	}
	return byte(i)
}

func (p *parser) boolean(key string, def bool) bool {
	value, ok := p.lookup(key)
	if !ok || value == "" {
		return def
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	value, ok := p.lookup(key)
	if !ok || value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}
