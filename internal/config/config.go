package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	StoreDriver string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	RedisEnabled bool
	RedisHost    string
	RedisPort    int
	CacheTTL     time.Duration

	RabbitMQEnabled  bool
	RabbitMQHost     string
	RabbitMQPort     int
	RabbitMQUser     string
	RabbitMQPassword string

	// KitchenRetryDelay is the pause before a failed kitchen ticket is
	// requeued.
	KitchenRetryDelay time.Duration

	ConsulEnabled  bool
	ConsulHost     string
	ConsulPort     int
	ServiceName    string
	ServiceID      string
	ServiceAddress string

	SweepInterval  time.Duration
	PendingTimeout time.Duration
	SeedMenu       bool

	LogLevel  string
	LogFormat string

	GatewayPort       int
	CanteenServiceURL string
	DiscoveryInterval time.Duration
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Load reads an optional .env file and then the environment. Missing or
// unparsable values fall back to their defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️ Failed to load .env file: %v", err)
	}

	return &Config{
		Port:        getEnvInt("PORT", 8081),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "canteen"),
		DBPassword: getEnv("DB_PASSWORD", "canteen123"),
		DBName:     getEnv("DB_NAME", "canteen"),

		RedisEnabled: getEnvBool("REDIS_ENABLED", true),
		RedisHost:    getEnv("REDIS_HOST", "localhost"),
		RedisPort:    getEnvInt("REDIS_PORT", 6379),
		CacheTTL:     getEnvDuration("CACHE_TTL", 5*time.Minute),

		RabbitMQEnabled:  getEnvBool("RABBITMQ_ENABLED", true),
		RabbitMQHost:     getEnv("RABBITMQ_HOST", "localhost"),
		RabbitMQPort:     getEnvInt("RABBITMQ_PORT", 5672),
		RabbitMQUser:     getEnv("RABBITMQ_USER", "guest"),
		RabbitMQPassword: getEnv("RABBITMQ_PASSWORD", "guest"),

		KitchenRetryDelay: getEnvDuration("KITCHEN_RETRY_DELAY", 2*time.Second),

		ConsulEnabled:  getEnvBool("CONSUL_ENABLED", true),
		ConsulHost:     getEnv("CONSUL_HOST", "localhost"),
		ConsulPort:     getEnvInt("CONSUL_PORT", 8500),
		ServiceName:    getEnv("SERVICE_NAME", "canteen-service"),
		ServiceID:      getEnv("SERVICE_ID", "canteen-service-1"),
		ServiceAddress: getEnv("SERVICE_ADDRESS", ""),

		SweepInterval:  getEnvDuration("SWEEP_INTERVAL", time.Minute),
		PendingTimeout: getEnvDuration("PENDING_ORDER_TIMEOUT", 15*time.Minute),
		SeedMenu:       getEnvBool("SEED_MENU", false),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		GatewayPort:       getEnvInt("GATEWAY_PORT", 8080),
		CanteenServiceURL: getEnv("CANTEEN_SERVICE_URL", "http://canteen-service:8081"),
		DiscoveryInterval: getEnvDuration("DISCOVERY_INTERVAL", 10*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Printf("⚠️ Invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		log.Printf("⚠️ Invalid %s=%q, using %t", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d <= 0 {
		log.Printf("⚠️ Invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
