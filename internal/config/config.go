package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const ServiceName = "printa-inventory"

type Config struct {
	Port         string
	DatabaseURL  string // empty runs every module on in-memory stores
	JWTSecret    string
	LogLevel     string
	KafkaBrokers []string
	KafkaTopic   string
	OTLPEndpoint string

	LowStockThreshold int
	ExpiringWindow    time.Duration
}

func Load() Config {
	_ = godotenv.Load()

	var brokers []string
	if raw := getEnv("KAFKA_BROKERS", ""); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Config{
		Port:              getEnv("APP_PORT", "8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-me"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		KafkaBrokers:      brokers,
		KafkaTopic:        getEnv("KAFKA_TOPIC", "inventory-events"),
		OTLPEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		LowStockThreshold: getEnvInt("LOW_STOCK_THRESHOLD", 5),
		ExpiringWindow:    time.Duration(getEnvInt("EXPIRING_WINDOW_DAYS", 7)) * 24 * time.Hour,
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
