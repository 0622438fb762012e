package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL    string
	HTTPAddr       string
	LogLevel       string
	PostingTimeout time.Duration
	ReceiptDir     string
	RedisAddr      string
	KafkaBrokers   []string
	KafkaTopic     string
	CORSOrigins    []string
	OTLPEndpoint   string
	ServiceName    string

	// EnvFileLoaded is false when no .env file was found and only the
	// process environment was used.
	EnvFileLoaded bool
}

// Load reads the .env file (if any) and then the process environment.
func Load() (Config, error) {
	loaded := godotenv.Load() == nil

	timeout, err := time.ParseDuration(getEnv("POSTING_TIMEOUT", "5s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid POSTING_TIMEOUT: %w", err)
	}
	if timeout <= 0 {
		return Config{}, fmt.Errorf("invalid POSTING_TIMEOUT: must be positive, got %s", timeout)
	}

	return Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8000"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		PostingTimeout: timeout,
		ReceiptDir:     getEnv("RECEIPT_DIR", "receipts"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "transaction_posted"),
		CORSOrigins:    splitList(os.Getenv("CORS_ORIGINS")),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:    getEnv("OTEL_SERVICE_NAME", "go-bank-ledger"),
		EnvFileLoaded:  loaded,
	}, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
