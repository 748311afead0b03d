package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "trustledger/pkg/platform/strings"
)

// Config captures process-level configuration. Built once in main and passed
// down; packages never read the environment themselves.
type Config struct {
	Addr string

	// SigningSecret is the process-wide secret backing receipt and credential
	// signatures. Its absence is a fatal startup error, checked where the
	// signature module is constructed - there is no development default.
	SigningSecret string

	// JWTSigningKey signs API bearer tokens for the write endpoints.
	JWTSigningKey string

	// MinReceiptAmount is the economic floor below which receipts are rejected.
	MinReceiptAmount float64

	// CredentialTTL bounds credential validity, checked at read time.
	CredentialTTL time.Duration

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	EscrowURL   string
}

// RedisConfig holds connection settings for the trust result cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds settings for the receipt event stream.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("TRUST_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	minAmount := 0.01
	if v := os.Getenv("TRUST_MIN_RECEIPT_AMOUNT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			minAmount = f
		}
	}

	credentialTTL := 365 * 24 * time.Hour
	if v := os.Getenv("TRUST_CREDENTIAL_TTL_DAYS"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			credentialTTL = time.Duration(d) * 24 * time.Hour
		}
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = pstrings.DedupeAndTrim(strings.Split(v, ","))
	}
	topic := os.Getenv("KAFKA_RECEIPT_TOPIC")
	if topic == "" {
		topic = "trust.receipts"
	}

	return Config{
		Addr:             addr,
		SigningSecret:    os.Getenv("TRUST_SIGNING_SECRET"),
		JWTSigningKey:    jwtSigningKey,
		MinReceiptAmount: minAmount,
		CredentialTTL:    credentialTTL,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   topic,
		},
		EscrowURL: os.Getenv("ESCROW_RESOLVER_URL"),
	}
}
