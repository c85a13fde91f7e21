// Package config reads process configuration from the environment so main
// stays lean. Every knob carries a development default.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"selns/internal/registrar"
	"selns/internal/registration"
	"selns/pkg/domain"
)

// Config is the full process configuration.
type Config struct {
	Addr       string
	LogLevel   string
	AdminToken string

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// PostgresDSN selects the durable state store; empty keeps the
	// in-process memory store.
	PostgresDSN string
	// RedisURL selects the Redis commitment store; empty keeps the
	// in-process memory store.
	RedisURL string
	// KafkaBrokers enables the Kafka event publisher; empty discards
	// events.
	KafkaBrokers []string
	KafkaTopic   string

	// AdminPrincipal owns the registry root and runs the reserved-name and
	// treasury surfaces. TreasuryPrincipal accumulates registration
	// revenue.
	AdminPrincipal    domain.Principal
	TreasuryPrincipal domain.Principal

	Registration registration.Config
	GracePeriod  time.Duration
	RenewPolicy  registrar.RenewPolicy
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:          envOr("SELNS_ADDR", ":8080"),
		LogLevel:      envOr("SELNS_LOG_LEVEL", "info"),
		AdminToken:    os.Getenv("SELNS_ADMIN_TOKEN"),
		JWTSigningKey: envOr("SELNS_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     envOr("SELNS_JWT_ISSUER", "selns"),
		JWTAudience:   envOr("SELNS_JWT_AUDIENCE", "selns-api"),
		PostgresDSN:   os.Getenv("SELNS_POSTGRES_DSN"),
		RedisURL:      os.Getenv("SELNS_REDIS_URL"),
		KafkaTopic:    envOr("SELNS_KAFKA_TOPIC", "selns.events"),

		AdminPrincipal:    principalOr("SELNS_ADMIN_PRINCIPAL", "0x00000000000000000000000000000000000000a0"),
		TreasuryPrincipal: principalOr("SELNS_TREASURY_PRINCIPAL", "0x00000000000000000000000000000000000000fe"),

		Registration: registration.Config{
			MinCommitmentAge:        durationOr("SELNS_MIN_COMMITMENT_AGE", registration.DefaultConfig().MinCommitmentAge),
			MaxCommitmentAge:        durationOr("SELNS_MAX_COMMITMENT_AGE", registration.DefaultConfig().MaxCommitmentAge),
			MinRegistrationDuration: durationOr("SELNS_MIN_REGISTRATION_DURATION", registration.DefaultConfig().MinRegistrationDuration),
		},
		GracePeriod: durationOr("SELNS_GRACE_PERIOD", registrar.DefaultGracePeriod),
		RenewPolicy: registrar.RenewAnyoneWhileNotAvailable,
	}

	if brokers := os.Getenv("SELNS_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if os.Getenv("SELNS_RENEW_HOLDER_ONLY_IN_GRACE") == "true" {
		cfg.RenewPolicy = registrar.RenewHolderOnlyDuringGrace
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func principalOr(key, fallback string) domain.Principal {
	if v := os.Getenv(key); v != "" {
		if p, err := domain.ParsePrincipal(v); err == nil {
			return p
		}
	}
	p, _ := domain.ParsePrincipal(fallback)
	return p
}
