package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment so main
// stays lean. Empty DatabaseURL/RedisURL/KafkaBrokers mean the corresponding
// backend is not configured and in-memory fallbacks are wired instead.
type Config struct {
	Addr string

	DatabaseURL string
	RedisURL    string

	KafkaBrokers []string
	KafkaGroup   string
	KafkaTopic   string

	CarrierBaseURL    string
	CarrierUsername   string
	CarrierPassword   string
	CarrierLicenseKey string

	OrderEndpoint          string
	OrderAccount           string
	OrderProviderFirstName string
	OrderProviderLastName  string
	OrderProviderNPI       string

	ParticipantBaseURL string

	PollInterval     time.Duration
	ReminderInterval time.Duration
	HTTPTimeout      time.Duration

	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables with development
// defaults.
func FromEnv() Config {
	cfg := Config{
		Addr:                   envOr("KITTRACK_ADDR", ":8080"),
		DatabaseURL:            os.Getenv("KITTRACK_DATABASE_URL"),
		RedisURL:               os.Getenv("KITTRACK_REDIS_URL"),
		KafkaGroup:             envOr("KITTRACK_KAFKA_GROUP", "kittrack-results"),
		KafkaTopic:             envOr("KITTRACK_KAFKA_TOPIC", "lab-results"),
		CarrierBaseURL:         os.Getenv("KITTRACK_CARRIER_URL"),
		CarrierUsername:        os.Getenv("KITTRACK_CARRIER_USERNAME"),
		CarrierPassword:        os.Getenv("KITTRACK_CARRIER_PASSWORD"),
		CarrierLicenseKey:      os.Getenv("KITTRACK_CARRIER_LICENSE_KEY"),
		OrderEndpoint:          os.Getenv("KITTRACK_ORDER_ENDPOINT"),
		OrderAccount:           os.Getenv("KITTRACK_ORDER_ACCOUNT"),
		OrderProviderFirstName: os.Getenv("KITTRACK_ORDER_PROVIDER_FIRST_NAME"),
		OrderProviderLastName:  os.Getenv("KITTRACK_ORDER_PROVIDER_LAST_NAME"),
		OrderProviderNPI:       os.Getenv("KITTRACK_ORDER_PROVIDER_NPI"),
		ParticipantBaseURL:     os.Getenv("KITTRACK_PARTICIPANT_URL"),
		PollInterval:           durationOr("KITTRACK_POLL_INTERVAL", time.Hour),
		ReminderInterval:       durationOr("KITTRACK_REMINDER_INTERVAL", time.Hour),
		HTTPTimeout:            durationOr("KITTRACK_HTTP_TIMEOUT", 30*time.Second),
		ServerReadTimeout:      durationOr("KITTRACK_SERVER_READ_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:     durationOr("KITTRACK_SERVER_WRITE_TIMEOUT", 30*time.Second),
	}
	if brokers := os.Getenv("KITTRACK_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
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
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
