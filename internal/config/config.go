// Package config loads application configuration from environment
// variables, after reading an optional .env file.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds the required runtime configuration.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string
	DBPass    string // may be empty
	DBHost    string
	DBPort    string
	DBName    string
	JWTSecret string // secret used to verify JWTs
	RabbitURL string // empty disables the broker; compensation runs in process
	Queue     string // compensation queue name
}

// Load reads .env when present and returns the configuration. Missing
// required variables terminate the process.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("config: .env not loaded")
	}
	rabbit := os.Getenv("RABBITMQ_URL")
	if rabbit == "" {
		rabbit = os.Getenv("AMQP_URL")
	}
	return Config{
		Env:       must("APP_ENV"),
		Port:      strconv.Itoa(mustInt("APP_PORT")),
		DBUser:    must("DB_USER"),
		DBPass:    os.Getenv("DB_PASS"),
		DBHost:    must("DB_HOST"),
		DBPort:    must("DB_PORT"),
		DBName:    must("DB_NAME"),
		JWTSecret: must("JWT_SECRET"),
		RabbitURL: rabbit,
		Queue:     envStr("COMPENSATION_QUEUE", "booking.compensation"),
	}
}

// Dev reports whether the process runs in the dev environment.
func (c Config) Dev() bool { return c.Env == "dev" }

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the process exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatal().Str("key", key).Msg("missing required env var")
	}
	return v
}

// mustInt is like must but converts the value into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatal().Str("key", key).Str("value", s).Msg("invalid int env var")
	}
	return n
}
