// Package config holds the tuning constants for the rundezvous lifecycle and
// the environment-driven runtime configuration.
package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	// UserActiveWindow is the time after which a user is considered inactive
	// if their location hasn't been updated.
	UserActiveWindow = time.Hour

	// MaxRundezvousExpiration caps how long any rundezvous can stay open,
	// started or not. The sweeper archives anything older.
	MaxRundezvousExpiration = time.Hour

	// DefaultExpirationSeconds is the expiration window assigned to a
	// rundezvous when the meetup starts, unless overridden via env.
	DefaultExpirationSeconds = 600

	// MaxChatMessageLength bounds chat message text.
	MaxChatMessageLength = 140

	// ChatTimeLimit is how long users can chat before the meetup decision
	// must be made.
	ChatTimeLimit = 2 * time.Minute

	// MeetDecisionTimeLimit is the window after the chat ends during which
	// each user may record their "did we meet" decision.
	MeetDecisionTimeLimit = 30 * time.Second

	// MatchClaimTTL bounds how long a matchmaking claim key lives in Redis.
	MatchClaimTTL = 30 * time.Second

	// SweepInterval is how often the expiry sweeper scans for expired
	// rundezvouses.
	SweepInterval = time.Minute

	// Reputation
	InitialReputation     = 0
	GoodReviewReward      = 1
	BadReviewPenalty      = -1
	SuccessfulMeetupBonus = 5
)

// Config is the runtime configuration, parsed from the environment.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"user"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"password"`
	DBName     string `env:"DB_NAME" envDefault:"rundezvousdb"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret string `env:"JWT_SECRET,required"`

	// ExpirationSeconds is the per-rundezvous expiration window. Lifted out
	// of code so deployments can tune how long users get to reach the
	// landmark.
	ExpirationSeconds int `env:"RUNDEZVOUS_EXPIRATION_SECONDS" envDefault:"600"`

	// ArrivalThresholdMeters is the distance from the landmark under which a
	// user counts as arrived.
	ArrivalThresholdMeters float64 `env:"ARRIVAL_THRESHOLD_METERS" envDefault:"100"`

	// PairingDistanceMeters is the maximum distance between two users where
	// a meetup can still be created. About half a mile, a quarter each.
	PairingDistanceMeters float64 `env:"PAIRING_DISTANCE_METERS" envDefault:"800"`
}

// Load reads .env (if present) and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// DSN builds the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}
