package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Postgres struct {
		Host            string        `env:"POSTGRES_HOST" envDefault:"localhost"`
		Port            int           `env:"POSTGRES_PORT" envDefault:"5432"`
		User            string        `env:"POSTGRES_USER" envDefault:"postgres"`
		Password        string        `env:"POSTGRES_PASSWORD" envDefault:""`
		Database        string        `env:"POSTGRES_DB" envDefault:"giveaways"`
		SSLMode         string        `env:"POSTGRES_SSLMODE" envDefault:"disable"`
		MaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"25"`
		MaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
		ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"30m"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	// Base URLs of the collaborating services plus the outbound call
	// policy applied to every one of them.
	Collaborators struct {
		AuthURL        string `env:"AUTH_SERVICE_URL,required"`
		ChannelURL     string `env:"CHANNEL_SERVICE_URL,required"`
		ParticipantURL string `env:"PARTICIPANT_SERVICE_URL,required"`
		BotURL         string `env:"BOT_SERVICE_URL,required"`
		MediaURL       string `env:"MEDIA_SERVICE_URL,required"`

		Timeout          time.Duration `env:"COLLABORATOR_TIMEOUT" envDefault:"10s"`
		MaxRetries       int           `env:"COLLABORATOR_MAX_RETRIES" envDefault:"3"`
		RetryBaseDelay   time.Duration `env:"COLLABORATOR_RETRY_BASE_DELAY" envDefault:"200ms"`
		BreakerThreshold int           `env:"COLLABORATOR_BREAKER_THRESHOLD" envDefault:"5"`
		BreakerCooldown  time.Duration `env:"COLLABORATOR_BREAKER_COOLDOWN" envDefault:"30s"`
	}

	Reconciler struct {
		Interval       time.Duration `env:"RECONCILER_INTERVAL" envDefault:"1m"`
		StatsStaleness time.Duration `env:"RECONCILER_STATS_STALENESS" envDefault:"5m"`
		BatchSize      int           `env:"RECONCILER_BATCH_SIZE" envDefault:"50"`
	}
}

// GetDSN builds the postgres connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host, c.Postgres.Port, c.Postgres.User,
		c.Postgres.Password, c.Postgres.Database, c.Postgres.SSLMode)
}

// Load parses the environment into a Config. The caller is expected to
// have loaded any .env file first.
func Load() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}

	return cfg
}
