package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// DBPool tunes the pgx connection pool; zero values keep pgx defaults.
type DBPool struct {
	MaxConns          int32  `envconfig:"DB_POOL_MAX_CONNS"`
	MinConns          int32  `envconfig:"DB_POOL_MIN_CONNS"`
	MaxConnLifetime   string `envconfig:"DB_POOL_MAX_CONN_LIFETIME"`
	MaxConnIdleTime   string `envconfig:"DB_POOL_MAX_CONN_IDLE_TIME"`
	HealthCheckPeriod string `envconfig:"DB_POOL_HEALTH_CHECK_PERIOD"`
}

type APIConfig struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	DBPool    DBPool
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

type WorkerConfig struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	DBPool    DBPool
	Port      string `envconfig:"PORT" default:"8081"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// PollInterval drives dispatching of due schedules; GenerateInterval
	// drives regeneration of schedules from open invoices.
	PollInterval     time.Duration `envconfig:"POLL_INTERVAL" default:"1m"`
	GenerateInterval time.Duration `envconfig:"GENERATE_INTERVAL" default:"24h"`

	SMTPHost     string `envconfig:"SMTP_HOST" required:"true"`
	SMTPPort     string `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
}

func LoadAPI() APIConfig {
	var cfg APIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadWorker() WorkerConfig {
	var cfg WorkerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
