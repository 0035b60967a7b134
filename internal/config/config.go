package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Storage drivers. The active one is picked once at startup and handed to the
// repository constructor; nothing reads it again mid-operation.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// DefaultJWTSecret only signs tokens for the in-memory driver. Persistent
// drivers must set JWT_SECRET to something else.
const DefaultJWTSecret = "change_me_pos_engine_secret"

type Config struct {
	HTTPAddr          string   `envconfig:"HTTP_ADDR" default:":8080"`
	BaseURL           string   `envconfig:"BASE_URL" default:"http://localhost:8080"`
	AllowRegistration bool     `envconfig:"ALLOW_REGISTRATION" default:"false"`
	CORSOrigins       []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`

	Database Database
	Redis    Redis
	Kafka    Kafka
	JWT      JWT
	Log      Log
	Engine   Engine
}

type Database struct {
	Driver  string `envconfig:"DB_DRIVER" default:"mysql"`
	DSN     string `envconfig:"DB_DSN"`
	LogMode bool   `envconfig:"DB_LOG_MODE" default:"false"`
}

type Redis struct {
	Addr     string `envconfig:"REDIS_ADDR"` // empty: sale locks stay in-process
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type Kafka struct {
	Brokers     []string `envconfig:"KAFKA_BROKERS"` // empty: notifications are dropped
	TopicPrefix string   `envconfig:"KAFKA_TOPIC_PREFIX" default:"pos"`
}

type JWT struct {
	Secret string        `envconfig:"JWT_SECRET" default:"change_me_pos_engine_secret"`
	TTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`
}

type Log struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

type Engine struct {
	ReserveAttempts  int           `envconfig:"SALE_RESERVE_ATTEMPTS" default:"3"`
	ReleaseAttempts  int           `envconfig:"LEDGER_RELEASE_ATTEMPTS" default:"10"`
	SaleLockTTL      time.Duration `envconfig:"SALE_LOCK_TTL" default:"30s"`
	AuditPurgePhrase string        `envconfig:"AUDIT_PURGE_PHRASE" default:"PURGE AUDIT LOG"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "read env config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case DriverMySQL, DriverSQLite:
		if c.Database.DSN == "" {
			return errors.Errorf("DB_DSN is required for driver %q", c.Database.Driver)
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown DB_DRIVER %q (want mysql, sqlite or memory)", c.Database.Driver)
	}
	secret := strings.TrimSpace(c.JWT.Secret)
	if secret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if secret == DefaultJWTSecret && c.Database.Driver != DriverMemory {
		return errors.Errorf("JWT_SECRET must be changed from the default for driver %q", c.Database.Driver)
	}
	if c.Engine.ReserveAttempts < 1 {
		return errors.New("SALE_RESERVE_ATTEMPTS must be at least 1")
	}
	if c.Engine.ReleaseAttempts < 1 {
		return errors.New("LEDGER_RELEASE_ATTEMPTS must be at least 1")
	}
	if strings.TrimSpace(c.Engine.AuditPurgePhrase) == "" {
		return errors.New("AUDIT_PURGE_PHRASE must not be empty")
	}
	return nil
}
