package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "memory")

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.HTTPAddr)
		assert.Equal(t, DriverMemory, cfg.Database.Driver)
		assert.Equal(t, 3, cfg.Engine.ReserveAttempts)
		assert.Equal(t, 10, cfg.Engine.ReleaseAttempts)
		assert.Equal(t, 30*time.Second, cfg.Engine.SaleLockTTL)
		assert.Equal(t, "PURGE AUDIT LOG", cfg.Engine.AuditPurgePhrase)
		assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
		assert.Empty(t, cfg.Redis.Addr)
		assert.Empty(t, cfg.Kafka.Brokers)
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv("DB_DRIVER", " SQLite ")
		t.Setenv("DB_DSN", "file:pos.db")
		t.Setenv("JWT_SECRET", "a-real-deployment-secret")
		t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
		t.Setenv("SALE_RESERVE_ATTEMPTS", "5")
		t.Setenv("SALE_LOCK_TTL", "1m")

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, DriverSQLite, cfg.Database.Driver)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, 5, cfg.Engine.ReserveAttempts)
		assert.Equal(t, time.Minute, cfg.Engine.SaleLockTTL)
	})

	t.Run("SQL driver needs a DSN", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "mysql")
		t.Setenv("DB_DSN", "")

		_, err := Load()
		assert.ErrorContains(t, err, "DB_DSN")
	})

	t.Run("Unknown driver", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "postgres")

		_, err := Load()
		assert.ErrorContains(t, err, "unknown DB_DRIVER")
	})

	t.Run("Persistent driver refuses the default JWT secret", func(t *testing.T) {
		for _, driver := range []string{"mysql", "sqlite"} {
			t.Setenv("DB_DRIVER", driver)
			t.Setenv("DB_DSN", "file:pos.db")
			t.Setenv("JWT_SECRET", "")

			_, err := Load()
			assert.ErrorContains(t, err, "JWT_SECRET", driver)

			t.Setenv("JWT_SECRET", DefaultJWTSecret)
			_, err = Load()
			assert.ErrorContains(t, err, "JWT_SECRET", driver)
		}
	})

	t.Run("Memory driver keeps the default JWT secret", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "memory")

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, DefaultJWTSecret, cfg.JWT.Secret)
	})

	t.Run("Attempts must be positive", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "memory")
		t.Setenv("SALE_RESERVE_ATTEMPTS", "0")

		_, err := Load()
		assert.ErrorContains(t, err, "SALE_RESERVE_ATTEMPTS")
	})
}

func TestNewLogger(t *testing.T) {
	logg := NewLogger(Log{Level: "debug", Format: "text"})
	assert.Equal(t, logrus.DebugLevel, logg.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logg.Formatter)

	logg = NewLogger(Log{Level: "nonsense"})
	assert.Equal(t, logrus.InfoLevel, logg.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logg.Formatter)
}
