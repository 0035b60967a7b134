package database

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go-pos-engine/internal/config"
	"go-pos-engine/internal/models"
)

const connectAttempts = 5

// Connect opens the SQL endpoint selected for this session. MySQL gets a few
// retries so the service can start alongside a database container.
func Connect(cfg config.Database, log logrus.FieldLogger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverMySQL:
		dialector = mysql.Open(cfg.DSN)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, errors.Errorf("driver %q has no SQL endpoint", cfg.Driver)
	}

	gormLogger := logger.Default.LogMode(logger.Silent)
	if cfg.LogMode {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < connectAttempts; i++ {
		db, err = gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
		if err == nil {
			break
		}
		log.WithField("attempt", i+1).Warnf("failed to connect to database, retrying in 2 seconds: %v", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s after %d attempts", cfg.Driver, connectAttempts)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql db")
	}
	if cfg.Driver == config.DriverSQLite {
		// one writer keeps sqlite from returning SQLITE_BUSY on concurrent CAS writes
		sqlDB.SetMaxOpenConns(1)
		_, _ = sqlDB.Exec("PRAGMA foreign_keys = ON;")
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	log.WithField("driver", cfg.Driver).Info("connected to database")
	return db, nil
}

// Migrate syncs the schema for every table the engine owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Promotion{},
		&models.ProductPromotion{},
		&models.Sale{},
		&models.StockMovement{},
		&models.AuditLog{},
		&models.Incident{},
	)
}
