package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/attendance-backend/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver     string
	Postgres   PostgresConfig
	SQLitePath string
}

// Open connects to the configured driver and runs migrations.
func Open(logg *logger.Logger, cfg Config) (*gorm.DB, error) {
	var (
		theDB *gorm.DB
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverPostgres:
		var pg *PostgresService
		pg, err = NewPostgresService(logg, cfg.Postgres)
		if err == nil {
			theDB = pg.DB()
		}
	case DriverSQLite:
		var lite *SQLiteService
		lite, err = NewSQLiteService(logg, cfg.SQLitePath)
		if err == nil {
			theDB = lite.DB()
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := AutoMigrateAll(theDB); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return theDB, nil
}
