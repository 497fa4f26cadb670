package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/attendance-backend/internal/platform/logger"
)

// SQLiteService backs local development and tests with a file or in-memory database.
type SQLiteService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSQLiteService(logg *logger.Logger, path string) (*SQLiteService, error) {
	serviceLog := logg.With("service", "SQLiteService")
	path = strings.TrimSpace(path)
	if path == "" {
		path = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite pool: %w", err)
	}
	// sqlite serialises writers; a single connection also keeps in-memory databases shared.
	sqlDB.SetMaxOpenConns(1)

	serviceLog.Info("Opened sqlite database", "path", path)
	return &SQLiteService{db: db, log: serviceLog}, nil
}

func (s *SQLiteService) DB() *gorm.DB { return s.db }
