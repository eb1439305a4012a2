package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"citbif/internal/models"
)

const (
	maxOpenConns    = 20
	maxIdleConns    = 20
	connMaxLifetime = 30 * time.Minute
	slowThreshold   = 200 * time.Millisecond
)

// Open connects to Postgres and sizes the pool. The caller owns the
// returned handle and must Close it.
func Open(dsn string, lg *zap.SugaredLogger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         NewGormLogger(lg, slowThreshold),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Account{},
		&models.AdminProfile{},
		&models.AdminActivity{},
		&models.Session{},
		&models.ActivityRecord{},
	)
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormLogger routes gorm's warnings and errors through zap. Record-not-found
// is a normal outcome on the auth path and is not logged.
type gormLogger struct {
	lg    *zap.SugaredLogger
	level logger.LogLevel
	slow  time.Duration
}

func NewGormLogger(lg *zap.SugaredLogger, slow time.Duration) logger.Interface {
	return &gormLogger{lg: lg.Named("gorm"), level: logger.Warn, slow: slow}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		l.lg.Infof(msg, args...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		l.lg.Warnf(msg, args...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		l.lg.Errorf(msg, args...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		sql, rows := fc()
		l.lg.Errorw("query failed", "error", err, "elapsed", elapsed, "rows", rows, "sql", sql)
	case l.slow > 0 && elapsed > l.slow && l.level >= logger.Warn:
		sql, rows := fc()
		l.lg.Warnw("slow query", "elapsed", elapsed, "rows", rows, "sql", sql)
	case l.level >= logger.Info:
		sql, rows := fc()
		l.lg.Debugw("query", "elapsed", elapsed, "rows", rows, "sql", sql)
	}
}
