// Package database opens the GORM connection for the configured driver.
package database

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nanafox/tiny-cart/internal/models"
	"github.com/nanafox/tiny-cart/pkg/logger"
)

// Open connects to dsn with the named driver ("postgres" or "sqlite").
// Driver errors are translated into GORM's portable errors. SQL logging goes
// through the application logger at the given level.
func Open(driver, dsn string, level gormlogger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(SQLiteDSN(dsn))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(zap.NewStdLog(logger.Log), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	return db, nil
}

// sqliteDefaults are applied to every SQLite DSN unless already set.
// Immediate transactions take the write lock at BEGIN, so concurrent orders
// queue on the busy timeout instead of failing on a lock upgrade.
var sqliteDefaults = []struct{ key, value string }{
	{"_txlock", "immediate"},
	{"_busy_timeout", "5000"},
	{"_foreign_keys", "1"},
}

// SQLiteDSN returns dsn with the default connection options added.
func SQLiteDSN(dsn string) string {
	base, rawQuery, _ := strings.Cut(dsn, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return dsn
	}

	var extra []string
	for _, opt := range sqliteDefaults {
		if !query.Has(opt.key) {
			extra = append(extra, opt.key+"="+opt.value)
		}
	}
	if len(extra) == 0 {
		return dsn
	}
	if rawQuery != "" {
		extra = append([]string{rawQuery}, extra...)
	}
	return base + "?" + strings.Join(extra, "&")
}

// Migrate creates or updates the tables for every model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}
