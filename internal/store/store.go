// Package store persists the drinks catalog with gorm, on PostgreSQL or
// SQLite depending on the configured URL.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coffee-shop/drinks-api/internal/config"
	"github.com/coffee-shop/drinks-api/internal/drinks"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	DB *gorm.DB
}

// Open connects to the database named by cfg.URL: postgres:// and
// postgresql:// URLs use PostgreSQL, anything else is a SQLite file path.
// When configured, the schema is reset and/or migrated before returning.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	gdb, err := gorm.Open(dialector(cfg.URL), &gorm.Config{
		Logger: logger.New(gormWriter{}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	s := &Store{DB: gdb}

	if cfg.Reset {
		log.Warn().Msg("database reset requested: dropping all drinks")
		if err := s.DB.Migrator().DropTable(&DrinkModel{}); err != nil {
			return nil, errors.Join(fmt.Errorf("drop drinks table: %w", err), s.Close())
		}
	}

	if cfg.AutoMigrate || cfg.Reset {
		if err := migrate(s); err != nil {
			return nil, errors.Join(err, s.Close())
		}
	}

	return s, nil
}

var migrate = (*Store).Migrate

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	if err := s.DB.AutoMigrate(&DrinkModel{}); err != nil {
		return fmt.Errorf("migrate drinks table: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Seed inserts the supplied drinks only when the catalog is empty, so that
// restarts do not duplicate or overwrite data. It reports how many drinks
// were inserted.
func (s *Store) Seed(ctx context.Context, seed []drinks.Drink) (int, error) {
	inserted := 0

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&DrinkModel{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		for _, d := range seed {
			model, err := modelFromDrink(d)
			if err != nil {
				return err
			}
			model.ID = 0
			if err := tx.Create(&model).Error; err != nil {
				return fmt.Errorf("seed %q: %w", d.Title, err)
			}
			inserted++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

// gormWriter sends gorm's log output (slow queries and errors only, given
// the configured level) to the application logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	log.Warn().Str("component", "gorm").Msgf(format, args...)
}

func dialector(url string) gorm.Dialector {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return postgres.Open(url)
	}
	return sqlite.Open(url)
}
