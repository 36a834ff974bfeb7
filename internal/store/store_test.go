package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/coffee-shop/drinks-api/internal/config"
	"github.com/coffee-shop/drinks-api/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_ClosesOnMigrateFailure(t *testing.T) {
	testhelpers.SetupLogger(t)

	var opened *Store
	failure := errors.New("schema locked")

	original := migrate
	t.Cleanup(func() { migrate = original })
	migrate = func(s *Store) error {
		opened = s
		return failure
	}

	s, err := Open(config.DatabaseConfig{
		URL:         filepath.Join(t.TempDir(), "drinks.db"),
		AutoMigrate: true,
	})

	assert.Nil(t, s)
	require.ErrorIs(t, err, failure)

	require.NotNil(t, opened)
	sqlDB, err := opened.DB.DB()
	require.NoError(t, err)
	assert.EqualError(t, sqlDB.Ping(), "sql: database is closed")
}

func TestOpen_SkipsMigrate(t *testing.T) {
	testhelpers.SetupLogger(t)

	original := migrate
	t.Cleanup(func() { migrate = original })
	migrate = func(*Store) error {
		t.Error("migrate must not run")
		return nil
	}

	s, err := Open(config.DatabaseConfig{URL: filepath.Join(t.TempDir(), "drinks.db")})
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
