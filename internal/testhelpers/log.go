package testhelpers

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger sends the global logger, and the context logger that falls back
// to it, to the test's output at debug level. Both are reset once the test
// ends.
func SetupLogger(t *testing.T) {
	t.Helper()

	previous := log.Logger
	t.Cleanup(func() {
		log.Logger = previous
		zerolog.DefaultContextLogger = nil
	})

	log.Logger = zerolog.New(zerolog.NewTestWriter(t)).
		Level(zerolog.DebugLevel).
		With().Timestamp().Logger()

	zerolog.DefaultContextLogger = &log.Logger
}
