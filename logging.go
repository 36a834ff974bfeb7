package main

import (
	"io"
	"net/http"
	"os"
	"runtime/debug"
	"strings"

	"github.com/coffee-shop/drinks-api/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func configureLogging() {
	// The global level is left wide open so that the audit level, and the
	// OpenTelemetry bridge, are governed only by each logger's own level.
	zerolog.SetGlobalLevel(zerolog.Level(-128))

	log.Logger = newLogger(os.Getenv, os.Stdout)
	zerolog.DefaultContextLogger = &log.Logger
}

// newLogger writes JSON at info level by default. ENV=development switches to
// console output at debug, and LOG_LEVEL overrides either when it names a
// known level.
func newLogger(getenv func(string) string, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel

	if getenv("ENV") == "development" {
		out = zerolog.ConsoleWriter{Out: out}
		level = zerolog.DebugLevel
	}

	var invalidLevel string
	if name := getenv("LOG_LEVEL"); name != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(name))
		if err == nil && parsed != zerolog.NoLevel {
			level = parsed
		} else {
			invalidLevel = name
		}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()

	if invalidLevel != "" {
		logger.Warn().Str("LOG_LEVEL", invalidLevel).Stringer("using", level).Msg("unknown log level ignored")
	}

	return logger
}

// logBuildInfo records the VCS and toolchain settings embedded at build time.
func logBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	ev := log.Info().Str("goVersion", info.GoVersion).Str("module", info.Main.Path)
	for _, setting := range info.Settings {
		switch {
		case strings.HasPrefix(setting.Key, "vcs."),
			strings.HasPrefix(setting.Key, "GO"),
			setting.Key == "CGO_ENABLED":
			ev = ev.Str(setting.Key, setting.Value)
		}
	}

	ev.Msg("build information")
}

// configureHttpTransport sizes the connection pool used for outgoing
// requests, chiefly key set fetches.
func configureHttpTransport(cfg config.ServerConfig) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = cfg.OutgoingHttpMaxIdleConns
	t.MaxConnsPerHost = cfg.OutgoingHttpMaxConnsPerHost
	return t
}
