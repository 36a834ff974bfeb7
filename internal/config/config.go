package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Authorization AuthorizationConfig
	Database      DatabaseConfig
	Server        ServerConfig
	Observe       ObserveConfig
}

type ServerConfig struct {
	Port                   int `env:"PORT, default=8080"`
	ShutdownTimeoutSeconds int `env:"SERVER_SHUTDOWN_TIMEOUT_SECS, default=25"`

	OutgoingHttpMaxIdleConns    int `env:"SERVER_OUTGOING_MAX_IDLE_CONNS, default=100"`
	OutgoingHttpMaxConnsPerHost int `env:"SERVER_OUTGOING_MAX_CONNS_PER_HOST, default=20"`
}

type AuthorizationConfig struct {
	Domain     string   `env:"AUTH0_DOMAIN, required"`
	Audience   string   `env:"API_AUDIENCE, required"`
	Algorithms []string `env:"JWT_ALGORITHMS, default=RS256"`

	// IssuerURL and JWKSURL are derived from Domain unless overridden. The
	// overrides exist for local identity providers and for testing.
	IssuerURL string `env:"JWT_ISSUER_URL"`
	JWKSURL   string `env:"JWT_JWKS_URL"`

	JWKSFetchTimeoutSeconds int `env:"JWT_JWKS_FETCH_TIMEOUT_SECS, default=5"`
	JWKSCacheTTLSeconds     int `env:"JWT_JWKS_CACHE_TTL_SECS, default=0"`
	AllowedClockSkewSeconds int `env:"JWT_ALLOWED_CLOCK_SKEW_SECS, default=0"`
}

// Issuer is the value the "iss" claim must carry: https://{domain}/ unless
// explicitly overridden.
func (c AuthorizationConfig) Issuer() string {
	if c.IssuerURL != "" {
		return c.IssuerURL
	}
	return fmt.Sprintf("https://%s/", c.Domain)
}

// KeySetURL is the location of the issuer's published JSON Web Key Set.
func (c AuthorizationConfig) KeySetURL() (string, error) {
	if c.JWKSURL != "" {
		return c.JWKSURL, nil
	}

	issuer, err := url.Parse(c.Issuer())
	if err != nil {
		return "", fmt.Errorf("invalid issuer URL %q: %w", c.Issuer(), err)
	}

	if !strings.HasSuffix(issuer.Path, "/") {
		issuer.Path += "/"
	}

	return issuer.JoinPath(".well-known", "jwks.json").String(), nil
}

func (c AuthorizationConfig) JWKSFetchTimeout() time.Duration {
	return time.Duration(c.JWKSFetchTimeoutSeconds) * time.Second
}

func (c AuthorizationConfig) JWKSCacheTTL() time.Duration {
	return time.Duration(c.JWKSCacheTTLSeconds) * time.Second
}

func (c AuthorizationConfig) AllowedClockSkew() time.Duration {
	return time.Duration(c.AllowedClockSkewSeconds) * time.Second
}

type DatabaseConfig struct {
	// URL is either a postgres:// connection URL or a path to a SQLite file.
	URL         string `env:"DATABASE_URL, default=database.db"`
	AutoMigrate bool   `env:"DATABASE_AUTO_MIGRATE, default=true"`
	Reset       bool   `env:"DATABASE_RESET, default=false"`
	SeedFile    string `env:"DATABASE_SEED_FILE"`
}

type ObserveConfig struct {
	Enabled                    bool   `env:"OBSERVE_ENABLED, default=false"`
	MetricsEnabled             bool   `env:"OBSERVE_METRICS_ENABLED, default=true"`
	Type                       string `env:"OBSERVE_TYPE, default=grpc"`
	ServiceName                string `env:"OBSERVE_SERVICE_NAME, default=drinks-api"`
	TraceBatchTimeoutSeconds   int    `env:"OBSERVE_TRACE_BATCH_TIMEOUT_SECS, default=20"`
	MetricReadIntervalSeconds  int    `env:"OBSERVE_METRIC_READ_INTERVAL_SECS, default=60"`
	HttpTransportEnabled       bool   `env:"OBSERVE_HTTP_TRANSPORT_ENABLED, default=true"`
	HttpConnectionTraceEnabled bool   `env:"OBSERVE_CONNECTION_TRACE_ENABLED, default=false"`
}

func Load(ctx context.Context) (cfg Config, err error) {
	err = envconfig.Process(ctx, &cfg)
	return
}
