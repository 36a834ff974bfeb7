package testhelpers

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coffee-shop/drinks-api/internal/config"
	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"
)

const (
	TestKeyID    = "test-kid"
	TestAudience = "https://drinks.test"
)

// Issuer is a stand-in identity provider: it publishes a JWKS over HTTP and
// signs tokens with the matching private key.
type Issuer struct {
	Server *httptest.Server
	Key    *jose.JSONWebKey

	fetches atomic.Int32
}

// NewIssuer starts an identity provider that is shut down when the test
// completes.
func NewIssuer(t *testing.T) *Issuer {
	t.Helper()

	issuer := &Issuer{Key: GenerateJWK(t, TestKeyID)}

	issuer.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.well-known/jwks.json":
			issuer.fetches.Add(1)
			w.Header().Set("Content-Type", "application/json")
			err := json.NewEncoder(w).Encode(jose.JSONWebKeySet{
				Keys: []jose.JSONWebKey{issuer.Key.Public()},
			})
			if err != nil {
				t.Errorf("failed to encode key set: %v", err)
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(issuer.Server.Close)

	return issuer
}

// URL is the issuer identifier, as carried in the "iss" claim.
func (i *Issuer) URL() string {
	return i.Server.URL + "/"
}

// KeySetFetches reports how many times the key set has been requested.
func (i *Issuer) KeySetFetches() int {
	return int(i.fetches.Load())
}

// Config returns authorization configuration trusting this issuer.
func (i *Issuer) Config() config.AuthorizationConfig {
	return config.AuthorizationConfig{
		Domain:                  "drinks.test",
		Audience:                TestAudience,
		Algorithms:              []string{"RS256"},
		IssuerURL:               i.URL(),
		JWKSFetchTimeoutSeconds: 5,
	}
}

// Token issues a valid RS256 access token for the default audience granting
// the permissions.
func (i *Issuer) Token(t *testing.T, permissions ...string) string {
	t.Helper()

	return i.Sign(t, Valid(jwt.Claims{
		Issuer:   i.URL(),
		Subject:  "auth0|barista",
		Audience: jwt.Audience{TestAudience},
	}), Permissions(permissions...))
}

// Sign serializes the claims into a token signed by the issuer's key.
func (i *Issuer) Sign(t *testing.T, claims ...any) string {
	t.Helper()

	return SignedToken(t, jose.SigningKey{Algorithm: jose.RS256, Key: i.Key}, claims...)
}

// GenerateJWK creates an RSA signing key identified by kid.
func GenerateJWK(t *testing.T, kid string) *jose.JSONWebKey {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "failed to generate private key")

	return &jose.JSONWebKey{
		Key:       privateKey,
		KeyID:     kid,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}
}

// SignedToken serializes the claims into a compact JWS using key.
func SignedToken(t *testing.T, key jose.SigningKey, claims ...any) string {
	t.Helper()

	signer, err := jose.NewSigner(key, (&jose.SignerOptions{}).WithType("JWT"))
	require.NoError(t, err)

	builder := jwt.Signed(signer)
	for _, claim := range claims {
		builder = builder.Claims(claim)
	}

	token, err := builder.Serialize()
	require.NoError(t, err)

	return token
}

// HS256Token signs the claims with a shared secret, identifying the key as
// kid.
func HS256Token(t *testing.T, kid string, claims ...any) string {
	t.Helper()

	secret := make([]byte, 64)
	_, err := rand.Read(secret)
	require.NoError(t, err)

	return SignedToken(t, jose.SigningKey{
		Algorithm: jose.HS256,
		Key:       jose.JSONWebKey{Key: secret, KeyID: kid},
	}, claims...)
}

// Valid sets the time based claims so the token is currently valid.
func Valid(claims jwt.Claims) jwt.Claims {
	now := time.Now().UTC()

	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now.Add(-1 * time.Minute))
	claims.Expiry = jwt.NewNumericDate(now.Add(1 * time.Minute))

	return claims
}

// Expired sets the time based claims so the token expired a minute ago.
func Expired(claims jwt.Claims) jwt.Claims {
	now := time.Now().UTC()

	claims.IssuedAt = jwt.NewNumericDate(now.Add(-10 * time.Minute))
	claims.NotBefore = jwt.NewNumericDate(now.Add(-10 * time.Minute))
	claims.Expiry = jwt.NewNumericDate(now.Add(-1 * time.Minute))

	return claims
}

// Permissions is the custom claim granting permissions.
func Permissions(permissions ...string) map[string]any {
	if permissions == nil {
		permissions = []string{}
	}
	return map[string]any{"permissions": permissions}
}
