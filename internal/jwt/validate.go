package jwt

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/rs/zerolog"
)

// Any algorithm jose understands is accepted while reading the header, so
// that a disallowed algorithm is reported by this package rather than
// failing as an unparseable token.
var headerAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.EdDSA,
	jose.HS256, jose.HS384, jose.HS512,
}

var symmetricAlgorithms = []jose.SignatureAlgorithm{jose.HS256, jose.HS384, jose.HS512}

// Validator verifies access tokens issued by a single issuer for a single
// audience, using keys supplied by a KeyResolver.
type Validator struct {
	keys       KeyResolver
	issuer     string
	audience   string
	algorithms []jose.SignatureAlgorithm
	leeway     time.Duration
	now        func() time.Time
}

type ValidatorOption func(*Validator)

// WithAllowedClockSkew tolerates differences between the issuer's clock and
// ours when checking time based claims.
func WithAllowedClockSkew(skew time.Duration) ValidatorOption {
	return func(v *Validator) {
		v.leeway = skew
	}
}

// WithClock replaces the time source used to check expiry.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		v.now = now
	}
}

// NewValidator creates a token validator. Only asymmetric algorithms may be
// configured: keys come from the issuer's published set, never a shared
// secret.
func NewValidator(keys KeyResolver, issuer, audience string, algorithms []string, opts ...ValidatorOption) (*Validator, error) {
	if keys == nil {
		return nil, errors.New("a key resolver is required")
	}
	if issuer == "" {
		return nil, errors.New("an issuer is required")
	}
	if audience == "" {
		return nil, errors.New("an audience is required")
	}
	if len(algorithms) == 0 {
		algorithms = []string{string(validator.RS256)}
	}

	allowed := make([]jose.SignatureAlgorithm, 0, len(algorithms))
	for _, a := range algorithms {
		alg := jose.SignatureAlgorithm(a)
		if !slices.Contains(headerAlgorithms, alg) {
			return nil, fmt.Errorf("unsupported signature algorithm: %s", a)
		}
		if slices.Contains(symmetricAlgorithms, alg) {
			return nil, fmt.Errorf("symmetric signature algorithm not permitted: %s", a)
		}
		allowed = append(allowed, alg)
	}

	v := &Validator{
		keys:       keys,
		issuer:     issuer,
		audience:   audience,
		algorithms: allowed,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v, nil
}

// ValidateToken verifies the token's header, signature and registered
// claims, returning *validator.ValidatedClaims carrying PermissionClaims. It
// satisfies jwtmiddleware.ValidateToken.
//
// Failures are returned as *AuthError, except when the key set cannot be
// retrieved, which is reported as *KeySetError.
func (v *Validator) ValidateToken(ctx context.Context, token string) (interface{}, error) {
	log := zerolog.Ctx(ctx)

	tok, err := jwt.ParseSigned(token, headerAlgorithms)
	if err != nil || len(tok.Headers) == 0 {
		log.Debug().Err(err).Msg("token header could not be parsed")
		return nil, errInvalidHeader
	}
	header := tok.Headers[0]

	// refuse shared-secret tokens before consulting the issuer
	if jose.SignatureAlgorithm(header.Algorithm) == jose.HS256 {
		return nil, errInvalidHeader
	}

	keys, err := v.keys.KeySet(ctx)
	if err != nil {
		return nil, err
	}

	key, ok := keys.Lookup(header.KeyID)
	if !ok {
		log.Debug().Str("kid", header.KeyID).Msg("no signing key matches token")
		return nil, errKeyNotFound
	}

	if !slices.Contains(v.algorithms, jose.SignatureAlgorithm(header.Algorithm)) {
		log.Debug().Str("alg", header.Algorithm).Msg("token algorithm not accepted")
		return nil, errUnparseable
	}

	registered := jwt.Claims{}
	permissions := &PermissionClaims{}

	err = tok.Claims(key.Key, &registered, permissions)
	if err != nil {
		log.Debug().Err(err).Msg("token signature or payload rejected")
		return nil, errUnparseable
	}

	if err := v.validateRegistered(registered); err != nil {
		return nil, err
	}

	if err := permissions.Validate(ctx); err != nil {
		log.Debug().Err(err).Msg("custom claims rejected")
		return nil, errInvalidClaims
	}

	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:    registered.Issuer,
			Subject:   registered.Subject,
			Audience:  registered.Audience,
			Expiry:    unix(registered.Expiry),
			NotBefore: unix(registered.NotBefore),
			IssuedAt:  unix(registered.IssuedAt),
			ID:        registered.ID,
		},
		CustomClaims: permissions,
	}, nil
}

// validateRegistered reports expiry ahead of any issuer or audience mismatch.
// A future "iat" is not a failure: only "exp" and "nbf" bound the token's
// lifetime.
func (v *Validator) validateRegistered(claims jwt.Claims) error {
	// an access token without an expiry is never accepted
	if claims.Expiry == nil {
		return errInvalidClaims
	}

	now := v.now()
	if !now.Add(-v.leeway).Before(claims.Expiry.Time()) {
		return errTokenExpired
	}

	claims.IssuedAt = nil

	err := claims.ValidateWithLeeway(jwt.Expected{
		Issuer:      v.issuer,
		AnyAudience: jwt.Audience{v.audience},
		Time:        now,
	}, v.leeway)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrExpired):
		return errTokenExpired
	default:
		return errInvalidClaims
	}
}

func unix(d *jwt.NumericDate) int64 {
	if d == nil {
		return 0
	}
	return d.Time().Unix()
}
