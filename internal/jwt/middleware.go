package jwt

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/coffee-shop/drinks-api/internal/audit"
	"github.com/coffee-shop/drinks-api/internal/config"
	"github.com/rs/zerolog"
)

// Authorizer produces per-route middleware that authenticates the bearer
// token and requires a permission of it. It holds no per-request state.
type Authorizer struct {
	checkJWT     func(http.Handler) http.Handler
	errorHandler jwtmiddleware.ErrorHandler
}

type options struct {
	errorHandler  jwtmiddleware.ErrorHandler
	keys          KeyResolver
	client        *http.Client
	validatorOpts []ValidatorOption
}

type Option func(*options)

// WithErrorHandler replaces the handler that renders authentication and
// authorization failures.
func WithErrorHandler(h jwtmiddleware.ErrorHandler) Option {
	return func(o *options) {
		o.errorHandler = h
	}
}

// WithKeyResolver supplies signing keys from somewhere other than the
// configured JWKS URL.
func WithKeyResolver(keys KeyResolver) Option {
	return func(o *options) {
		o.keys = keys
	}
}

// WithHTTPClient sets the client used to fetch the key set.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithValidatorOptions passes options through to the token validator.
func WithValidatorOptions(opts ...ValidatorOption) Option {
	return func(o *options) {
		o.validatorOpts = append(o.validatorOpts, opts...)
	}
}

// Middleware configures token verification for the issuer and audience in
// cfg. Use Require on the result to guard individual routes.
func Middleware(cfg config.AuthorizationConfig, opts ...Option) (*Authorizer, error) {
	o := options{
		errorHandler: ErrorHandler,
	}
	for _, opt := range opts {
		opt(&o)
	}

	keys := o.keys
	if keys == nil {
		keySetURL, err := cfg.KeySetURL()
		if err != nil {
			return nil, err
		}

		keys = NewRemoteKeys(keySetURL, o.client, cfg.JWKSFetchTimeout())

		if ttl := cfg.JWKSCacheTTL(); ttl > 0 {
			cached, err := CachedKeys(ttl)
			if err != nil {
				return nil, fmt.Errorf("key set cache configuration failed: %w", err)
			}
			keys = cached(keys)
		}
	}

	validatorOpts := append(
		[]ValidatorOption{WithAllowedClockSkew(cfg.AllowedClockSkew())},
		o.validatorOpts...,
	)

	tokenValidator, err := NewValidator(keys, cfg.Issuer(), cfg.Audience, cfg.Algorithms, validatorOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the validator: %w", err)
	}

	checker := jwtmiddleware.New(
		tokenValidator.ValidateToken,
		jwtmiddleware.WithTokenExtractor(TokenExtractor),
		jwtmiddleware.WithErrorHandler(o.errorHandler),
	)

	return &Authorizer{
		checkJWT:     checker.CheckJWT,
		errorHandler: o.errorHandler,
	}, nil
}

// Require returns middleware that admits the request only when it carries a
// valid token granting permission. The validated claims are available to the
// wrapped handler through ClaimsFromContext. An empty permission admits any
// caller with a valid token.
func (a *Authorizer) Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return a.checkJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claims := ClaimsFromContext(ctx)
			permissions := PermissionClaimsFromContext(ctx)

			entry := audit.Log(ctx)
			entry.RequiredPermission = permission
			if claims != nil {
				entry.AuthSubject = claims.RegisteredClaims.Subject
				entry.AuthIssuer = claims.RegisteredClaims.Issuer
				entry.AuthAudience = claims.RegisteredClaims.Audience
				entry.AuthExpirySecs = claims.RegisteredClaims.Expiry
			}
			if permissions != nil {
				entry.Permissions = permissions.Permissions
			}

			if err := CheckPermissions(permission, permissions); err != nil {
				a.errorHandler(w, r, err)
				return
			}

			entry.Authorized = true

			next.ServeHTTP(w, r)
		}))
	}
}

// ErrorHandler renders failures from the middleware chain. Authentication
// and authorization failures are written as {"code", "description"} with the
// status they carry; an unreachable key set is a 503.
func ErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	audit.Log(r.Context()).AddError(err.Error())

	var authErr *AuthError
	var keySetErr *KeySetError

	switch {
	case errors.As(err, &authErr):
		writeAuthError(w, authErr)

	case errors.As(err, &keySetErr):
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("signing key set could not be retrieved")
		writeAuthError(w, &AuthError{
			Code:        CodeKeySetUnavailable,
			Description: "Unable to retrieve signing keys",
			StatusCode:  http.StatusServiceUnavailable,
		})

	case errors.Is(err, jwtmiddleware.ErrJWTMissing):
		writeAuthError(w, errHeaderMissing)

	default:
		writeAuthError(w, errUnparseable)
	}
}

// LogErrorHandler logs the failure before rendering it with ErrorHandler.
func LogErrorHandler() jwtmiddleware.ErrorHandler {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		zerolog.Ctx(r.Context()).Info().Err(err).Msg("request authorization failed")

		ErrorHandler(w, r, err)
	}
}

func writeAuthError(w http.ResponseWriter, e *AuthError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)

	_ = json.NewEncoder(w).Encode(e)
}
