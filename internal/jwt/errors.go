package jwt

import (
	"fmt"
	"net/http"
)

// Error codes carried by AuthError. These are part of the API contract and
// are rendered verbatim into the response body.
const (
	CodeHeaderMissing = "authorization_header_missing"
	CodeInvalidHeader = "invalid_header"
	CodeTokenExpired  = "token_expired"
	CodeInvalidClaims = "invalid_claims"
	CodeUnauthorised  = "unauthorised"
	CodeKeyNotFound   = "key_not_found"

	// CodeKeySetUnavailable is not an AuthError code: it is rendered for a
	// KeySetError, when the identity provider cannot be consulted at all.
	CodeKeySetUnavailable = "key_set_unavailable"
)

// AuthError is raised for every authentication and authorization failure. It
// is never retried: the HTTP layer renders it as {"code", "description"} with
// StatusCode.
type AuthError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	StatusCode  int    `json:"-"`
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func unauthorized(code, description string) *AuthError {
	return &AuthError{
		Code:        code,
		Description: description,
		StatusCode:  http.StatusUnauthorized,
	}
}

var (
	errHeaderMissing   = unauthorized(CodeHeaderMissing, "Authorization header is expected")
	errNotBearer       = unauthorized(CodeInvalidHeader, "Authorization header must start with Bearer")
	errTokenNotFound   = unauthorized(CodeInvalidHeader, "Token not found")
	errNotBearerToken  = unauthorized(CodeInvalidHeader, "Authorization header must be Bearer token")
	errInvalidHeader   = unauthorized(CodeInvalidHeader, "Invalid header. Use an RS256 signed JWT Access Token")
	errUnparseable     = unauthorized(CodeInvalidHeader, "Unable to parse authentication token.")
	errTokenExpired    = unauthorized(CodeTokenExpired, "Token is expired")
	errInvalidClaims   = unauthorized(CodeInvalidClaims, "Incorrect claims, please check the audience and issuer.")
	errKeyNotFound     = unauthorized(CodeKeyNotFound, "Unable to find appropriate key")
	errMissingRequired = unauthorized(CodeUnauthorised, "Required permissions not available in the token")
)

// KeySetError reports that the signing key set could not be retrieved or
// decoded. It says nothing about the caller's credentials and is rendered as
// a service failure rather than a 401.
type KeySetError struct {
	URL string
	Err error
}

func (e *KeySetError) Error() string {
	return fmt.Sprintf("signing key set unavailable from %s: %v", e.URL, e.Err)
}

func (e *KeySetError) Unwrap() error {
	return e.Err
}
