package jwt

import (
	"net/http"
	"strings"
)

// ExtractBearerToken returns the credential from an Authorization header
// value of the form "Bearer <token>". The scheme is matched without regard
// to case; the token is returned verbatim.
func ExtractBearerToken(header string) (string, error) {
	parts := strings.Fields(header)

	switch {
	case len(parts) == 0:
		return "", errHeaderMissing
	case !strings.EqualFold(parts[0], "bearer"):
		return "", errNotBearer
	case len(parts) == 1:
		return "", errTokenNotFound
	case len(parts) > 2:
		return "", errNotBearerToken
	}

	return parts[1], nil
}

// TokenExtractor reads the bearer token from the request. It satisfies
// jwtmiddleware.TokenExtractor; unlike the library default it never reports
// a missing header as an empty token, so every failure carries its own code.
func TokenExtractor(r *http.Request) (string, error) {
	return ExtractBearerToken(r.Header.Get("Authorization"))
}
