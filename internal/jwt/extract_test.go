package jwt

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		name        string
		header      string
		token       string
		code        string
		description string
	}{
		{
			name:        "missing",
			header:      "",
			code:        CodeHeaderMissing,
			description: "Authorization header is expected",
		},
		{
			name:        "whitespace only",
			header:      "   ",
			code:        CodeHeaderMissing,
			description: "Authorization header is expected",
		},
		{
			name:        "wrong scheme",
			header:      "Token abc.def.ghi",
			code:        CodeInvalidHeader,
			description: "Authorization header must start with Bearer",
		},
		{
			name:        "wrong scheme without credential",
			header:      "Basic",
			code:        CodeInvalidHeader,
			description: "Authorization header must start with Bearer",
		},
		{
			name:        "no token",
			header:      "Bearer",
			code:        CodeInvalidHeader,
			description: "Token not found",
		},
		{
			name:        "extra segment",
			header:      "Bearer abc def",
			code:        CodeInvalidHeader,
			description: "Authorization header must be Bearer token",
		},
		{
			name:   "valid",
			header: "Bearer abc.def.ghi",
			token:  "abc.def.ghi",
		},
		{
			name:   "scheme is case insensitive",
			header: "bEaReR abc.def.ghi",
			token:  "abc.def.ghi",
		},
		{
			name:   "surrounding whitespace",
			header: "  Bearer   abc.def.ghi ",
			token:  "abc.def.ghi",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := ExtractBearerToken(tc.header)

			if tc.code == "" {
				require.NoError(t, err)
				assert.Equal(t, tc.token, token)
				return
			}

			assert.Empty(t, token)
			assertAuthError(t, err, tc.code, tc.description)
		})
	}
}

func TestTokenExtractor(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "/drinks-detail", nil)
	require.NoError(t, err)

	_, err = TokenExtractor(req)
	assertAuthError(t, err, CodeHeaderMissing, "Authorization header is expected")

	req.Header.Set("Authorization", "Bearer the-token")
	token, err := TokenExtractor(req)
	require.NoError(t, err)
	assert.Equal(t, "the-token", token)
}

func assertAuthError(t *testing.T, err error, code, description string) {
	t.Helper()

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, code, authErr.Code)
	if description != "" {
		assert.Equal(t, description, authErr.Description)
	}
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
}
