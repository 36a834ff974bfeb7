// Command create mints access tokens for local development, signed by a key
// from a private JWKS file. Serve the matching public key set to the API
// through JWT_JWKS_URL.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/coffee-shop/drinks-api/internal/jwt"
	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/spf13/cobra"
)

type tokenOptions struct {
	jwksPath    string
	kid         string
	issuer      string
	audience    string
	subject     string
	permissions []string
	ttl         time.Duration
}

func main() {
	cobra.CheckErr(newRootCommand().Execute())
}

func newRootCommand() *cobra.Command {
	opts := tokenOptions{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a signed access token for the drinks API",
		Long: `Signs an RS256 access token with a key from a private JWKS file. The token
carries the supplied permissions and is printed to stdout.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateToken(cmd.OutOrStdout(), opts, time.Now())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.jwksPath, "jwks", ".development/keys/jwks.private.json", "Path to the private JWKS file")
	flags.StringVar(&opts.kid, "kid", "test-key", "ID of the signing key in the JWKS")
	flags.StringVar(&opts.issuer, "issuer", "https://local.testing/", "Token issuer (iss)")
	flags.StringVar(&opts.audience, "audience", "drinks", "Token audience (aud)")
	flags.StringVar(&opts.subject, "subject", "local|developer", "Token subject (sub)")
	flags.StringArrayVar(&opts.permissions, "permission", nil, "Permission to grant; repeat for more than one")
	flags.DurationVar(&opts.ttl, "ttl", time.Hour, "How long the token is valid for")

	cmd.AddCommand(newKeysCommand())

	return cmd
}

func newKeysCommand() *cobra.Command {
	var kid, dir string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Generate a private JWKS and the public key set to serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateKeys(cmd.OutOrStdout(), dir, kid)
		},
	}

	cmd.Flags().StringVar(&kid, "kid", "test-key", "ID of the generated key")
	cmd.Flags().StringVar(&dir, "out", ".development/keys", "Directory to write jwks.private.json and jwks.json to")

	return cmd
}

func runCreateToken(out io.Writer, opts tokenOptions, now time.Time) error {
	if opts.ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", opts.ttl)
	}

	jwksBytes, err := os.ReadFile(opts.jwksPath)
	if err != nil {
		return fmt.Errorf("error reading jwks: %w", err)
	}

	jwks := jose.JSONWebKeySet{}
	err = json.Unmarshal(jwksBytes, &jwks)
	if err != nil {
		return fmt.Errorf("error loading jwks: %w", err)
	}

	keys := jwks.Key(opts.kid)
	if len(keys) == 0 {
		return fmt.Errorf("key %q not found in %s", opts.kid, opts.jwksPath)
	}
	if keys[0].IsPublic() {
		return fmt.Errorf("key %q is a public key: a private key is required to sign", opts.kid)
	}

	permissions := opts.permissions
	if permissions == nil {
		permissions = []string{}
	}

	token, err := createJWT(&keys[0], validity(josejwt.Claims{
		Audience: josejwt.Audience{opts.audience},
		Subject:  opts.subject,
		Issuer:   opts.issuer,
	}, now, opts.ttl), jwt.PermissionClaims{Permissions: permissions})
	if err != nil {
		return fmt.Errorf("error creating JWT: %w", err)
	}

	_, err = fmt.Fprintln(out, token)
	return err
}

func runCreateKeys(out io.Writer, dir, kid string) error {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return err
	}

	key := jose.JSONWebKey{
		Key:       privateKey,
		KeyID:     kid,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	files := []struct {
		name string
		set  jose.JSONWebKeySet
		perm os.FileMode
	}{
		{"jwks.private.json", jose.JSONWebKeySet{Keys: []jose.JSONWebKey{key}}, 0o600},
		{"jwks.json", jose.JSONWebKeySet{Keys: []jose.JSONWebKey{key.Public()}}, 0o644},
	}

	for _, f := range files {
		b, err := json.MarshalIndent(f.set, "", "  ")
		if err != nil {
			return err
		}

		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, b, f.perm); err != nil {
			return err
		}

		fmt.Fprintf(out, "wrote %s\n", path)
	}

	return nil
}

func createJWT(jwk *jose.JSONWebKey, claims ...any) (string, error) {
	alg := jwk.Algorithm
	if alg == "" {
		alg = string(jose.RS256)
	}

	key := jose.SigningKey{
		Algorithm: jose.SignatureAlgorithm(alg),
		Key:       jwk,
	}

	signer, err := jose.NewSigner(
		key,
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", err
	}

	builder := josejwt.Signed(signer)

	for _, claim := range claims {
		builder = builder.Claims(claim)
	}

	return builder.Serialize()
}

func validity(claims josejwt.Claims, now time.Time, ttl time.Duration) josejwt.Claims {
	now = now.UTC()

	claims.IssuedAt = josejwt.NewNumericDate(now)
	claims.NotBefore = josejwt.NewNumericDate(now.Add(-1 * time.Minute))
	claims.Expiry = josejwt.NewNumericDate(now.Add(ttl))

	return claims
}
