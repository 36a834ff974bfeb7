package jwt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4"
)

// Limit on the size of a key set document accepted from the issuer.
const maxKeySetBytes = 1 << 20

// KeyResolver supplies the issuer's current signing keys.
type KeyResolver interface {
	KeySet(ctx context.Context) (KeySet, error)
}

// KeyResolverFunc adapts a function to the KeyResolver interface.
type KeyResolverFunc func(ctx context.Context) (KeySet, error)

func (f KeyResolverFunc) KeySet(ctx context.Context) (KeySet, error) {
	return f(ctx)
}

// KeySet maps key identifiers to the public key material published by the
// issuer. Entries are untrusted until a signature verifies against them.
type KeySet map[string]jose.JSONWebKey

// Lookup returns the key for the supplied identifier.
func (s KeySet) Lookup(kid string) (jose.JSONWebKey, bool) {
	key, ok := s[kid]
	return key, ok
}

// NewKeySet indexes a decoded JWKS document by key ID. Keys without an ID
// can never be selected and are dropped.
func NewKeySet(jwks jose.JSONWebKeySet) KeySet {
	set := make(KeySet, len(jwks.Keys))
	for _, key := range jwks.Keys {
		if key.KeyID == "" {
			continue
		}
		set[key.KeyID] = key
	}
	return set
}

// RemoteKeys fetches the key set from the issuer's JWKS endpoint on every
// call.
type RemoteKeys struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// NewRemoteKeys creates a resolver for the JWKS document at url. A nil client
// uses http.DefaultClient; a non-positive timeout leaves the request bounded
// only by the caller's context.
func NewRemoteKeys(url string, client *http.Client, timeout time.Duration) *RemoteKeys {
	if client == nil {
		client = http.DefaultClient
	}

	return &RemoteKeys{
		url:     url,
		client:  client,
		timeout: timeout,
	}
}

func (k *RemoteKeys) KeySet(ctx context.Context) (KeySet, error) {
	if k.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return nil, k.fail(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, k.fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, k.fail(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var jwks jose.JSONWebKeySet
	err = json.NewDecoder(io.LimitReader(resp.Body, maxKeySetBytes)).Decode(&jwks)
	if err != nil {
		return nil, k.fail(fmt.Errorf("malformed key set: %w", err))
	}

	return NewKeySet(jwks), nil
}

func (k *RemoteKeys) fail(err error) error {
	return &KeySetError{URL: k.url, Err: err}
}
