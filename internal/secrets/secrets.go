// Package secrets resolves client secrets from pluggable backends: process
// environment, the OS keyring, and Azure Key Vault.
package secrets

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/pacx-labs/pacx/internal/httpx"
)

// Backend names accepted in profile configuration.
const (
	BackendEnv      = "env"
	BackendKeyring  = "keyring"
	BackendKeyVault = "keyvault"
)

// Spec identifies a secret in a backend.
//
//	env:      Ref is the variable name
//	keyring:  Ref is "SERVICE:USERNAME"
//	keyvault: Ref is "VAULT_URL:SECRET_NAME"
type Spec struct {
	Backend string
	Ref     string
}

// VaultTokenFunc supplies a bearer token scoped to https://vault.azure.net.
// Only the keyvault backend uses it.
type VaultTokenFunc func(ctx context.Context) (string, error)

// Resolver fetches secrets for Specs.
type Resolver struct {
	vaultToken VaultTokenFunc
}

// NewResolver builds a Resolver. vaultToken may be nil when the keyvault
// backend is not in use.
func NewResolver(vaultToken VaultTokenFunc) *Resolver {
	return &Resolver{vaultToken: vaultToken}
}

// Get resolves the secret, returning "" without error when the backend has
// no value (matching the lookup-chain semantics of profile resolution).
func (r *Resolver) Get(ctx context.Context, spec Spec) (string, error) {
	switch strings.ToLower(spec.Backend) {
	case BackendEnv:
		return os.Getenv(spec.Ref), nil
	case BackendKeyring:
		return keyringSecret(spec.Ref)
	case BackendKeyVault:
		return r.keyVaultSecret(ctx, spec.Ref)
	default:
		return "", fmt.Errorf("unknown secret backend %q", spec.Backend)
	}
}

// Store writes a secret into a backend. Only the keyring backend supports
// writes; it backs `ppx auth client --prompt-secret`.
func (r *Resolver) Store(spec Spec, value string) error {
	if strings.ToLower(spec.Backend) != BackendKeyring {
		return fmt.Errorf("secret backend %q does not support storing", spec.Backend)
	}
	service, user, err := splitRef(spec.Ref)
	if err != nil {
		return err
	}
	if err := keyring.Set(service, user, value); err != nil {
		return fmt.Errorf("storing secret in keyring: %w", err)
	}
	return nil
}

func keyringSecret(ref string) (string, error) {
	service, user, err := splitRef(ref)
	if err != nil {
		return "", err
	}
	secret, err := keyring.Get(service, user)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading secret from keyring: %w", err)
	}
	return secret, nil
}

// keyVaultAPIVersion is the Key Vault secrets REST API version.
const keyVaultAPIVersion = "7.4"

func (r *Resolver) keyVaultSecret(ctx context.Context, ref string) (string, error) {
	vaultURL, name, err := splitRef(ref)
	if err != nil {
		return "", err
	}
	if r.vaultToken == nil {
		return "", fmt.Errorf("keyvault backend requires authentication; configure a profile first")
	}

	client := httpx.New(vaultURL, httpx.WithToken(httpx.TokenFunc(r.vaultToken)))
	params := url.Values{}
	params.Set("api-version", keyVaultAPIVersion)
	resp, err := client.Get(ctx, "secrets/"+name, params)
	if err != nil {
		if httpx.IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading secret %q from key vault: %w", name, err)
	}

	var payload struct {
		Value string `json:"value"`
	}
	if err := resp.JSON(&payload); err != nil {
		return "", fmt.Errorf("decoding key vault response: %w", err)
	}
	return payload.Value, nil
}

// splitRef splits "LEFT:RIGHT" at the last colon that is not part of a URL
// scheme, so "https://vault.example.net:mysecret" parses correctly.
func splitRef(ref string) (string, string, error) {
	idx := strings.LastIndex(ref, ":")
	if idx <= 0 || idx == len(ref)-1 {
		return "", "", fmt.Errorf("malformed secret ref %q, want LEFT:RIGHT", ref)
	}
	return ref[:idx], ref[idx+1:], nil
}
