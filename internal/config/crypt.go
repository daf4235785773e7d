package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pacx-labs/pacx/internal/branding"
)

// ErrEncryptedConfig is returned when an encrypted config is read without
// the encryption key present.
var ErrEncryptedConfig = errors.New("encrypted config detected but PACX_CONFIG_ENCRYPTION_KEY is not set")

// The __pacx_encrypted__ marker key is stable across PACX releases; existing
// config files depend on it.
type encryptedValue struct {
	Marker bool   `json:"__pacx_encrypted__"`
	Value  string `json:"value"`
}

// cipherBox encrypts sensitive config values with AES-256-GCM. A nil aead
// means no key is configured and values pass through as plaintext.
type cipherBox struct {
	aead cipher.AEAD
}

// newCipherBox derives the AES key from the raw key material: used directly
// when it base64-decodes to 32 bytes, otherwise the SHA-256 of it.
func newCipherBox(rawKey string) (*cipherBox, error) {
	if rawKey == "" {
		return &cipherBox{}, nil
	}
	key := deriveKey(rawKey)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing config encryption: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initializing config encryption: %w", err)
	}
	return &cipherBox{aead: aead}, nil
}

func deriveKey(rawKey string) []byte {
	if decoded, err := base64.URLEncoding.DecodeString(rawKey); err == nil && len(decoded) == 32 {
		return decoded
	}
	digest := sha256.Sum256([]byte(rawKey))
	return digest[:]
}

func (c *cipherBox) enabled() bool { return c.aead != nil }

// encryptValue renders a sensitive string for disk: an encrypted envelope
// when a key is configured, a plain JSON string otherwise. Empty strings are
// omitted entirely.
func (c *cipherBox) encryptValue(plain string) (json.RawMessage, error) {
	if plain == "" {
		return nil, nil
	}
	if !c.enabled() {
		return json.Marshal(plain)
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	env := encryptedValue{
		Marker: true,
		Value:  base64.URLEncoding.EncodeToString(sealed),
	}
	return json.Marshal(env)
}

// decryptValue reverses encryptValue. Plaintext strings always pass through
// so a key can be introduced to an existing plaintext config.
func (c *cipherBox) decryptValue(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain, nil
	}

	var env encryptedValue
	if err := json.Unmarshal(raw, &env); err != nil || !env.Marker {
		return "", fmt.Errorf("malformed encrypted config value")
	}
	if !c.enabled() {
		return "", ErrEncryptedConfig
	}
	sealed, err := base64.URLEncoding.DecodeString(env.Value)
	if err != nil {
		return "", fmt.Errorf("malformed encrypted config value: %w", err)
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", fmt.Errorf("malformed encrypted config value")
	}
	nonce, ct := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	decrypted, err := c.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting config value (check %s): %w",
			branding.EnvVar("CONFIG_ENCRYPTION_KEY"), err)
	}
	return string(decrypted), nil
}
