package storage

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// Account passwords must be recoverable for automation login, so they are
// sealed with XChaCha20-Poly1305 rather than hashed. Sealed values carry a
// version prefix so plaintext rows written before a key was configured can
// still be read.
const sealedPrefix = "sealed:v1:"

// credentialSealer seals and opens account credential columns. A nil sealer
// (no key configured) passes values through unchanged.
type credentialSealer struct {
	key []byte
}

// newCredentialSealer parses a base64-encoded 32-byte key. An empty key
// returns a nil sealer: plaintext passthrough for development setups.
func newCredentialSealer(encodedKey string) (*credentialSealer, error) {
	if encodedKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("credentials key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &credentialSealer{key: key}, nil
}

// seal encrypts a secret for storage. Empty secrets stay empty.
func (c *credentialSealer) seal(secret string) (string, error) {
	if c == nil || secret == "" {
		return secret, nil
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(secret), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// open decrypts a stored secret. Values without the sealed prefix are
// returned as-is (plaintext rows from before sealing was enabled).
func (c *credentialSealer) open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	if c == nil {
		return "", fmt.Errorf("sealed credential found but no credentials key configured")
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("malformed sealed credential: %w", err)
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("sealed credential too short")
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to open sealed credential: %w", err)
	}
	return string(plain), nil
}

// GenerateCredentialsKey creates a new random key suitable for the
// credentials_key config setting.
func GenerateCredentialsKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
