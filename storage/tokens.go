package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// TokenSet is a connection's OAuth token material. It only ever exists in
// plaintext transiently, inside the operation that needed it.
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Expired reports whether the access token needs a refresh before use.
func (t *TokenSet) Expired() bool {
	return !t.Expiry.IsZero() && time.Now().After(t.Expiry.Add(-time.Minute))
}

// TokenCipher seals token material with AES-256-GCM before it touches the
// key-value store.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher builds a cipher from a 32-byte hex-encoded key.
func NewTokenCipher(hexKey string) (*TokenCipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("token cipher key is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("token cipher key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &TokenCipher{aead: aead}, nil
}

// Seal encrypts a token set; the nonce is prepended to the ciphertext.
func (c *TokenCipher) Seal(tokens *TokenSet) ([]byte, error) {
	plaintext, err := json.Marshal(tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tokens: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a sealed token set.
func (c *TokenCipher) Open(sealed []byte) (*TokenSet, error) {
	if len(sealed) < c.aead.NonceSize() {
		return nil, fmt.Errorf("sealed tokens too short")
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt tokens: %w", err)
	}

	var tokens TokenSet
	if err := json.Unmarshal(plaintext, &tokens); err != nil {
		return nil, fmt.Errorf("failed to decode tokens: %w", err)
	}
	return &tokens, nil
}
