package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
)

// SecretBox seals small secrets (TOTP secrets, backup-code lists) with
// AES-256-GCM. A fresh random 96-bit nonce is generated for every Seal call
// and prepended to the ciphertext, so the nonce is authenticated together
// with the payload and never reused across encryptions.
type SecretBox struct {
	aead cipher.AEAD
}

// ErrDecrypt reports that a sealed blob failed authentication or was malformed.
var ErrDecrypt = errors.New("cryptox: decryption failed")

// NewSecretBox derives a 256-bit AES key from the given key material.
// Arbitrary-length passphrases are accepted; the key is the SHA-256 digest.
func NewSecretBox(keyMaterial []byte) (*SecretBox, error) {
	if len(keyMaterial) == 0 {
		return nil, errors.New("cryptox: empty key material")
	}

	key := sha256.Sum256(keyMaterial)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptox: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: %w", err)
	}

	return &SecretBox{aead: aead}, nil
}

// Seal encrypts plaintext and returns nonce||ciphertext.
func (b *SecretBox) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptox: nonce generation failed: %w", err)
	}

	return b.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal.
func (b *SecretBox) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < b.aead.NonceSize() {
		return nil, ErrDecrypt
	}

	nonce, ciphertext := sealed[:b.aead.NonceSize()], sealed[b.aead.NonceSize():]
	plaintext, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
