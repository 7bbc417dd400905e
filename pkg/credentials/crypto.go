package credentials

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/recall-hq/recall/pkg/types"
)

// Cipher protects credentials at rest. The scheme is opaque to the rest of
// the system: everything upstream sees encrypt/decrypt and ErrDecryptionFailed.
type Cipher struct {
	key []byte
}

// NewCipher creates a cipher from a hex-encoded 32-byte key
func NewCipher(hexKey string) (*Cipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Cipher{key: key}, nil
}

// GenerateKey returns a fresh hex-encoded key. Used by setup tooling.
func GenerateKey() string {
	key := make([]byte, chacha20poly1305.KeySize)
	rand.Read(key)
	return hex.EncodeToString(key)
}

// Encrypt seals plaintext with a random nonce prepended to the box
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a box produced by Encrypt. Any failure maps to
// types.ErrDecryptionFailed; the caller must not distinguish causes.
func (c *Cipher) Decrypt(box []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}

	if len(box) < aead.NonceSize() {
		return nil, types.ErrDecryptionFailed
	}

	nonce, ciphertext := box[:aead.NonceSize()], box[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	return plaintext, nil
}
