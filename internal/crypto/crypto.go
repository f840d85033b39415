// Package crypto provides at-rest encryption for journal notes and user
// emails, plus a deterministic blind index so encrypted emails stay searchable.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
)

// Cipher encrypts with AES-256-GCM and indexes with HMAC-SHA256. The two keys
// must be independent: the blind index is deterministic by design and would
// weaken the encryption key if shared.
type Cipher struct {
	encKey   []byte
	indexKey []byte
}

func NewCipher(encKey, indexKey []byte) (*Cipher, error) {
	if len(encKey) != 32 {
		return nil, errors.New("encryption key must be 32 bytes")
	}
	if len(indexKey) != 32 {
		return nil, errors.New("blind index key must be 32 bytes")
	}
	return &Cipher{encKey: encKey, indexKey: indexKey}, nil
}

// Encrypt seals plaintext with a random nonce prepended, base64-encoded.
// Empty input passes through so optional columns stay NULL-equivalent.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	block, err := aes.NewCipher(c.encKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(c.encKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// BlindIndex produces a deterministic HMAC of the plaintext for equality
// lookups over encrypted columns.
func (c *Cipher) BlindIndex(plaintext string) string {
	if plaintext == "" {
		return ""
	}
	h := hmac.New(sha256.New, c.indexKey)
	h.Write([]byte(plaintext))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
