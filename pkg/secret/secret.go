// Package secret masks tenant credentials at rest.
//
// Ciphertexts are base64(salt || iv || AES-256-CBC(PKCS#7(plaintext))) with the
// key derived from a single process-wide secret. There is no authentication
// tag; this is a reversible masking helper, not a security boundary.
package secret

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 16
	keySize    = 32
	iterations = 10000
)

var (
	// ErrMissingKey is returned when no encryption secret is configured
	ErrMissingKey = errors.New("secret: encryption key is not configured")
	// ErrCorrupt is returned when a ciphertext cannot be decoded or decrypts to nothing
	ErrCorrupt = errors.New("secret: ciphertext is corrupt")
)

var (
	mu        sync.RWMutex
	keySource = func() string { return os.Getenv("ENCRYPTION_KEY") }
)

// SetKeySource replaces the function used to read the secret at call time.
// It returns a function restoring the previous source.
func SetKeySource(fn func() string) (restore func()) {
	mu.Lock()
	prev := keySource
	keySource = fn
	mu.Unlock()
	return func() {
		mu.Lock()
		keySource = prev
		mu.Unlock()
	}
}

func currentKey() (string, error) {
	mu.RLock()
	key := keySource()
	mu.RUnlock()
	if key == "" {
		return "", ErrMissingKey
	}
	return key, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
}

// Encrypt masks plaintext with the configured secret. Two calls with the same
// input produce different ciphertexts.
func Encrypt(plaintext string) (string, error) {
	passphrase, err := currentKey()
	if err != nil {
		return "", err
	}

	salt := make([]byte, saltSize)
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("secret: read salt: %w", err)
	}
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("secret: read iv: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return "", fmt.Errorf("secret: init cipher: %w", err)
	}

	padded := pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, saltSize+aes.BlockSize+len(padded))
	copy(out, salt)
	copy(out[saltSize:], iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[saltSize+aes.BlockSize:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. An empty result is treated as corruption.
func Decrypt(ciphertext string) (string, error) {
	passphrase, err := currentKey()
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	body := len(raw) - saltSize - aes.BlockSize
	if body <= 0 || body%aes.BlockSize != 0 {
		return "", ErrCorrupt
	}

	salt := raw[:saltSize]
	iv := raw[saltSize : saltSize+aes.BlockSize]
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return "", fmt.Errorf("secret: init cipher: %w", err)
	}

	plain := make([]byte, body)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, raw[saltSize+aes.BlockSize:])

	plain, err = unpad(plain, aes.BlockSize)
	if err != nil || len(plain) == 0 {
		return "", ErrCorrupt
	}
	return string(plain), nil
}

// Mask hides all but the last four characters, for logs and API responses
func Mask(s string) string {
	r := []rune(s)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, ErrCorrupt
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, ErrCorrupt
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, ErrCorrupt
		}
	}
	return b[:len(b)-n], nil
}
