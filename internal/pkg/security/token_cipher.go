package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/eventcastapp/eventcast/internal/pkg/env"
)

const (
	encryptionKeyEnvVar = "EVENTCAST_ENCRYPTION_KEY"
	nonceSizeGCM        = 12 // recommended AES-GCM nonce size (96 bits)
	tagSizeGCM          = 16
	requiredKeyLength   = 32 // 32 bytes => AES-256
	segmentSep          = ":" // base64(nonce):base64(ciphertext):base64(tag)

	devKeyInfo = "eventcast-dev-token-cipher"
)

// ErrDecryption marks any failure to decrypt a stored token: wrong segment
// count, wrong nonce/tag length, or failed GCM authentication. Callers must
// treat it as a hard failure, never as an empty credential.
var ErrDecryption = errors.New("token decryption failed")

// TokenCipher encrypts OAuth tokens at rest with AES-256-GCM.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher loads the 32-byte key from EVENTCAST_ENCRYPTION_KEY (64 hex
// chars). A missing key is fatal in production; in dev mode a deterministic
// key is derived so the app stays runnable without secrets configured.
func NewTokenCipher() (*TokenCipher, error) {
	raw := strings.TrimSpace(env.GetEnv(encryptionKeyEnvVar, ""))
	if raw == "" {
		if !env.IsDev() {
			return nil, fmt.Errorf("%s is not set; generate one with: openssl rand -hex 32", encryptionKeyEnvVar)
		}
		return NewTokenCipherWithKey(deriveDevKey())
	}

	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", encryptionKeyEnvVar, err)
	}
	if len(key) != requiredKeyLength {
		return nil, fmt.Errorf("%s must decode to %d bytes, got %d", encryptionKeyEnvVar, requiredKeyLength, len(key))
	}
	return NewTokenCipherWithKey(key)
}

// NewTokenCipherWithKey builds a cipher from an explicit 32-byte key.
func NewTokenCipherWithKey(key []byte) (*TokenCipher, error) {
	if len(key) != requiredKeyLength {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", requiredKeyLength, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &TokenCipher{aead: aead}, nil
}

// deriveDevKey produces a stable non-secret key for local development.
// It must never be reachable when APP_ENV != dev.
func deriveDevKey() []byte {
	r := hkdf.New(sha256.New, []byte(devKeyInfo), nil, []byte("token-cipher-v1"))
	key := make([]byte, requiredKeyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		panic(fmt.Sprintf("hkdf dev key derivation failed: %v", err))
	}
	return key
}

// Encrypt returns base64(nonce):base64(ciphertext):base64(tag).
func (c *TokenCipher) Encrypt(plainText string) (string, error) {
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plainText), nil)
	ct := sealed[:len(sealed)-tagSizeGCM]
	tag := sealed[len(sealed)-tagSizeGCM:]

	return base64.StdEncoding.EncodeToString(nonce) + segmentSep +
		base64.StdEncoding.EncodeToString(ct) + segmentSep +
		base64.StdEncoding.EncodeToString(tag), nil
}

// Decrypt reverses Encrypt. Tampered or malformed input fails with an error
// wrapping ErrDecryption; garbage is never returned silently.
func (c *TokenCipher) Decrypt(cipherText string) (string, error) {
	nonce, ct, tag, err := splitSegments(cipherText)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: gcm auth", ErrDecryption)
	}
	return string(plain), nil
}

// IsEncrypted is a structural probe used during the plaintext-to-ciphertext
// migration window. It never returns an error; a legacy plaintext token
// simply reports false.
func IsEncrypted(value string) bool {
	_, _, _, err := splitSegments(value)
	return err == nil
}

func splitSegments(value string) (nonce, ct, tag []byte, err error) {
	parts := strings.Split(value, segmentSep)
	if len(parts) != 3 {
		return nil, nil, nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrDecryption, len(parts))
	}
	nonce, err = base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: decode nonce", ErrDecryption)
	}
	ct, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: decode ciphertext", ErrDecryption)
	}
	tag, err = base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: decode tag", ErrDecryption)
	}
	if len(nonce) != nonceSizeGCM {
		return nil, nil, nil, fmt.Errorf("%w: nonce length %d", ErrDecryption, len(nonce))
	}
	if len(tag) != tagSizeGCM {
		return nil, nil, nil, fmt.Errorf("%w: tag length %d", ErrDecryption, len(tag))
	}
	return nonce, ct, tag, nil
}
