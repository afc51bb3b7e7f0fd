package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	codeTokenVersion = "v1"
	codeKeyInfo      = "storefront/restock-code/v1"
	codeKeyLen       = 32
	gcmTagLen        = 16
)

var (
	// ErrCipherDisabled is returned when no code secret is configured.
	ErrCipherDisabled = errors.New("restock code encryption disabled")
	// ErrMalformedToken covers truncated, garbled or unknown-version tokens.
	ErrMalformedToken = errors.New("malformed restock code token")
	// ErrTokenAuthentication means the tag did not verify: wrong or rotated secret, or tampering.
	ErrTokenAuthentication = errors.New("restock code token failed authentication")
)

var tokenEncoding = base64.RawURLEncoding

// CodeCipher reversibly encrypts restock codes with AES-256-GCM. A zero-value or
// secret-less CodeCipher is disabled.
type CodeCipher struct {
	aead cipher.AEAD
}

// NewCodeCipher derives an AES-256 key from secret with HKDF-SHA256. An empty secret
// returns a disabled cipher and no error.
func NewCodeCipher(secret string) (*CodeCipher, error) {
	if strings.TrimSpace(secret) == "" {
		return &CodeCipher{}, nil
	}

	key := make([]byte, codeKeyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(codeKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive code key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init aes: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &CodeCipher{aead: aead}, nil
}

// Enabled reports whether a secret was configured.
func (c *CodeCipher) Enabled() bool {
	return c != nil && c.aead != nil
}

// Encrypt seals code under a fresh random nonce and returns
// "v1.<nonce>.<ciphertext>.<tag>" with each part base64url encoded.
func (c *CodeCipher) Encrypt(code string) (string, error) {
	if !c.Enabled() {
		return "", ErrCipherDisabled
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, nonce, []byte(code), nil)
	ciphertext, tag := sealed[:len(sealed)-gcmTagLen], sealed[len(sealed)-gcmTagLen:]

	return strings.Join([]string{
		codeTokenVersion,
		tokenEncoding.EncodeToString(nonce),
		tokenEncoding.EncodeToString(ciphertext),
		tokenEncoding.EncodeToString(tag),
	}, "."), nil
}

// Decrypt reverses Encrypt.
func (c *CodeCipher) Decrypt(token string) (string, error) {
	if !c.Enabled() {
		return "", ErrCipherDisabled
	}

	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 4 || parts[0] != codeTokenVersion {
		return "", ErrMalformedToken
	}
	nonce, err := tokenEncoding.DecodeString(parts[1])
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return "", ErrMalformedToken
	}
	ciphertext, err := tokenEncoding.DecodeString(parts[2])
	if err != nil {
		return "", ErrMalformedToken
	}
	tag, err := tokenEncoding.DecodeString(parts[3])
	if err != nil || len(tag) != gcmTagLen {
		return "", ErrMalformedToken
	}

	plain, err := c.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrTokenAuthentication
	}
	return string(plain), nil
}
