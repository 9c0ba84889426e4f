package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Envelope wire format: hex(iv):hex(authTag):hex(ciphertext). AES-256-GCM
// with a random 96-bit IV per call. Decrypt fails closed: a malformed
// envelope or tag mismatch returns ErrInvalidEnvelope, never altered
// plaintext.

const (
	keyLen   = 32
	nonceLen = 12
	tagLen   = 16
)

// ErrInvalidEnvelope is returned when a stored envelope is malformed or its
// authentication tag does not verify. Treated as data corruption by callers.
var ErrInvalidEnvelope = errors.New("invalid secret envelope")

// GenerateKey returns a fresh random 32-byte key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// LoadKey decodes a hex-encoded 32-byte key. A missing or short key is a
// startup error, not something to limp along without.
func LoadKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		return nil, errors.New("encryption key is not set")
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != keyLen {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keyLen, len(key))
	}
	return key, nil
}

// Encrypt seals plaintext into an envelope string.
func Encrypt(plaintext, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("init gcm: %w", err)
	}

	iv := make([]byte, nonceLen)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ciphertext := sealed[:len(sealed)-tagLen]
	tag := sealed[len(sealed)-tagLen:]

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens an envelope string produced by Encrypt.
func Decrypt(envelope string, key []byte) ([]byte, error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		return nil, ErrInvalidEnvelope
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != nonceLen {
		return nil, ErrInvalidEnvelope
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagLen {
		return nil, ErrInvalidEnvelope
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, ErrInvalidEnvelope
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, ErrInvalidEnvelope
	}
	return plaintext, nil
}

// Vault binds the process-wide key so callers do not pass it around.
type Vault struct {
	key []byte
}

// NewVault loads the key from its hex form. Key problems are fatal at
// startup by way of this constructor failing.
func NewVault(hexKey string) (*Vault, error) {
	key, err := LoadKey(hexKey)
	if err != nil {
		return nil, err
	}
	return &Vault{key: key}, nil
}

func (v *Vault) Encrypt(plaintext string) (string, error) {
	return Encrypt([]byte(plaintext), v.key)
}

func (v *Vault) Decrypt(envelope string) (string, error) {
	plaintext, err := Decrypt(envelope, v.key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
