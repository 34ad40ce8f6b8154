// Package vault keeps marketplace API secrets encrypted at rest.
//
// Ciphertexts are base64(nonce || tag || body) sealed with AES-256-GCM. The key is either
// 32 raw bytes given as hex, or a passphrase stretched with argon2id.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

const (
	KeySize             = 32
	MinPassphraseLength = 16

	nonceSize = 12
	tagSize   = 16

	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 2

	// DefaultSalt is used to stretch passphrases when no salt is configured.
	DefaultSalt = "orderbridge.vault.v1"

	// legacyPassphrase produced the key older deployments encrypted secrets with.
	// It is accepted on decryption only.
	legacyPassphrase = "orderbridge-default-credential-key"
)

var (
	ErrKeyMissing  = errors.New("vault: encryption key is not configured")
	ErrKeyTooShort = errors.New("vault: encryption key is too short")
	ErrDecrypt     = errors.New("vault: ciphertext cannot be decrypted")
)

type Config struct {
	// Key is either 64 hex characters or a passphrase of at least MinPassphraseLength characters.
	Key  string
	Salt string
}

type Vault struct {
	active cipher.AEAD
	legacy cipher.AEAD
	log    *zap.Logger
}

// New derives the active key from cfg. Any error here is a configuration error and must stop the process.
func New(cfg Config, log *zap.Logger) (*Vault, error) {
	key, err := deriveKey(cfg)
	if err != nil {
		return nil, err
	}

	active, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	legacyKey := sha256.Sum256([]byte(legacyPassphrase))
	legacy, err := newAEAD(legacyKey[:])
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Vault{active: active, legacy: legacy, log: log.Named("vault")}, nil
}

func deriveKey(cfg Config) ([]byte, error) {
	secret := strings.TrimSpace(cfg.Key)
	if secret == "" {
		return nil, ErrKeyMissing
	}

	if len(secret) == hex.EncodedLen(KeySize) {
		if key, err := hex.DecodeString(secret); err == nil {
			return key, nil
		}
	}

	if len(secret) < MinPassphraseLength {
		return nil, fmt.Errorf("%w: passphrase needs at least %d characters", ErrKeyTooShort, MinPassphraseLength)
	}

	salt := cfg.Salt
	if salt == "" {
		salt = DefaultSalt
	}

	return argon2.IDKey([]byte(secret), []byte(salt), argonTime, argonMemory, argonThreads, KeySize), nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to create gcm: %w", err)
	}
	return gcm, nil
}

// Encrypt seals plaintext with the active key.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	return seal(v.active, []byte(plaintext))
}

// Decrypt opens a ciphertext produced by Encrypt. Values sealed with the legacy key are
// still accepted, with a warning, so they can be re-encrypted.
func (v *Vault) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDecrypt, err.Error())
	}

	plain, err := open(v.active, raw)
	if err == nil {
		return string(plain), nil
	}

	plain, legacyErr := open(v.legacy, raw)
	if legacyErr != nil {
		return "", err
	}

	v.log.Warn("secret was decrypted with the legacy key, re-encrypt it with the active key")
	return string(plain), nil
}

func seal(aead cipher.AEAD, plaintext []byte) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: failed to read nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	body, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, nonceSize+tagSize+len(body))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, body...)

	return base64.StdEncoding.EncodeToString(out), nil
}

func open(aead cipher.AEAD, raw []byte) ([]byte, error) {
	if len(raw) < nonceSize+tagSize {
		return nil, fmt.Errorf("%w: ciphertext is truncated", ErrDecrypt)
	}

	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	body := raw[nonceSize+tagSize:]

	sealed := make([]byte, 0, len(body)+tagSize)
	sealed = append(sealed, body...)
	sealed = append(sealed, tag...)

	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrDecrypt)
	}
	return plain, nil
}
