package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/rsundqvist/prefect/pkg/schema"
)

const defaultIterations = 100_000

// VaultConfig selects the AES key. Exactly one source applies: a raw
// 32-byte MasterKey, or a Passphrase stretched with PBKDF2 over Salt.
type VaultConfig struct {
	MasterKey  []byte
	Passphrase string
	Salt       []byte
	Iterations int // PBKDF2 rounds, defaultIterations when zero
}

// key resolves the configured 256-bit key.
func (cfg VaultConfig) key() ([]byte, error) {
	if len(cfg.MasterKey) > 0 {
		if len(cfg.MasterKey) != 32 {
			return nil, schema.NewErrorf(schema.ErrCodeVault,
				"master key must be 32 bytes, got %d", len(cfg.MasterKey))
		}
		return cfg.MasterKey, nil
	}
	if cfg.Passphrase == "" {
		return nil, schema.NewError(schema.ErrCodeVault, "either master_key or passphrase is required")
	}
	if len(cfg.Salt) == 0 {
		return nil, schema.NewError(schema.ErrCodeVault, "salt is required with passphrase")
	}
	rounds := cfg.Iterations
	if rounds <= 0 {
		rounds = defaultIterations
	}
	return pbkdf2.Key(sha256.New, cfg.Passphrase, cfg.Salt, rounds, 32)
}

// KeyFromBase64 decodes a standard-base64 master key, the form the
// PREFECT_VAULT_KEY setting carries it in.
func KeyFromBase64(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeVault, "vault key is not valid base64").WithCause(err)
	}
	return key, nil
}

// AESVault seals block document data with AES-256-GCM.
type AESVault struct {
	aead cipher.AEAD
}

// NewAESVault creates a vault from the configured key.
func NewAESVault(cfg VaultConfig) (*AESVault, error) {
	key, err := cfg.key()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &AESVault{aead: aead}, nil
}

// Seal encrypts plaintext. The random nonce is prefixed to the ciphertext.
func (v *AESVault) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return v.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a payload produced by Seal.
func (v *AESVault) Open(ciphertext []byte) ([]byte, error) {
	nonceSize := v.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, schema.NewError(schema.ErrCodeVault, "ciphertext too short")
	}
	plaintext, err := v.aead.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], nil)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeVault, "decrypt failed: %s", err.Error())
	}
	return plaintext, nil
}
