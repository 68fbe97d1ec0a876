package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"visibility-go/pkg/logger"
)

// EncryptionConfig holds configuration for AES-256 encryption
type EncryptionConfig struct {
	KeyDerivationSalt []byte `json:"key_derivation_salt"`
	KeySize           int    `json:"key_size"` // 32 bytes for AES-256
}

// DefaultEncryptionConfig returns default encryption configuration.
// The salt is deterministic so the same passphrase always derives the
// same key across restarts; protection comes from the passphrase.
func DefaultEncryptionConfig() EncryptionConfig {
	return EncryptionConfig{
		KeyDerivationSalt: []byte("visibility-go-default-salt-32-b!"),
		KeySize:           32, // AES-256
	}
}

// AESEncryptor provides AES-256-GCM encryption/decryption
type AESEncryptor struct {
	config EncryptionConfig
	key    []byte
	log    *logger.Logger
}

// NewAESEncryptor creates a new AES encryptor with the given passphrase
func NewAESEncryptor(passphrase string, config EncryptionConfig) (*AESEncryptor, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}

	key := deriveKey(passphrase, config.KeyDerivationSalt, config.KeySize)

	return &AESEncryptor{
		config: config,
		key:    key,
		log:    logger.GetLogger().WithField("component", "aes_encryptor"),
	}, nil
}

// Encrypt encrypts plaintext using AES-256-GCM. The nonce is prepended
// to the ciphertext.
func (e *AESEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("plaintext cannot be empty")
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		e.log.WithError(err).Error("Failed to create AES cipher")
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		e.log.WithError(err).Error("Failed to create GCM")
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		e.log.WithError(err).Error("Failed to generate nonce")
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	e.log.WithField("size", len(ciphertext)).Debug("Data encrypted successfully")
	return ciphertext, nil
}

// Decrypt decrypts ciphertext produced by Encrypt
func (e *AESEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("ciphertext cannot be empty")
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		e.log.WithError(err).Error("Failed to create AES cipher")
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		e.log.WithError(err).Error("Failed to create GCM")
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		e.log.WithError(err).Error("Failed to decrypt data")
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	e.log.WithField("size", len(plaintext)).Debug("Data decrypted successfully")
	return plaintext, nil
}

// EncryptString encrypts a string and returns hex-encoded result
func (e *AESEncryptor) EncryptString(plaintext string) (string, error) {
	encrypted, err := e.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(encrypted), nil
}

// DecryptString decrypts hex-encoded string
func (e *AESEncryptor) DecryptString(ciphertext string) (string, error) {
	data, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("invalid hex encoding: %w", err)
	}

	decrypted, err := e.Decrypt(data)
	if err != nil {
		return "", err
	}

	return string(decrypted), nil
}

// GetKeyFingerprint returns a short fingerprint of the encryption key so
// operators can verify two processes share a key without logging it.
func (e *AESEncryptor) GetKeyFingerprint() string {
	hash := sha256.Sum256(e.key)
	return hex.EncodeToString(hash[:8])
}

// deriveKey derives an encryption key from passphrase and salt using SHA-256
func deriveKey(passphrase string, salt []byte, keySize int) []byte {
	hash := sha256.New()
	hash.Write([]byte(passphrase))
	hash.Write(salt)
	key := hash.Sum(nil)

	if len(key) > keySize {
		return key[:keySize]
	}

	for len(key) < keySize {
		hash.Reset()
		hash.Write(key)
		hash.Write(salt)
		additional := hash.Sum(nil)
		key = append(key, additional...)
	}

	return key[:keySize]
}
