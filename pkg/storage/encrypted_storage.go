package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"visibility-go/pkg/logger"
)

// EncryptedFileStorage provides encrypted file-based storage. Analysis
// results carry brand strategy (keywords, competitors), so at-rest
// encryption is the default whenever a key is configured.
type EncryptedFileStorage struct {
	dataDir   string
	encryptor *AESEncryptor
	cache     Cache
	log       *logger.Logger
	mu        sync.RWMutex
}

// NewEncryptedFileStorage creates a new encrypted file storage
func NewEncryptedFileStorage(config StorageConfig, passphrase string) (*EncryptedFileStorage, error) {
	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	encryptor, err := NewAESEncryptor(passphrase, DefaultEncryptionConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	var cache Cache
	if config.CacheSize > 0 {
		cache = NewMemoryCache(config.CacheSize)
	}

	storage := &EncryptedFileStorage{
		dataDir:   config.DataDir,
		encryptor: encryptor,
		cache:     cache,
		log:       logger.GetLogger().WithField("component", "encrypted_storage"),
	}

	storage.log.WithFields(map[string]interface{}{
		"data_dir":        config.DataDir,
		"cache_size":      config.CacheSize,
		"key_fingerprint": encryptor.GetKeyFingerprint(),
	}).Info("Encrypted storage initialized")

	return storage, nil
}

// Save encrypts and stores data
func (efs *EncryptedFileStorage) Save(ctx context.Context, key string, data interface{}) error {
	efs.mu.Lock()
	defer efs.mu.Unlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		efs.log.WithError(err).WithField("key", key).Error("Failed to marshal data")
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	encryptedData, err := efs.encryptor.Encrypt(jsonData)
	if err != nil {
		efs.log.WithError(err).WithField("key", key).Error("Failed to encrypt data")
		return fmt.Errorf("failed to encrypt data: %w", err)
	}

	filePath := efs.getFilePath(key)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(filePath, encryptedData, 0644); err != nil {
		efs.log.WithError(err).WithField("key", key).Error("Failed to write file")
		return fmt.Errorf("failed to write file: %w", err)
	}

	if efs.cache != nil {
		efs.cache.Set(key, data)
	}

	efs.log.WithFields(map[string]interface{}{
		"key":  key,
		"size": len(encryptedData),
	}).Debug("Data saved successfully")

	return nil
}

// Load retrieves and decrypts data
func (efs *EncryptedFileStorage) Load(ctx context.Context, key string, dest interface{}) error {
	efs.mu.RLock()
	defer efs.mu.RUnlock()

	if efs.cache != nil {
		if cached, found := efs.cache.Get(key); found {
			cachedJson, err := json.Marshal(cached)
			if err == nil {
				if err := json.Unmarshal(cachedJson, dest); err == nil {
					efs.log.WithField("key", key).Debug("Data loaded from cache")
					return nil
				}
			}
		}
	}

	encryptedData, err := os.ReadFile(efs.getFilePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("key not found: %s", key)
		}
		efs.log.WithError(err).WithField("key", key).Error("Failed to read file")
		return fmt.Errorf("failed to read file: %w", err)
	}

	jsonData, err := efs.encryptor.Decrypt(encryptedData)
	if err != nil {
		efs.log.WithError(err).WithField("key", key).Error("Failed to decrypt data")
		return fmt.Errorf("failed to decrypt data: %w", err)
	}

	if err := json.Unmarshal(jsonData, dest); err != nil {
		efs.log.WithError(err).WithField("key", key).Error("Failed to unmarshal data")
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	if efs.cache != nil {
		efs.cache.Set(key, dest)
	}

	efs.log.WithField("key", key).Debug("Data loaded successfully")
	return nil
}

// Delete removes data and clears cache
func (efs *EncryptedFileStorage) Delete(ctx context.Context, key string) error {
	efs.mu.Lock()
	defer efs.mu.Unlock()

	if err := os.Remove(efs.getFilePath(key)); err != nil && !os.IsNotExist(err) {
		efs.log.WithError(err).WithField("key", key).Error("Failed to delete file")
		return fmt.Errorf("failed to delete file: %w", err)
	}

	if efs.cache != nil {
		efs.cache.Delete(key)
	}

	efs.log.WithField("key", key).Debug("Data deleted successfully")
	return nil
}

// Exists checks if a key exists
func (efs *EncryptedFileStorage) Exists(ctx context.Context, key string) (bool, error) {
	efs.mu.RLock()
	defer efs.mu.RUnlock()

	if efs.cache != nil {
		if _, found := efs.cache.Get(key); found {
			return true, nil
		}
	}

	_, err := os.Stat(efs.getFilePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// List walks the data directory and returns every stored key with the
// given prefix. Keys are recovered from file names; payloads stay sealed.
func (efs *EncryptedFileStorage) List(ctx context.Context, prefix string) ([]string, error) {
	efs.mu.RLock()
	defer efs.mu.RUnlock()

	var keys []string
	err := filepath.Walk(efs.dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".enc" {
			return nil
		}
		key := strings.TrimSuffix(filepath.Base(path), ".enc")
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}

// getFilePath generates file path for a given key
func (efs *EncryptedFileStorage) getFilePath(key string) string {
	// Use subdirectories to avoid too many files in one directory
	if len(key) >= 2 {
		subDir := key[:2]
		return filepath.Join(efs.dataDir, subDir, key+".enc")
	}
	return filepath.Join(efs.dataDir, key+".enc")
}
