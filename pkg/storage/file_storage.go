package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStorage 极简文件存储，无加密: one plain JSON file per key. Used
// when no encryption key is configured; EncryptedFileStorage is the
// at-rest alternative.
type FileStorage struct {
	dataDir string
	mu      sync.RWMutex
}

// NewFileStorage creates plain-file storage rooted at dataDir.
func NewFileStorage(dataDir string) (*FileStorage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStorage{dataDir: dataDir}, nil
}

// Save stores data as indented JSON
func (fs *FileStorage) Save(ctx context.Context, key string, data interface{}) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	filePath := fs.filePath(key)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(filePath, jsonData, 0644)
}

// Load reads and unmarshals the value stored under key
func (fs *FileStorage) Load(ctx context.Context, key string, dest interface{}) error {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(fs.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("key not found: %s", key)
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}

// Delete removes the key's file; deleting a missing key is not an error
func (fs *FileStorage) Delete(ctx context.Context, key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.filePath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists checks whether the key's file is present
func (fs *FileStorage) Exists(ctx context.Context, key string) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, err := os.Stat(fs.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List walks the data directory and returns every stored key with the
// given prefix
func (fs *FileStorage) List(ctx context.Context, prefix string) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var keys []string
	err := filepath.Walk(fs.dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		key := strings.TrimSuffix(filepath.Base(path), ".json")
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

// filePath mirrors the encrypted store's two-character subdirectory
// sharding so either backend can be pointed at the same data dir layout.
func (fs *FileStorage) filePath(key string) string {
	if len(key) >= 2 {
		return filepath.Join(fs.dataDir, key[:2], key+".json")
	}
	return filepath.Join(fs.dataDir, key+".json")
}
