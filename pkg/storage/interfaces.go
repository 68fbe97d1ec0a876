package storage

import "context"

// StorageConfig selects where and how analysis state is persisted.
type StorageConfig struct {
	DataDir     string `json:"data_dir"`
	CacheSize   int    `json:"cache_size"`
	EncryptData bool   `json:"encrypt_data"`
}

// Storage persists JSON-serializable values under string keys. All
// implementations must be safe for concurrent use.
type Storage interface {
	Save(ctx context.Context, key string, data interface{}) error
	Load(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Cache is a bounded in-process cache.
type Cache interface {
	Set(key string, value interface{}) error
	Get(key string) (interface{}, bool)
	Delete(key string) error
	Clear() error
}
