package cache

import "time"

// Cache is a TTL key/value store used for venue metadata.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration) bool
	Delete(key string)
	Clear()
	Close()
}
