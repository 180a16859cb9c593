package runtime

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/featlabs/featrun/packages/eval"
)

// DiskCacheConfig enables cross-run persistence of callSingle results.
// A cached file younger than TTL short-circuits execution entirely.
type DiskCacheConfig struct {
	Dir string
	TTL time.Duration
}

// CallSingleCache memoizes suite-scoped calls with at-most-once execution
// per key. The first caller for a key executes the supplier; concurrent
// callers for the same key block until it completes and then share the
// outcome, errors included.
type CallSingleCache struct {
	mu      sync.Mutex
	entries map[string]*callSingleEntry
}

type callSingleEntry struct {
	done  chan struct{}
	value any
	err   error
}

func NewCallSingleCache() *CallSingleCache {
	return &CallSingleCache{entries: make(map[string]*callSingleEntry)}
}

// Get returns the memoized value for key, executing supplier at most once.
// The returned value is a deep copy, so callers cannot mutate the cache.
func (c *CallSingleCache) Get(key string, disk *DiskCacheConfig, supplier func() (any, error)) (any, error) {
	c.mu.Lock()
	e, exists := c.entries[key]
	if exists {
		c.mu.Unlock()
		<-e.done
		if e.err != nil {
			return nil, e.err
		}
		return eval.DeepCopy(e.value), nil
	}
	e = &callSingleEntry{done: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()

	e.value, e.err = c.resolve(key, disk, supplier)
	close(e.done)

	if e.err != nil {
		return nil, e.err
	}
	return eval.DeepCopy(e.value), nil
}

func (c *CallSingleCache) resolve(key string, disk *DiskCacheConfig, supplier func() (any, error)) (any, error) {
	var cachePath string
	if disk != nil && disk.Dir != "" {
		cachePath = filepath.Join(disk.Dir, cacheFileName(key))
		if v, ok := loadCacheFile(cachePath, disk.TTL); ok {
			return v, nil
		}
	}
	v, err := supplier()
	if err != nil {
		return nil, err
	}
	if cachePath != "" {
		writeCacheFile(cachePath, v)
	}
	return v, nil
}

func cacheFileName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "callsingle-" + hex.EncodeToString(sum[:8]) + ".json"
}

func loadCacheFile(path string, ttl time.Duration) (any, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if ttl > 0 && time.Since(info.ModTime()) > ttl {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}
	return v, true
}

// writeCacheFile persists best-effort; a value that cannot be serialized
// (function references) simply skips the disk tier.
func writeCacheFile(path string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	tmp := fmt.Sprintf("%s.tmp", path)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, path)
}
