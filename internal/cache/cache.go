package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/claimsynth/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key builds a namespaced cache key from the given parts. The parts are
// hashed so arbitrary claim text is safe to use as a file name.
func Key(namespace string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return "claimsynth_v1_" + namespace + "_" + hex.EncodeToString(h.Sum(nil))
}

// New builds the cache described by cfg: memory+disk when a directory is
// available, memory only otherwise, nil when caching is disabled.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	dir := cfg.Dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)
		}
		dir = filepath.Join(home, ".claimsynth", "cache")
	}
	return NewLayeredCache(cfg.MemoryTTL, dir, cfg.DiskTTL)
}

func sanitize(key string) string {
	return strings.NewReplacer("/", "_", ":", "_", "\\", "_").Replace(key)
}
