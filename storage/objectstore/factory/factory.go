package factory

import (
	"fmt"
	"sync"

	"github.com/indieinfra/mediadrop/config"
	vendor "github.com/indieinfra/mediadrop/storage/objectstore"
	"github.com/indieinfra/mediadrop/storage/objectstore/filesystem"
	"github.com/indieinfra/mediadrop/storage/objectstore/presigned"
	"github.com/indieinfra/mediadrop/storage/objectstore/s3"
)

// Factory builds a vendor adapter for the provided vendor config.
type Factory func(*config.Vendor) (vendor.Adapter, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register adds or replaces a vendor factory for the given strategy name.
func Register(strategy string, factory Factory) {
	mu.Lock()
	registry[strategy] = factory
	mu.Unlock()
}

// Get retrieves a factory for the given strategy.
func Get(strategy string) (Factory, bool) {
	mu.RLock()
	f, ok := registry[strategy]
	mu.RUnlock()
	return f, ok
}

// Create builds a vendor adapter using the registered factory for the configured strategy.
func Create(cfg *config.Vendor) (vendor.Adapter, error) {
	if f, ok := Get(cfg.Strategy); ok {
		return f(cfg)
	}

	return nil, fmt.Errorf("unknown vendor strategy %q", cfg.Strategy)
}

func init() {
	Register("noop", func(cfg *config.Vendor) (vendor.Adapter, error) {
		return vendor.NoopAdapter{}, nil
	})
	Register("s3", func(cfg *config.Vendor) (vendor.Adapter, error) {
		return s3.NewAdapter(cfg.S3)
	})
	Register("presigned", func(cfg *config.Vendor) (vendor.Adapter, error) {
		return presigned.NewAdapter(cfg.Presigned, nil)
	})
	Register("filesystem", func(cfg *config.Vendor) (vendor.Adapter, error) {
		return filesystem.NewAdapter(cfg.Filesystem)
	})
}
