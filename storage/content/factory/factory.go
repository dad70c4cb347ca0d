package factory

import (
	"fmt"
	"sync"

	"github.com/indieinfra/mediadrop/config"
	"github.com/indieinfra/mediadrop/storage/content"
)

// Factory builds a registrar for the provided content config.
type Factory func(*config.Content) (content.Registrar, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register adds or replaces a registrar factory for the given strategy name.
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

// Create builds a registrar using the registered factory for the configured strategy.
func Create(cfg *config.Content) (content.Registrar, error) {
	f, ok := Get(cfg.Strategy)
	if !ok {
		return nil, fmt.Errorf("unknown content strategy %q", cfg.Strategy)
	}
	return f(cfg)
}

func init() {
	Register("noop", func(cfg *config.Content) (content.Registrar, error) {
		return content.NoopRegistrar{}, nil
	})

	Register("git", func(cfg *config.Content) (content.Registrar, error) {
		return content.NewGitRegistrar(cfg.Git)
	})

	Register("sql", func(cfg *config.Content) (content.Registrar, error) {
		return content.NewSQLRegistrar(cfg.SQL)
	})

	Register("d1", func(cfg *config.Content) (content.Registrar, error) {
		return content.NewD1Registrar(cfg.D1)
	})

	Register("filesystem", func(cfg *config.Content) (content.Registrar, error) {
		return content.NewFilesystemRegistrar(cfg.Filesystem)
	})
}
