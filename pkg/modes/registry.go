package modes

import (
	"fmt"
	"slices"
	"sync"

	"github.com/picogrid/v2v-simulations/pkg/logger"
)

// Registry manages available modes
type Registry struct {
	mu    sync.RWMutex
	modes map[string]func() Mode
}

// NewRegistry creates a new mode registry
func NewRegistry() *Registry {
	return &Registry{
		modes: make(map[string]func() Mode),
	}
}

// Register adds a mode to the registry
func (r *Registry) Register(name string, factory func() Mode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modes[name]; exists {
		return fmt.Errorf("mode %s already registered", name)
	}

	r.modes[name] = factory
	return nil
}

// Get returns a new instance of the requested mode
func (r *Registry) Get(name string) (Mode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.modes[name]
	if !exists {
		return nil, fmt.Errorf("mode %s not found", name)
	}

	return factory(), nil
}

// List returns all registered mode names in alphabetical order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.modes))
	for name := range r.modes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultRegistry is the global mode registry
var DefaultRegistry = NewRegistry()

func registerDefault(name string, factory func() Mode) {
	if err := DefaultRegistry.Register(name, factory); err != nil {
		logger.Errorf("Failed to register mode: %v", err)
	}
}
