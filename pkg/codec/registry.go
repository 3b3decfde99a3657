package codec

import (
	"fmt"
	"sort"
	"sync"

	"github.com/thvl3/stegolab/pkg/stegerr"
)

// Registry is a container for all available codecs
type Registry struct {
	codecs map[Method]Codec
	mu     sync.RWMutex
}

// NewRegistry creates a new codec registry
func NewRegistry() *Registry {
	return &Registry{
		codecs: make(map[Method]Codec),
	}
}

// Register adds a codec to the registry, replacing any codec with the same method
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.codecs[c.Method()] = c
}

// Get returns the codec registered for a method
func (r *Registry) Get(method Method) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.codecs[method]
	if !ok {
		return nil, fmt.Errorf("no codec for %q: %w", method, stegerr.ErrUnknownMethod)
	}
	return c, nil
}

// Methods returns all registered methods in sorted order
func (r *Registry) Methods() []Method {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]Method, 0, len(r.codecs))
	for m := range r.codecs {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })

	return methods
}
