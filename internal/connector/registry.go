package connector

import (
	"fmt"
	"sync"

	"github.com/flowctl/flowctl/internal/flow"
	flowerrors "github.com/flowctl/flowctl/pkg/errors"
)

// Registry maps a connector type name to the Constructor that builds it,
// and lazily caches one constructed Connector per cache key that Resolve
// is called with during a run. A source declared in
// config but never referenced by a step that runs is never constructed.
type Registry struct {
	mu           sync.Mutex
	constructors map[string]Constructor
	instances    map[string]Connector
}

// NewRegistry creates an empty registry. Builtins are registered by the
// caller via Register, typically right after construction.
func NewRegistry() *Registry {
	return &Registry{
		constructors: map[string]Constructor{},
		instances:    map[string]Connector{},
	}
}

// Register binds a connector type name to its constructor. Registering the
// same type name twice replaces the earlier constructor, which lets a
// caller override a builtin in tests.
func (r *Registry) Register(typeName string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[typeName] = ctor
}

// Resolve lazily constructs (or returns the cached instance for) the
// connector backing decl, cached under cacheKey — typically the resolved
// source's name, so that a source reused across multiple steps is
// constructed exactly once.
func (r *Registry) Resolve(cacheKey string, decl flow.SourceDecl) (Connector, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.instances[cacheKey]; ok {
		return inst, nil
	}

	ctor, ok := r.constructors[decl.Type]
	if !ok {
		return nil, &flowerrors.ConfigError{
			Key:    cacheKey,
			Reason: fmt.Sprintf("unknown connector type %q", decl.Type),
		}
	}

	inst, err := ctor(decl.Configuration)
	if err != nil {
		return nil, &flowerrors.ConfigError{
			Key:    cacheKey,
			Reason: fmt.Sprintf("constructing connector of type %q: %v", decl.Type, err),
			Cause:  err,
		}
	}
	r.instances[cacheKey] = inst
	return inst, nil
}

// Types returns the registered connector type names, in no particular
// order.
func (r *Registry) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		out = append(out, name)
	}
	return out
}
