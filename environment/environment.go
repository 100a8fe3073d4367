// Package environment prepares kernel inputs and binds entry points to
// them.
//
// An Environment owns fixed-capacity buffers sized once for the largest
// size in the sweep. Reset refills every owned buffer, output buffers
// included, from a fixed-seed generator. Kernels therefore accumulate onto
// reproducible noise rather than into zeroed memory; this keeps every
// repetition's work identical and is intentional. Numerical checks must use
// their own zeroed buffers.
package environment

import (
	"errors"
	"fmt"

	"github.com/sarchlab/tilebench/registry"
)

// ErrUnknownEnvironment is returned when no environment serves a kind.
var ErrUnknownEnvironment = errors.New("unknown environment")

// Invocable runs a bound kernel once.
type Invocable func() error

// Environment prepares inputs for one call shape.
type Environment interface {
	// Kind is the call shape this environment binds.
	Kind() registry.Kind
	// Accepts reports whether entry can be bound by this environment.
	Accepts(entry any) bool
	// Reset refills every owned buffer deterministically.
	Reset(p ParameterSet)
	// Bind captures the buffers and scalars entry needs. It does not call
	// entry.
	Bind(entry any, p ParameterSet) (Invocable, error)
}

func mismatch(k registry.Kind, entry any) error {
	return fmt.Errorf("bind %T as %s: %w", entry, k, registry.ErrSignatureMismatch)
}

// Registry maps kinds to environments.
type Registry struct {
	envs map[registry.Kind]Environment
}

// NewRegistry creates an empty environment registry.
func NewRegistry() *Registry {
	return &Registry{envs: make(map[registry.Kind]Environment)}
}

// Register adds or replaces the environment for env.Kind().
func (r *Registry) Register(env Environment) {
	r.envs[env.Kind()] = env
}

// Resolve returns the environment serving kind.
func (r *Registry) Resolve(kind registry.Kind) (Environment, error) {
	env, ok := r.envs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEnvironment, kind)
	}
	return env, nil
}

// Default builds one environment per kind with buffers of maxSize
// elements (bytes for the raw-byte environment).
func Default(maxSize int) *Registry {
	r := NewRegistry()
	r.Register(NewOneArray(maxSize))
	r.Register(NewOneArray1Arg(maxSize))
	r.Register(NewTwoArrays(maxSize))
	r.Register(NewThreeArrays(maxSize))
	r.Register(NewConvolution(maxSize))
	r.Register(NewRawBytes(maxSize))
	r.Register(NewAllocTest())
	return r
}
