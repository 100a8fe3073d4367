package environment

import (
	"errors"
	"fmt"
	"math"
)

// Parameter names recognised by the environments.
const (
	ParamSize     = "size"
	ParamSize2    = "size2"
	ParamSize3    = "size3"
	ParamArg1     = "arg1"
	ParamTileSize = "tile_size"
)

var (
	// ErrMissingParameter is returned when a bind needs a key the
	// ParameterSet does not hold.
	ErrMissingParameter = errors.New("missing parameter")

	// ErrInvalidParameter is returned when a value cannot be used by an
	// environment, for example a size beyond the allocated buffers.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// ParameterSet is one sweep cell's configuration.
type ParameterSet map[string]uint64

// Uint returns the value stored under key.
func (p ParameterSet) Uint(key string) (uint64, error) {
	v, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingParameter, key)
	}
	return v, nil
}

// Int32 returns the value stored under key as a signed 32-bit integer.
func (p ParameterSet) Int32(key string) (int32, error) {
	v, err := p.Uint(key)
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s=%d overflows int32", ErrInvalidParameter, key, v)
	}
	return int32(v), nil
}

// Clone returns an independent copy of p.
func (p ParameterSet) Clone() ParameterSet {
	c := make(ParameterSet, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// length reads key as a slice length bounded by capacity.
func (p ParameterSet) length(key string, capacity int) (int, error) {
	v, err := p.Uint(key)
	if err != nil {
		return 0, err
	}
	if v > uint64(capacity) {
		return 0, fmt.Errorf("%w: %s=%d exceeds buffer capacity %d",
			ErrInvalidParameter, key, v, capacity)
	}
	return int(v), nil
}
