package environment

import (
	"encoding/binary"
	"fmt"

	"github.com/sarchlab/tilebench/registry"
)

// arrays owns n word buffers of equal capacity.
type arrays struct {
	bufs [][]uint64
}

func newArrays(n, maxSize int) arrays {
	bufs := make([][]uint64, n)
	for i := range bufs {
		bufs[i] = make([]uint64, maxSize)
	}
	return arrays{bufs: bufs}
}

// Reset draws one value per buffer for each index in turn.
func (a arrays) Reset(ParameterSet) {
	r := newLCG()
	if len(a.bufs) == 0 {
		return
	}
	for i := range a.bufs[0] {
		for _, b := range a.bufs {
			b[i] = r.next()
		}
	}
}

// slice binds buffer idx to the length stored under key.
func (a arrays) slice(idx int, key string, p ParameterSet) ([]uint64, error) {
	n, err := p.length(key, len(a.bufs[idx]))
	if err != nil {
		return nil, err
	}
	return a.bufs[idx][:n], nil
}

// OneArray binds func(a []uint64) error to buffer[:size].
type OneArray struct{ arrays }

// NewOneArray allocates a single buffer.
func NewOneArray(maxSize int) *OneArray {
	return &OneArray{newArrays(1, maxSize)}
}

func (*OneArray) Kind() registry.Kind { return registry.KindOneArray }

func (e *OneArray) Accepts(entry any) bool { return e.Kind().Matches(entry) }

func (e *OneArray) Bind(entry any, p ParameterSet) (Invocable, error) {
	fn, ok := entry.(registry.OneArrayFunc)
	if !ok {
		return nil, mismatch(e.Kind(), entry)
	}
	a, err := e.slice(0, ParamSize, p)
	if err != nil {
		return nil, err
	}
	return func() error { return fn(a) }, nil
}

// OneArray1Arg binds func(a []uint64, arg1 uint64) error.
type OneArray1Arg struct{ arrays }

// NewOneArray1Arg allocates a single buffer.
func NewOneArray1Arg(maxSize int) *OneArray1Arg {
	return &OneArray1Arg{newArrays(1, maxSize)}
}

func (*OneArray1Arg) Kind() registry.Kind { return registry.KindOneArray1Arg }

func (e *OneArray1Arg) Accepts(entry any) bool { return e.Kind().Matches(entry) }

func (e *OneArray1Arg) Bind(entry any, p ParameterSet) (Invocable, error) {
	fn, ok := entry.(registry.OneArray1ArgFunc)
	if !ok {
		return nil, mismatch(e.Kind(), entry)
	}
	a, err := e.slice(0, ParamSize, p)
	if err != nil {
		return nil, err
	}
	arg1, err := p.Uint(ParamArg1)
	if err != nil {
		return nil, err
	}
	return func() error { return fn(a, arg1) }, nil
}

// TwoArrays binds func(a, b []uint64) error to [:size] and [:size2].
type TwoArrays struct{ arrays }

// NewTwoArrays allocates two buffers.
func NewTwoArrays(maxSize int) *TwoArrays {
	return &TwoArrays{newArrays(2, maxSize)}
}

func (*TwoArrays) Kind() registry.Kind { return registry.KindTwoArrays }

func (e *TwoArrays) Accepts(entry any) bool { return e.Kind().Matches(entry) }

func (e *TwoArrays) Bind(entry any, p ParameterSet) (Invocable, error) {
	fn, ok := entry.(registry.TwoArraysFunc)
	if !ok {
		return nil, mismatch(e.Kind(), entry)
	}
	a, err := e.slice(0, ParamSize, p)
	if err != nil {
		return nil, err
	}
	b, err := e.slice(1, ParamSize2, p)
	if err != nil {
		return nil, err
	}
	return func() error { return fn(a, b) }, nil
}

// ThreeArrays binds func(a, b, c []uint64) error to [:size], [:size2] and
// [:size3].
type ThreeArrays struct{ arrays }

// NewThreeArrays allocates three buffers.
func NewThreeArrays(maxSize int) *ThreeArrays {
	return &ThreeArrays{newArrays(3, maxSize)}
}

func (*ThreeArrays) Kind() registry.Kind { return registry.KindThreeArrays }

func (e *ThreeArrays) Accepts(entry any) bool { return e.Kind().Matches(entry) }

func (e *ThreeArrays) Bind(entry any, p ParameterSet) (Invocable, error) {
	fn, ok := entry.(registry.ThreeArraysFunc)
	if !ok {
		return nil, mismatch(e.Kind(), entry)
	}
	bufs, err := e.three(p)
	if err != nil {
		return nil, err
	}
	a, b, c := bufs[0], bufs[1], bufs[2]
	return func() error { return fn(a, b, c) }, nil
}

func (a arrays) three(p ParameterSet) ([3][]uint64, error) {
	var out [3][]uint64
	for i, key := range [3]string{ParamSize, ParamSize2, ParamSize3} {
		s, err := a.slice(i, key, p)
		if err != nil {
			return out, err
		}
		out[i] = s
	}
	return out, nil
}

// Convolution binds the convolution shape: source [:size], weight
// [:size2], target [:size-size2] and the tile_size scalar. size3 is not
// used; the target always holds exactly the output range.
type Convolution struct{ arrays }

// NewConvolution allocates source, weight and target buffers.
func NewConvolution(maxSize int) *Convolution {
	return &Convolution{newArrays(3, maxSize)}
}

func (*Convolution) Kind() registry.Kind { return registry.KindConvolution }

func (e *Convolution) Accepts(entry any) bool { return e.Kind().Matches(entry) }

func (e *Convolution) Bind(entry any, p ParameterSet) (Invocable, error) {
	fn, ok := entry.(registry.ConvolutionFunc)
	if !ok {
		return nil, mismatch(e.Kind(), entry)
	}
	source, err := e.slice(0, ParamSize, p)
	if err != nil {
		return nil, err
	}
	weight, err := e.slice(1, ParamSize2, p)
	if err != nil {
		return nil, err
	}
	if len(weight) > len(source) {
		return nil, fmt.Errorf("%w: size2=%d exceeds size=%d",
			ErrInvalidParameter, len(weight), len(source))
	}
	target := e.bufs[2][:len(source)-len(weight)]
	tile, err := p.Int32(ParamTileSize)
	if err != nil {
		return nil, err
	}
	return func() error { return fn(source, weight, target, tile) }, nil
}

// RawBytes owns a byte buffer that reset fills one 8-byte word at a time.
type RawBytes struct {
	buf []byte
}

// NewRawBytes allocates maxSize bytes.
func NewRawBytes(maxSize int) *RawBytes {
	return &RawBytes{buf: make([]byte, maxSize)}
}

func (*RawBytes) Kind() registry.Kind { return registry.KindRawBytes }

func (e *RawBytes) Accepts(entry any) bool { return e.Kind().Matches(entry) }

// Reset fills floor(len/8) native-endian words; a trailing partial word is
// left as is.
func (e *RawBytes) Reset(ParameterSet) {
	r := newLCG()
	for off := 0; off+8 <= len(e.buf); off += 8 {
		binary.NativeEndian.PutUint64(e.buf[off:], r.next())
	}
}

func (e *RawBytes) Bind(entry any, p ParameterSet) (Invocable, error) {
	fn, ok := entry.(registry.RawBytesFunc)
	if !ok {
		return nil, mismatch(e.Kind(), entry)
	}
	n, err := p.length(ParamSize, len(e.buf))
	if err != nil {
		return nil, err
	}
	b := e.buf[:n]
	return func() error { return fn(b) }, nil
}

// AllocTest owns no buffers; it passes size and arg1 as scalars.
type AllocTest struct{}

// NewAllocTest returns the buffer-less environment.
func NewAllocTest() *AllocTest { return &AllocTest{} }

func (*AllocTest) Kind() registry.Kind { return registry.KindAllocTest }

func (e *AllocTest) Accepts(entry any) bool { return e.Kind().Matches(entry) }

func (*AllocTest) Reset(ParameterSet) {}

func (e *AllocTest) Bind(entry any, p ParameterSet) (Invocable, error) {
	fn, ok := entry.(registry.AllocTestFunc)
	if !ok {
		return nil, mismatch(e.Kind(), entry)
	}
	count, err := p.Uint(ParamSize)
	if err != nil {
		return nil, err
	}
	seed, err := p.Uint(ParamArg1)
	if err != nil {
		return nil, err
	}
	return func() error { return fn(count, seed) }, nil
}

// Buffers exposes the word buffers of environments that own them, for
// tests and diagnostics.
func (a arrays) Buffers() [][]uint64 { return a.bufs }

// Bytes exposes the raw byte buffer.
func (e *RawBytes) Bytes() []byte { return e.buf }
