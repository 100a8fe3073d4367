// Package registry maps kernel names to their call shape and entry point.
package registry

import "fmt"

// Kind tags the call shape of a registered entry point. Each Kind owns
// exactly one Go function type, listed next to the constant.
type Kind int

const (
	// KindOneArray entries are OneArrayFunc.
	KindOneArray Kind = iota
	// KindOneArray1Arg entries are OneArray1ArgFunc.
	KindOneArray1Arg
	// KindTwoArrays entries are TwoArraysFunc.
	KindTwoArrays
	// KindThreeArrays entries are ThreeArraysFunc.
	KindThreeArrays
	// KindConvolution entries are ConvolutionFunc.
	KindConvolution
	// KindRawBytes entries are RawBytesFunc.
	KindRawBytes
	// KindAllocTest entries are AllocTestFunc.
	KindAllocTest
)

// Entry point signatures, one per Kind. They are aliases so that plain
// function values from modules match without a conversion.
type (
	OneArrayFunc     = func(a []uint64) error
	OneArray1ArgFunc = func(a []uint64, arg1 uint64) error
	TwoArraysFunc    = func(a, b []uint64) error
	ThreeArraysFunc  = func(a, b, c []uint64) error
	ConvolutionFunc  = func(source, weight, target []uint64, tileSize int32) error
	RawBytesFunc     = func(b []byte) error
	AllocTestFunc    = func(count, seed uint64) error
)

var kindNames = map[Kind]string{
	KindOneArray:     "one_array",
	KindOneArray1Arg: "one_array_1arg",
	KindTwoArrays:    "two_arrays",
	KindThreeArrays:  "three_arrays",
	KindConvolution:  "convolution",
	KindRawBytes:     "raw_bytes",
	KindAllocTest:    "alloc_test",
}

// Kinds returns every known Kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindOneArray,
		KindOneArray1Arg,
		KindTwoArrays,
		KindThreeArrays,
		KindConvolution,
		KindRawBytes,
		KindAllocTest,
	}
}

// String returns the tag used in listings and error messages.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a tag back into a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown environment kind %q", s)
}

// Matches reports whether entry is a non-nil value of the function type
// owned by k.
func (k Kind) Matches(entry any) bool {
	switch k {
	case KindOneArray:
		fn, ok := entry.(OneArrayFunc)
		return ok && fn != nil
	case KindOneArray1Arg:
		fn, ok := entry.(OneArray1ArgFunc)
		return ok && fn != nil
	case KindTwoArrays:
		fn, ok := entry.(TwoArraysFunc)
		return ok && fn != nil
	case KindThreeArrays:
		fn, ok := entry.(ThreeArraysFunc)
		return ok && fn != nil
	case KindConvolution:
		fn, ok := entry.(ConvolutionFunc)
		return ok && fn != nil
	case KindRawBytes:
		fn, ok := entry.(RawBytesFunc)
		return ok && fn != nil
	case KindAllocTest:
		fn, ok := entry.(AllocTestFunc)
		return ok && fn != nil
	}
	return false
}
