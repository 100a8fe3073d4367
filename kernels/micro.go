package kernels

import "fmt"

// sink keeps micro kernel results observable so the loops are not
// eliminated.
var sink uint64

// Sum adds every element of a.
func Sum(a []uint64) error {
	var acc uint64
	for _, v := range a {
		acc += v
	}
	sink = acc
	return nil
}

// StridedSum adds every stride-th element of a.
func StridedSum(a []uint64, stride uint64) error {
	if stride == 0 {
		return fmt.Errorf("%w: stride must be positive", ErrInvalidParameter)
	}
	var acc uint64
	for i := uint64(0); i < uint64(len(a)); i += stride {
		acc += a[i]
	}
	sink = acc
	return nil
}

// Dot is the wrap-around dot product over the common prefix of a and b.
func Dot(a, b []uint64) error {
	n := min(len(a), len(b))
	a, b = a[:n], b[:n]
	var acc uint64
	for i := range a {
		acc += a[i] * b[i]
	}
	sink = acc
	return nil
}

// VectorAdd writes a[i]+b[i] into c[i] over the common prefix.
func VectorAdd(a, b, c []uint64) error {
	n := min(len(a), len(b), len(c))
	a, b, c = a[:n], b[:n], c[:n]
	for i := range c {
		c[i] = a[i] + b[i]
	}
	return nil
}

// ByteSum adds every byte of b.
func ByteSum(b []byte) error {
	var acc uint64
	for _, v := range b {
		acc += uint64(v)
	}
	sink = acc
	return nil
}

// AllocFill allocates count words and fills them from seed. It measures the
// allocator and page-fault path rather than a resident buffer.
func AllocFill(count, seed uint64) error {
	buf := make([]uint64, count)
	x := seed
	for i := range buf {
		x = x*6364136223846793005 + 1442695040888963407
		buf[i] = x
	}
	if count > 0 {
		sink = buf[count-1]
	}
	return nil
}
