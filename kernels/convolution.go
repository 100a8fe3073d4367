// Package kernels holds the convolution family under test and a few micro
// kernels for the other environment shapes.
//
// Every convolution variant computes
//
//	target[i] += sum_{j<len(weight)} source[i+j] * weight[j]
//
// for i in [0, len(source)-len(weight)), with uint64 wrap-around arithmetic.
// Variants differ only in loop order, chunking and unrolling.
package kernels

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter is returned when a kernel precondition does not hold.
var ErrInvalidParameter = errors.New("invalid kernel parameter")

// SplitChunk is the hard-coded chunk width of Split.
const SplitChunk = 2048

// FixedTile is the hard-coded tile width of TiledFixedTile.
const FixedTile = 64

// outputLen checks the shared preconditions and returns the number of
// target elements that will be updated.
func outputLen(source, weight, target []uint64) (int, error) {
	if len(weight) > len(source) {
		return 0, fmt.Errorf("%w: kernel size %d exceeds source size %d",
			ErrInvalidParameter, len(weight), len(source))
	}
	n := len(source) - len(weight)
	if len(target) < n {
		return 0, fmt.Errorf("%w: target size %d below output size %d",
			ErrInvalidParameter, len(target), n)
	}
	return n, nil
}

func checkTile(tileSize int32) error {
	if tileSize <= 0 {
		return fmt.Errorf("%w: tile size %d must be positive", ErrInvalidParameter, tileSize)
	}
	return nil
}

// Convolution is the direct double loop.
func Convolution(source, weight, target []uint64, _ int32) error {
	n, err := outputLen(source, weight, target)
	if err != nil {
		return err
	}
	k := len(weight)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			target[i] += source[i+j] * weight[j]
		}
	}
	return nil
}

// NewLoop splits the inner kernel loop into tileSize chunks while keeping
// the output index outermost.
func NewLoop(source, weight, target []uint64, tileSize int32) error {
	n, err := outputLen(source, weight, target)
	if err != nil {
		return err
	}
	if err := checkTile(tileSize); err != nil {
		return err
	}
	k, tile := len(weight), int(tileSize)
	for i := 0; i < n; i++ {
		for jj := 0; jj < k; jj += tile {
			end := min(jj+tile, k)
			for j := jj; j < end; j++ {
				target[i] += source[i+j] * weight[j]
			}
		}
	}
	return nil
}

// Split is NewLoop with the chunk width fixed at SplitChunk.
func Split(source, weight, target []uint64, _ int32) error {
	n, err := outputLen(source, weight, target)
	if err != nil {
		return err
	}
	k := len(weight)
	for i := 0; i < n; i++ {
		for jj := 0; jj < k; jj += SplitChunk {
			end := min(jj+SplitChunk, k)
			for j := jj; j < end; j++ {
				target[i] += source[i+j] * weight[j]
			}
		}
	}
	return nil
}

// Tiled hoists the chunk loop outermost so each weight chunk stays cache
// resident across the whole output range.
func Tiled(source, weight, target []uint64, tileSize int32) error {
	n, err := outputLen(source, weight, target)
	if err != nil {
		return err
	}
	if err := checkTile(tileSize); err != nil {
		return err
	}
	k, tile := len(weight), int(tileSize)
	for jj := 0; jj < k; jj += tile {
		end := min(jj+tile, k)
		for i := 0; i < n; i++ {
			for j := jj; j < end; j++ {
				target[i] += source[i+j] * weight[j]
			}
		}
	}
	return nil
}

// TiledUnrolled is Tiled with the innermost loop unrolled by four.
func TiledUnrolled(source, weight, target []uint64, tileSize int32) error {
	n, err := outputLen(source, weight, target)
	if err != nil {
		return err
	}
	if err := checkTile(tileSize); err != nil {
		return err
	}
	k, tile := len(weight), int(tileSize)
	for jj := 0; jj < k; jj += tile {
		end := min(jj+tile, k)
		w := weight[jj:end]
		for i := 0; i < n; i++ {
			s := source[i+jj : i+end]
			s = s[:len(w)]
			acc := target[i]
			j := 0
			for ; j+4 <= len(w); j += 4 {
				acc += s[j]*w[j] + s[j+1]*w[j+1] + s[j+2]*w[j+2] + s[j+3]*w[j+3]
			}
			for ; j < len(w); j++ {
				acc += s[j] * w[j]
			}
			target[i] = acc
		}
	}
	return nil
}

// TiledSplit rounds tileSize down to a multiple of 8 and gives the final,
// possibly partial chunk its own loop so full chunks have a constant trip
// count. tileSize must be at least 8.
func TiledSplit(source, weight, target []uint64, tileSize int32) error {
	n, err := outputLen(source, weight, target)
	if err != nil {
		return err
	}
	if tileSize < 8 {
		return fmt.Errorf("%w: tile size %d below 8", ErrInvalidParameter, tileSize)
	}
	k, tile := len(weight), int(tileSize/8*8)
	for jj := 0; jj < k; jj += tile {
		for i := 0; i < n; i++ {
			if jj+tile > k {
				for j := jj; j < k; j++ {
					target[i] += source[i+j] * weight[j]
				}
			} else {
				for j := jj; j < jj+tile; j++ {
					target[i] += source[i+j] * weight[j]
				}
			}
		}
	}
	return nil
}

// TiledFixedTile is TiledSplit with the tile width fixed at FixedTile so
// the full-chunk loop works on fixed-size arrays.
func TiledFixedTile(source, weight, target []uint64, _ int32) error {
	n, err := outputLen(source, weight, target)
	if err != nil {
		return err
	}
	k := len(weight)
	for jj := 0; jj < k; jj += FixedTile {
		if jj+FixedTile > k {
			for i := 0; i < n; i++ {
				for j := jj; j < k; j++ {
					target[i] += source[i+j] * weight[j]
				}
			}
			continue
		}
		w := (*[FixedTile]uint64)(weight[jj : jj+FixedTile])
		for i := 0; i < n; i++ {
			s := (*[FixedTile]uint64)(source[i+jj : i+jj+FixedTile])
			acc := target[i]
			for j := range w {
				acc += s[j] * w[j]
			}
			target[i] = acc
		}
	}
	return nil
}
