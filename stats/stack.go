// Package stats computes per-pixel summary statistics over the temporal or
// spectral (z) axis of a stack of co-registered raster bands.
package stats

import (
	"fmt"
	"math"
)

// Float constrains the pixel types a Stack can hold. The single precision
// instantiation mirrors the default processing mode; float64 is the high
// precision mode.
type Float interface {
	~float32 | ~float64
}

// Layout describes the axis order of a Stack's flat backing slice.
type Layout int

const (
	// BSQ is band sequential order: [z][y][x], each band a contiguous plane.
	BSQ Layout = iota
	// BIP is band interleaved by pixel order: [y][x][z], all observations
	// of one pixel contiguous.
	BIP
)

func (l Layout) String() string {
	switch l {
	case BSQ:
		return "BSQ"
	case BIP:
		return "BIP"
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

// Stack is a 3D block of samples: Bands observations of a Rows x Cols
// raster window. The z axis indexes time steps or spectral bands.
type Stack[T Float] struct {
	Data   []T
	Bands  int
	Rows   int
	Cols   int
	Layout Layout
}

// NewStack allocates a zeroed stack with the given geometry.
func NewStack[T Float](bands, rows, cols int, layout Layout) *Stack[T] {
	return &Stack[T]{
		Data:   make([]T, bands*rows*cols),
		Bands:  bands,
		Rows:   rows,
		Cols:   cols,
		Layout: layout,
	}
}

// At returns the sample at observation z of pixel (y, x).
func (s *Stack[T]) At(z, y, x int) T {
	return s.Data[s.index(z, y, x)]
}

// Set assigns the sample at observation z of pixel (y, x).
func (s *Stack[T]) Set(z, y, x int, v T) {
	s.Data[s.index(z, y, x)] = v
}

func (s *Stack[T]) index(z, y, x int) int {
	if s.Layout == BIP {
		return (y*s.Cols+x)*s.Bands + z
	}
	return z*s.Rows*s.Cols + y*s.Cols + x
}

// zSpan returns the base offset and stride addressing the z axis of the
// pixel with flat index p (p = y*Cols + x). All kernels walk the z axis
// through this so both layouts share one code path.
func (s *Stack[T]) zSpan(p int) (base, stride int) {
	if s.Layout == BIP {
		return p * s.Bands, 1
	}
	return p, s.Rows * s.Cols
}

// Plane returns band z as a flat Rows*Cols slice. Only valid for BSQ
// stacks, where bands are contiguous.
func (s *Stack[T]) Plane(z int) []T {
	if s.Layout != BSQ {
		panic("stats: Plane requires a BSQ stack")
	}
	n := s.Rows * s.Cols
	return s.Data[z*n : (z+1)*n]
}

func (s *Stack[T]) validate() error {
	if s == nil {
		return fmt.Errorf("stats: nil stack")
	}
	if s.Bands < 1 || s.Rows < 1 || s.Cols < 1 {
		return fmt.Errorf("stats: stack must be 3D, got %dx%dx%d", s.Bands, s.Rows, s.Cols)
	}
	if len(s.Data) != s.Bands*s.Rows*s.Cols {
		return fmt.Errorf("stats: stack data length %d does not match %dx%dx%d",
			len(s.Data), s.Bands, s.Rows, s.Cols)
	}
	return nil
}

// Double promotes a single precision stack to float64 for high precision
// processing.
func Double(s *Stack[float32]) *Stack[float64] {
	d := &Stack[float64]{
		Data:   make([]float64, len(s.Data)),
		Bands:  s.Bands,
		Rows:   s.Rows,
		Cols:   s.Cols,
		Layout: s.Layout,
	}
	for i, v := range s.Data {
		d.Data[i] = float64(v)
	}
	return d
}

// Transpose returns a copy of the stack in the requested layout. Copying a
// stack into its own layout still allocates.
func Transpose[T Float](s *Stack[T], layout Layout) *Stack[T] {
	out := NewStack[T](s.Bands, s.Rows, s.Cols, layout)
	for z := 0; z < s.Bands; z++ {
		for y := 0; y < s.Rows; y++ {
			for x := 0; x < s.Cols; x++ {
				out.Set(z, y, x, s.At(z, y, x))
			}
		}
	}
	return out
}

func isNaN[T Float](v T) bool {
	return v != v
}

func isInf[T Float](v T) bool {
	return math.IsInf(float64(v), 0)
}
