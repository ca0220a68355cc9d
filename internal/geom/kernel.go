package geom

import "fmt"

// Kernel exposes the engine operations used by the feature graph. It holds
// no state; every method returns a new shape.
type Kernel struct{}

// NewKernel returns the cell kernel.
func NewKernel() *Kernel { return &Kernel{} }

// Box builds the box with corner p0 spanned by three edge vectors. Each
// vector must be parallel to a distinct coordinate axis.
func (k *Kernel) Box(p0, l1, l2, l3 Vec3) (*Shape, error) {
	lo, hi := p0, p0
	var used [3]bool
	for _, l := range []Vec3{l1, l2, l3} {
		axis, _, ok := AxisOf(l)
		if !ok {
			return nil, fmt.Errorf("box edge %v is not axis-aligned: %w", l, ErrUnsupported)
		}
		if used[axis] {
			return nil, fmt.Errorf("box edges are not independent: %w", ErrDegenerate)
		}
		used[axis] = true
		end := p0[axis] + l[axis]
		lo[axis], hi[axis] = min(p0[axis], end), max(p0[axis], end)
	}
	return NewBox(lo, hi)
}

func (k *Kernel) Union(a, b *Shape) (*Shape, error)     { return Union(a, b), nil }
func (k *Kernel) Subtract(a, b *Shape) (*Shape, error)  { return Subtract(a, b), nil }
func (k *Kernel) Intersect(a, b *Shape) (*Shape, error) { return Intersect(a, b), nil }

func (k *Kernel) HalfSpace(s *Shape, p, n Vec3) (*Shape, error) { return HalfSpace(s, p, n) }

func (k *Kernel) Transform(s *Shape, t Transform) (*Shape, error) { return TransformShape(s, t) }

func (k *Kernel) ExtractSolids(s *Shape, ids []int) (*Shape, error) { return ExtractSolids(s, ids) }

func (k *Kernel) Import(path string) (*Shape, error) { return Import(path) }

func (k *Kernel) Export(s *Shape, path string, opts ExportOptions) error {
	return Export(s, path, opts)
}
