package geom

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Shape is an immutable solid. The zero value is not usable; shapes are
// produced by a Kernel or by the package-level constructors.
type Shape struct {
	id    uuid.UUID
	axes  [3][]float64
	n     [3]int
	cells []bool

	topoOnce sync.Once
	topo     *topology
}

func newShape(axes [3][]float64, cells []bool) *Shape {
	s := &Shape{id: uuid.New(), axes: axes, cells: cells}
	for d := 0; d < 3; d++ {
		if len(axes[d]) > 1 {
			s.n[d] = len(axes[d]) - 1
		}
	}
	return s
}

// Empty returns a shape without any cells.
func Empty() *Shape {
	return newShape([3][]float64{}, nil)
}

// NewBox returns the box spanned by two opposite corners.
func NewBox(a, b Vec3) (*Shape, error) {
	var axes [3][]float64
	for d := 0; d < 3; d++ {
		lo, hi := math.Min(a[d], b[d]), math.Max(a[d], b[d])
		if hi-lo <= coordEps(lo, hi) {
			return nil, fmt.Errorf("box has zero extent along axis %d: %w", d, ErrDegenerate)
		}
		axes[d] = []float64{lo, hi}
	}
	return newShape(axes, []bool{true}), nil
}

// ID returns the opaque handle of the shape. Every constructed shape gets a
// fresh id, even when its geometry equals another shape's.
func (s *Shape) ID() uuid.UUID { return s.id }

// IsEmpty reports whether the shape has no volume.
func (s *Shape) IsEmpty() bool {
	for _, c := range s.cells {
		if c {
			return false
		}
	}
	return true
}

// SameGeometry reports whether two shapes cover the same point set.
func (s *Shape) SameGeometry(o *Shape, tol float64) bool {
	if s.IsEmpty() || o.IsEmpty() {
		return s.IsEmpty() == o.IsEmpty()
	}
	for d := 0; d < 3; d++ {
		if len(s.axes[d]) != len(o.axes[d]) {
			return false
		}
		for i := range s.axes[d] {
			if math.Abs(s.axes[d][i]-o.axes[d][i]) > tol {
				return false
			}
		}
	}
	for i := range s.cells {
		if s.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

// Fingerprint returns a stable textual digest of the geometry, used for
// content hashing of imported shapes.
func (s *Shape) Fingerprint() string {
	return fmt.Sprintf("%v|%v", s.axes, packCells(s.cells))
}

func (s *Shape) index(i, j, k int) int {
	return i + s.n[0]*(j+s.n[1]*k)
}

// occupied reports the occupancy of cell (i,j,k); cells outside the grid
// are empty.
func (s *Shape) occupied(c [3]int) bool {
	for d := 0; d < 3; d++ {
		if c[d] < 0 || c[d] >= s.n[d] {
			return false
		}
	}
	return s.cells[s.index(c[0], c[1], c[2])]
}

func (s *Shape) cellMin(c [3]int) Vec3 {
	return Vec3{s.axes[0][c[0]], s.axes[1][c[1]], s.axes[2][c[2]]}
}

func (s *Shape) cellMax(c [3]int) Vec3 {
	return Vec3{s.axes[0][c[0]+1], s.axes[1][c[1]+1], s.axes[2][c[2]+1]}
}

func (s *Shape) lattice(p [3]int) Vec3 {
	return Vec3{s.axes[0][p[0]], s.axes[1][p[1]], s.axes[2][p[2]]}
}

// eachCell calls fn for every occupied cell in z-major scan order.
func (s *Shape) eachCell(fn func(c [3]int)) {
	for k := 0; k < s.n[2]; k++ {
		for j := 0; j < s.n[1]; j++ {
			for i := 0; i < s.n[0]; i++ {
				if s.cells[s.index(i, j, k)] {
					fn([3]int{i, j, k})
				}
			}
		}
	}
}

// containsPoint reports whether p lies inside an occupied cell. Points on
// cell boundaries are assigned to the cell above them.
func (s *Shape) containsPoint(p Vec3) bool {
	var c [3]int
	for d := 0; d < 3; d++ {
		ax := s.axes[d]
		if len(ax) < 2 || p[d] < ax[0] || p[d] >= ax[len(ax)-1] {
			return false
		}
		c[d] = sort.SearchFloat64s(ax, p[d])
		if c[d] >= len(ax) || ax[c[d]] > p[d] {
			c[d]--
		}
	}
	return s.occupied(c)
}

func coordEps(a, b float64) float64 {
	return 1e-9 * math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// mergeCoords returns the sorted union of coordinate lists, collapsing
// values closer than the coordinate tolerance.
func mergeCoords(lists ...[]float64) []float64 {
	var all []float64
	for _, l := range lists {
		all = append(all, l...)
	}
	sort.Float64s(all)
	var out []float64
	for _, x := range all {
		if len(out) > 0 && x-out[len(out)-1] <= coordEps(x, out[len(out)-1]) {
			continue
		}
		out = append(out, x)
	}
	return out
}

// canonical trims empty border slabs and removes grid planes separating
// identical slabs.
func canonical(axes [3][]float64, cells []bool) *Shape {
	raw := newShape(axes, cells)
	if raw.n[0] == 0 || raw.n[1] == 0 || raw.n[2] == 0 || raw.IsEmpty() {
		return Empty()
	}

	// nonempty range per axis
	lo := raw.n
	var hi [3]int
	raw.eachCell(func(c [3]int) {
		for d := 0; d < 3; d++ {
			lo[d] = min(lo[d], c[d])
			hi[d] = max(hi[d], c[d])
		}
	})

	var reps [3][]int
	var newAxes [3][]float64
	for d := 0; d < 3; d++ {
		reps[d] = []int{lo[d]}
		newAxes[d] = []float64{raw.axes[d][lo[d]]}
		for sl := lo[d] + 1; sl <= hi[d]; sl++ {
			if raw.slabsEqual(d, sl-1, sl, lo, hi) {
				continue
			}
			reps[d] = append(reps[d], sl)
			newAxes[d] = append(newAxes[d], raw.axes[d][sl])
		}
		newAxes[d] = append(newAxes[d], raw.axes[d][hi[d]+1])
	}

	out := newShape(newAxes, nil)
	out.cells = make([]bool, out.n[0]*out.n[1]*out.n[2])
	for k := 0; k < out.n[2]; k++ {
		for j := 0; j < out.n[1]; j++ {
			for i := 0; i < out.n[0]; i++ {
				out.cells[out.index(i, j, k)] = raw.cells[raw.index(reps[0][i], reps[1][j], reps[2][k])]
			}
		}
	}
	return out
}

// slabsEqual compares two adjacent slabs along axis d within the box lo..hi.
func (s *Shape) slabsEqual(d, a, b int, lo, hi [3]int) bool {
	u, v := others(d)
	var ca, cb [3]int
	for x := lo[u]; x <= hi[u]; x++ {
		for y := lo[v]; y <= hi[v]; y++ {
			ca[d], cb[d] = a, b
			ca[u], cb[u] = x, x
			ca[v], cb[v] = y, y
			if s.occupied(ca) != s.occupied(cb) {
				return false
			}
		}
	}
	return true
}

// others returns the two axes perpendicular to d in ascending order.
func others(d int) (int, int) {
	switch d {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	default:
		return 0, 1
	}
}

func packCells(cells []bool) string {
	b := make([]byte, len(cells))
	for i, c := range cells {
		if c {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
	}
	return string(b)
}

func unpackCells(s string) ([]bool, error) {
	cells := make([]bool, len(s))
	for i, r := range s {
		switch r {
		case '1':
			cells[i] = true
		case '0':
		default:
			return nil, fmt.Errorf("invalid cell flag %q at %d: %w", r, i, ErrFormat)
		}
	}
	return cells, nil
}
