package cad

import (
	"fmt"
	"math"
	"sync"

	"github.com/vk/iscadgo/internal/geom"
)

// Scalar is a lazily evaluated number.
type Scalar interface {
	Value() (float64, error)
}

// ScalarFunc adapts a function to the Scalar interface.
type ScalarFunc func() (float64, error)

func (f ScalarFunc) Value() (float64, error) { return f() }

// Const is a constant scalar.
type Const float64

func (c Const) Value() (float64, error) { return float64(c), nil }

// ParameterScalar is a scalar whose value can be changed after parsing.
// Features depending on it rebuild on their next Build.
type ParameterScalar struct {
	mu sync.RWMutex
	v  float64
}

func NewParameterScalar(v float64) *ParameterScalar { return &ParameterScalar{v: v} }

func (p *ParameterScalar) Value() (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.v, nil
}

func (p *ParameterScalar) Set(v float64) {
	p.mu.Lock()
	p.v = v
	p.mu.Unlock()
}

func unary(a Scalar, fn func(float64) (float64, error)) Scalar {
	return ScalarFunc(func() (float64, error) {
		x, err := a.Value()
		if err != nil {
			return 0, err
		}
		return fn(x)
	})
}

func scalarOp(a, b Scalar, fn func(x, y float64) (float64, error)) Scalar {
	return ScalarFunc(func() (float64, error) {
		x, err := a.Value()
		if err != nil {
			return 0, err
		}
		y, err := b.Value()
		if err != nil {
			return 0, err
		}
		return fn(x, y)
	})
}

func Add(a, b Scalar) Scalar {
	return scalarOp(a, b, func(x, y float64) (float64, error) { return x + y, nil })
}

func Sub(a, b Scalar) Scalar {
	return scalarOp(a, b, func(x, y float64) (float64, error) { return x - y, nil })
}

func Mul(a, b Scalar) Scalar {
	return scalarOp(a, b, func(x, y float64) (float64, error) { return x * y, nil })
}

func Div(a, b Scalar) Scalar {
	return scalarOp(a, b, func(x, y float64) (float64, error) {
		if y == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return x / y, nil
	})
}

func Neg(a Scalar) Scalar {
	return unary(a, func(x float64) (float64, error) { return -x, nil })
}

// mathFuncs are the single-argument functions callable from expressions.
var mathFuncs = map[string]func(float64) float64{
	"sqrt":  math.Sqrt,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"asin":  math.Asin,
	"acos":  math.Acos,
	"atan":  math.Atan,
	"ceil":  math.Ceil,
	"floor": math.Floor,
	"round": math.Round,
}

// IsMathFunc reports whether name is a known single-argument function.
func IsMathFunc(name string) bool {
	_, ok := mathFuncs[name]
	return ok
}

// MathFunc applies a named single-argument function. NaN results are errors.
func MathFunc(name string, a Scalar) Scalar {
	fn := mathFuncs[name]
	return unary(a, func(x float64) (float64, error) {
		if fn == nil {
			return 0, fmt.Errorf("unknown function %s", name)
		}
		r := fn(x)
		if math.IsNaN(r) {
			return 0, fmt.Errorf("%s(%g) is undefined", name, x)
		}
		return r, nil
	})
}

func Pow(a, b Scalar) Scalar {
	return scalarOp(a, b, func(x, y float64) (float64, error) { return math.Pow(x, y), nil })
}

func Atan2(a, b Scalar) Scalar {
	return scalarOp(a, b, func(x, y float64) (float64, error) { return math.Atan2(x, y), nil })
}

// Dot is the dot product of two vectors.
func Dot(a, b Vector) Scalar {
	return ScalarFunc(func() (float64, error) {
		x, y, err := values2(a, b)
		if err != nil {
			return 0, err
		}
		return x.Dot(y), nil
	})
}

// Component extracts coordinate i (0..2) of v.
func Component(v Vector, i int) Scalar {
	return ScalarFunc(func() (float64, error) {
		x, err := v.Value()
		if err != nil {
			return 0, err
		}
		return x[i], nil
	})
}

// Mag is the length of v.
func Mag(v Vector) Scalar {
	return ScalarFunc(func() (float64, error) {
		x, err := v.Value()
		if err != nil {
			return 0, err
		}
		return x.Norm(), nil
	})
}

// VolumeOf is the volume of a feature's shape.
func VolumeOf(f *Feature) Scalar {
	return ScalarFunc(func() (float64, error) {
		s, err := f.Shape()
		if err != nil {
			return 0, err
		}
		return s.Volume(), nil
	})
}

// CumulativeEdgeLength sums the lengths of the edges in an edge set.
func CumulativeEdgeLength(fs *FeatureSet) Scalar {
	return ScalarFunc(func() (float64, error) {
		if fs.Kind() != geom.Edge {
			return 0, fmt.Errorf("cumedgelen needs an edge set, got %s: %w", fs.Kind(), ErrWrongKind)
		}
		ids, err := fs.IDs()
		if err != nil {
			return 0, err
		}
		s, err := fs.Parent().Shape()
		if err != nil {
			return 0, err
		}
		var l float64
		for _, id := range ids {
			l += s.EdgeLength(id)
		}
		return l, nil
	})
}

// ScalarProperty looks up a named scalar provided by a feature.
func ScalarProperty(f *Feature, name string) Scalar {
	return ScalarFunc(func() (float64, error) { return f.ScalarProp(name) })
}
