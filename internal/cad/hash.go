package cad

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"math"
	"os"

	"golang.org/x/crypto/sha3"

	"github.com/vk/iscadgo/internal/geom"
)

// ParamHash accumulates the defining inputs of a feature into a SHA3-512
// digest. Evaluation errors of operands are recorded and reported by Sum.
type ParamHash struct {
	h   hash.Hash
	err error
}

// NewParamHash returns an empty hash.
func NewParamHash() *ParamHash {
	return &ParamHash{h: sha3.New512()}
}

func (p *ParamHash) write(b []byte) {
	// length prefix keeps adjacent fields from running together
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(b)))
	p.h.Write(n[:])
	p.h.Write(b)
}

// AddString adds a tag or literal.
func (p *ParamHash) AddString(s string) { p.write([]byte(s)) }

// AddFloat adds a number.
func (p *ParamHash) AddFloat(x float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(x))
	p.write(b[:])
}

// AddInts adds an id list.
func (p *ParamHash) AddInts(xs []int) {
	p.AddFloat(float64(len(xs)))
	for _, x := range xs {
		p.AddFloat(float64(x))
	}
}

// AddVec adds a vector value.
func (p *ParamHash) AddVec(v geom.Vec3) {
	for _, c := range v {
		p.AddFloat(c)
	}
}

// AddScalar evaluates s and adds its value.
func (p *ParamHash) AddScalar(s Scalar) {
	if s == nil {
		p.AddString("<nil>")
		return
	}
	v, err := s.Value()
	p.fail(err)
	p.AddFloat(v)
}

// AddVector evaluates v and adds its value.
func (p *ParamHash) AddVector(v Vector) {
	if v == nil {
		p.AddString("<nil>")
		return
	}
	x, err := v.Value()
	p.fail(err)
	p.AddVec(x)
}

// AddDatum evaluates d and adds its frame.
func (p *ParamHash) AddDatum(d Datum) {
	fr, err := d.Frame()
	p.fail(err)
	p.AddFloat(float64(fr.Kind))
	p.AddVec(fr.Origin)
	p.AddVec(fr.Dir)
	p.AddVec(fr.Up)
}

// AddFeature adds the content hash of f.
func (p *ParamHash) AddFeature(f *Feature) {
	h, err := f.ContentHash()
	p.fail(err)
	p.AddString(h)
}

// AddSet adds the parent hash, kind and resolved ids of s.
func (p *ParamHash) AddSet(s *FeatureSet) {
	p.AddFeature(s.Parent())
	p.AddString(s.Kind().String())
	ids, err := s.IDs()
	p.fail(err)
	p.AddInts(ids)
}

// AddFile adds the contents of the file at path, so that editing an input
// file changes the hash of the features read from it.
func (p *ParamHash) AddFile(path string) {
	p.AddString(path)
	data, err := os.ReadFile(path)
	if err != nil {
		p.fail(fmt.Errorf("failed to read %s: %w", path, err))
		return
	}
	p.write(data)
}

func (p *ParamHash) fail(err error) {
	if err != nil && p.err == nil {
		p.err = err
	}
}

// Sum returns the hex digest, or the first operand error.
func (p *ParamHash) Sum() (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return hex.EncodeToString(p.h.Sum(nil)), nil
}
