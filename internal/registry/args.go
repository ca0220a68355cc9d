package registry

import (
	"github.com/hashicorp/hcl/v2"

	"github.com/vk/iscadgo/internal/cad"
)

// Args is the view of a feature call's argument list that the parser hands
// to FeatureType.Parse. Each method consumes tokens; a failing method leaves
// the parser positioned at the offending token, and the returned error
// carries its source range.
//
// Parsing is committed: once a feature function name has been matched, any
// error returned by Parse is a hard parse error for the statement.
type Args interface {
	Scalar() (cad.Scalar, error)
	Vector() (cad.Vector, error)
	Datum() (cad.Datum, error)
	Feature() (*cad.Feature, error)
	// String reads a quoted string literal.
	String() (string, error)

	// Accept consumes punctuation or a keyword if it is next.
	Accept(tok string) bool
	// Expect consumes punctuation or a keyword or fails.
	Expect(tok string) error
	// Peek reports whether the next token is tok without consuming it.
	Peek(tok string) bool

	// Env is the build environment new features are created in.
	Env() *cad.Env
	// Resolve turns a path written in the model into a file system path,
	// relative to the model file.
	Resolve(path string) string
	// Range is the source range of the token about to be consumed.
	Range() hcl.Range
}
