package geom

import "errors"

var (
	// ErrUnsupported is returned for operations the cell representation
	// cannot express.
	ErrUnsupported = errors.New("operation not supported by the geometry engine")
	// ErrDegenerate is returned when an operation would produce a shape
	// without volume where one is required.
	ErrDegenerate = errors.New("degenerate geometry")
	// ErrFormat is returned for unknown or malformed file formats.
	ErrFormat = errors.New("unsupported file format")
)
