package cad

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned for operations the geometry engine or the
	// selection engine cannot perform.
	ErrUnsupported = errors.New("unsupported operation")
	// ErrOutOfRange is returned for entity ids outside the parent's range.
	ErrOutOfRange = errors.New("entity id out of range")
	// ErrCrossParent is returned when sets of different parents are combined.
	ErrCrossParent = errors.New("feature sets belong to different features")
	// ErrPlaceholder is returned when a filter references a missing or
	// mistyped %N argument.
	ErrPlaceholder = errors.New("invalid filter placeholder")
	// ErrWrongKind is returned when a set has an unexpected entity kind.
	ErrWrongKind = errors.New("wrong entity kind")
	// ErrNotFound is returned for unknown named subfeatures, datums and
	// properties.
	ErrNotFound = errors.New("not found")
)

// BuildError carries the identity of the feature whose build failed.
type BuildError struct {
	Feature string
	Type    string
	Err     error
}

func (e *BuildError) Error() string {
	name := e.Feature
	if name == "" {
		name = "<anonymous>"
	}
	return fmt.Sprintf("failed to build feature %s (%s): %v", name, e.Type, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// SelectionError reports a failure while resolving a feature set.
type SelectionError struct {
	Kind   string
	Filter string
	Err    error
}

func (e *SelectionError) Error() string {
	if e.Filter != "" {
		return fmt.Sprintf("%s selection %q: %v", e.Kind, e.Filter, e.Err)
	}
	return fmt.Sprintf("%s selection: %v", e.Kind, e.Err)
}

func (e *SelectionError) Unwrap() error { return e.Err }
